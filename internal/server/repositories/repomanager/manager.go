package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/memberauth/internal/dbx"
	"github.com/dmitrijs2005/memberauth/internal/server/repositories/members"
	"github.com/dmitrijs2005/memberauth/internal/server/repositories/refreshtokens"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Members(db dbx.DBTX) members.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	// Reset deletes every refresh token and member in one transaction.
	Reset(context.Context, *sql.DB) error
}
