package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/memberauth/internal/dbx"
	"github.com/dmitrijs2005/memberauth/internal/server/repositories/members"
	"github.com/dmitrijs2005/memberauth/internal/server/repositories/memory"
	"github.com/dmitrijs2005/memberauth/internal/server/repositories/refreshtokens"
)

// InMemoryRepositoryManager serves process-local stores. The DBTX and
// *sql.DB arguments are ignored, so callers may pass nil.
type InMemoryRepositoryManager struct {
	members       *memory.MemberRepository
	refreshTokens *memory.RefreshTokenRepository
}

func NewInMemoryRepositoryManager() *InMemoryRepositoryManager {
	return &InMemoryRepositoryManager{
		members:       memory.NewMemberRepository(),
		refreshTokens: memory.NewRefreshTokenRepository(),
	}
}

func (m *InMemoryRepositoryManager) RunMigrations(context.Context, *sql.DB) error {
	return nil
}

func (m *InMemoryRepositoryManager) Members(dbx.DBTX) members.Repository {
	return m.members
}

func (m *InMemoryRepositoryManager) RefreshTokens(dbx.DBTX) refreshtokens.Repository {
	return m.refreshTokens
}

func (m *InMemoryRepositoryManager) Reset(ctx context.Context, _ *sql.DB) error {
	if err := m.refreshTokens.DeleteAll(ctx); err != nil {
		return err
	}
	return m.members.DeleteAll(ctx)
}
