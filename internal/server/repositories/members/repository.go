// Package members declares the member store contract and its PostgreSQL
// implementation.
package members

import (
	"context"

	"github.com/dmitrijs2005/memberauth/internal/server/models"
)

// Repository stores members keyed by unique email.
type Repository interface {
	// FindByEmail returns common.ErrorNotFound when no member has email.
	FindByEmail(ctx context.Context, email string) (*models.Member, error)

	// FindByID returns common.ErrorNotFound when id is unknown.
	FindByID(ctx context.Context, id string) (*models.Member, error)

	ExistsByEmail(ctx context.Context, email string) (bool, error)

	// Create inserts member. The email uniqueness check is atomic with the
	// insert; a duplicate yields common.ErrAlreadyExists.
	Create(ctx context.Context, member *models.Member) (*models.Member, error)

	Count(ctx context.Context) (int64, error)
	DeleteAll(ctx context.Context) error
}
