// Package refreshtokens declares the server-side repository contract for
// the single live refresh token each member holds.
package refreshtokens

import (
	"context"

	"github.com/dmitrijs2005/memberauth/internal/server/models"
)

// Repository keeps at most one refresh token per member.
type Repository interface {
	// Upsert stores token for token.MemberID, replacing any previous record
	// of that member.
	Upsert(ctx context.Context, token *models.RefreshToken) error

	// FindByMember returns the member's current token or common.ErrorNotFound.
	FindByMember(ctx context.Context, memberID string) (*models.RefreshToken, error)

	// Rotate stores next only if the member's current token equals oldToken,
	// atomically. It reports whether the swap happened.
	Rotate(ctx context.Context, oldToken string, next *models.RefreshToken) (bool, error)

	// DeleteIfCurrent removes the member's token only if it equals token and
	// reports whether it did.
	DeleteIfCurrent(ctx context.Context, memberID, token string) (bool, error)

	// Delete removes the member's token. Deleting a missing token is not an error.
	Delete(ctx context.Context, memberID string) error

	Count(ctx context.Context) (int64, error)
	DeleteAll(ctx context.Context) error
}
