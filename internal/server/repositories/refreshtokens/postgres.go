package refreshtokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/memberauth/internal/common"
	"github.com/dmitrijs2005/memberauth/internal/dbx"
	"github.com/dmitrijs2005/memberauth/internal/server/models"
)

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Upsert relies on the member_id primary key so concurrent logins of the
// same member still leave a single row.
func (r *PostgresRepository) Upsert(ctx context.Context, token *models.RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (member_id, token, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (member_id) DO UPDATE
		SET token = EXCLUDED.token, expires_at = EXCLUDED.expires_at, created_at = now()
	`
	if _, err := r.db.ExecContext(ctx, query, token.MemberID, token.Token, token.ExpiresAt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) FindByMember(ctx context.Context, memberID string) (*models.RefreshToken, error) {
	query := `
		SELECT member_id, token, expires_at, created_at
		FROM refresh_tokens
		WHERE member_id = $1
	`
	t := &models.RefreshToken{}
	if err := r.db.QueryRowContext(ctx, query, memberID).Scan(&t.MemberID, &t.Token, &t.ExpiresAt, &t.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return t, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, memberID string) error {
	query := `
		DELETE FROM refresh_tokens
		WHERE member_id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, memberID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Rotate replaces the member's token only while the stored one is
// oldToken. Concurrent rotations of the same token serialize on the row and
// all but the first match zero rows.
func (r *PostgresRepository) Rotate(ctx context.Context, oldToken string, next *models.RefreshToken) (bool, error) {
	query := `
		UPDATE refresh_tokens
		SET token = $3, expires_at = $4, created_at = now()
		WHERE member_id = $1 AND token = $2
	`
	res, err := r.db.ExecContext(ctx, query, next.MemberID, oldToken, next.Token, next.ExpiresAt)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return affectedOne(res)
}

func (r *PostgresRepository) DeleteIfCurrent(ctx context.Context, memberID, token string) (bool, error) {
	query := `
		DELETE FROM refresh_tokens
		WHERE member_id = $1 AND token = $2
	`
	res, err := r.db.ExecContext(ctx, query, memberID, token)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return affectedOne(res)
}

func affectedOne(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n == 1, nil
}

func (r *PostgresRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM refresh_tokens`).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM refresh_tokens`); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
