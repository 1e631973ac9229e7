package memory

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/memberauth/internal/common"
	"github.com/dmitrijs2005/memberauth/internal/server/models"
)

type RefreshTokenRepository struct {
	mu     sync.RWMutex
	tokens map[string]models.RefreshToken
}

func NewRefreshTokenRepository() *RefreshTokenRepository {
	return &RefreshTokenRepository{tokens: make(map[string]models.RefreshToken)}
}

func (r *RefreshTokenRepository) Upsert(ctx context.Context, token *models.RefreshToken) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t := *token
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.tokens[t.MemberID] = t
	return nil
}

func (r *RefreshTokenRepository) FindByMember(ctx context.Context, memberID string) (*models.RefreshToken, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tokens[memberID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &t, nil
}

func (r *RefreshTokenRepository) Delete(ctx context.Context, memberID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.tokens, memberID)
	return nil
}

func (r *RefreshTokenRepository) Rotate(ctx context.Context, oldToken string, next *models.RefreshToken) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	t := *next
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.tokens[t.MemberID]
	if !ok || cur.Token != oldToken {
		return false, nil
	}
	r.tokens[t.MemberID] = t
	return true, nil
}

func (r *RefreshTokenRepository) DeleteIfCurrent(ctx context.Context, memberID, token string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.tokens[memberID]
	if !ok || cur.Token != token {
		return false, nil
	}
	delete(r.tokens, memberID)
	return true, nil
}

func (r *RefreshTokenRepository) Count(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	return int64(len(r.tokens)), nil
}

func (r *RefreshTokenRepository) DeleteAll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.tokens = make(map[string]models.RefreshToken)
	return nil
}
