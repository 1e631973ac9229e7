// Package memory holds in-process implementations of the member and refresh
// token repositories. They back tests and the server's "memory" store mode.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/memberauth/internal/common"
	"github.com/dmitrijs2005/memberauth/internal/server/models"
)

// MemberRepository indexes members by id and by email under one lock, so the
// duplicate check and the insert cannot interleave.
type MemberRepository struct {
	mu      sync.RWMutex
	byID    map[string]*models.Member
	byEmail map[string]string
}

func NewMemberRepository() *MemberRepository {
	return &MemberRepository{
		byID:    make(map[string]*models.Member),
		byEmail: make(map[string]string),
	}
}

func (r *MemberRepository) Create(ctx context.Context, member *models.Member) (*models.Member, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byEmail[member.Email]; ok {
		return nil, common.ErrAlreadyExists
	}
	if _, ok := r.byID[member.ID]; ok {
		return nil, common.ErrAlreadyExists
	}

	if member.CreatedAt.IsZero() {
		member.CreatedAt = time.Now().UTC()
	}
	stored := *member
	r.byID[stored.ID] = &stored
	r.byEmail[stored.Email] = stored.ID

	return member, nil
}

func (r *MemberRepository) FindByEmail(ctx context.Context, email string) (*models.Member, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return nil, common.ErrorNotFound
	}
	m := *r.byID[id]
	return &m, nil
}

func (r *MemberRepository) FindByID(ctx context.Context, id string) (*models.Member, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, ok := r.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	m := *stored
	return &m, nil
}

func (r *MemberRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.byEmail[email]
	return ok, nil
}

func (r *MemberRepository) Count(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	return int64(len(r.byID)), nil
}

func (r *MemberRepository) DeleteAll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.byID = make(map[string]*models.Member)
	r.byEmail = make(map[string]string)
	return nil
}
