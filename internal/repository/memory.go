package repository

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/lectory/lectory-auth/internal/domain"
)

// MemoryAccountRepo is an in-process AccountRepository used for development
// and tests. It honors the same compare-and-swap contract as the Postgres
// implementation.
type MemoryAccountRepo struct {
	mu      sync.Mutex
	byID    map[int64]domain.Account
	byEmail map[string]int64
}

var _ AccountRepository = (*MemoryAccountRepo)(nil)

// NewMemoryAccountRepo creates an empty repository.
func NewMemoryAccountRepo() *MemoryAccountRepo {
	return &MemoryAccountRepo{
		byID:    make(map[int64]domain.Account),
		byEmail: make(map[string]int64),
	}
}

func (r *MemoryAccountRepo) FindByEmail(ctx context.Context, email string) (domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byEmail[strings.ToLower(email)]
	if !ok {
		return domain.Account{}, domain.ErrAccountNotFound
	}
	return r.byID[id], nil
}

func (r *MemoryAccountRepo) FindByID(ctx context.Context, id int64) (domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.byID[id]
	if !ok {
		return domain.Account{}, domain.ErrAccountNotFound
	}
	return account, nil
}

func (r *MemoryAccountRepo) Insert(ctx context.Context, account domain.Account) (domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := strings.ToLower(account.Email)
	if _, exists := r.byEmail[key]; exists {
		return domain.Account{}, domain.ErrEmailTaken
	}
	now := time.Now().UTC()
	account.CreatedAt = now
	account.UpdatedAt = now
	r.byID[account.ID] = account
	r.byEmail[key] = account.ID
	return account, nil
}

func (r *MemoryAccountRepo) UpdateRefreshToken(ctx context.Context, accountID int64, expectedOld, next string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.byID[accountID]
	if !ok || account.RefreshToken != expectedOld {
		return false, nil
	}
	account.RefreshToken = next
	account.UpdatedAt = time.Now().UTC()
	r.byID[accountID] = account
	return true, nil
}
