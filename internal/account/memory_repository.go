package account

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memoryRepository struct {
	mu       sync.RWMutex
	accounts map[string]Account
}

// NewMemoryRepository builds an in-memory account store for tests and development.
func NewMemoryRepository() Repository {
	return &memoryRepository{accounts: make(map[string]Account)}
}

func (r *memoryRepository) Create(_ context.Context, acct Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.accounts[acct.ID]; exists {
		return ErrExists
	}
	r.accounts[acct.ID] = acct
	return nil
}

func (r *memoryRepository) Get(_ context.Context, id string) (Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	acct, ok := r.accounts[id]
	if !ok {
		return Account{}, ErrNotFound
	}
	return acct, nil
}

func (r *memoryRepository) UpdateRole(_ context.Context, id string, role Role) error {
	return r.mutate(id, func(a *Account) { a.Role = role })
}

func (r *memoryRepository) UpdateStatus(_ context.Context, id string, status Status) error {
	return r.mutate(id, func(a *Account) { a.Status = status })
}

func (r *memoryRepository) UpdateAgency(_ context.Context, id, agencyID string) error {
	return r.mutate(id, func(a *Account) { a.AgencyID = agencyID })
}

func (r *memoryRepository) mutate(id string, fn func(*Account)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	acct, ok := r.accounts[id]
	if !ok {
		return ErrNotFound
	}
	fn(&acct)
	acct.UpdatedAt = time.Now().UTC()
	r.accounts[id] = acct
	return nil
}

func (r *memoryRepository) ListByRole(_ context.Context, role Role, limit int) ([]Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Account
	for _, acct := range r.accounts {
		if acct.Role == role {
			out = append(out, acct)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memoryRepository) Referrer(_ context.Context, id string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	acct, ok := r.accounts[id]
	if !ok {
		return "", ErrNotFound
	}
	return acct.ReferrerID, nil
}
