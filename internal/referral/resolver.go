// Package referral walks the referral graph upward from an account.
package referral

import (
	"context"
	"errors"
	"fmt"

	"github.com/giftstream/giftstream/internal/account"
)

// DefaultMaxDepth bounds a walk when the caller passes no depth.
const DefaultMaxDepth = 10

// ErrAccountNotFound is returned when the starting account does not exist.
var ErrAccountNotFound = errors.New("referral: account not found")

// Ancestor is one hop up the chain. Level 1 is the direct referrer.
type Ancestor struct {
	AccountID string `json:"account_id"`
	Level     int    `json:"level"`
}

// Store answers a single hop: the direct referrer of id, or "" when id was
// not referred by anyone.
type Store interface {
	Referrer(ctx context.Context, id string) (string, error)
}

// Resolver performs bounded, iterative chain walks.
type Resolver struct {
	store        Store
	defaultDepth int
}

// NewResolver builds a resolver. A non-positive defaultDepth falls back to
// DefaultMaxDepth.
func NewResolver(store Store, defaultDepth int) *Resolver {
	if defaultDepth <= 0 {
		defaultDepth = DefaultMaxDepth
	}
	return &Resolver{store: store, defaultDepth: defaultDepth}
}

// DefaultDepth returns the depth used when callers pass zero.
func (r *Resolver) DefaultDepth() int {
	return r.defaultDepth
}

// ResolveChain returns the ancestors of accountID ordered by level, at most
// maxDepth of them. The walk also stops if an account shows up twice.
func (r *Resolver) ResolveChain(ctx context.Context, accountID string, maxDepth int) ([]Ancestor, error) {
	if maxDepth <= 0 {
		maxDepth = r.defaultDepth
	}
	chain := make([]Ancestor, 0, 4)
	seen := map[string]struct{}{accountID: {}}
	current := accountID
	for level := 1; level <= maxDepth; level++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		parent, err := r.store.Referrer(ctx, current)
		if err != nil {
			if level == 1 && errors.Is(err, account.ErrNotFound) {
				return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
			}
			return nil, fmt.Errorf("resolve referrer of %s: %w", current, err)
		}
		if parent == "" {
			break
		}
		if _, loop := seen[parent]; loop {
			break
		}
		seen[parent] = struct{}{}
		chain = append(chain, Ancestor{AccountID: parent, Level: level})
		current = parent
	}
	return chain, nil
}
