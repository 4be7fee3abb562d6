package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type balanceKey struct {
	account  string
	currency Currency
}

type inMemoryLedger struct {
	mu       sync.RWMutex
	balances map[balanceKey]int64
	log      []Transaction
	byKey    map[string]int
}

// NewInMemory creates a concurrency-safe in-memory ledger useful for unit tests
// and development mode.
func NewInMemory() Ledger {
	return &inMemoryLedger{
		balances: make(map[balanceKey]int64),
		byKey:    make(map[string]int),
	}
}

func (l *inMemoryLedger) Post(_ context.Context, p Posting) (Transaction, error) {
	if err := validatePosting(p); err != nil {
		return Transaction{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if idx, exists := l.byKey[p.IdempotencyKey]; exists {
		return replayOf(l.log[idx], p)
	}

	key := balanceKey{account: p.AccountID, currency: p.Currency}
	next := l.balances[key] + p.Amount
	if next < 0 {
		return Transaction{}, ErrInsufficientFunds
	}
	l.balances[key] = next

	tx := Transaction{
		ID:             uuid.NewString(),
		IdempotencyKey: p.IdempotencyKey,
		AccountID:      p.AccountID,
		Currency:       p.Currency,
		Amount:         p.Amount,
		Description:    p.Description,
		Reference:      p.Reference,
		BalanceAfter:   next,
		CreatedAt:      time.Now().UTC(),
	}
	l.byKey[p.IdempotencyKey] = len(l.log)
	l.log = append(l.log, tx)
	return tx, nil
}

func (l *inMemoryLedger) Balances(_ context.Context, accountID string) (map[Currency]int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[Currency]int64, len(Currencies))
	for _, c := range Currencies {
		out[c] = l.balances[balanceKey{account: accountID, currency: c}]
	}
	return out, nil
}

func (l *inMemoryLedger) History(_ context.Context, accountID string, limit int) ([]Transaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []Transaction
	for i := len(l.log) - 1; i >= 0; i-- {
		if l.log[i].AccountID != accountID {
			continue
		}
		out = append(out, l.log[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (l *inMemoryLedger) Reconcile(_ context.Context, accountID string) ([]Reconciliation, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	sums := make(map[Currency]int64)
	for _, tx := range l.log {
		if tx.AccountID == accountID {
			sums[tx.Currency] += tx.Amount
		}
	}
	out := make([]Reconciliation, 0, len(Currencies))
	for _, c := range Currencies {
		out = append(out, Reconciliation{
			Currency:     c,
			Materialized: l.balances[balanceKey{account: accountID, currency: c}],
			Computed:     sums[c],
		})
	}
	return out, nil
}
