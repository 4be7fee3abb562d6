package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInsufficientFunds occurs when a debit would drive a balance below zero.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrDuplicateTransaction indicates the idempotency key was already posted.
	// The original transaction is returned alongside this error.
	ErrDuplicateTransaction = errors.New("duplicate transaction")

	// ErrIdempotencyConflict means the key was already posted for a different
	// account, currency or amount. Nothing is applied.
	ErrIdempotencyConflict = errors.New("idempotency key reused for a different posting")

	// ErrUnknownCurrency is returned when parsing a currency outside the closed set.
	ErrUnknownCurrency = errors.New("unknown currency")
)

// Currency is one of the closed set of value types an account can hold.
type Currency string

const (
	// Coins are purchased and spendable.
	Coins Currency = "coins"
	// Beans are earned from gifts and withdrawable.
	Beans Currency = "beans"
	// RewardTokens are minted by the reward engine.
	RewardTokens Currency = "reward_tokens"
)

// Currencies lists every supported currency in display order.
var Currencies = []Currency{Coins, Beans, RewardTokens}

// ParseCurrency validates s against the closed currency set.
func ParseCurrency(s string) (Currency, error) {
	switch c := Currency(s); c {
	case Coins, Beans, RewardTokens:
		return c, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCurrency, s)
	}
}

// Posting is a request to apply a signed amount to one account balance.
type Posting struct {
	IdempotencyKey string
	AccountID      string
	Currency       Currency
	// Amount is signed: positive credits, negative debits.
	Amount      int64
	Description string
	Reference   string
}

// Transaction is an immutable ledger row.
type Transaction struct {
	ID             string
	IdempotencyKey string
	AccountID      string
	Currency       Currency
	Amount         int64
	Description    string
	Reference      string
	BalanceAfter   int64
	CreatedAt      time.Time
}

// Reconciliation compares a materialized balance with the sum of its log.
type Reconciliation struct {
	Currency     Currency
	Materialized int64
	Computed     int64
}

// Balanced reports whether the materialized balance matches the log.
func (r Reconciliation) Balanced() bool {
	return r.Materialized == r.Computed
}

// Ledger defines the contract implemented by ledger backends (e.g. Postgres).
// Post appends the transaction row and applies the balance delta as one unit.
type Ledger interface {
	Post(ctx context.Context, p Posting) (Transaction, error)
	Balances(ctx context.Context, accountID string) (map[Currency]int64, error)
	History(ctx context.Context, accountID string, limit int) ([]Transaction, error)
	Reconcile(ctx context.Context, accountID string) ([]Reconciliation, error)
}

// replayOf decides what a repeated idempotency key means: the original
// transaction with ErrDuplicateTransaction when p describes the same posting,
// ErrIdempotencyConflict otherwise.
func replayOf(existing Transaction, p Posting) (Transaction, error) {
	if existing.AccountID != p.AccountID || existing.Currency != p.Currency || existing.Amount != p.Amount {
		return Transaction{}, fmt.Errorf("%w: key %q", ErrIdempotencyConflict, p.IdempotencyKey)
	}
	return existing, ErrDuplicateTransaction
}

func validatePosting(p Posting) error {
	if p.IdempotencyKey == "" {
		return fmt.Errorf("idempotency key is required")
	}
	if p.AccountID == "" {
		return fmt.Errorf("account id is required")
	}
	if _, err := ParseCurrency(string(p.Currency)); err != nil {
		return err
	}
	if p.Amount == 0 {
		return fmt.Errorf("amount must be non-zero")
	}
	return nil
}
