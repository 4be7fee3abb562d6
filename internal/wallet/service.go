package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/giftstream/giftstream/internal/account"
	"github.com/giftstream/giftstream/internal/ledger"
	"github.com/giftstream/giftstream/internal/metrics"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// Accounts is the account lookup the wallet needs to validate owners.
type Accounts interface {
	Get(ctx context.Context, id string) (account.Account, error)
}

// Service is the only writer of balances and transactions. Every movement
// is a single ledger posting.
type Service struct {
	ledger   ledger.Ledger
	accounts Accounts
	metrics  *metrics.Metrics
}

// NewService builds a wallet service instance. m may be nil.
func NewService(l ledger.Ledger, accounts Accounts, m *metrics.Metrics) *Service {
	return &Service{ledger: l, accounts: accounts, metrics: m}
}

// Credit adds funds. Credits are accepted for any existing account, whatever
// its status, so earned rewards are never lost.
func (s *Service) Credit(ctx context.Context, e Entry) (ledger.Transaction, error) {
	if e.Amount <= 0 {
		return ledger.Transaction{}, ErrInvalidAmount
	}
	if _, err := s.lookup(ctx, e.AccountID); err != nil {
		return ledger.Transaction{}, err
	}
	return s.post(ctx, e, e.Amount)
}

// Debit removes funds from an active account. reward_tokens are credit-only.
func (s *Service) Debit(ctx context.Context, e Entry) (ledger.Transaction, error) {
	if e.Amount <= 0 {
		return ledger.Transaction{}, ErrInvalidAmount
	}
	if e.Currency == ledger.RewardTokens {
		return ledger.Transaction{}, ErrNotSpendable
	}
	acct, err := s.lookup(ctx, e.AccountID)
	if err != nil {
		return ledger.Transaction{}, err
	}
	if !acct.Active() {
		return ledger.Transaction{}, ErrAccountInactive
	}
	return s.post(ctx, e, -e.Amount)
}

func (s *Service) post(ctx context.Context, e Entry, signed int64) (ledger.Transaction, error) {
	key := e.IdempotencyKey
	if key == "" {
		key = "wallet:" + uuid.NewString()
	}
	tx, err := s.ledger.Post(ctx, ledger.Posting{
		IdempotencyKey: key,
		AccountID:      e.AccountID,
		Currency:       e.Currency,
		Amount:         signed,
		Description:    e.Description,
		Reference:      e.Reference,
	})
	s.metrics.ObservePosting(string(e.Currency), signed, postingOutcome(err))
	return tx, err
}

func postingOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ledger.ErrDuplicateTransaction):
		return "duplicate"
	case errors.Is(err, ledger.ErrIdempotencyConflict):
		return "conflict"
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return "insufficient_funds"
	default:
		return "error"
	}
}

// GetBalance returns all three balances of an account.
func (s *Service) GetBalance(ctx context.Context, accountID string) (Balance, error) {
	if _, err := s.lookup(ctx, accountID); err != nil {
		return Balance{}, err
	}
	balances, err := s.ledger.Balances(ctx, accountID)
	if err != nil {
		return Balance{}, err
	}
	return Balance{
		AccountID:    accountID,
		Coins:        balances[ledger.Coins],
		Beans:        balances[ledger.Beans],
		RewardTokens: balances[ledger.RewardTokens],
		AsOf:         time.Now().UTC(),
	}, nil
}

// GetHistory lists transactions newest first. Limit defaults to 50 and is
// capped at 500.
func (s *Service) GetHistory(ctx context.Context, accountID string, limit int) ([]ledger.Transaction, error) {
	if _, err := s.lookup(ctx, accountID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return s.ledger.History(ctx, accountID, limit)
}

// Reconcile compares materialized balances against the transaction log.
func (s *Service) Reconcile(ctx context.Context, accountID string) ([]ledger.Reconciliation, error) {
	if _, err := s.lookup(ctx, accountID); err != nil {
		return nil, err
	}
	return s.ledger.Reconcile(ctx, accountID)
}

func (s *Service) lookup(ctx context.Context, accountID string) (account.Account, error) {
	acct, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return account.Account{}, fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
		}
		return account.Account{}, err
	}
	return acct, nil
}
