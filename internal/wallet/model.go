package wallet

import (
	"time"

	"github.com/giftstream/giftstream/internal/ledger"
)

// Entry describes one side of a wallet movement. Amount is always positive;
// the direction comes from calling Credit or Debit.
type Entry struct {
	AccountID      string
	Currency       ledger.Currency
	Amount         int64
	Description    string
	Reference      string
	IdempotencyKey string
}

// Balance is a point-in-time view of every currency held by an account.
type Balance struct {
	AccountID    string
	Coins        int64
	Beans        int64
	RewardTokens int64
	AsOf         time.Time
}
