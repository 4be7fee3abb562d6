// Package spend turns gifts and paid calls into coin debits, anchor bean
// credits and reward distributions.
package spend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/giftstream/giftstream/internal/account"
	"github.com/giftstream/giftstream/internal/ledger"
	"github.com/giftstream/giftstream/internal/notification"
	"github.com/giftstream/giftstream/internal/reward"
	"github.com/giftstream/giftstream/internal/wallet"
)

var (
	ErrSelfSpend    = errors.New("spender and anchor must differ")
	ErrNotAnchor    = errors.New("recipient is not an anchor")
	ErrInvalidSpend = errors.New("invalid spend")
)

// Wallet is the slice of the wallet service a spend needs.
type Wallet interface {
	Credit(ctx context.Context, e wallet.Entry) (ledger.Transaction, error)
	Debit(ctx context.Context, e wallet.Entry) (ledger.Transaction, error)
}

// Accounts looks up anchors and their agencies.
type Accounts interface {
	Get(ctx context.Context, id string) (account.Account, error)
}

// Distributor is the reward engine entry point. Ready is checked before any
// coins move.
type Distributor interface {
	Ready(ctx context.Context) error
	Distribute(ctx context.Context, ev reward.Event) (reward.Outcome, error)
}

// Service wires spend events through the wallet and the reward engine.
type Service struct {
	wallet   Wallet
	accounts Accounts
	rewards  Distributor
	notifier notification.Notifier
	logger   *slog.Logger
}

// NewService constructs a spend service.
func NewService(w Wallet, accounts Accounts, rewards Distributor, notifier notification.Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{wallet: w, accounts: accounts, rewards: rewards, notifier: notifier, logger: logger}
}

// Gift is a viewer sending a priced gift to an anchor.
type Gift struct {
	ID        string
	SpenderID string
	AnchorID  string
	Cost      int64
}

// Call is a billed private call between a caller and an anchor.
type Call struct {
	ID            string
	CallerID      string
	AnchorID      string
	Minutes       int64
	RatePerMinute int64
}

// Receipt describes what a spend did. Distribution failures do not fail the
// spend; they are reported in DistributionErr.
type Receipt struct {
	EventKey           string
	Gross              int64
	DebitTransactionID string
	SpenderCoins       int64
	BeansCredited      int64
	// Repeated is set when the debit had already been collected by an
	// earlier request with the same id.
	Repeated        bool
	Distribution    reward.Outcome
	DistributionErr error
}

type spendEvent struct {
	kind      reward.Kind
	id        string
	spenderID string
	anchorID  string
	gross     int64
}

// key scopes the client-chosen id to its spender, so two viewers picking the
// same gift id never share ledger keys.
func (e spendEvent) key() string {
	return fmt.Sprintf("%s:%s:%s", e.kind, e.spenderID, e.id)
}

// SendGift debits the spender, credits the anchor's beans and distributes
// reward tokens under the key gift:<spender>:<id>.
func (s *Service) SendGift(ctx context.Context, g Gift) (Receipt, error) {
	if g.Cost <= 0 {
		return Receipt{}, fmt.Errorf("%w: gift cost must be positive", ErrInvalidSpend)
	}
	return s.settle(ctx, spendEvent{kind: reward.KindGift, id: g.ID, spenderID: g.SpenderID, anchorID: g.AnchorID, gross: g.Cost})
}

// SettleCall bills minutes × rate and then follows the gift path under the
// key call:<caller>:<id>.
func (s *Service) SettleCall(ctx context.Context, c Call) (Receipt, error) {
	if c.Minutes <= 0 || c.RatePerMinute <= 0 {
		return Receipt{}, fmt.Errorf("%w: minutes and rate must be positive", ErrInvalidSpend)
	}
	if c.Minutes > math.MaxInt64/c.RatePerMinute {
		return Receipt{}, fmt.Errorf("%w: call charge overflows", ErrInvalidSpend)
	}
	return s.settle(ctx, spendEvent{kind: reward.KindCall, id: c.ID, spenderID: c.CallerID, anchorID: c.AnchorID, gross: c.Minutes * c.RatePerMinute})
}

func (s *Service) settle(ctx context.Context, ev spendEvent) (Receipt, error) {
	if ev.id == "" || ev.spenderID == "" || ev.anchorID == "" {
		return Receipt{}, fmt.Errorf("%w: id, spender and anchor are required", ErrInvalidSpend)
	}
	if ev.spenderID == ev.anchorID {
		return Receipt{}, ErrSelfSpend
	}
	anchor, err := s.accounts.Get(ctx, ev.anchorID)
	if err != nil {
		return Receipt{}, err
	}
	if anchor.Role != account.RoleAnchor {
		return Receipt{}, ErrNotAnchor
	}
	if err := s.rewards.Ready(ctx); err != nil {
		return Receipt{}, err
	}

	key := ev.key()
	receipt := Receipt{EventKey: key, Gross: ev.gross}

	debit, err := s.wallet.Debit(ctx, wallet.Entry{
		AccountID:      ev.spenderID,
		Currency:       ledger.Coins,
		Amount:         ev.gross,
		Description:    fmt.Sprintf("%s %s to %s", ev.kind, ev.id, ev.anchorID),
		Reference:      ev.anchorID,
		IdempotencyKey: key + ":debit",
	})
	switch {
	case errors.Is(err, ledger.ErrDuplicateTransaction):
		receipt.Repeated = true
	case err != nil:
		return Receipt{}, err
	}
	receipt.DebitTransactionID = debit.ID
	receipt.SpenderCoins = debit.BalanceAfter

	_, err = s.wallet.Credit(ctx, wallet.Entry{
		AccountID:      ev.anchorID,
		Currency:       ledger.Beans,
		Amount:         ev.gross,
		Description:    fmt.Sprintf("%s %s from %s", ev.kind, ev.id, ev.spenderID),
		Reference:      ev.spenderID,
		IdempotencyKey: key + ":beans",
	})
	if err != nil && !errors.Is(err, ledger.ErrDuplicateTransaction) {
		return receipt, fmt.Errorf("credit anchor beans for %s: %w", key, err)
	}
	receipt.BeansCredited = ev.gross

	outcome, err := s.rewards.Distribute(ctx, reward.Event{
		Key:            key,
		Kind:           ev.kind,
		SpenderID:      ev.spenderID,
		BeneficiaryID:  ev.anchorID,
		AgencyID:       anchor.AgencyID,
		Gross:          ev.gross,
		SourceCurrency: ledger.Coins,
	})
	receipt.Distribution = outcome
	if err != nil {
		receipt.DistributionErr = err
		level := slog.LevelError
		if errors.Is(err, reward.ErrDuplicateEvent) {
			level = slog.LevelInfo
		}
		s.logger.Log(ctx, level, "reward distribution not completed", "event_key", key, "error", err)
	}

	if receipt.DistributionErr == nil && ev.kind == reward.KindGift {
		s.notifyAnchor(ctx, ev)
	}
	return receipt, nil
}

func (s *Service) notifyAnchor(ctx context.Context, ev spendEvent) {
	if s.notifier == nil {
		return
	}
	err := s.notifier.Send(ctx, notification.Message{
		Kind:        notification.KindGiftReceived,
		Destination: ev.anchorID,
		Body:        fmt.Sprintf("You received a gift worth %d coins", ev.gross),
		Amount:      ev.gross,
		Currency:    string(ledger.Coins),
		Reference:   ev.key(),
	})
	if err != nil {
		s.logger.Warn("notification failed", "kind", notification.KindGiftReceived, "destination", ev.anchorID, "error", err)
	}
}
