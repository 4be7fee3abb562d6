// Package reward mints reward tokens from spend events and splits them across
// the admin sink, the beneficiary, its agency, the spender and the spender's
// referral chain.
package reward

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/giftstream/giftstream/internal/account"
	"github.com/giftstream/giftstream/internal/ledger"
	"github.com/giftstream/giftstream/internal/metrics"
	"github.com/giftstream/giftstream/internal/notification"
	"github.com/giftstream/giftstream/internal/referral"
	"github.com/giftstream/giftstream/internal/wallet"
)

// Event is one spend that mints tokens.
type Event struct {
	Key            string
	Kind           Kind
	SpenderID      string
	BeneficiaryID  string
	AgencyID       string
	Gross          int64
	SourceCurrency ledger.Currency
}

// Leg is a credit that landed.
type Leg struct {
	Share         Share
	TransactionID string
	// Duplicate is set when the ledger already held this credit.
	Duplicate bool
}

// Outcome is the result of a distribution or a replay.
type Outcome struct {
	Record   Record
	Credited []Leg
}

// Wallet is the credit side of the wallet service.
type Wallet interface {
	Credit(ctx context.Context, e wallet.Entry) (ledger.Transaction, error)
}

// AdminResolver finds the admin sink account.
type AdminResolver interface {
	Admin(ctx context.Context, pinnedID string) (account.Account, error)
}

// Engine runs distributions. It holds no locks across store calls.
type Engine struct {
	cfg      Config
	store    Store
	wallet   Wallet
	admins   AdminResolver
	chains   referral.ChainResolver
	notifier notification.Notifier
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// Deps groups the collaborators of an Engine.
type Deps struct {
	Store    Store
	Wallet   Wallet
	Admins   AdminResolver
	Chains   referral.ChainResolver
	Notifier notification.Notifier
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

// NewEngine builds an engine. The configuration is validated on every
// distribution, not here, so a bad split refuses events instead of crashing
// the process.
func NewEngine(cfg Config, deps Deps) *Engine {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		cfg:      cfg,
		store:    deps.Store,
		wallet:   deps.Wallet,
		admins:   deps.Admins,
		chains:   deps.Chains,
		notifier: deps.Notifier,
		metrics:  deps.Metrics,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Config returns the engine's configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Ready reports whether a distribution could start now: the split is valid
// and the admin sink resolves. Callers that collect money before
// distributing check it first so a misconfigured engine charges nobody.
func (e *Engine) Ready(ctx context.Context) error {
	_, err := e.sink(ctx)
	return err
}

func (e *Engine) sink(ctx context.Context) (account.Account, error) {
	if err := e.cfg.Validate(); err != nil {
		return account.Account{}, err
	}
	admin, err := e.admins.Admin(ctx, e.cfg.AdminAccountID)
	if err != nil {
		if errors.Is(err, account.ErrNoAdmin) || errors.Is(err, account.ErrAmbiguousAdmin) || errors.Is(err, account.ErrNotFound) {
			return account.Account{}, configError("admin sink: %v", err)
		}
		return account.Account{}, fmt.Errorf("%w: resolve admin: %v", ErrStoreUnavailable, err)
	}
	return admin, nil
}

func validateEvent(ev Event) error {
	switch {
	case ev.Key == "":
		return fmt.Errorf("%w: event key is required", ErrInvalidEvent)
	case ev.Kind != KindGift && ev.Kind != KindCall:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidEvent, ev.Kind)
	case ev.SpenderID == "" || ev.BeneficiaryID == "":
		return fmt.Errorf("%w: spender and beneficiary are required", ErrInvalidEvent)
	case ev.Gross <= 0:
		return fmt.Errorf("%w: gross amount must be positive", ErrInvalidEvent)
	case ev.SourceCurrency != ledger.Coins && ev.SourceCurrency != ledger.Beans:
		return fmt.Errorf("%w: source currency %q", ErrInvalidEvent, ev.SourceCurrency)
	}
	return nil
}

// Distribute mints and splits the tokens of ev at most once per event key.
// The record is stored before the first credit. When some credits fail the
// outcome is returned together with a *PartialDistributionError.
func (e *Engine) Distribute(ctx context.Context, ev Event) (Outcome, error) {
	started := time.Now()
	outcome, err := e.distribute(ctx, ev)
	e.metrics.ObserveDistribution(string(ev.Kind), distributionOutcome(err), started)
	return outcome, err
}

func (e *Engine) distribute(ctx context.Context, ev Event) (Outcome, error) {
	if err := validateEvent(ev); err != nil {
		return Outcome{}, err
	}
	admin, err := e.sink(ctx)
	if err != nil {
		e.logger.Error("reward distribution refused", "event_key", ev.Key, "error", err)
		return Outcome{}, err
	}

	chain, err := e.chains.ResolveChain(ctx, ev.SpenderID, e.cfg.MaxReferralDepth)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: resolve referral chain: %v", ErrStoreUnavailable, err)
	}

	alloc, err := Plan(e.cfg, PlanInput{
		Gross:     ev.Gross,
		AdminID:   admin.ID,
		AnchorID:  ev.BeneficiaryID,
		AgencyID:  ev.AgencyID,
		SpenderID: ev.SpenderID,
		Chain:     chain,
	})
	if err != nil {
		return Outcome{}, err
	}

	rec := Record{
		EventKey:       ev.Key,
		Kind:           ev.Kind,
		SpenderID:      ev.SpenderID,
		BeneficiaryID:  ev.BeneficiaryID,
		AgencyID:       ev.AgencyID,
		AdminID:        admin.ID,
		Gross:          ev.Gross,
		SourceCurrency: ev.SourceCurrency,
		MintRate:       e.cfg.MintRate,
		TotalTokens:    alloc.TotalTokens,
		Shares:         alloc.Shares,
		Undistributed:  alloc.Undistributed,
		CreatedAt:      e.now(),
	}
	if err := e.store.Create(ctx, rec); err != nil {
		if errors.Is(err, ErrDuplicateEvent) {
			return Outcome{}, fmt.Errorf("%w: %s", ErrDuplicateEvent, ev.Key)
		}
		return Outcome{}, fmt.Errorf("%w: store record: %v", ErrStoreUnavailable, err)
	}
	for _, s := range rec.Shares {
		if s.AccountID == "" {
			e.metrics.ObserveUndistributed(string(s.Role), s.Amount)
		}
	}

	return e.issue(ctx, rec)
}

// Replay reissues every credit of a stored record with its original keys.
// Credits that already landed come back as ledger duplicates and count as
// succeeded, so Replay can be repeated until it returns no error.
func (e *Engine) Replay(ctx context.Context, eventKey string) (Outcome, error) {
	started := time.Now()
	rec, err := e.store.Get(ctx, eventKey)
	if err != nil {
		if !errors.Is(err, ErrEventNotFound) {
			err = fmt.Errorf("%w: load record: %v", ErrStoreUnavailable, err)
		}
		e.metrics.ObserveDistribution("replay", distributionOutcome(err), started)
		return Outcome{}, err
	}
	outcome, err := e.issue(ctx, rec)
	e.metrics.ObserveDistribution("replay", distributionOutcome(err), started)
	return outcome, err
}

// Get returns the stored record for an event key.
func (e *Engine) Get(ctx context.Context, eventKey string) (Record, error) {
	return e.store.Get(ctx, eventKey)
}

// History lists records an account took part in, newest first.
func (e *Engine) History(ctx context.Context, accountID string, limit int) ([]Record, error) {
	return e.store.ListByAccount(ctx, accountID, limit)
}

func (e *Engine) issue(ctx context.Context, rec Record) (Outcome, error) {
	outcome := Outcome{Record: rec}
	var failed []FailedLeg
	for _, s := range rec.Shares {
		if !s.Creditable() {
			continue
		}
		leg, err := e.credit(ctx, rec, s)
		e.metrics.ObserveCredit(string(s.Role), s.Amount, err)
		if err != nil {
			failed = append(failed, FailedLeg{Share: s, Err: err})
			continue
		}
		outcome.Credited = append(outcome.Credited, leg)
	}

	if len(failed) > 0 {
		perr := &PartialDistributionError{EventKey: rec.EventKey, Succeeded: outcome.Credited, Failed: failed}
		e.logger.Error("reward distribution incomplete",
			"event_key", rec.EventKey,
			"credited", len(outcome.Credited),
			"failed", len(failed),
			"error", perr,
		)
		return outcome, perr
	}

	e.notify(ctx, rec, outcome.Credited)
	e.logger.Info("reward distributed",
		"event_key", rec.EventKey,
		"kind", rec.Kind,
		"total_tokens", rec.TotalTokens,
		"undistributed", rec.Undistributed,
		"credits", len(outcome.Credited),
	)
	return outcome, nil
}

func (e *Engine) credit(ctx context.Context, rec Record, s Share) (Leg, error) {
	if e.cfg.CreditTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.CreditTimeout)
		defer cancel()
	}
	tx, err := e.wallet.Credit(ctx, wallet.Entry{
		AccountID:      s.AccountID,
		Currency:       ledger.RewardTokens,
		Amount:         s.Amount,
		Description:    describe(rec, s),
		Reference:      rec.EventKey,
		IdempotencyKey: CreditKey(rec.EventKey, s.Role, s.AccountID, s.Level),
	})
	if errors.Is(err, ledger.ErrDuplicateTransaction) {
		return Leg{Share: s, TransactionID: tx.ID, Duplicate: true}, nil
	}
	if err != nil {
		return Leg{}, err
	}
	return Leg{Share: s, TransactionID: tx.ID}, nil
}

func describe(rec Record, s Share) string {
	if s.Role == RoleReferral {
		return fmt.Sprintf("%s reward %s: referral level %d", rec.Kind, rec.EventKey, s.Level)
	}
	return fmt.Sprintf("%s reward %s: %s share", rec.Kind, rec.EventKey, s.Role)
}

// notify tells each freshly credited account its balance changed. Delivery
// failures are logged and never fail the distribution.
func (e *Engine) notify(ctx context.Context, rec Record, legs []Leg) {
	if e.notifier == nil {
		return
	}
	totals := make(map[string]int64)
	order := make([]string, 0, len(legs))
	for _, leg := range legs {
		if leg.Duplicate {
			continue
		}
		if _, seen := totals[leg.Share.AccountID]; !seen {
			order = append(order, leg.Share.AccountID)
		}
		totals[leg.Share.AccountID] += leg.Share.Amount
	}
	for _, accountID := range order {
		err := e.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindBalanceChanged,
			Destination: accountID,
			Body:        fmt.Sprintf("You earned %d reward tokens", totals[accountID]),
			Amount:      totals[accountID],
			Currency:    string(ledger.RewardTokens),
			Reference:   rec.EventKey,
		})
		if err != nil {
			e.metrics.ObserveNotificationFailure(notification.KindBalanceChanged)
			e.logger.Warn("notification failed", "kind", notification.KindBalanceChanged, "destination", accountID, "error", err)
		}
	}
}

func distributionOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrPartialDistribution):
		return "partial"
	case errors.Is(err, ErrDuplicateEvent):
		return "duplicate"
	case errors.Is(err, ErrConfiguration):
		return "config_error"
	case errors.Is(err, ErrInvalidEvent):
		return "invalid"
	case errors.Is(err, ErrEventNotFound):
		return "not_found"
	default:
		return "store_error"
	}
}
