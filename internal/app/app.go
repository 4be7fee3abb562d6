// Package app assembles the services from configuration and backends.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/giftstream/giftstream/internal/account"
	"github.com/giftstream/giftstream/internal/config"
	"github.com/giftstream/giftstream/internal/ledger"
	"github.com/giftstream/giftstream/internal/metrics"
	"github.com/giftstream/giftstream/internal/notification"
	"github.com/giftstream/giftstream/internal/referral"
	"github.com/giftstream/giftstream/internal/reward"
	"github.com/giftstream/giftstream/internal/spend"
	"github.com/giftstream/giftstream/internal/wallet"
)

// Container holds every wired service. Either backend may be nil in
// development, in which case in-memory stores are used.
type Container struct {
	Config   config.Config
	Logger   *slog.Logger
	DB       *pgxpool.Pool
	Cache    *redis.Client
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics

	Ledger    ledger.Ledger
	Accounts  *account.Service
	Wallet    *wallet.Service
	Referrals *referral.CachedResolver
	Rewards   *reward.Engine
	Spend     *spend.Service
	Notifier  notification.Notifier
}

// RewardConfig maps environment configuration onto the engine's settings.
func RewardConfig(cfg config.Config) reward.Config {
	return reward.Config{
		MintRate: cfg.MintRate,
		Split: reward.Split{
			Admin:    cfg.Split.Admin,
			Anchor:   cfg.Split.Anchor,
			Agency:   cfg.Split.Agency,
			Spender:  cfg.Split.Spender,
			Referral: cfg.Split.Referral,
		},
		MaxReferralDepth: cfg.ReferralMaxDepth,
		CreditTimeout:    cfg.CreditTimeout,
		OrphanPolicy:     reward.OrphanPolicy(cfg.OrphanPolicy),
		AdminAccountID:   cfg.AdminAccountID,
	}
}

// New wires the services. Outside development both backends are required.
func New(cfg config.Config, db *pgxpool.Pool, cache *redis.Client, logger *slog.Logger) (*Container, error) {
	if !cfg.IsDev() {
		if db == nil {
			return nil, fmt.Errorf("database is required when APP_ENV=%s", cfg.AppEnv)
		}
		if cache == nil {
			return nil, fmt.Errorf("redis is required when APP_ENV=%s", cfg.AppEnv)
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	c := &Container{
		Config:   cfg,
		Logger:   logger,
		DB:       db,
		Cache:    cache,
		Registry: registry,
		Metrics:  m,
	}

	var (
		accountRepo account.Repository
		records     reward.Store
	)
	if db != nil {
		c.Ledger = ledger.NewPostgresLedger(db)
		accountRepo = account.NewPostgresRepository(db)
		records = reward.NewPostgresStore(db)
	} else {
		c.Ledger = ledger.NewInMemory()
		accountRepo = account.NewMemoryRepository()
		records = reward.NewMemoryStore()
	}

	if cache != nil {
		c.Notifier = notification.NewRedisNotifier(cache)
	} else {
		c.Notifier = notification.NewLoggerNotifier(logger)
	}

	c.Accounts = account.NewService(accountRepo)
	c.Wallet = wallet.NewService(c.Ledger, c.Accounts, m)
	c.Referrals = referral.NewCachedResolver(
		referral.NewResolver(c.Accounts, cfg.ReferralMaxDepth),
		cache,
		cfg.ReferralCacheTTL,
		logger,
	)
	c.Rewards = reward.NewEngine(RewardConfig(cfg), reward.Deps{
		Store:    records,
		Wallet:   c.Wallet,
		Admins:   c.Accounts,
		Chains:   c.Referrals,
		Notifier: c.Notifier,
		Metrics:  m,
		Logger:   logger,
	})
	c.Spend = spend.NewService(c.Wallet, c.Accounts, c.Rewards, c.Notifier, logger)

	if err := RewardConfig(cfg).Validate(); err != nil {
		// Not fatal: distributions are refused until the split is fixed.
		logger.Error("reward configuration invalid", "error", err)
	}
	return c, nil
}

// BootstrapDevAdmin creates the admin sink for an in-memory deployment so
// rewards can be distributed without an operator step.
func (c *Container) BootstrapDevAdmin(ctx context.Context) error {
	if c.DB != nil || !c.Config.IsDev() {
		return nil
	}
	admin, err := c.Accounts.EnsureAdmin(ctx, "dev-admin")
	if err != nil {
		return err
	}
	c.Logger.Info("development admin ready", "account_id", admin.ID)
	return nil
}
