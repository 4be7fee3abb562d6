package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestLoadDefaultsInDevelopment(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.IsDev() {
		t.Fatalf("expected dev mode")
	}
	if !cfg.MintRate.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("expected default mint rate 40, got %s", cfg.MintRate)
	}
	sum := cfg.Split.Admin.Add(cfg.Split.Anchor).Add(cfg.Split.Agency).Add(cfg.Split.Spender).Add(cfg.Split.Referral)
	if !sum.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("default split should sum to 100, got %s", sum)
	}
	if cfg.ReferralMaxDepth != 10 || cfg.OrphanPolicy != "none" {
		t.Fatalf("unexpected reward defaults: depth=%d policy=%s", cfg.ReferralMaxDepth, cfg.OrphanPolicy)
	}
	if cfg.Address() != ":8080" {
		t.Fatalf("unexpected address %s", cfg.Address())
	}
}

func TestLoadRequiresBackendsOutsideDev(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	t.Setenv("JWT_SECRET", "s")

	if _, err := Load(); err == nil {
		t.Fatalf("expected missing DATABASE_URL error")
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "local")
	t.Setenv("REWARD_MINT_RATE", "12.5")
	t.Setenv("REWARD_SPLIT_AGENCY", "0")
	t.Setenv("REWARD_SPLIT_ANCHOR", "60")
	t.Setenv("SHUTDOWN_TIMEOUT_SECONDS", "3")
	t.Setenv("REWARD_CREDIT_TIMEOUT", "750ms")
	t.Setenv("REFERRAL_MAX_DEPTH", "4")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.MintRate.Equal(decimal.RequireFromString("12.5")) {
		t.Fatalf("mint rate not parsed: %s", cfg.MintRate)
	}
	if !cfg.Split.Anchor.Equal(decimal.NewFromInt(60)) || !cfg.Split.Agency.IsZero() {
		t.Fatalf("split overrides not applied: %+v", cfg.Split)
	}
	if cfg.ShutdownPeriod != 3*time.Second || cfg.CreditTimeout != 750*time.Millisecond {
		t.Fatalf("durations not parsed: %v %v", cfg.ShutdownPeriod, cfg.CreditTimeout)
	}
	if cfg.ReferralMaxDepth != 4 {
		t.Fatalf("expected depth 4, got %d", cfg.ReferralMaxDepth)
	}
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("REWARD_MINT_RATE", "forty")
	if _, err := Load(); err == nil {
		t.Fatalf("expected mint rate parse error")
	}
}
