package reward

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrphanPolicy decides what happens to an agency share without an agency or
// a referral pool without referrers.
type OrphanPolicy string

const (
	// OrphanKeep leaves orphan shares uncredited and records them as
	// undistributed.
	OrphanKeep OrphanPolicy = "none"
	// OrphanToAdmin credits orphan shares to the admin sink.
	OrphanToAdmin OrphanPolicy = "admin"
)

var hundred = decimal.NewFromInt(100)

// Split holds the five percentages of minted tokens.
type Split struct {
	Admin    decimal.Decimal
	Anchor   decimal.Decimal
	Agency   decimal.Decimal
	Spender  decimal.Decimal
	Referral decimal.Decimal
}

// Config drives minting and splitting.
type Config struct {
	MintRate         decimal.Decimal
	Split            Split
	MaxReferralDepth int
	CreditTimeout    time.Duration
	OrphanPolicy     OrphanPolicy
	// AdminAccountID pins the admin sink. Empty means the unique active admin.
	AdminAccountID string
}

// DefaultConfig returns 40 tokens per unit and a 10/50/10/20/10 split.
func DefaultConfig() Config {
	return Config{
		MintRate: decimal.NewFromInt(40),
		Split: Split{
			Admin:    decimal.NewFromInt(10),
			Anchor:   decimal.NewFromInt(50),
			Agency:   decimal.NewFromInt(10),
			Spender:  decimal.NewFromInt(20),
			Referral: decimal.NewFromInt(10),
		},
		MaxReferralDepth: 10,
		CreditTimeout:    5 * time.Second,
		OrphanPolicy:     OrphanKeep,
	}
}

// Validate checks the split sums to exactly 100 and the mint rate is positive.
func (c Config) Validate() error {
	if !c.MintRate.IsPositive() {
		return configError("mint rate must be positive, got %s", c.MintRate)
	}
	parts := map[string]decimal.Decimal{
		"admin":    c.Split.Admin,
		"anchor":   c.Split.Anchor,
		"agency":   c.Split.Agency,
		"spender":  c.Split.Spender,
		"referral": c.Split.Referral,
	}
	sum := decimal.Zero
	for name, pct := range parts {
		if pct.IsNegative() {
			return configError("%s percentage is negative: %s", name, pct)
		}
		sum = sum.Add(pct)
	}
	if !sum.Equal(hundred) {
		return configError("split percentages sum to %s, want 100", sum)
	}
	if c.MaxReferralDepth < 0 {
		return configError("referral depth must not be negative")
	}
	switch c.OrphanPolicy {
	case "", OrphanKeep, OrphanToAdmin:
	default:
		return configError("unknown orphan policy %q", c.OrphanPolicy)
	}
	return nil
}
