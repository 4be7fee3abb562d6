package reward

import (
	"encoding/hex"
	"fmt"
	"math"
	"strconv"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/blake2b"

	"github.com/giftstream/giftstream/internal/referral"
)

// Role names the beneficiary of a share.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleAnchor   Role = "anchor"
	RoleAgency   Role = "agency"
	RoleSpender  Role = "spender"
	RoleReferral Role = "referral"
)

// Share is one planned slice of minted tokens. An empty AccountID marks a
// share that has no recipient and stays undistributed.
type Share struct {
	Role      Role   `json:"role"`
	AccountID string `json:"account_id,omitempty"`
	Level     int    `json:"level,omitempty"`
	Amount    int64  `json:"amount"`
}

// Creditable reports whether the share produces a ledger credit.
func (s Share) Creditable() bool {
	return s.AccountID != "" && s.Amount > 0
}

// PlanInput is everything the split needs, already resolved.
type PlanInput struct {
	Gross     int64
	AdminID   string
	AnchorID  string
	AgencyID  string
	SpenderID string
	Chain     []referral.Ancestor
}

// Allocation is the result of splitting one event.
type Allocation struct {
	TotalTokens   int64
	Shares        []Share
	Undistributed int64
}

// Mint returns floor(gross * rate).
func Mint(gross int64, rate decimal.Decimal) (int64, error) {
	total := decimal.NewFromInt(gross).Mul(rate).Floor()
	if total.GreaterThan(decimal.NewFromInt(math.MaxInt64)) {
		return 0, fmt.Errorf("%w: minted amount overflows", ErrInvalidEvent)
	}
	return total.IntPart(), nil
}

func percentOf(total int64, pct decimal.Decimal) int64 {
	return decimal.NewFromInt(total).Mul(pct).Div(hundred).Floor().IntPart()
}

// Plan splits the minted tokens. Each base share is floored; the rounding
// residual and the referral pool remainder go to admin so the shares always
// sum to TotalTokens.
func Plan(cfg Config, in PlanInput) (Allocation, error) {
	if err := cfg.Validate(); err != nil {
		return Allocation{}, err
	}
	if in.Gross <= 0 {
		return Allocation{}, fmt.Errorf("%w: gross amount must be positive", ErrInvalidEvent)
	}
	if in.AdminID == "" {
		return Allocation{}, configError("admin account is not resolved")
	}
	total, err := Mint(in.Gross, cfg.MintRate)
	if err != nil {
		return Allocation{}, err
	}

	admin := percentOf(total, cfg.Split.Admin)
	anchor := percentOf(total, cfg.Split.Anchor)
	agency := percentOf(total, cfg.Split.Agency)
	spender := percentOf(total, cfg.Split.Spender)
	pool := percentOf(total, cfg.Split.Referral)
	admin += total - (admin + anchor + agency + spender + pool)

	var orphans []Share
	agencyShare := Share{Role: RoleAgency, AccountID: in.AgencyID, Amount: agency}
	if in.AgencyID == "" {
		if cfg.OrphanPolicy == OrphanToAdmin {
			admin += agency
			agencyShare.Amount = 0
		} else {
			orphans = append(orphans, agencyShare)
		}
	}

	var referrals []Share
	switch k := int64(len(in.Chain)); {
	case k == 0 && cfg.OrphanPolicy == OrphanToAdmin:
		admin += pool
	case k == 0:
		orphans = append(orphans, Share{Role: RoleReferral, Amount: pool})
	default:
		each := pool / k
		admin += pool - each*k
		for _, a := range in.Chain {
			referrals = append(referrals, Share{Role: RoleReferral, AccountID: a.AccountID, Level: a.Level, Amount: each})
		}
	}

	shares := []Share{
		{Role: RoleAdmin, AccountID: in.AdminID, Amount: admin},
		{Role: RoleAnchor, AccountID: in.AnchorID, Amount: anchor},
	}
	if in.AgencyID != "" {
		shares = append(shares, agencyShare)
	}
	shares = append(shares, Share{Role: RoleSpender, AccountID: in.SpenderID, Amount: spender})
	shares = append(shares, referrals...)

	alloc := Allocation{TotalTokens: total}
	for _, s := range shares {
		if s.Amount > 0 {
			alloc.Shares = append(alloc.Shares, s)
		}
	}
	for _, o := range orphans {
		if o.Amount > 0 {
			alloc.Shares = append(alloc.Shares, o)
			alloc.Undistributed += o.Amount
		}
	}
	return alloc, nil
}

// CreditKey derives the ledger idempotency key of one share. The same event,
// role, account and level always yield the same key.
func CreditKey(eventKey string, role Role, accountID string, level int) string {
	h, _ := blake2b.New256(nil)
	for _, part := range []string{eventKey, string(role), accountID, strconv.Itoa(level)} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return "reward:" + hex.EncodeToString(h.Sum(nil))
}
