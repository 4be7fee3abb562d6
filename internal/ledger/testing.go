package ledger

import (
	"context"

	"github.com/google/uuid"
)

// SeedBalance is a test helper that credits an account through a regular
// posting so the seeded amount stays reconcilable with the log.
func SeedBalance(l Ledger, accountID string, currency Currency, amount int64) {
	_, _ = l.Post(context.Background(), Posting{
		IdempotencyKey: "seed:" + uuid.NewString(),
		AccountID:      accountID,
		Currency:       currency,
		Amount:         amount,
		Description:    "seed",
	})
}
