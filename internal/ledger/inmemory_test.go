package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
)

func TestInMemoryLedger_PostMaintainsBalance(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()

	SeedBalance(l, "acct-a", Coins, 10_000)

	tx, err := l.Post(ctx, Posting{IdempotencyKey: "gift-1", AccountID: "acct-a", Currency: Coins, Amount: -1_500})
	if err != nil {
		t.Fatalf("debit failed: %v", err)
	}
	if tx.BalanceAfter != 8_500 {
		t.Fatalf("expected balance after 8500, got %d", tx.BalanceAfter)
	}

	balances, err := l.Balances(ctx, "acct-a")
	if err != nil {
		t.Fatalf("balances: %v", err)
	}
	if balances[Coins] != 8_500 {
		t.Fatalf("expected coins 8500, got %d", balances[Coins])
	}
	if balances[Beans] != 0 || balances[RewardTokens] != 0 {
		t.Fatalf("expected untouched currencies to be zero, got %+v", balances)
	}
}

func TestInMemoryLedger_DuplicateTransaction(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()

	first, err := l.Post(ctx, Posting{IdempotencyKey: "dup", AccountID: "acct-a", Currency: Beans, Amount: 500})
	if err != nil {
		t.Fatalf("initial posting failed: %v", err)
	}
	again, err := l.Post(ctx, Posting{IdempotencyKey: "dup", AccountID: "acct-a", Currency: Beans, Amount: 500})
	if !errors.Is(err, ErrDuplicateTransaction) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	if again.ID != first.ID {
		t.Fatalf("expected original transaction %s, got %s", first.ID, again.ID)
	}

	balances, _ := l.Balances(ctx, "acct-a")
	if balances[Beans] != 500 {
		t.Fatalf("duplicate posting changed balance: %d", balances[Beans])
	}
}

func TestInMemoryLedger_KeyReusedForDifferentPosting(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	SeedBalance(l, "acct-a", Coins, 1_000)
	SeedBalance(l, "acct-b", Coins, 1_000)

	if _, err := l.Post(ctx, Posting{IdempotencyKey: "spend-1", AccountID: "acct-a", Currency: Coins, Amount: -100}); err != nil {
		t.Fatalf("initial debit failed: %v", err)
	}

	cases := map[string]Posting{
		"other account":  {IdempotencyKey: "spend-1", AccountID: "acct-b", Currency: Coins, Amount: -100},
		"other amount":   {IdempotencyKey: "spend-1", AccountID: "acct-a", Currency: Coins, Amount: -300},
		"other currency": {IdempotencyKey: "spend-1", AccountID: "acct-a", Currency: Beans, Amount: -100},
	}
	for name, p := range cases {
		t.Run(name, func(t *testing.T) {
			tx, err := l.Post(ctx, p)
			if !errors.Is(err, ErrIdempotencyConflict) {
				t.Fatalf("expected idempotency conflict, got %v", err)
			}
			if errors.Is(err, ErrDuplicateTransaction) {
				t.Fatalf("conflict must not read as a duplicate")
			}
			if tx.ID != "" {
				t.Fatalf("conflict leaked the original transaction %s", tx.ID)
			}
		})
	}

	a, _ := l.Balances(ctx, "acct-a")
	b, _ := l.Balances(ctx, "acct-b")
	if a[Coins] != 900 || b[Coins] != 1_000 {
		t.Fatalf("conflicting postings moved balances: a=%d b=%d", a[Coins], b[Coins])
	}
}

func TestInMemoryLedger_DebitNeverGoesNegative(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	SeedBalance(l, "acct-a", Coins, 100)

	if _, err := l.Post(ctx, Posting{IdempotencyKey: "big", AccountID: "acct-a", Currency: Coins, Amount: -101}); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}

	balances, _ := l.Balances(ctx, "acct-a")
	if balances[Coins] != 100 {
		t.Fatalf("failed debit changed balance: %d", balances[Coins])
	}
	history, _ := l.History(ctx, "acct-a", 10)
	if len(history) != 1 {
		t.Fatalf("failed debit appended a row: %d rows", len(history))
	}
}

func TestInMemoryLedger_ConcurrentPostings(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	SeedBalance(l, "acct-a", Coins, 5_000)

	const workers = 20
	const amount = int64(500)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := l.Post(ctx, Posting{IdempotencyKey: fmt.Sprintf("tx-%d", i), AccountID: "acct-a", Currency: Coins, Amount: -amount})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			if !errors.Is(err, ErrInsufficientFunds) {
				t.Errorf("posting %d failed: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	if succeeded != 10 {
		t.Fatalf("expected exactly 10 debits to fit, got %d", succeeded)
	}
	balances, _ := l.Balances(ctx, "acct-a")
	if balances[Coins] != 0 {
		t.Fatalf("expected drained balance, got %d", balances[Coins])
	}
}

func TestInMemoryLedger_HistoryNewestFirst(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	for i := 1; i <= 5; i++ {
		if _, err := l.Post(ctx, Posting{IdempotencyKey: fmt.Sprintf("h-%d", i), AccountID: "acct-a", Currency: Beans, Amount: int64(i)}); err != nil {
			t.Fatalf("post %d: %v", i, err)
		}
	}
	SeedBalance(l, "acct-b", Beans, 99)

	history, err := l.History(ctx, "acct-a", 3)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(history))
	}
	for i, want := range []int64{5, 4, 3} {
		if history[i].Amount != want {
			t.Fatalf("row %d: expected amount %d, got %d", i, want, history[i].Amount)
		}
	}
}

func TestInMemoryLedger_ReconcilesAfterRandomSequence(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 300; i++ {
		currency := Currencies[rng.Intn(len(Currencies))]
		amount := int64(rng.Intn(200) + 1)
		if rng.Intn(3) == 0 {
			amount = -amount
		}
		_, err := l.Post(ctx, Posting{IdempotencyKey: fmt.Sprintf("r-%d", i), AccountID: "acct-a", Currency: currency, Amount: amount})
		if err != nil && !errors.Is(err, ErrInsufficientFunds) {
			t.Fatalf("post %d: %v", i, err)
		}
	}

	recs, err := l.Reconcile(ctx, "acct-a")
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	history, _ := l.History(ctx, "acct-a", 0)
	sums := map[Currency]int64{}
	for _, tx := range history {
		sums[tx.Currency] += tx.Amount
	}
	balances, _ := l.Balances(ctx, "acct-a")
	for _, r := range recs {
		if !r.Balanced() {
			t.Fatalf("%s not balanced: materialized=%d computed=%d", r.Currency, r.Materialized, r.Computed)
		}
		if balances[r.Currency] != sums[r.Currency] {
			t.Fatalf("%s: balance %d != history sum %d", r.Currency, balances[r.Currency], sums[r.Currency])
		}
		if balances[r.Currency] < 0 {
			t.Fatalf("%s went negative", r.Currency)
		}
	}
}

func TestPostRejectsInvalidPostings(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()

	cases := map[string]Posting{
		"missing key":      {AccountID: "a", Currency: Coins, Amount: 1},
		"missing account":  {IdempotencyKey: "k", Currency: Coins, Amount: 1},
		"unknown currency": {IdempotencyKey: "k", AccountID: "a", Currency: "gems", Amount: 1},
		"zero amount":      {IdempotencyKey: "k", AccountID: "a", Currency: Coins},
	}
	for name, p := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := l.Post(ctx, p); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestParseCurrency(t *testing.T) {
	if c, err := ParseCurrency("beans"); err != nil || c != Beans {
		t.Fatalf("expected beans, got %q (%v)", c, err)
	}
	if _, err := ParseCurrency("diamonds"); !errors.Is(err, ErrUnknownCurrency) {
		t.Fatalf("expected unknown currency, got %v", err)
	}
}
