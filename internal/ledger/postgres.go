package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/giftstream/giftstream/internal/infra"
)

// PostgresLedger persists ledger transactions and materialized balances in PostgreSQL.
type PostgresLedger struct {
	db *pgxpool.Pool
}

// NewPostgresLedger constructs a Postgres-backed ledger implementation.
func NewPostgresLedger(db *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{db: db}
}

const transactionColumns = `id, idempotency_key, account_id, currency, amount, description, reference, balance_after, created_at`

// Post appends a transaction row and adjusts the balance inside one database
// transaction. Debits only succeed when the row lock confirms enough funds.
func (l *PostgresLedger) Post(ctx context.Context, p Posting) (Transaction, error) {
	if err := validatePosting(p); err != nil {
		return Transaction{}, err
	}
	accountID, err := uuid.Parse(p.AccountID)
	if err != nil {
		return Transaction{}, fmt.Errorf("invalid account id %q: %w", p.AccountID, err)
	}

	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Transaction{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	existing, err := transactionByKey(ctx, tx, p.IdempotencyKey)
	if err == nil {
		return replayOf(existing, p)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Transaction{}, err
	}

	balanceAfter, err := applyDelta(ctx, tx, accountID, p.Currency, p.Amount)
	if err != nil {
		return Transaction{}, err
	}

	txID := uuid.New()
	var createdAt time.Time
	err = tx.QueryRow(ctx, `INSERT INTO ledger_transactions
        (id, idempotency_key, account_id, currency, amount, description, reference, balance_after)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING created_at`,
		txID, p.IdempotencyKey, accountID, string(p.Currency), p.Amount, p.Description, p.Reference, balanceAfter,
	).Scan(&createdAt)
	if err != nil {
		if infra.IsUniqueViolation(err) {
			// A concurrent posting won the race for this key.
			_ = tx.Rollback(ctx)
			winner, lookupErr := transactionByKey(ctx, l.db, p.IdempotencyKey)
			if lookupErr != nil {
				return Transaction{}, lookupErr
			}
			return replayOf(winner, p)
		}
		return Transaction{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Transaction{}, err
	}

	return Transaction{
		ID:             txID.String(),
		IdempotencyKey: p.IdempotencyKey,
		AccountID:      p.AccountID,
		Currency:       p.Currency,
		Amount:         p.Amount,
		Description:    p.Description,
		Reference:      p.Reference,
		BalanceAfter:   balanceAfter,
		CreatedAt:      createdAt.UTC(),
	}, nil
}

// Balances returns the materialized balance for every currency, zero when unset.
func (l *PostgresLedger) Balances(ctx context.Context, accountID string) (map[Currency]int64, error) {
	id, err := uuid.Parse(accountID)
	if err != nil {
		return nil, fmt.Errorf("invalid account id %q: %w", accountID, err)
	}
	rows, err := l.db.Query(ctx, `SELECT currency, amount FROM balances WHERE account_id = $1`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[Currency]int64, len(Currencies))
	for _, c := range Currencies {
		out[c] = 0
	}
	for rows.Next() {
		var (
			currency string
			amount   int64
		)
		if err := rows.Scan(&currency, &amount); err != nil {
			return nil, err
		}
		out[Currency(currency)] = amount
	}
	return out, rows.Err()
}

// History lists the account's transactions newest first.
func (l *PostgresLedger) History(ctx context.Context, accountID string, limit int) ([]Transaction, error) {
	id, err := uuid.Parse(accountID)
	if err != nil {
		return nil, fmt.Errorf("invalid account id %q: %w", accountID, err)
	}
	rows, err := l.db.Query(ctx, `SELECT `+transactionColumns+`
        FROM ledger_transactions
        WHERE account_id = $1
        ORDER BY seq DESC
        LIMIT NULLIF($2::int, 0)`, id, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Reconcile recomputes each currency from the transaction log and pairs it with
// the materialized balance.
func (l *PostgresLedger) Reconcile(ctx context.Context, accountID string) ([]Reconciliation, error) {
	id, err := uuid.Parse(accountID)
	if err != nil {
		return nil, fmt.Errorf("invalid account id %q: %w", accountID, err)
	}
	materialized, err := l.Balances(ctx, accountID)
	if err != nil {
		return nil, err
	}

	rows, err := l.db.Query(ctx, `SELECT currency, COALESCE(SUM(amount), 0)
        FROM ledger_transactions
        WHERE account_id = $1
        GROUP BY currency`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	computed := make(map[Currency]int64)
	for rows.Next() {
		var (
			currency string
			sum      int64
		)
		if err := rows.Scan(&currency, &sum); err != nil {
			return nil, err
		}
		computed[Currency(currency)] = sum
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]Reconciliation, 0, len(Currencies))
	for _, c := range Currencies {
		out = append(out, Reconciliation{Currency: c, Materialized: materialized[c], Computed: computed[c]})
	}
	return out, nil
}

func applyDelta(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, currency Currency, delta int64) (int64, error) {
	var balance int64
	if delta > 0 {
		err := tx.QueryRow(ctx, `INSERT INTO balances (account_id, currency, amount)
            VALUES ($1, $2, $3)
            ON CONFLICT (account_id, currency)
            DO UPDATE SET amount = balances.amount + EXCLUDED.amount, updated_at = now()
            RETURNING amount`, accountID, string(currency), delta).Scan(&balance)
		if err != nil {
			if infra.IsForeignKeyViolation(err) {
				return 0, fmt.Errorf("account %s not found", accountID)
			}
			return 0, err
		}
		return balance, nil
	}

	err := tx.QueryRow(ctx, `UPDATE balances
        SET amount = amount + $3, updated_at = now()
        WHERE account_id = $1 AND currency = $2 AND amount + $3 >= 0
        RETURNING amount`, accountID, string(currency), delta).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || infra.IsCheckViolation(err) {
			return 0, ErrInsufficientFunds
		}
		return 0, err
	}
	return balance, nil
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func transactionByKey(ctx context.Context, q queryRower, key string) (Transaction, error) {
	row := q.QueryRow(ctx, `SELECT `+transactionColumns+` FROM ledger_transactions WHERE idempotency_key = $1`, key)
	return scanTransaction(row)
}

func scanTransaction(row pgx.Row) (Transaction, error) {
	var (
		t         Transaction
		id        uuid.UUID
		accountID uuid.UUID
		currency  string
		createdAt time.Time
	)
	if err := row.Scan(&id, &t.IdempotencyKey, &accountID, &currency, &t.Amount, &t.Description, &t.Reference, &t.BalanceAfter, &createdAt); err != nil {
		return Transaction{}, err
	}
	t.ID = id.String()
	t.AccountID = accountID.String()
	t.Currency = Currency(currency)
	t.CreatedAt = createdAt.UTC()
	return t, nil
}
