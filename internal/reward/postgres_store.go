package reward

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/giftstream/giftstream/internal/infra"
	"github.com/giftstream/giftstream/internal/ledger"
)

// PostgresStore keeps distribution records in PostgreSQL with the share list
// as JSONB.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore builds a record store backed by PostgreSQL.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

const recordColumns = `event_key, kind, spender_id::text, beneficiary_id::text, COALESCE(agency_id::text, ''),
    admin_id::text, gross_amount, source_currency, mint_rate::text, total_tokens, undistributed, shares, created_at`

func (s *PostgresStore) Create(ctx context.Context, rec Record) error {
	shares, err := json.Marshal(rec.Shares)
	if err != nil {
		return err
	}
	var agency *string
	if rec.AgencyID != "" {
		agency = &rec.AgencyID
	}
	_, err = s.db.Exec(ctx, `INSERT INTO distribution_records
        (event_key, kind, spender_id, beneficiary_id, agency_id, admin_id, gross_amount,
         source_currency, mint_rate, total_tokens, undistributed, shares)
        VALUES ($1, $2, $3::uuid, $4::uuid, $5::uuid, $6::uuid, $7, $8, $9::numeric, $10, $11, $12)`,
		rec.EventKey, string(rec.Kind), rec.SpenderID, rec.BeneficiaryID, agency, rec.AdminID, rec.Gross,
		string(rec.SourceCurrency), rec.MintRate.String(), rec.TotalTokens, rec.Undistributed, shares,
	)
	if infra.IsUniqueViolation(err) {
		return ErrDuplicateEvent
	}
	return err
}

func (s *PostgresStore) Get(ctx context.Context, eventKey string) (Record, error) {
	row := s.db.QueryRow(ctx, `SELECT `+recordColumns+` FROM distribution_records WHERE event_key = $1`, eventKey)
	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrEventNotFound
	}
	return rec, err
}

func (s *PostgresStore) ListByAccount(ctx context.Context, accountID string, limit int) ([]Record, error) {
	rows, err := s.db.Query(ctx, `SELECT `+recordColumns+`
        FROM distribution_records
        WHERE spender_id = $1::uuid OR beneficiary_id = $1::uuid
        ORDER BY created_at DESC
        LIMIT NULLIF($2::int, 0)`, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanRecord(row pgx.Row) (Record, error) {
	var (
		rec       Record
		kind      string
		currency  string
		mintRate  string
		shares    []byte
		createdAt time.Time
	)
	if err := row.Scan(&rec.EventKey, &kind, &rec.SpenderID, &rec.BeneficiaryID, &rec.AgencyID, &rec.AdminID,
		&rec.Gross, &currency, &mintRate, &rec.TotalTokens, &rec.Undistributed, &shares, &createdAt); err != nil {
		return Record{}, err
	}
	rate, err := decimal.NewFromString(mintRate)
	if err != nil {
		return Record{}, fmt.Errorf("decode mint rate of %s: %w", rec.EventKey, err)
	}
	if err := json.Unmarshal(shares, &rec.Shares); err != nil {
		return Record{}, fmt.Errorf("decode shares of %s: %w", rec.EventKey, err)
	}
	rec.Kind = Kind(kind)
	rec.SourceCurrency = ledger.Currency(currency)
	rec.MintRate = rate
	rec.CreatedAt = createdAt.UTC()
	return rec, nil
}
