package account

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

// Repository persists accounts and their referral edges.
type Repository interface {
	Create(ctx context.Context, acct Account) error
	Get(ctx context.Context, id string) (Account, error)
	UpdateRole(ctx context.Context, id string, role Role) error
	UpdateStatus(ctx context.Context, id string, status Status) error
	UpdateAgency(ctx context.Context, id, agencyID string) error
	ListByRole(ctx context.Context, role Role, limit int) ([]Account, error)
	// Referrer returns the direct referrer of id, or "" when there is none.
	// An unknown id yields ErrNotFound.
	Referrer(ctx context.Context, id string) (string, error)
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed account repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const accountColumns = `id, role, status, display_name, agency_id, referrer_id, referral_level, created_at, updated_at`

// Create inserts the account and, when it was referred, its referral edge in
// one transaction so the edge exists from the first moment the account does.
func (r *PostgresRepository) Create(ctx context.Context, acct Account) error {
	id, err := uuid.Parse(acct.ID)
	if err != nil {
		return err
	}
	agencyID, err := optionalUUID(acct.AgencyID)
	if err != nil {
		return err
	}
	referrerID, err := optionalUUID(acct.ReferrerID)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	_, err = tx.Exec(ctx, `INSERT INTO accounts (id, role, status, display_name, agency_id, referrer_id, referral_level, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`,
		id, string(acct.Role), string(acct.Status), acct.DisplayName, agencyID, referrerID, acct.ReferralLevel, acct.CreatedAt.UTC())
	if err != nil {
		if infra.IsUniqueViolation(err) {
			return ErrExists
		}
		return err
	}

	if referrerID != nil {
		if _, err := tx.Exec(ctx, `INSERT INTO referral_edges (referred_id, referrer_id, level) VALUES ($1, $2, 1)`, id, *referrerID); err != nil {
			return fmt.Errorf("create referral edge: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// Get fetches an account by identifier.
func (r *PostgresRepository) Get(ctx context.Context, id string) (Account, error) {
	accountID, err := uuid.Parse(id)
	if err != nil {
		return Account{}, ErrNotFound
	}
	row := r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, accountID)
	acct, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, ErrNotFound
	}
	return acct, err
}

// UpdateRole changes an account's role.
func (r *PostgresRepository) UpdateRole(ctx context.Context, id string, role Role) error {
	return r.update(ctx, `UPDATE accounts SET role = $1, updated_at = now() WHERE id = $2`, id, string(role))
}

// UpdateStatus changes an account's lifecycle status.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, id string, status Status) error {
	return r.update(ctx, `UPDATE accounts SET status = $1, updated_at = now() WHERE id = $2`, id, string(status))
}

// UpdateAgency sets or clears the managing agency.
func (r *PostgresRepository) UpdateAgency(ctx context.Context, id, agencyID string) error {
	agency, err := optionalUUID(agencyID)
	if err != nil {
		return err
	}
	return r.update(ctx, `UPDATE accounts SET agency_id = $1, updated_at = now() WHERE id = $2`, id, agency)
}

func (r *PostgresRepository) update(ctx context.Context, query, id string, value any) error {
	accountID, err := uuid.Parse(id)
	if err != nil {
		return ErrNotFound
	}
	cmd, err := r.db.Exec(ctx, query, value, accountID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByRole returns accounts holding role, oldest first.
func (r *PostgresRepository) ListByRole(ctx context.Context, role Role, limit int) ([]Account, error) {
	rows, err := r.db.Query(ctx, `SELECT `+accountColumns+` FROM accounts WHERE role = $1 ORDER BY created_at LIMIT $2`, string(role), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Account
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, acct)
	}
	return out, rows.Err()
}

// Referrer reads the direct referral edge for id. The join against accounts
// tells an unknown account (ErrNotFound) apart from one nobody referred ("").
func (r *PostgresRepository) Referrer(ctx context.Context, id string) (string, error) {
	accountID, err := uuid.Parse(id)
	if err != nil {
		return "", ErrNotFound
	}
	var referrer *uuid.UUID
	err = r.db.QueryRow(ctx, `SELECT e.referrer_id
        FROM accounts a
        LEFT JOIN referral_edges e ON e.referred_id = a.id
        WHERE a.id = $1`, accountID).Scan(&referrer)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	if referrer == nil {
		return "", nil
	}
	return referrer.String(), nil
}

func scanAccount(row pgx.Row) (Account, error) {
	var (
		acct       Account
		id         uuid.UUID
		role       string
		status     string
		agencyID   *uuid.UUID
		referrerID *uuid.UUID
		createdAt  time.Time
		updatedAt  time.Time
	)
	if err := row.Scan(&id, &role, &status, &acct.DisplayName, &agencyID, &referrerID, &acct.ReferralLevel, &createdAt, &updatedAt); err != nil {
		return Account{}, err
	}
	acct.ID = id.String()
	acct.Role = Role(role)
	acct.Status = Status(status)
	if agencyID != nil {
		acct.AgencyID = agencyID.String()
	}
	if referrerID != nil {
		acct.ReferrerID = referrerID.String()
	}
	acct.CreatedAt = createdAt.UTC()
	acct.UpdatedAt = updatedAt.UTC()
	return acct, nil
}

func optionalUUID(s string) (*uuid.UUID, error) {
	if s == "" {
		return nil, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
