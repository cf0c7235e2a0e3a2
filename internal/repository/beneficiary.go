package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/meridianbank/core/internal/domain"
)

const beneficiaryColumns = `id, owner_account, target_account, name, routing_code,
	status, activation_time, daily_limit, transferred_today, counter_date, created_at`

type BeneficiaryRepository struct {
	db *sql.DB
}

func NewBeneficiaryRepository(db *sql.DB) *BeneficiaryRepository {
	return &BeneficiaryRepository{db: db}
}

func (r *BeneficiaryRepository) Create(ctx context.Context, b *domain.Beneficiary) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO beneficiaries (`+beneficiaryColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		b.ID, b.OwnerAccount, b.TargetAccount, b.Name, b.RoutingCode,
		b.Status, b.ActivationTime, b.DailyLimit, b.TransferredToday, b.CounterDate, b.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *BeneficiaryRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Beneficiary, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+beneficiaryColumns+` FROM beneficiaries WHERE id = $1`, id,
	)
	b, err := scanBeneficiary(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return b, nil
}

func (r *BeneficiaryRepository) GetByOwner(ctx context.Context, ownerAccount string) ([]domain.Beneficiary, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+beneficiaryColumns+` FROM beneficiaries
		WHERE owner_account = $1 ORDER BY created_at`, ownerAccount,
	)
	if err != nil {
		return nil, fmt.Errorf("GetByOwner: %w", err)
	}
	defer rows.Close()

	var out []domain.Beneficiary
	for rows.Next() {
		b, err := scanBeneficiary(rows)
		if err != nil {
			return nil, fmt.Errorf("GetByOwner: scan: %w", err)
		}
		out = append(out, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("GetByOwner: rows: %w", err)
	}
	return out, nil
}

// GetForUpdate locks a payee row inside tx. The transfer engine locks payee
// rows after balance buckets, so the acquisition order is globally fixed.
func (r *BeneficiaryRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Beneficiary, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+beneficiaryColumns+` FROM beneficiaries WHERE id = $1 FOR UPDATE`, id,
	)
	b, err := scanBeneficiary(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetForUpdate: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetForUpdate: %w", err)
	}
	return b, nil
}

// BumpDailyCounter adds amount to the payee's daily counter, resetting it
// first when the counter belongs to an earlier day.
func (r *BeneficiaryRepository) BumpDailyCounter(ctx context.Context, tx *sql.Tx, id uuid.UUID, amount int64, day time.Time) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE beneficiaries SET
			transferred_today = CASE WHEN counter_date = $3::date THEN transferred_today + $2 ELSE $2 END,
			counter_date = $3::date
		WHERE id = $1`,
		id, amount, day.UTC().Format("2006-01-02"),
	)
	if err != nil {
		return fmt.Errorf("BumpDailyCounter: %w", err)
	}
	return nil
}

// ActivateDue promotes every PENDING payee whose activation time has passed.
// The statement is idempotent: re-running it with the same now matches no
// additional rows.
func (r *BeneficiaryRepository) ActivateDue(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE beneficiaries SET status = $1
		WHERE status = $2 AND activation_time <= $3`,
		domain.BeneficiaryStatusActive, domain.BeneficiaryStatusPending, now,
	)
	if err != nil {
		return 0, fmt.Errorf("ActivateDue: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("ActivateDue: rows affected: %w", err)
	}
	return n, nil
}

func scanBeneficiary(s scanner) (*domain.Beneficiary, error) {
	var b domain.Beneficiary
	err := s.Scan(
		&b.ID, &b.OwnerAccount, &b.TargetAccount, &b.Name, &b.RoutingCode,
		&b.Status, &b.ActivationTime, &b.DailyLimit, &b.TransferredToday, &b.CounterDate, &b.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}
