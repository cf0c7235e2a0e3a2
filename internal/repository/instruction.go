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

const instructionColumns = `id, owner_account, payee_account, payee_name, amount, currency,
	day_of_month, next_execution_date, status, last_executed, failure_reason, created_at`

type InstructionRepository struct {
	db *sql.DB
}

func NewInstructionRepository(db *sql.DB) *InstructionRepository {
	return &InstructionRepository{db: db}
}

func (r *InstructionRepository) Create(ctx context.Context, si *domain.StandingInstruction) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO standing_instructions (`+instructionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		si.ID, si.OwnerAccount, si.PayeeAccount, si.PayeeName, si.Amount, si.Currency,
		si.DayOfMonth, si.NextExecutionDate, si.Status, si.LastExecuted, si.FailureReason, si.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *InstructionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.StandingInstruction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+instructionColumns+` FROM standing_instructions WHERE id = $1`, id,
	)
	si, err := scanInstruction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return si, nil
}

func (r *InstructionRepository) GetByOwner(ctx context.Context, ownerAccount string) ([]domain.StandingInstruction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+instructionColumns+` FROM standing_instructions
		WHERE owner_account = $1 ORDER BY created_at`, ownerAccount,
	)
	if err != nil {
		return nil, fmt.Errorf("GetByOwner: %w", err)
	}
	defer rows.Close()
	return collectInstructions(rows)
}

// GetDue returns every ACTIVE instruction whose next execution date has
// passed, so runs missed while the process was down are caught up rather
// than skipped.
func (r *InstructionRepository) GetDue(ctx context.Context, now time.Time) ([]domain.StandingInstruction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+instructionColumns+` FROM standing_instructions
		WHERE status = $1 AND next_execution_date <= $2
		ORDER BY next_execution_date`,
		domain.InstructionStatusActive, now,
	)
	if err != nil {
		return nil, fmt.Errorf("GetDue: %w", err)
	}
	defer rows.Close()
	return collectInstructions(rows)
}

// MarkExecuted advances the schedule after a confirmed successful payment
// and clears any earlier failure note.
func (r *InstructionRepository) MarkExecuted(ctx context.Context, id uuid.UUID, executedAt, nextDate time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE standing_instructions
		SET next_execution_date = $2, last_executed = $3, failure_reason = NULL
		WHERE id = $1`,
		id, nextDate, executedAt,
	)
	if err != nil {
		return fmt.Errorf("MarkExecuted: %w", err)
	}
	return nil
}

// MarkFailed records why an attempt failed. The execution date is left
// untouched so the instruction is retried on the next pass.
func (r *InstructionRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE standing_instructions SET failure_reason = $2 WHERE id = $1`,
		id, reason,
	)
	if err != nil {
		return fmt.Errorf("MarkFailed: %w", err)
	}
	return nil
}

func collectInstructions(rows *sql.Rows) ([]domain.StandingInstruction, error) {
	var out []domain.StandingInstruction
	for rows.Next() {
		si, err := scanInstruction(rows)
		if err != nil {
			return nil, fmt.Errorf("collectInstructions: scan: %w", err)
		}
		out = append(out, *si)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("collectInstructions: rows: %w", err)
	}
	return out, nil
}

func scanInstruction(s scanner) (*domain.StandingInstruction, error) {
	var si domain.StandingInstruction
	err := s.Scan(
		&si.ID, &si.OwnerAccount, &si.PayeeAccount, &si.PayeeName, &si.Amount, &si.Currency,
		&si.DayOfMonth, &si.NextExecutionDate, &si.Status, &si.LastExecuted, &si.FailureReason, &si.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &si, nil
}
