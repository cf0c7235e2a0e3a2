package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/meridianbank/core/internal/domain"
)

const transactionColumns = `id, reference, from_account, to_account, amount, currency,
	tx_type, status, running_balance, description, created_at`

type TransactionRepository struct {
	db *sql.DB
}

func NewTransactionRepository(db *sql.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Create appends a ledger record inside the caller's transaction so the
// record commits or rolls back together with the balance mutations.
func (r *TransactionRepository) Create(ctx context.Context, tx *sql.Tx, t *domain.Transaction) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO transactions (`+transactionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		t.ID, t.Reference, t.FromAccount, t.ToAccount, t.Amount, t.Currency,
		t.Type, t.Status, t.RunningBalance, t.Description, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

// CreateStandalone appends a record outside any balance mutation, used for
// FAILED audit rows where no balance changed.
func (r *TransactionRepository) CreateStandalone(ctx context.Context, t *domain.Transaction) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (`+transactionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		t.ID, t.Reference, t.FromAccount, t.ToAccount, t.Amount, t.Currency,
		t.Type, t.Status, t.RunningBalance, t.Description, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("CreateStandalone: %w", err)
	}
	return nil
}

func (r *TransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id,
	)
	t, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return t, nil
}

func (r *TransactionRepository) GetByAccount(ctx context.Context, accountNumber string, limit, offset int) ([]domain.Transaction, int, error) {
	var total int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE from_account = $1 OR to_account = $1`, accountNumber,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("GetByAccount: count: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		WHERE from_account = $1 OR to_account = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		accountNumber, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("GetByAccount: %w", err)
	}
	defer rows.Close()

	var txns []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("GetByAccount: scan: %w", err)
		}
		txns = append(txns, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("GetByAccount: rows: %w", err)
	}
	return txns, total, nil
}

func scanTransaction(s scanner) (*domain.Transaction, error) {
	var t domain.Transaction
	err := s.Scan(
		&t.ID, &t.Reference, &t.FromAccount, &t.ToAccount, &t.Amount, &t.Currency,
		&t.Type, &t.Status, &t.RunningBalance, &t.Description, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
