package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/meridianbank/core/internal/domain"
)

type AccountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// GetByNumber loads an account together with all of its currency buckets.
func (r *AccountRepository) GetByNumber(ctx context.Context, accountNumber string) (*domain.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT account_number, customer_id, holder_name, status, created_at
		FROM accounts WHERE account_number = $1`, accountNumber,
	)

	var a domain.Account
	err := row.Scan(&a.AccountNumber, &a.CustomerID, &a.HolderName, &a.Status, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByNumber: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByNumber: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT currency, balance FROM account_balances WHERE account_number = $1`, accountNumber,
	)
	if err != nil {
		return nil, fmt.Errorf("GetByNumber: balances: %w", err)
	}
	defer rows.Close()

	a.Balances = make(map[domain.Currency]int64)
	for rows.Next() {
		var c domain.Currency
		var b int64
		if err := rows.Scan(&c, &b); err != nil {
			return nil, fmt.Errorf("GetByNumber: scan balance: %w", err)
		}
		a.Balances[c] = b
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("GetByNumber: rows: %w", err)
	}
	return &a, nil
}

func (r *AccountRepository) Create(ctx context.Context, account *domain.Account) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("Create: begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO accounts (account_number, customer_id, holder_name, status, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		account.AccountNumber, account.CustomerID, account.HolderName, account.Status, account.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}

	for _, c := range domain.Currencies() {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO account_balances (account_number, currency, balance, version)
			VALUES ($1, $2, $3, 0)`,
			account.AccountNumber, c, account.Balances[c],
		)
		if err != nil {
			return fmt.Errorf("Create: bucket %s: %w", c, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("Create: commit: %w", err)
	}
	return nil
}

func (r *AccountRepository) GetBucket(ctx context.Context, accountNumber string, currency domain.Currency) (*domain.BalanceBucket, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT account_number, currency, balance, version
		FROM account_balances WHERE account_number = $1 AND currency = $2`,
		accountNumber, currency,
	)
	b, err := scanBucket(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetBucket: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetBucket: %w", err)
	}
	return b, nil
}

// GetBucketForUpdate locks one currency bucket inside tx. Callers must lock
// buckets in lexicographic account-number order to stay deadlock free.
func (r *AccountRepository) GetBucketForUpdate(ctx context.Context, tx *sql.Tx, accountNumber string, currency domain.Currency) (*domain.BalanceBucket, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT account_number, currency, balance, version
		FROM account_balances WHERE account_number = $1 AND currency = $2 FOR UPDATE`,
		accountNumber, currency,
	)
	b, err := scanBucket(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetBucketForUpdate: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetBucketForUpdate: %w", err)
	}
	return b, nil
}

// UpdateBucketBalance writes a new balance guarded by the version read
// earlier in the same transaction. Zero rows affected means a concurrent
// writer got there first.
func (r *AccountRepository) UpdateBucketBalance(ctx context.Context, tx *sql.Tx, accountNumber string, currency domain.Currency, newBalance, newVersion int64) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE account_balances SET balance = $1, version = $2
		WHERE account_number = $3 AND currency = $4 AND version = $5`,
		newBalance, newVersion, accountNumber, currency, newVersion-1,
	)
	if err != nil {
		return fmt.Errorf("UpdateBucketBalance: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("UpdateBucketBalance: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("UpdateBucketBalance: %w", domain.ErrVersionConflict)
	}
	return nil
}

func scanBucket(s scanner) (*domain.BalanceBucket, error) {
	var b domain.BalanceBucket
	err := s.Scan(&b.AccountNumber, &b.Currency, &b.Balance, &b.Version)
	if err != nil {
		return nil, err
	}
	return &b, nil
}
