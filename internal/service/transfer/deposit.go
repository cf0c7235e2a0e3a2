package transfer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/meridianbank/core/internal/domain"
	"github.com/meridianbank/core/internal/logging"
	"github.com/meridianbank/core/internal/notify"
)

// Deposit credits a single account with the same atomic-unit discipline as a
// transfer: the credit and its ledger record commit together or not at all.
func (s *Service) Deposit(ctx context.Context, accountNumber string, amount int64, currency domain.Currency, description string) (*domain.Transaction, error) {
	log := logging.FromContext(ctx)

	if amount <= 0 {
		return nil, fmt.Errorf("Deposit: %w", domain.ErrInvalidAmount)
	}
	if !currency.IsValid() {
		return nil, fmt.Errorf("Deposit: %w", domain.ErrInvalidCurrency)
	}
	account, err := s.accounts.GetByNumber(ctx, accountNumber)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("Deposit: %w", domain.ErrAccountNotFound)
		}
		return nil, fmt.Errorf("Deposit: %w", err)
	}
	if err := accountOperational(account); err != nil {
		return nil, fmt.Errorf("Deposit: %w", err)
	}
	if _, err := s.accounts.GetBucket(ctx, accountNumber, currency); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("Deposit: %w", domain.ErrAccountNotFound)
		}
		return nil, fmt.Errorf("Deposit: %w", err)
	}

	var txn *domain.Transaction
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		txn, err = s.executeDeposit(ctx, accountNumber, amount, currency, description)
		if err == nil {
			break
		}
		if domainFailure(err) {
			return nil, fmt.Errorf("Deposit: %w", err)
		}
		if !retryable(err) || attempt == s.maxAttempts {
			return nil, fmt.Errorf("Deposit: %w: %w", domain.ErrTransferFailed, err)
		}
		log.Warn("deposit attempt conflicted, retrying", "account", accountNumber, "attempt", attempt, "error", err)
	}

	log.Info("deposit completed",
		"transaction_id", txn.ID,
		"account", accountNumber,
		"amount", amount,
		"currency", currency,
	)
	s.notifyOutcome(ctx, successOutcome(txn))
	return txn, nil
}

func (s *Service) executeDeposit(ctx context.Context, accountNumber string, amount int64, currency domain.Currency, description string) (*domain.Transaction, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("executeDeposit: begin tx: %w", err)
	}
	defer tx.Rollback()

	bucket, err := s.accounts.GetBucketForUpdate(ctx, tx, accountNumber, currency)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("executeDeposit: %w", domain.ErrAccountNotFound)
		}
		return nil, fmt.Errorf("executeDeposit: %w", err)
	}

	ref, err := domain.NewReference()
	if err != nil {
		return nil, fmt.Errorf("executeDeposit: %w", err)
	}

	txn := &domain.Transaction{
		ID:             uuid.New(),
		Reference:      ref,
		FromAccount:    accountNumber,
		ToAccount:      accountNumber,
		Amount:         amount,
		Currency:       currency,
		Type:           domain.TransactionTypeDeposit,
		Status:         domain.TransactionStatusSuccess,
		RunningBalance: bucket.Balance + amount,
		Description:    description,
		CreatedAt:      s.now(),
	}
	if err := s.ledger.Create(ctx, tx, txn); err != nil {
		return nil, fmt.Errorf("executeDeposit: ledger: %w", err)
	}

	if err := s.accounts.UpdateBucketBalance(ctx, tx, accountNumber, currency, bucket.Balance+amount, bucket.Version+1); err != nil {
		return nil, fmt.Errorf("executeDeposit: credit: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("executeDeposit: commit: %w", err)
	}
	return txn, nil
}

func (s *Service) notifyOutcome(ctx context.Context, o notify.Outcome) {
	if s.notifier == nil {
		return
	}
	s.notifier.TransferOutcome(ctx, o)
}

func successOutcome(txn *domain.Transaction) notify.Outcome {
	return notify.Outcome{
		TransactionID: txn.ID.String(),
		Reference:     txn.Reference,
		FromAccount:   txn.FromAccount,
		ToAccount:     txn.ToAccount,
		Amount:        txn.Amount,
		Currency:      string(txn.Currency),
		Type:          string(txn.Type),
		Status:        string(domain.TransactionStatusSuccess),
		OccurredAt:    txn.CreatedAt,
	}
}

func failedOutcome(req TransferRequest, err error) notify.Outcome {
	return notify.Outcome{
		FromAccount: req.FromAccount,
		ToAccount:   req.ToAccount,
		Amount:      req.Amount,
		Currency:    string(req.Currency),
		Type:        string(req.Type),
		Status:      string(domain.TransactionStatusFailed),
		Reason:      err.Error(),
		OccurredAt:  time.Now().UTC(),
	}
}
