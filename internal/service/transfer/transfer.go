package transfer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/meridianbank/core/internal/domain"
	"github.com/meridianbank/core/internal/logging"
)

type TransferRequest struct {
	FromAccount   string
	ToAccount     string
	Amount        int64
	Currency      domain.Currency
	Type          domain.TransactionType
	Description   string
	BeneficiaryID *uuid.UUID
}

// Transfer validates the request and moves money between the two accounts as
// one atomic unit. Validation short-circuits on the first failure, in order:
// self-transfer, amount, destination existence, beneficiary gate, funds.
func (s *Service) Transfer(ctx context.Context, req TransferRequest) (*domain.Transaction, error) {
	log := logging.FromContext(ctx)

	if req.Type == "" {
		req.Type = domain.TransactionTypeTransfer
	}

	if err := s.validateTransfer(ctx, req); err != nil {
		return nil, fmt.Errorf("Transfer: %w", err)
	}

	var (
		txn *domain.Transaction
		err error
	)
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		txn, err = s.executeTransfer(ctx, req)
		if err == nil {
			break
		}
		if domainFailure(err) {
			return nil, fmt.Errorf("Transfer: %w", err)
		}
		if !retryable(err) || attempt == s.maxAttempts {
			s.notifyOutcome(ctx, failedOutcome(req, err))
			return nil, fmt.Errorf("Transfer: %w: %w", domain.ErrTransferFailed, err)
		}
		log.Warn("transfer attempt conflicted, retrying",
			"from_account", req.FromAccount,
			"to_account", req.ToAccount,
			"attempt", attempt,
			"error", err,
		)
	}

	log.Info("transfer completed",
		"transaction_id", txn.ID,
		"reference", txn.Reference,
		"from_account", req.FromAccount,
		"to_account", req.ToAccount,
		"amount", req.Amount,
		"currency", req.Currency,
		"type", req.Type,
	)

	s.notifyOutcome(ctx, successOutcome(txn))
	return txn, nil
}

func (s *Service) validateTransfer(ctx context.Context, req TransferRequest) error {
	if req.FromAccount == req.ToAccount {
		return fmt.Errorf("validateTransfer: %w", domain.ErrSelfTransfer)
	}
	if req.Amount <= 0 {
		return fmt.Errorf("validateTransfer: %w", domain.ErrInvalidAmount)
	}
	if !req.Currency.IsValid() {
		return fmt.Errorf("validateTransfer: %w", domain.ErrInvalidCurrency)
	}

	destination, err := s.accounts.GetByNumber(ctx, req.ToAccount)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("validateTransfer: destination: %w", domain.ErrAccountNotFound)
		}
		return fmt.Errorf("validateTransfer: %w", err)
	}
	if err := accountOperational(destination); err != nil {
		return fmt.Errorf("validateTransfer: destination: %w", err)
	}

	source, err := s.accounts.GetByNumber(ctx, req.FromAccount)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("validateTransfer: source: %w", domain.ErrAccountNotFound)
		}
		return fmt.Errorf("validateTransfer: %w", err)
	}
	if err := accountOperational(source); err != nil {
		return fmt.Errorf("validateTransfer: source: %w", err)
	}

	now := s.now()
	if req.BeneficiaryID != nil {
		b, err := s.beneficiaries.GetByID(ctx, *req.BeneficiaryID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return fmt.Errorf("validateTransfer: %w", domain.ErrBeneficiaryNotFound)
			}
			return fmt.Errorf("validateTransfer: %w", err)
		}
		if !b.ActiveAt(now) {
			return fmt.Errorf("validateTransfer: %w", &domain.CoolingPeriodError{Remaining: b.CoolingRemaining(now)})
		}
		if b.TransferredOn(now)+req.Amount > b.DailyLimit {
			return fmt.Errorf("validateTransfer: %w", domain.ErrDailyLimitExceeded)
		}
	}

	bucket, err := s.accounts.GetBucket(ctx, req.FromAccount, req.Currency)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("validateTransfer: source: %w", domain.ErrAccountNotFound)
		}
		return fmt.Errorf("validateTransfer: %w", err)
	}
	if bucket.Balance < req.Amount {
		return fmt.Errorf("validateTransfer: %w", domain.ErrInsufficientFunds)
	}

	return nil
}

// accountOperational rejects transfers touching an account that is not in a
// transactable state.
func accountOperational(a *domain.Account) error {
	switch a.Status {
	case domain.AccountStatusFrozen:
		return domain.ErrAccountFrozen
	case domain.AccountStatusClosed:
		return domain.ErrAccountClosed
	}
	return nil
}

// executeTransfer is one attempt at the atomic unit: lock both buckets in a
// fixed order, re-check funds and the payee gate against the locked rows,
// append the ledger record, apply both balance writes, commit.
func (s *Service) executeTransfer(ctx context.Context, req TransferRequest) (*domain.Transaction, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("executeTransfer: begin tx: %w", err)
	}
	defer tx.Rollback()

	locked, err := s.lockBucketsInOrder(ctx, tx, req.Currency, req.FromAccount, req.ToAccount)
	if err != nil {
		return nil, fmt.Errorf("executeTransfer: %w", err)
	}
	sender, receiver := locked[req.FromAccount], locked[req.ToAccount]

	if sender.Balance < req.Amount {
		return nil, fmt.Errorf("executeTransfer: %w", domain.ErrInsufficientFunds)
	}

	now := s.now()

	var payee *domain.Beneficiary
	if req.BeneficiaryID != nil {
		payee, err = s.beneficiaries.GetForUpdate(ctx, tx, *req.BeneficiaryID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, fmt.Errorf("executeTransfer: %w", domain.ErrBeneficiaryNotFound)
			}
			return nil, fmt.Errorf("executeTransfer: %w", err)
		}
		if !payee.ActiveAt(now) {
			return nil, fmt.Errorf("executeTransfer: %w", &domain.CoolingPeriodError{Remaining: payee.CoolingRemaining(now)})
		}
		if payee.TransferredOn(now)+req.Amount > payee.DailyLimit {
			return nil, fmt.Errorf("executeTransfer: %w", domain.ErrDailyLimitExceeded)
		}
	}

	ref, err := domain.NewReference()
	if err != nil {
		return nil, fmt.Errorf("executeTransfer: %w", err)
	}

	txn := &domain.Transaction{
		ID:             uuid.New(),
		Reference:      ref,
		FromAccount:    req.FromAccount,
		ToAccount:      req.ToAccount,
		Amount:         req.Amount,
		Currency:       req.Currency,
		Type:           req.Type,
		Status:         domain.TransactionStatusSuccess,
		RunningBalance: sender.Balance - req.Amount,
		Description:    req.Description,
		CreatedAt:      now,
	}
	if err := s.ledger.Create(ctx, tx, txn); err != nil {
		return nil, fmt.Errorf("executeTransfer: ledger: %w", err)
	}

	if err := s.accounts.UpdateBucketBalance(ctx, tx, req.FromAccount, req.Currency, sender.Balance-req.Amount, sender.Version+1); err != nil {
		return nil, fmt.Errorf("executeTransfer: debit: %w", err)
	}
	if err := s.accounts.UpdateBucketBalance(ctx, tx, req.ToAccount, req.Currency, receiver.Balance+req.Amount, receiver.Version+1); err != nil {
		return nil, fmt.Errorf("executeTransfer: credit: %w", err)
	}

	if payee != nil {
		if err := s.beneficiaries.BumpDailyCounter(ctx, tx, payee.ID, req.Amount, now); err != nil {
			return nil, fmt.Errorf("executeTransfer: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("executeTransfer: commit: %w", err)
	}
	return txn, nil
}

// lockBucketsInOrder acquires FOR UPDATE locks on both currency buckets in
// lexicographic account-number order, so two transfers that target each
// other's accounts cannot deadlock.
func (s *Service) lockBucketsInOrder(ctx context.Context, tx *sql.Tx, currency domain.Currency, accountNumbers ...string) (map[string]*domain.BalanceBucket, error) {
	ordered := make([]string, len(accountNumbers))
	copy(ordered, accountNumbers)
	sort.Strings(ordered)

	result := make(map[string]*domain.BalanceBucket, len(ordered))
	for _, number := range ordered {
		bucket, err := s.accounts.GetBucketForUpdate(ctx, tx, number, currency)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, fmt.Errorf("lockBucketsInOrder: %s: %w", number, domain.ErrAccountNotFound)
			}
			return nil, fmt.Errorf("lockBucketsInOrder: %w", err)
		}
		result[number] = bucket
	}
	return result, nil
}
