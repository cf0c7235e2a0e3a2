package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/meridianbank/core/internal/domain"
	"github.com/meridianbank/core/internal/logging"
	"github.com/meridianbank/core/internal/service/transfer"
)

type instructionRepo interface {
	Create(ctx context.Context, si *domain.StandingInstruction) error
	GetDue(ctx context.Context, now time.Time) ([]domain.StandingInstruction, error)
	GetByOwner(ctx context.Context, ownerAccount string) ([]domain.StandingInstruction, error)
	MarkExecuted(ctx context.Context, id uuid.UUID, executedAt, nextDate time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
}

type autoPayAccountRepo interface {
	GetByNumber(ctx context.Context, accountNumber string) (*domain.Account, error)
	GetBucket(ctx context.Context, accountNumber string, currency domain.Currency) (*domain.BalanceBucket, error)
}

type auditRepo interface {
	CreateStandalone(ctx context.Context, t *domain.Transaction) error
}

type transferEngine interface {
	Transfer(ctx context.Context, req transfer.TransferRequest) (*domain.Transaction, error)
}

// AutoPayService executes due standing instructions. Each instruction is its
// own attempt: a failure records a reason and leaves the schedule in place so
// the next pass retries it, and never aborts the rest of the batch. There is
// no backoff and no attempt cap; an instruction retries until it succeeds or
// the account holder pauses it.
type AutoPayService struct {
	instructions instructionRepo
	accounts     autoPayAccountRepo
	audit        auditRepo
	engine       transferEngine
}

func NewAutoPayService(instructions instructionRepo, accounts autoPayAccountRepo, audit auditRepo, engine transferEngine) *AutoPayService {
	return &AutoPayService{
		instructions: instructions,
		accounts:     accounts,
		audit:        audit,
		engine:       engine,
	}
}

// RunDuePayments processes every ACTIVE instruction due at or before now,
// including ones missed by earlier passes. It returns how many instructions
// were paid.
func (s *AutoPayService) RunDuePayments(ctx context.Context, now time.Time) (int, error) {
	log := logging.FromContext(ctx)

	due, err := s.instructions.GetDue(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("RunDuePayments: %w", err)
	}
	if len(due) == 0 {
		return 0, nil
	}

	log.Info("processing due standing instructions", "count", len(due))

	var executed int
	for i := range due {
		si := &due[i]
		if err := s.executeInstruction(ctx, si, now); err != nil {
			log.Warn("standing instruction failed",
				"instruction_id", si.ID,
				"owner_account", si.OwnerAccount,
				"payee_account", si.PayeeAccount,
				"error", err,
			)
			continue
		}
		executed++
	}
	return executed, nil
}

func (s *AutoPayService) executeInstruction(ctx context.Context, si *domain.StandingInstruction, now time.Time) error {
	if _, err := s.accounts.GetByNumber(ctx, si.OwnerAccount); err != nil {
		return s.fail(ctx, si, fmt.Sprintf("sender account %s not found", si.OwnerAccount), nil)
	}
	if _, err := s.accounts.GetByNumber(ctx, si.PayeeAccount); err != nil {
		return s.fail(ctx, si, fmt.Sprintf("payee account %s not found", si.PayeeAccount), nil)
	}

	bucket, err := s.accounts.GetBucket(ctx, si.OwnerAccount, si.Currency)
	if err != nil {
		return s.fail(ctx, si, fmt.Sprintf("no %s balance for account %s", si.Currency, si.OwnerAccount), nil)
	}
	if bucket.Balance < si.Amount {
		reason := fmt.Sprintf("insufficient funds: balance %d, required %d", bucket.Balance, si.Amount)
		return s.fail(ctx, si, reason, bucket)
	}

	txn, err := s.engine.Transfer(ctx, transfer.TransferRequest{
		FromAccount: si.OwnerAccount,
		ToAccount:   si.PayeeAccount,
		Amount:      si.Amount,
		Currency:    si.Currency,
		Type:        domain.TransactionTypeAutoPay,
		Description: fmt.Sprintf("auto-pay to %s", si.PayeeName),
	})
	if err != nil {
		var reasonBucket *domain.BalanceBucket
		if errors.Is(err, domain.ErrInsufficientFunds) {
			reasonBucket = bucket
		}
		return s.fail(ctx, si, err.Error(), reasonBucket)
	}

	if err := s.instructions.MarkExecuted(ctx, si.ID, now, si.NextOccurrence()); err != nil {
		return fmt.Errorf("executeInstruction: mark executed: %w", err)
	}

	logging.FromContext(ctx).Info("standing instruction executed",
		"instruction_id", si.ID,
		"transaction_id", txn.ID,
		"amount", si.Amount,
		"currency", si.Currency,
		"next_execution", si.NextOccurrence(),
	)
	return nil
}

// fail persists the failure reason without advancing the schedule, and when
// the sender's bucket was resolvable writes a FAILED audit record so the
// attempt shows up in the account history.
func (s *AutoPayService) fail(ctx context.Context, si *domain.StandingInstruction, reason string, bucket *domain.BalanceBucket) error {
	if err := s.instructions.MarkFailed(ctx, si.ID, reason); err != nil {
		return fmt.Errorf("fail: mark failed: %w", err)
	}

	if bucket != nil {
		ref, err := domain.NewReference()
		if err == nil {
			audit := &domain.Transaction{
				ID:             uuid.New(),
				Reference:      ref,
				FromAccount:    si.OwnerAccount,
				ToAccount:      si.PayeeAccount,
				Amount:         si.Amount,
				Currency:       si.Currency,
				Type:           domain.TransactionTypeAutoPay,
				Status:         domain.TransactionStatusFailed,
				RunningBalance: bucket.Balance,
				Description:    reason,
				CreatedAt:      time.Now().UTC(),
			}
			if auditErr := s.audit.CreateStandalone(ctx, audit); auditErr != nil {
				logging.FromContext(ctx).Error("failed to write auto-pay audit record",
					"instruction_id", si.ID, "error", auditErr)
			}
		}
	}

	return errors.New(reason)
}

// Register creates an ACTIVE standing instruction. The first execution lands
// on the next occurrence of dayOfMonth, which may be later today.
func (s *AutoPayService) Register(ctx context.Context, ownerAccount, payeeAccount, payeeName string, amount int64, currency domain.Currency, dayOfMonth int, now time.Time) (*domain.StandingInstruction, error) {
	if dayOfMonth < 1 || dayOfMonth > 28 {
		return nil, fmt.Errorf("Register: %w", domain.ErrInvalidDayOfMonth)
	}
	if amount <= 0 {
		return nil, fmt.Errorf("Register: %w", domain.ErrInvalidAmount)
	}
	if !currency.IsValid() {
		return nil, fmt.Errorf("Register: %w", domain.ErrInvalidCurrency)
	}
	if _, err := s.accounts.GetByNumber(ctx, ownerAccount); err != nil {
		return nil, fmt.Errorf("Register: %w", domain.ErrAccountNotFound)
	}
	if _, err := s.accounts.GetByNumber(ctx, payeeAccount); err != nil {
		return nil, fmt.Errorf("Register: %w", domain.ErrAccountNotFound)
	}

	si := &domain.StandingInstruction{
		ID:                uuid.New(),
		OwnerAccount:      ownerAccount,
		PayeeAccount:      payeeAccount,
		PayeeName:         payeeName,
		Amount:            amount,
		Currency:          currency,
		DayOfMonth:        dayOfMonth,
		NextExecutionDate: firstOccurrence(dayOfMonth, now),
		Status:            domain.InstructionStatusActive,
		CreatedAt:         now,
	}
	if err := s.instructions.Create(ctx, si); err != nil {
		return nil, fmt.Errorf("Register: %w", err)
	}

	logging.FromContext(ctx).Info("standing instruction registered",
		"instruction_id", si.ID,
		"owner_account", ownerAccount,
		"next_execution", si.NextExecutionDate,
	)
	return si, nil
}

// firstOccurrence returns midnight UTC of the next calendar day matching
// dayOfMonth, counting today itself.
func firstOccurrence(dayOfMonth int, now time.Time) time.Time {
	now = now.UTC()
	candidate := time.Date(now.Year(), now.Month(), dayOfMonth, 0, 0, 0, 0, time.UTC)
	if candidate.Before(now.Truncate(24 * time.Hour)) {
		candidate = candidate.AddDate(0, 1, 0)
	}
	return candidate
}

func (s *AutoPayService) ListByOwner(ctx context.Context, ownerAccount string) ([]domain.StandingInstruction, error) {
	out, err := s.instructions.GetByOwner(ctx, ownerAccount)
	if err != nil {
		return nil, fmt.Errorf("ListByOwner: %w", err)
	}
	return out, nil
}
