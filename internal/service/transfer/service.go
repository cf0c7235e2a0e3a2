package transfer

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/meridianbank/core/internal/domain"
	"github.com/meridianbank/core/internal/notify"
)

type accountRepo interface {
	GetByNumber(ctx context.Context, accountNumber string) (*domain.Account, error)
	GetBucket(ctx context.Context, accountNumber string, currency domain.Currency) (*domain.BalanceBucket, error)
	GetBucketForUpdate(ctx context.Context, tx *sql.Tx, accountNumber string, currency domain.Currency) (*domain.BalanceBucket, error)
	UpdateBucketBalance(ctx context.Context, tx *sql.Tx, accountNumber string, currency domain.Currency, newBalance, newVersion int64) error
}

type ledgerRepo interface {
	Create(ctx context.Context, tx *sql.Tx, t *domain.Transaction) error
}

type beneficiaryRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Beneficiary, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Beneficiary, error)
	BumpDailyCounter(ctx context.Context, tx *sql.Tx, id uuid.UUID, amount int64, day time.Time) error
}

// Service is the funds-transfer engine. Every balance mutation it performs
// happens inside a single database transaction together with the ledger
// append, so either all of it becomes visible or none of it does.
type Service struct {
	accounts      accountRepo
	ledger        ledgerRepo
	beneficiaries beneficiaryRepo
	db            *sql.DB
	notifier      notify.Notifier
	timeout       time.Duration
	maxAttempts   int

	// now supplies the engine's clock; tests swap it for a fixed instant.
	now func() time.Time
}

func NewService(
	accounts accountRepo,
	ledger ledgerRepo,
	beneficiaries beneficiaryRepo,
	db *sql.DB,
	notifier notify.Notifier,
	timeout time.Duration,
	maxAttempts int,
) *Service {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Service{
		accounts:      accounts,
		ledger:        ledger,
		beneficiaries: beneficiaries,
		db:            db,
		notifier:      notifier,
		timeout:       timeout,
		maxAttempts:   maxAttempts,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// retryable reports whether the atomic unit may be re-run: optimistic
// version conflicts and Postgres serialization/deadlock aborts qualify,
// domain failures and plain storage errors do not.
func retryable(err error) bool {
	if errors.Is(err, domain.ErrVersionConflict) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "40001" || pqErr.Code == "40P01"
	}
	return false
}

// domainFailure reports whether err is a business rejection that must reach
// the caller as-is rather than wrapped in ErrTransferFailed.
func domainFailure(err error) bool {
	return errors.Is(err, domain.ErrInsufficientFunds) ||
		errors.Is(err, domain.ErrBeneficiaryCooling) ||
		errors.Is(err, domain.ErrDailyLimitExceeded) ||
		errors.Is(err, domain.ErrAccountNotFound) ||
		errors.Is(err, domain.ErrBeneficiaryNotFound) ||
		errors.Is(err, domain.ErrAccountFrozen) ||
		errors.Is(err, domain.ErrAccountClosed)
}
