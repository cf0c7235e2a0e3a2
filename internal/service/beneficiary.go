package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/meridianbank/core/internal/domain"
	"github.com/meridianbank/core/internal/logging"
)

type beneficiaryRepo interface {
	Create(ctx context.Context, b *domain.Beneficiary) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Beneficiary, error)
	GetByOwner(ctx context.Context, ownerAccount string) ([]domain.Beneficiary, error)
	ActivateDue(ctx context.Context, now time.Time) (int64, error)
}

type beneficiaryAccountRepo interface {
	GetByNumber(ctx context.Context, accountNumber string) (*domain.Account, error)
}

// BeneficiaryService is the payee cooling-period gate. New payees stay
// PENDING until their activation time; ActivateDue promotes the ones past
// that moment on a fixed cadence.
type BeneficiaryService struct {
	beneficiaries beneficiaryRepo
	accounts      beneficiaryAccountRepo
	coolingPeriod time.Duration
	dailyLimit    int64
}

func NewBeneficiaryService(beneficiaries beneficiaryRepo, accounts beneficiaryAccountRepo, coolingPeriod time.Duration, dailyLimit int64) *BeneficiaryService {
	return &BeneficiaryService{
		beneficiaries: beneficiaries,
		accounts:      accounts,
		coolingPeriod: coolingPeriod,
		dailyLimit:    dailyLimit,
	}
}

// Register adds a payee link in PENDING state. The activation time is set to
// now plus the cooling period; transfers to the payee are rejected until then.
func (s *BeneficiaryService) Register(ctx context.Context, ownerAccount, targetAccount, name, routingCode string, now time.Time) (*domain.Beneficiary, error) {
	if ownerAccount == targetAccount {
		return nil, fmt.Errorf("Register: %w", domain.ErrSelfTransfer)
	}
	if _, err := s.accounts.GetByNumber(ctx, targetAccount); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("Register: %w", domain.ErrAccountNotFound)
		}
		return nil, fmt.Errorf("Register: %w", err)
	}

	b := &domain.Beneficiary{
		ID:             uuid.New(),
		OwnerAccount:   ownerAccount,
		TargetAccount:  targetAccount,
		Name:           name,
		RoutingCode:    routingCode,
		Status:         domain.BeneficiaryStatusPending,
		ActivationTime: now.Add(s.coolingPeriod),
		DailyLimit:     s.dailyLimit,
		CreatedAt:      now,
	}
	if err := s.beneficiaries.Create(ctx, b); err != nil {
		return nil, fmt.Errorf("Register: %w", err)
	}

	logging.FromContext(ctx).Info("beneficiary registered",
		"beneficiary_id", b.ID,
		"owner_account", ownerAccount,
		"activation_time", b.ActivationTime,
	)
	return b, nil
}

// Status reports whether transfers to the payee are allowed at now, and if
// not, how long until they will be.
func (s *BeneficiaryService) Status(ctx context.Context, id uuid.UUID, now time.Time) (bool, time.Duration, error) {
	b, err := s.beneficiaries.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, 0, fmt.Errorf("Status: %w", domain.ErrBeneficiaryNotFound)
		}
		return false, 0, fmt.Errorf("Status: %w", err)
	}
	if b.ActiveAt(now) {
		return true, 0, nil
	}
	return false, b.CoolingRemaining(now), nil
}

// ActivateDue promotes every payee whose cooling period has elapsed by now.
// Running it twice with the same now activates the same set of payees as
// running it once.
func (s *BeneficiaryService) ActivateDue(ctx context.Context, now time.Time) (int64, error) {
	n, err := s.beneficiaries.ActivateDue(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("ActivateDue: %w", err)
	}
	if n > 0 {
		logging.FromContext(ctx).Info("beneficiaries activated", "count", n)
	}
	return n, nil
}

func (s *BeneficiaryService) ListByOwner(ctx context.Context, ownerAccount string) ([]domain.Beneficiary, error) {
	out, err := s.beneficiaries.GetByOwner(ctx, ownerAccount)
	if err != nil {
		return nil, fmt.Errorf("ListByOwner: %w", err)
	}
	return out, nil
}
