package transfer

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/meridianbank/core/internal/domain"
)

type stubAccounts struct {
	accounts map[string]*domain.Account
	buckets  map[string]*domain.BalanceBucket
}

func (s *stubAccounts) GetByNumber(_ context.Context, number string) (*domain.Account, error) {
	if a, ok := s.accounts[number]; ok {
		return a, nil
	}
	return nil, domain.ErrNotFound
}

func (s *stubAccounts) GetBucket(_ context.Context, number string, currency domain.Currency) (*domain.BalanceBucket, error) {
	if b, ok := s.buckets[number+"/"+string(currency)]; ok {
		return b, nil
	}
	return nil, domain.ErrNotFound
}

func (s *stubAccounts) GetBucketForUpdate(context.Context, *sql.Tx, string, domain.Currency) (*domain.BalanceBucket, error) {
	panic("not used in validation")
}

func (s *stubAccounts) UpdateBucketBalance(context.Context, *sql.Tx, string, domain.Currency, int64, int64) error {
	panic("not used in validation")
}

type stubBeneficiaries struct {
	byID map[uuid.UUID]*domain.Beneficiary
}

func (s *stubBeneficiaries) GetByID(_ context.Context, id uuid.UUID) (*domain.Beneficiary, error) {
	if b, ok := s.byID[id]; ok {
		return b, nil
	}
	return nil, domain.ErrNotFound
}

func (s *stubBeneficiaries) GetForUpdate(context.Context, *sql.Tx, uuid.UUID) (*domain.Beneficiary, error) {
	panic("not used in validation")
}

func (s *stubBeneficiaries) BumpDailyCounter(context.Context, *sql.Tx, uuid.UUID, int64, time.Time) error {
	panic("not used in validation")
}

func TestValidateTransfer(t *testing.T) {
	const (
		sender   = "1000000001"
		receiver = "1000000002"
		frozen   = "1000000003"
		closed   = "1000000004"
	)

	today := time.Date(2026, time.August, 31, 12, 0, 0, 0, time.UTC)

	activePayee := &domain.Beneficiary{
		ID:             uuid.New(),
		OwnerAccount:   sender,
		TargetAccount:  receiver,
		Status:         domain.BeneficiaryStatusActive,
		ActivationTime: today.Add(-time.Hour),
		DailyLimit:     10_000,
	}
	coolingPayee := &domain.Beneficiary{
		ID:             uuid.New(),
		OwnerAccount:   sender,
		TargetAccount:  receiver,
		Status:         domain.BeneficiaryStatusPending,
		ActivationTime: today.Add(20 * time.Minute),
		DailyLimit:     10_000,
	}
	nearLimitPayee := &domain.Beneficiary{
		ID:               uuid.New(),
		OwnerAccount:     sender,
		TargetAccount:    receiver,
		Status:           domain.BeneficiaryStatusActive,
		ActivationTime:   today.Add(-time.Hour),
		DailyLimit:       10_000,
		TransferredToday: 9_500,
		CounterDate:      &today,
	}

	svc := &Service{
		accounts: &stubAccounts{
			accounts: map[string]*domain.Account{
				sender:   {AccountNumber: sender, Status: domain.AccountStatusActive},
				receiver: {AccountNumber: receiver, Status: domain.AccountStatusActive},
				frozen:   {AccountNumber: frozen, Status: domain.AccountStatusFrozen},
				closed:   {AccountNumber: closed, Status: domain.AccountStatusClosed},
			},
			buckets: map[string]*domain.BalanceBucket{
				sender + "/INR": {AccountNumber: sender, Currency: domain.CurrencyINR, Balance: 5_000},
				frozen + "/INR": {AccountNumber: frozen, Currency: domain.CurrencyINR, Balance: 5_000},
				closed + "/INR": {AccountNumber: closed, Currency: domain.CurrencyINR, Balance: 5_000},
			},
		},
		beneficiaries: &stubBeneficiaries{
			byID: map[uuid.UUID]*domain.Beneficiary{
				activePayee.ID:    activePayee,
				coolingPayee.ID:   coolingPayee,
				nearLimitPayee.ID: nearLimitPayee,
			},
		},
		now: func() time.Time { return today },
	}

	missingPayeeID := uuid.New()

	tests := []struct {
		name    string
		req     TransferRequest
		wantErr error
	}{
		{
			name: "valid",
			req:  TransferRequest{FromAccount: sender, ToAccount: receiver, Amount: 1_000, Currency: domain.CurrencyINR},
		},
		{
			name:    "self transfer",
			req:     TransferRequest{FromAccount: sender, ToAccount: sender, Amount: 1_000, Currency: domain.CurrencyINR},
			wantErr: domain.ErrSelfTransfer,
		},
		{
			// self-transfer is checked before the amount
			name:    "self transfer with bad amount",
			req:     TransferRequest{FromAccount: sender, ToAccount: sender, Amount: -5, Currency: domain.CurrencyINR},
			wantErr: domain.ErrSelfTransfer,
		},
		{
			name:    "zero amount",
			req:     TransferRequest{FromAccount: sender, ToAccount: receiver, Amount: 0, Currency: domain.CurrencyINR},
			wantErr: domain.ErrInvalidAmount,
		},
		{
			name:    "negative amount",
			req:     TransferRequest{FromAccount: sender, ToAccount: receiver, Amount: -100, Currency: domain.CurrencyINR},
			wantErr: domain.ErrInvalidAmount,
		},
		{
			name:    "unsupported currency",
			req:     TransferRequest{FromAccount: sender, ToAccount: receiver, Amount: 1_000, Currency: domain.Currency("GBP")},
			wantErr: domain.ErrInvalidCurrency,
		},
		{
			name:    "destination missing",
			req:     TransferRequest{FromAccount: sender, ToAccount: "9999999999", Amount: 1_000, Currency: domain.CurrencyINR},
			wantErr: domain.ErrAccountNotFound,
		},
		{
			name:    "frozen sender",
			req:     TransferRequest{FromAccount: frozen, ToAccount: receiver, Amount: 1_000, Currency: domain.CurrencyINR},
			wantErr: domain.ErrAccountFrozen,
		},
		{
			name:    "closed sender",
			req:     TransferRequest{FromAccount: closed, ToAccount: receiver, Amount: 1_000, Currency: domain.CurrencyINR},
			wantErr: domain.ErrAccountClosed,
		},
		{
			name:    "frozen recipient",
			req:     TransferRequest{FromAccount: sender, ToAccount: frozen, Amount: 1_000, Currency: domain.CurrencyINR},
			wantErr: domain.ErrAccountFrozen,
		},
		{
			name:    "closed recipient",
			req:     TransferRequest{FromAccount: sender, ToAccount: closed, Amount: 1_000, Currency: domain.CurrencyINR},
			wantErr: domain.ErrAccountClosed,
		},
		{
			name:    "beneficiary missing",
			req:     TransferRequest{FromAccount: sender, ToAccount: receiver, Amount: 1_000, Currency: domain.CurrencyINR, BeneficiaryID: &missingPayeeID},
			wantErr: domain.ErrBeneficiaryNotFound,
		},
		{
			name:    "beneficiary still cooling",
			req:     TransferRequest{FromAccount: sender, ToAccount: receiver, Amount: 1_000, Currency: domain.CurrencyINR, BeneficiaryID: &coolingPayee.ID},
			wantErr: domain.ErrBeneficiaryCooling,
		},
		{
			// the cooling gate fires before the funds check
			name:    "cooling checked before funds",
			req:     TransferRequest{FromAccount: sender, ToAccount: receiver, Amount: 1_000_000, Currency: domain.CurrencyINR, BeneficiaryID: &coolingPayee.ID},
			wantErr: domain.ErrBeneficiaryCooling,
		},
		{
			name:    "daily limit exceeded",
			req:     TransferRequest{FromAccount: sender, ToAccount: receiver, Amount: 501, Currency: domain.CurrencyINR, BeneficiaryID: &nearLimitPayee.ID},
			wantErr: domain.ErrDailyLimitExceeded,
		},
		{
			name: "exactly at daily limit is allowed",
			req:  TransferRequest{FromAccount: sender, ToAccount: receiver, Amount: 500, Currency: domain.CurrencyINR, BeneficiaryID: &nearLimitPayee.ID},
		},
		{
			name:    "insufficient funds",
			req:     TransferRequest{FromAccount: sender, ToAccount: receiver, Amount: 5_001, Currency: domain.CurrencyINR},
			wantErr: domain.ErrInsufficientFunds,
		},
		{
			name: "exact balance is allowed",
			req:  TransferRequest{FromAccount: sender, ToAccount: receiver, Amount: 5_000, Currency: domain.CurrencyINR},
		},
		{
			name:    "no bucket in currency",
			req:     TransferRequest{FromAccount: sender, ToAccount: receiver, Amount: 1_000, Currency: domain.CurrencyUSD},
			wantErr: domain.ErrAccountNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.validateTransfer(context.Background(), tt.req)
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

// The payee is added at T with a 30 minute cooling window. Checked at T+10min
// the gate must report 20 minutes remaining; at T+31min it must pass.
func TestValidateTransfer_CoolingClock(t *testing.T) {
	added := time.Date(2026, time.August, 31, 9, 0, 0, 0, time.UTC)
	payee := &domain.Beneficiary{
		ID:             uuid.New(),
		Status:         domain.BeneficiaryStatusPending,
		ActivationTime: added.Add(30 * time.Minute),
		DailyLimit:     10_000,
	}

	clock := added
	svc := &Service{
		accounts: &stubAccounts{
			accounts: map[string]*domain.Account{
				"a": {AccountNumber: "a", Status: domain.AccountStatusActive},
				"b": {AccountNumber: "b", Status: domain.AccountStatusActive},
			},
			buckets: map[string]*domain.BalanceBucket{
				"a/INR": {AccountNumber: "a", Currency: domain.CurrencyINR, Balance: 1_000},
			},
		},
		beneficiaries: &stubBeneficiaries{byID: map[uuid.UUID]*domain.Beneficiary{payee.ID: payee}},
		now:           func() time.Time { return clock },
	}

	req := TransferRequest{
		FromAccount: "a", ToAccount: "b", Amount: 100,
		Currency: domain.CurrencyINR, BeneficiaryID: &payee.ID,
	}

	clock = added.Add(10 * time.Minute)
	err := svc.validateTransfer(context.Background(), req)
	var cooling *domain.CoolingPeriodError
	require.ErrorAs(t, err, &cooling)
	require.Equal(t, 20*time.Minute, cooling.Remaining)

	clock = added.Add(31 * time.Minute)
	require.NoError(t, svc.validateTransfer(context.Background(), req))
}
