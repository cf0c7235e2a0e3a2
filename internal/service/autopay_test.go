package service_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianbank/core/internal/domain"
	"github.com/meridianbank/core/internal/repository"
	"github.com/meridianbank/core/internal/service"
	"github.com/meridianbank/core/internal/service/transfer"
	"github.com/meridianbank/core/internal/testutil"
)

func setupAutoPay(t *testing.T, db *sql.DB) (*service.AutoPayService, *repository.InstructionRepository) {
	t.Helper()

	accounts := repository.NewAccountRepository(db)
	transactions := repository.NewTransactionRepository(db)
	beneficiaries := repository.NewBeneficiaryRepository(db)
	instructions := repository.NewInstructionRepository(db)

	engine := transfer.NewService(accounts, transactions, beneficiaries, db, nil, 5*time.Second, 3)
	return service.NewAutoPayService(instructions, accounts, transactions, engine), instructions
}

func TestAutoPay_InsufficientFunds(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc, instructions := setupAutoPay(t, db)
	ctx := context.Background()

	testutil.SeedAccount(t, db, "1000000001", "CUST-001", "Asha Rao", map[domain.Currency]int64{domain.CurrencyINR: 1_000})
	testutil.SeedAccount(t, db, "1000000002", "CUST-002", "Vikram Shah", nil)

	now := time.Now().UTC()
	due := now.Add(-time.Hour)
	id := testutil.SeedInstruction(t, db, "1000000001", "1000000002", "Vikram Shah",
		5_000, domain.CurrencyINR, 15, due)

	executed, err := svc.RunDuePayments(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 0, executed)

	si, err := instructions.GetByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, si.FailureReason)
	assert.Contains(t, *si.FailureReason, "insufficient funds")
	assert.Nil(t, si.LastExecuted)
	// the schedule does not advance, so the next pass retries
	assert.WithinDuration(t, due, si.NextExecutionDate, time.Second)

	assert.Equal(t, int64(1_000), testutil.GetBucketBalance(t, db, "1000000001", domain.CurrencyINR))
	assert.Equal(t, int64(0), testutil.GetBucketBalance(t, db, "1000000002", domain.CurrencyINR))

	// the failed attempt still leaves an audit record in the ledger
	var status string
	err = db.QueryRow(`SELECT status FROM transactions WHERE from_account = '1000000001'`).Scan(&status)
	require.NoError(t, err)
	assert.Equal(t, string(domain.TransactionStatusFailed), status)
}

func TestAutoPay_RetriesAfterTopUp(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc, instructions := setupAutoPay(t, db)
	ctx := context.Background()

	testutil.SeedAccount(t, db, "1000000001", "CUST-001", "Asha Rao", map[domain.Currency]int64{domain.CurrencyINR: 1_000})
	testutil.SeedAccount(t, db, "1000000002", "CUST-002", "Vikram Shah", nil)

	now := time.Now().UTC()
	due := now.Add(-time.Hour)
	id := testutil.SeedInstruction(t, db, "1000000001", "1000000002", "Vikram Shah",
		5_000, domain.CurrencyINR, 15, due)

	executed, err := svc.RunDuePayments(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 0, executed)

	// account is funded before the next pass
	_, err = db.Exec(`UPDATE account_balances SET balance = 10000, version = version + 1
		WHERE account_number = '1000000001' AND currency = 'INR'`)
	require.NoError(t, err)

	executed, err = svc.RunDuePayments(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, executed)

	si, err := instructions.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, si.FailureReason)
	require.NotNil(t, si.LastExecuted)
	assert.WithinDuration(t, due.AddDate(0, 1, 0), si.NextExecutionDate, time.Second)

	assert.Equal(t, int64(5_000), testutil.GetBucketBalance(t, db, "1000000001", domain.CurrencyINR))
	assert.Equal(t, int64(5_000), testutil.GetBucketBalance(t, db, "1000000002", domain.CurrencyINR))
}

func TestAutoPay_FailureIsolation(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc, instructions := setupAutoPay(t, db)
	ctx := context.Background()

	testutil.SeedAccount(t, db, "1000000001", "CUST-001", "Asha Rao", map[domain.Currency]int64{domain.CurrencyINR: 10_000})
	testutil.SeedAccount(t, db, "1000000002", "CUST-002", "Vikram Shah", nil)

	now := time.Now().UTC()
	// payee account for the first instruction does not exist
	brokenID := testutil.SeedInstruction(t, db, "1000000001", "9999999999", "Ghost",
		1_000, domain.CurrencyINR, 1, now.Add(-2*time.Hour))
	healthyID := testutil.SeedInstruction(t, db, "1000000001", "1000000002", "Vikram Shah",
		2_000, domain.CurrencyINR, 15, now.Add(-time.Hour))

	executed, err := svc.RunDuePayments(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, executed)

	broken, err := instructions.GetByID(ctx, brokenID)
	require.NoError(t, err)
	require.NotNil(t, broken.FailureReason)
	assert.Contains(t, *broken.FailureReason, "not found")

	healthy, err := instructions.GetByID(ctx, healthyID)
	require.NoError(t, err)
	assert.Nil(t, healthy.FailureReason)
	require.NotNil(t, healthy.LastExecuted)

	assert.Equal(t, int64(8_000), testutil.GetBucketBalance(t, db, "1000000001", domain.CurrencyINR))
	assert.Equal(t, int64(2_000), testutil.GetBucketBalance(t, db, "1000000002", domain.CurrencyINR))
}

func TestAutoPay_NothingDue(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc, _ := setupAutoPay(t, db)

	testutil.SeedAccount(t, db, "1000000001", "CUST-001", "Asha Rao", nil)
	testutil.SeedAccount(t, db, "1000000002", "CUST-002", "Vikram Shah", nil)

	now := time.Now().UTC()
	testutil.SeedInstruction(t, db, "1000000001", "1000000002", "Vikram Shah",
		1_000, domain.CurrencyINR, 15, now.Add(24*time.Hour))

	executed, err := svc.RunDuePayments(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 0, executed)
}

func TestAutoPayRegister(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc, instructions := setupAutoPay(t, db)
	ctx := context.Background()

	testutil.SeedAccount(t, db, "1000000001", "CUST-001", "Asha Rao", nil)
	testutil.SeedAccount(t, db, "1000000002", "CUST-002", "Vikram Shah", nil)

	now := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
	si, err := svc.Register(ctx, "1000000001", "1000000002", "Vikram Shah",
		2_500, domain.CurrencyINR, 15, now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC), si.NextExecutionDate)
	assert.Equal(t, domain.InstructionStatusActive, si.Status)

	// a day earlier in the month rolls to the next month
	si2, err := svc.Register(ctx, "1000000001", "1000000002", "Vikram Shah",
		2_500, domain.CurrencyINR, 5, now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, time.April, 5, 0, 0, 0, 0, time.UTC), si2.NextExecutionDate)

	_, err = svc.Register(ctx, "1000000001", "1000000002", "Vikram Shah",
		2_500, domain.CurrencyINR, 31, now)
	require.ErrorIs(t, err, domain.ErrInvalidDayOfMonth)

	stored, err := instructions.GetByOwner(ctx, "1000000001")
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}
