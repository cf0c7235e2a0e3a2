package transfer_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianbank/core/internal/domain"
	"github.com/meridianbank/core/internal/repository"
	"github.com/meridianbank/core/internal/service/transfer"
	"github.com/meridianbank/core/internal/testutil"
)

func setupTransferService(t *testing.T, db *sql.DB) *transfer.Service {
	t.Helper()
	return transfer.NewService(
		repository.NewAccountRepository(db),
		repository.NewTransactionRepository(db),
		repository.NewBeneficiaryRepository(db),
		db,
		nil,
		5*time.Second,
		3,
	)
}

func TestTransfer_HappyPath(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupTransferService(t, db)
	ctx := context.Background()

	testutil.SeedAccount(t, db, "1000000001", "CUST-001", "Asha Rao", map[domain.Currency]int64{domain.CurrencyINR: 10_000})
	testutil.SeedAccount(t, db, "1000000002", "CUST-002", "Vikram Shah", map[domain.Currency]int64{domain.CurrencyINR: 5_000})

	txn, err := svc.Transfer(ctx, transfer.TransferRequest{
		FromAccount: "1000000001",
		ToAccount:   "1000000002",
		Amount:      3_000,
		Currency:    domain.CurrencyINR,
		Description: "rent",
	})

	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusSuccess, txn.Status)
	assert.Equal(t, domain.TransactionTypeTransfer, txn.Type)
	assert.Equal(t, int64(3_000), txn.Amount)
	assert.Equal(t, int64(7_000), txn.RunningBalance)
	assert.NotEmpty(t, txn.Reference)

	assert.Equal(t, int64(7_000), testutil.GetBucketBalance(t, db, "1000000001", domain.CurrencyINR))
	assert.Equal(t, int64(8_000), testutil.GetBucketBalance(t, db, "1000000002", domain.CurrencyINR))

	// the ledger record was committed together with the balance writes
	stored, err := repository.NewTransactionRepository(db).GetByID(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, txn.Reference, stored.Reference)
	assert.Equal(t, int64(7_000), stored.RunningBalance)
}

func TestTransfer_ExactBalance(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupTransferService(t, db)
	ctx := context.Background()

	testutil.SeedAccount(t, db, "1000000001", "CUST-001", "Asha Rao", map[domain.Currency]int64{domain.CurrencyINR: 5_000})
	testutil.SeedAccount(t, db, "1000000002", "CUST-002", "Vikram Shah", nil)

	_, err := svc.Transfer(ctx, transfer.TransferRequest{
		FromAccount: "1000000001",
		ToAccount:   "1000000002",
		Amount:      5_000,
		Currency:    domain.CurrencyINR,
	})

	require.NoError(t, err)
	assert.Equal(t, int64(0), testutil.GetBucketBalance(t, db, "1000000001", domain.CurrencyINR))
	assert.Equal(t, int64(5_000), testutil.GetBucketBalance(t, db, "1000000002", domain.CurrencyINR))
}

func TestTransfer_OverdraftBySmallestUnit(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupTransferService(t, db)
	ctx := context.Background()

	testutil.SeedAccount(t, db, "1000000001", "CUST-001", "Asha Rao", map[domain.Currency]int64{domain.CurrencyINR: 5_000})
	testutil.SeedAccount(t, db, "1000000002", "CUST-002", "Vikram Shah", nil)

	_, err := svc.Transfer(ctx, transfer.TransferRequest{
		FromAccount: "1000000001",
		ToAccount:   "1000000002",
		Amount:      5_001,
		Currency:    domain.CurrencyINR,
	})

	require.ErrorIs(t, err, domain.ErrInsufficientFunds)
	assert.Equal(t, int64(5_000), testutil.GetBucketBalance(t, db, "1000000001", domain.CurrencyINR))
	assert.Equal(t, int64(0), testutil.GetBucketBalance(t, db, "1000000002", domain.CurrencyINR))
	assert.Equal(t, 0, testutil.CountTransactions(t, db, "1000000001"))
}

func TestTransfer_ConcurrentOverdraft(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupTransferService(t, db)
	ctx := context.Background()

	testutil.SeedAccount(t, db, "1000000001", "CUST-001", "Asha Rao", map[domain.Currency]int64{domain.CurrencyINR: 10_000})
	testutil.SeedAccount(t, db, "1000000002", "CUST-002", "Vikram Shah", nil)

	var wg sync.WaitGroup
	results := make(chan error, 2)

	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Transfer(ctx, transfer.TransferRequest{
				FromAccount: "1000000001",
				ToAccount:   "1000000002",
				Amount:      7_000,
				Currency:    domain.CurrencyINR,
			})
			results <- err
		}()
	}

	wg.Wait()
	close(results)

	var succeeded, failed int
	for err := range results {
		if err == nil {
			succeeded++
		} else {
			require.ErrorIs(t, err, domain.ErrInsufficientFunds)
			failed++
		}
	}

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, failed)
	assert.Equal(t, int64(3_000), testutil.GetBucketBalance(t, db, "1000000001", domain.CurrencyINR))
	assert.Equal(t, int64(7_000), testutil.GetBucketBalance(t, db, "1000000002", domain.CurrencyINR))
	assert.Equal(t, 1, testutil.CountTransactions(t, db, "1000000002"))
}

func TestTransfer_ConcurrentNoLostUpdate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupTransferService(t, db)
	ctx := context.Background()

	testutil.SeedAccount(t, db, "1000000001", "CUST-001", "Asha Rao", map[domain.Currency]int64{domain.CurrencyINR: 10_000})
	testutil.SeedAccount(t, db, "1000000002", "CUST-002", "Vikram Shah", nil)

	var wg sync.WaitGroup
	results := make(chan error, 2)

	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Transfer(ctx, transfer.TransferRequest{
				FromAccount: "1000000001",
				ToAccount:   "1000000002",
				Amount:      2_000,
				Currency:    domain.CurrencyINR,
			})
			results <- err
		}()
	}

	wg.Wait()
	close(results)

	for err := range results {
		require.NoError(t, err)
	}

	assert.Equal(t, int64(6_000), testutil.GetBucketBalance(t, db, "1000000001", domain.CurrencyINR))
	assert.Equal(t, int64(4_000), testutil.GetBucketBalance(t, db, "1000000002", domain.CurrencyINR))
	assert.Equal(t, 2, testutil.CountTransactions(t, db, "1000000001"))
}

// Opposing transfers lock buckets in account-number order, so A->B and B->A
// running together must both complete instead of deadlocking.
func TestTransfer_OpposingPairNoDeadlock(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupTransferService(t, db)
	ctx := context.Background()

	testutil.SeedAccount(t, db, "1000000001", "CUST-001", "Asha Rao", map[domain.Currency]int64{domain.CurrencyINR: 10_000})
	testutil.SeedAccount(t, db, "1000000002", "CUST-002", "Vikram Shah", map[domain.Currency]int64{domain.CurrencyINR: 10_000})

	var wg sync.WaitGroup
	results := make(chan error, 2)

	pairs := []struct{ from, to string }{
		{"1000000001", "1000000002"},
		{"1000000002", "1000000001"},
	}
	for _, p := range pairs {
		wg.Add(1)
		go func(from, to string) {
			defer wg.Done()
			_, err := svc.Transfer(ctx, transfer.TransferRequest{
				FromAccount: from,
				ToAccount:   to,
				Amount:      1_500,
				Currency:    domain.CurrencyINR,
			})
			results <- err
		}(p.from, p.to)
	}

	wg.Wait()
	close(results)

	for err := range results {
		require.NoError(t, err)
	}

	assert.Equal(t, int64(10_000), testutil.GetBucketBalance(t, db, "1000000001", domain.CurrencyINR))
	assert.Equal(t, int64(10_000), testutil.GetBucketBalance(t, db, "1000000002", domain.CurrencyINR))
}

func TestTransfer_BeneficiaryCooling(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupTransferService(t, db)
	ctx := context.Background()

	testutil.SeedAccount(t, db, "1000000001", "CUST-001", "Asha Rao", map[domain.Currency]int64{domain.CurrencyINR: 10_000})
	testutil.SeedAccount(t, db, "1000000002", "CUST-002", "Vikram Shah", nil)

	// added 10 minutes ago with a 30 minute cooling period
	payeeID := testutil.SeedBeneficiary(t, db, "1000000001", "1000000002", "Vikram Shah",
		domain.BeneficiaryStatusPending, time.Now().UTC().Add(20*time.Minute), 100_000)

	_, err := svc.Transfer(ctx, transfer.TransferRequest{
		FromAccount:   "1000000001",
		ToAccount:     "1000000002",
		Amount:        1_000,
		Currency:      domain.CurrencyINR,
		BeneficiaryID: &payeeID,
	})

	require.ErrorIs(t, err, domain.ErrBeneficiaryCooling)
	var cooling *domain.CoolingPeriodError
	require.ErrorAs(t, err, &cooling)
	assert.InDelta(t, (20 * time.Minute).Seconds(), cooling.Remaining.Seconds(), 10)
	assert.Equal(t, int64(10_000), testutil.GetBucketBalance(t, db, "1000000001", domain.CurrencyINR))
	assert.Equal(t, 0, testutil.CountTransactions(t, db, "1000000001"))
}

func TestTransfer_BeneficiaryActiveAfterCooling(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupTransferService(t, db)
	ctx := context.Background()

	testutil.SeedAccount(t, db, "1000000001", "CUST-001", "Asha Rao", map[domain.Currency]int64{domain.CurrencyINR: 10_000})
	testutil.SeedAccount(t, db, "1000000002", "CUST-002", "Vikram Shah", nil)

	// cooling elapsed but the sweep has not promoted the row yet
	payeeID := testutil.SeedBeneficiary(t, db, "1000000001", "1000000002", "Vikram Shah",
		domain.BeneficiaryStatusPending, time.Now().UTC().Add(-time.Minute), 100_000)

	_, err := svc.Transfer(ctx, transfer.TransferRequest{
		FromAccount:   "1000000001",
		ToAccount:     "1000000002",
		Amount:        1_000,
		Currency:      domain.CurrencyINR,
		BeneficiaryID: &payeeID,
	})

	require.NoError(t, err)
	assert.Equal(t, int64(9_000), testutil.GetBucketBalance(t, db, "1000000001", domain.CurrencyINR))
}

func TestTransfer_DailyLimit(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupTransferService(t, db)
	ctx := context.Background()

	testutil.SeedAccount(t, db, "1000000001", "CUST-001", "Asha Rao", map[domain.Currency]int64{domain.CurrencyINR: 100_000})
	testutil.SeedAccount(t, db, "1000000002", "CUST-002", "Vikram Shah", nil)

	payeeID := testutil.SeedBeneficiary(t, db, "1000000001", "1000000002", "Vikram Shah",
		domain.BeneficiaryStatusActive, time.Now().UTC().Add(-time.Hour), 5_000)

	_, err := svc.Transfer(ctx, transfer.TransferRequest{
		FromAccount:   "1000000001",
		ToAccount:     "1000000002",
		Amount:        4_000,
		Currency:      domain.CurrencyINR,
		BeneficiaryID: &payeeID,
	})
	require.NoError(t, err)

	// 4000 of the 5000 limit is used, another 4000 must be rejected
	_, err = svc.Transfer(ctx, transfer.TransferRequest{
		FromAccount:   "1000000001",
		ToAccount:     "1000000002",
		Amount:        4_000,
		Currency:      domain.CurrencyINR,
		BeneficiaryID: &payeeID,
	})
	require.ErrorIs(t, err, domain.ErrDailyLimitExceeded)

	// topping up to exactly the limit is still allowed
	_, err = svc.Transfer(ctx, transfer.TransferRequest{
		FromAccount:   "1000000001",
		ToAccount:     "1000000002",
		Amount:        1_000,
		Currency:      domain.CurrencyINR,
		BeneficiaryID: &payeeID,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(95_000), testutil.GetBucketBalance(t, db, "1000000001", domain.CurrencyINR))
}

func TestTransfer_FrozenAndClosedAccounts(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupTransferService(t, db)
	ctx := context.Background()

	testutil.SeedAccount(t, db, "1000000001", "CUST-001", "Asha Rao", map[domain.Currency]int64{domain.CurrencyINR: 10_000})
	testutil.SeedAccount(t, db, "1000000002", "CUST-002", "Vikram Shah", map[domain.Currency]int64{domain.CurrencyINR: 10_000})
	testutil.SeedAccount(t, db, "1000000003", "CUST-003", "Meera Iyer", map[domain.Currency]int64{domain.CurrencyINR: 10_000})

	_, err := db.Exec(`UPDATE accounts SET status = 'frozen' WHERE account_number = '1000000002'`)
	require.NoError(t, err)
	_, err = db.Exec(`UPDATE accounts SET status = 'closed' WHERE account_number = '1000000003'`)
	require.NoError(t, err)

	// frozen sender cannot send
	_, err = svc.Transfer(ctx, transfer.TransferRequest{
		FromAccount: "1000000002", ToAccount: "1000000001",
		Amount: 1_000, Currency: domain.CurrencyINR,
	})
	require.ErrorIs(t, err, domain.ErrAccountFrozen)

	// frozen recipient cannot receive
	_, err = svc.Transfer(ctx, transfer.TransferRequest{
		FromAccount: "1000000001", ToAccount: "1000000002",
		Amount: 1_000, Currency: domain.CurrencyINR,
	})
	require.ErrorIs(t, err, domain.ErrAccountFrozen)

	// closed accounts take no deposits either
	_, err = svc.Deposit(ctx, "1000000003", 1_000, domain.CurrencyINR, "")
	require.ErrorIs(t, err, domain.ErrAccountClosed)

	assert.Equal(t, int64(10_000), testutil.GetBucketBalance(t, db, "1000000001", domain.CurrencyINR))
	assert.Equal(t, int64(10_000), testutil.GetBucketBalance(t, db, "1000000002", domain.CurrencyINR))
	assert.Equal(t, int64(10_000), testutil.GetBucketBalance(t, db, "1000000003", domain.CurrencyINR))
	assert.Equal(t, 0, testutil.CountTransactions(t, db, "1000000001"))
}

func TestDeposit(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupTransferService(t, db)
	ctx := context.Background()

	testutil.SeedAccount(t, db, "1000000001", "CUST-001", "Asha Rao", map[domain.Currency]int64{domain.CurrencyUSD: 2_500})

	txn, err := svc.Deposit(ctx, "1000000001", 1_500, domain.CurrencyUSD, "salary")

	require.NoError(t, err)
	assert.Equal(t, domain.TransactionTypeDeposit, txn.Type)
	assert.Equal(t, int64(4_000), txn.RunningBalance)
	assert.Equal(t, int64(4_000), testutil.GetBucketBalance(t, db, "1000000001", domain.CurrencyUSD))
	assert.Equal(t, 1, testutil.CountTransactions(t, db, "1000000001"))
}

func TestDeposit_UnknownAccount(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupTransferService(t, db)

	_, err := svc.Deposit(context.Background(), "9999999999", 1_000, domain.CurrencyINR, "")
	require.ErrorIs(t, err, domain.ErrAccountNotFound)
}
