package testutil

import (
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/meridianbank/core/internal/domain"
)

// SeedAccount inserts an account with one balance bucket per supported
// currency. balances maps currency to the opening balance in minor units;
// currencies not in the map start at zero.
func SeedAccount(t *testing.T, db *sql.DB, accountNumber, customerID, holderName string, balances map[domain.Currency]int64) {
	t.Helper()

	_, err := db.Exec(
		`INSERT INTO accounts (account_number, customer_id, holder_name, status, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		accountNumber, customerID, holderName, domain.AccountStatusActive, time.Now().UTC(),
	)
	if err != nil {
		t.Fatalf("seed account %s: %v", accountNumber, err)
	}

	for _, c := range domain.Currencies() {
		_, err := db.Exec(
			`INSERT INTO account_balances (account_number, currency, balance, version)
			 VALUES ($1, $2, $3, 0)`,
			accountNumber, c, balances[c],
		)
		if err != nil {
			t.Fatalf("seed bucket %s/%s: %v", accountNumber, c, err)
		}
	}
}

// SeedBeneficiary inserts a payee link with the given activation time and
// daily limit, returning its ID.
func SeedBeneficiary(t *testing.T, db *sql.DB, owner, target, name string, status domain.BeneficiaryStatus, activation time.Time, dailyLimit int64) uuid.UUID {
	t.Helper()

	id := uuid.New()
	_, err := db.Exec(
		`INSERT INTO beneficiaries (id, owner_account, target_account, name, routing_code,
			status, activation_time, daily_limit, transferred_today, counter_date, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0, NULL, $9)`,
		id, owner, target, name, "MRDN0001", status, activation, dailyLimit, time.Now().UTC(),
	)
	if err != nil {
		t.Fatalf("seed beneficiary %s -> %s: %v", owner, target, err)
	}
	return id
}

// SeedInstruction inserts an ACTIVE standing instruction due at nextDate.
func SeedInstruction(t *testing.T, db *sql.DB, owner, payee, payeeName string, amount int64, currency domain.Currency, dayOfMonth int, nextDate time.Time) uuid.UUID {
	t.Helper()

	id := uuid.New()
	_, err := db.Exec(
		`INSERT INTO standing_instructions (id, owner_account, payee_account, payee_name,
			amount, currency, day_of_month, next_execution_date, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		id, owner, payee, payeeName, amount, currency, dayOfMonth, nextDate,
		domain.InstructionStatusActive, time.Now().UTC(),
	)
	if err != nil {
		t.Fatalf("seed instruction %s -> %s: %v", owner, payee, err)
	}
	return id
}

func GetBucketBalance(t *testing.T, db *sql.DB, accountNumber string, currency domain.Currency) int64 {
	t.Helper()

	var balance int64
	err := db.QueryRow(
		`SELECT balance FROM account_balances WHERE account_number = $1 AND currency = $2`,
		accountNumber, currency,
	).Scan(&balance)
	if err != nil {
		t.Fatalf("get balance %s/%s: %v", accountNumber, currency, err)
	}
	return balance
}

func CountTransactions(t *testing.T, db *sql.DB, accountNumber string) int {
	t.Helper()

	var n int
	err := db.QueryRow(
		`SELECT COUNT(*) FROM transactions WHERE from_account = $1 OR to_account = $1`,
		accountNumber,
	).Scan(&n)
	if err != nil {
		t.Fatalf("count transactions for %s: %v", accountNumber, err)
	}
	return n
}
