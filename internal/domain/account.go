package domain

import (
	"time"
)

type Currency string

const (
	CurrencyINR Currency = "INR"
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
)

func (c Currency) IsValid() bool {
	switch c {
	case CurrencyINR, CurrencyUSD, CurrencyEUR:
		return true
	}
	return false
}

func Currencies() []Currency {
	return []Currency{CurrencyINR, CurrencyUSD, CurrencyEUR}
}

type AccountStatus string

const (
	AccountStatusActive AccountStatus = "active"
	AccountStatusFrozen AccountStatus = "frozen"
	AccountStatusClosed AccountStatus = "closed"
)

// Account is the customer-facing record. Balances live in per-currency
// buckets so a transfer only ever contends on the buckets it touches.
type Account struct {
	AccountNumber string
	CustomerID    string
	HolderName    string
	Status        AccountStatus
	Balances      map[Currency]int64
	CreatedAt     time.Time
}

// BalanceBucket is one currency's balance for an account. Version is the
// optimistic-concurrency token: every balance write bumps it, and a write
// against a stale version is rejected by the store.
type BalanceBucket struct {
	AccountNumber string
	Currency      Currency
	Balance       int64
	Version       int64
}
