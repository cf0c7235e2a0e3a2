package domain

import (
	"time"

	"github.com/google/uuid"
)

type TransactionType string

const (
	TransactionTypeTransfer TransactionType = "TRANSFER"
	TransactionTypeDeposit  TransactionType = "DEPOSIT"
	TransactionTypeAutoPay  TransactionType = "AUTO_PAY"
)

type TransactionStatus string

const (
	TransactionStatusSuccess TransactionStatus = "SUCCESS"
	TransactionStatusFailed  TransactionStatus = "FAILED"
)

// Transaction is an append-only ledger record. RunningBalance is the source
// bucket's balance immediately after the operation, read inside the same
// atomic unit that applied it.
type Transaction struct {
	ID             uuid.UUID
	Reference      string
	FromAccount    string
	ToAccount      string
	Amount         int64
	Currency       Currency
	Type           TransactionType
	Status         TransactionStatus
	RunningBalance int64
	Description    string
	CreatedAt      time.Time
}
