package domain

import (
	"time"

	"github.com/google/uuid"
)

type InstructionStatus string

const (
	InstructionStatusActive InstructionStatus = "ACTIVE"
	InstructionStatusPaused InstructionStatus = "PAUSED"
)

// StandingInstruction is a recurring unattended payment. NextExecutionDate
// only moves forward after a confirmed successful execution; a failed attempt
// leaves it in place so the next scheduler pass retries.
type StandingInstruction struct {
	ID                uuid.UUID
	OwnerAccount      string
	PayeeAccount      string
	PayeeName         string
	Amount            int64
	Currency          Currency
	DayOfMonth        int
	NextExecutionDate time.Time
	Status            InstructionStatus
	LastExecuted      *time.Time
	FailureReason     *string
	CreatedAt         time.Time
}

// NextOccurrence returns the execution date one calendar month after the
// current one. DayOfMonth is capped at 28 so the shift is valid in every
// month.
func (si *StandingInstruction) NextOccurrence() time.Time {
	return si.NextExecutionDate.AddDate(0, 1, 0)
}
