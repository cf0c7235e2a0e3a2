package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrAccountNotFound     = errors.New("account not found")
	ErrSelfTransfer        = errors.New("cannot transfer to same account")
	ErrInvalidAmount       = errors.New("amount must be greater than zero")
	ErrInvalidCurrency     = errors.New("invalid currency")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrBeneficiaryCooling  = errors.New("beneficiary in cooling period")
	ErrBeneficiaryNotFound = errors.New("beneficiary not found")
	ErrDailyLimitExceeded  = errors.New("daily transfer limit exceeded")
	ErrTransferFailed      = errors.New("transfer failed")
	ErrInvalidDayOfMonth   = errors.New("day of month must be between 1 and 28")
	ErrVersionConflict     = errors.New("optimistic lock conflict")
	ErrAccountFrozen       = errors.New("account frozen")
	ErrAccountClosed       = errors.New("account closed")
)

// CoolingPeriodError reports how long until a pending beneficiary becomes
// transferable. It unwraps to ErrBeneficiaryCooling so callers can match it
// with errors.Is.
type CoolingPeriodError struct {
	Remaining time.Duration
}

func (e *CoolingPeriodError) Error() string {
	return fmt.Sprintf("beneficiary in cooling period, %s remaining", e.Remaining.Round(time.Second))
}

func (e *CoolingPeriodError) Unwrap() error { return ErrBeneficiaryCooling }
