package domain

import (
	"time"

	"github.com/google/uuid"
)

type BeneficiaryStatus string

const (
	BeneficiaryStatusPending BeneficiaryStatus = "PENDING"
	BeneficiaryStatusActive  BeneficiaryStatus = "ACTIVE"
)

// Beneficiary is a registered payee link. Transfers to it are blocked until
// the cooling period ends at ActivationTime; a periodic sweep flips the
// status once that moment passes.
type Beneficiary struct {
	ID               uuid.UUID
	OwnerAccount     string
	TargetAccount    string
	Name             string
	RoutingCode      string
	Status           BeneficiaryStatus
	ActivationTime   time.Time
	DailyLimit       int64
	TransferredToday int64
	CounterDate      *time.Time
	CreatedAt        time.Time
}

// ActiveAt reports whether transfers to the payee are allowed at the given
// instant. A PENDING payee whose activation time has passed is treated as
// active even if the sweep has not promoted it yet.
func (b *Beneficiary) ActiveAt(now time.Time) bool {
	if b.Status == BeneficiaryStatusActive {
		return true
	}
	return !now.Before(b.ActivationTime)
}

// CoolingRemaining returns how long until the payee becomes transferable.
// Zero when already active.
func (b *Beneficiary) CoolingRemaining(now time.Time) time.Duration {
	if b.ActiveAt(now) {
		return 0
	}
	return b.ActivationTime.Sub(now)
}

// TransferredOn returns the amount already sent to this payee on the given
// day. The counter is stale once the calendar date changes.
func (b *Beneficiary) TransferredOn(day time.Time) int64 {
	if b.CounterDate == nil {
		return 0
	}
	cy, cm, cd := b.CounterDate.UTC().Date()
	y, m, d := day.UTC().Date()
	if cy == y && cm == m && cd == d {
		return b.TransferredToday
	}
	return 0
}
