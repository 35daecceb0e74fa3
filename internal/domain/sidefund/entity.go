package sidefund

import (
	"time"

	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindSigningBonus      Kind = "signing_bonus"
	KindSeparationBenefit Kind = "separation_benefit"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusPaid     Status = "paid"
	StatusRejected Status = "rejected"
)

// Record is one side-fund entitlement. It is created automatically when a
// payroll run detects a qualifying hire or separation inside the period and
// is paid out at most once through a later run.
type Record struct {
	ID         string
	EmployeeID string
	Kind       Kind
	Amount     decimal.Decimal
	Status     Status

	// TriggerKey dedupes auto-creation, e.g. "signing_bonus:2026-08".
	TriggerKey string

	PaymentDate *time.Time

	ApproverID      *string
	RejectionReason *string
	PaidInRunID     *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// PayableIn reports whether the record is eligible for inclusion in a run
// covering [start, end]: approved, and either undated or dated inside it.
func (r Record) PayableIn(start, end time.Time) bool {
	if r.Status != StatusApproved {
		return false
	}
	if r.PaymentDate == nil {
		return true
	}
	return !r.PaymentDate.Before(start) && !r.PaymentDate.After(end)
}
