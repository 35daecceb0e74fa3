package sidefund

import (
	"context"
	"time"
)

type Repository interface {
	Create(ctx context.Context, record *Record) error
	GetByID(ctx context.Context, id string) (*Record, error)
	ListPending(ctx context.Context, limit, offset int) ([]Record, int, error)
	ApprovedForEmployee(ctx context.Context, employeeID string) ([]Record, error)
	ExistsForTrigger(ctx context.Context, employeeID, triggerKey string) (bool, error)
	// UpdateStatus flips status only when the stored status still equals from.
	UpdateStatus(ctx context.Context, id string, from, to Status, approverID *string, rejectionReason *string) error
	// Claim atomically marks an approved record paid by runID. It returns
	// false without error when the record was no longer approved, which is
	// how concurrent runs lose the race.
	Claim(ctx context.Context, id, runID string, paidAt time.Time) (bool, error)
	UpdatePaymentDate(ctx context.Context, id string, paymentDate time.Time) error
}
