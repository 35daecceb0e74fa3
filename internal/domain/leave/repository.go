package leave

import (
	"context"
	"time"
)

// Provider exposes the approved unpaid-leave day count used for payroll
// day-ratio proration.
type Provider interface {
	UnpaidDays(ctx context.Context, employeeID string, start, end time.Time) (int, error)
}
