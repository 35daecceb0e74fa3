package attendance

import (
	"context"
	"time"
)

type Provider interface {
	ForPeriod(ctx context.Context, employeeID string, start, end time.Time) (Summary, error)
}
