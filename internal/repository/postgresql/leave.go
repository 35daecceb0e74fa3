package postgresql

import (
	"context"
	"fmt"
	"time"

	"github.com/meridianhr/payroll-backend-go/internal/domain/leave"
	"github.com/meridianhr/payroll-backend-go/internal/pkg/database"
)

type leaveRepository struct {
	db *database.DB
}

func NewLeaveRepository(db *database.DB) leave.Provider {
	return &leaveRepository{db: db}
}

// UnpaidDays counts approved unpaid leave days overlapping the period,
// clipped to the period bounds.
func (r *leaveRepository) UnpaidDays(ctx context.Context, employeeID string, start, end time.Time) (int, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT COALESCE(SUM(
			GREATEST(0, LEAST(end_date, $3::date) - GREATEST(start_date, $2::date) + 1)
		), 0)
		FROM leave_requests
		WHERE employee_id = $1
		  AND status = 'approved'
		  AND is_paid = FALSE
		  AND start_date <= $3 AND end_date >= $2
	`

	var days int
	if err := q.QueryRow(ctx, query, employeeID, start, end).Scan(&days); err != nil {
		return 0, fmt.Errorf("failed to count unpaid leave days: %w", err)
	}
	return days, nil
}
