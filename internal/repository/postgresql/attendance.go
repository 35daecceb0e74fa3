package postgresql

import (
	"context"
	"fmt"
	"time"

	"github.com/meridianhr/payroll-backend-go/internal/domain/attendance"
	"github.com/meridianhr/payroll-backend-go/internal/pkg/database"
)

type attendanceRepository struct {
	db *database.DB
}

func NewAttendanceRepository(db *database.DB) attendance.Provider {
	return &attendanceRepository{db: db}
}

// ForPeriod aggregates the employee's daily attendance rows into the period
// summary payroll consumes. Zero rows yield a zero summary, which routes the
// calculator onto day-ratio proration.
func (r *attendanceRepository) ForPeriod(ctx context.Context, employeeID string, start, end time.Time) (attendance.Summary, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT
			COALESCE(SUM(actual_work_minutes), 0),
			COALESCE(SUM(scheduled_work_minutes), 0),
			COALESCE(SUM(overtime_minutes), 0),
			COALESCE(SUM(lateness_minutes), 0),
			COALESCE(SUM(missing_work_minutes), 0),
			COUNT(*) FILTER (WHERE scheduled_work_minutes > 0)
		FROM attendance_days
		WHERE employee_id = $1 AND work_date BETWEEN $2 AND $3
	`

	summary := attendance.Summary{EmployeeID: employeeID}
	err := q.QueryRow(ctx, query, employeeID, start, end).Scan(
		&summary.ActualWorkMinutes,
		&summary.ScheduledWorkMinutes,
		&summary.OvertimeMinutes,
		&summary.LatenessMinutes,
		&summary.MissingWorkMinutes,
		&summary.WorkingDays,
	)
	if err != nil {
		return attendance.Summary{}, fmt.Errorf("%w: %v", attendance.ErrSummaryUnavailable, err)
	}
	return summary, nil
}
