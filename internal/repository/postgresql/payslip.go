package postgresql

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/meridianhr/payroll-backend-go/internal/domain/payroll"
	"github.com/meridianhr/payroll-backend-go/internal/pkg/database"
)

type payslipRepository struct {
	db *database.DB
}

func NewPayslipRepository(db *database.DB) payroll.PayslipRepository {
	return &payslipRepository{db: db}
}

const payslipColumns = `
	id, run_id, detail_id, employee_id, period_start, period_end,
	earnings, deductions, gross_salary, total_deductions, net_pay,
	payment_status, paid_at, created_at
`

func (r *payslipRepository) Create(ctx context.Context, slip *payroll.PaySlip) error {
	q := GetQuerier(ctx, r.db)

	earnings, err := json.Marshal(slip.Earnings)
	if err != nil {
		return fmt.Errorf("marshal earnings: %w", err)
	}
	deductions, err := json.Marshal(slip.Deductions)
	if err != nil {
		return fmt.Errorf("marshal deductions: %w", err)
	}

	query := `
		INSERT INTO payslips (
			id, run_id, detail_id, employee_id, period_start, period_end,
			earnings, deductions, gross_salary, total_deductions, net_pay,
			payment_status, paid_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err = q.Exec(ctx, query,
		slip.ID, slip.RunID, slip.DetailID, slip.EmployeeID, slip.PeriodStart, slip.PeriodEnd,
		earnings, deductions, slip.GrossSalary, slip.TotalDeductions, slip.NetPay,
		slip.PaymentStatus, slip.PaidAt, slip.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create payslip: %w", err)
	}
	return nil
}

func (r *payslipRepository) GetByID(ctx context.Context, id string) (*payroll.PaySlip, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + payslipColumns + ` FROM payslips WHERE id = $1`

	slip, err := scanPayslip(q.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, payroll.ErrPayslipNotFound
		}
		return nil, fmt.Errorf("failed to get payslip: %w", err)
	}
	return slip, nil
}

func (r *payslipRepository) ListByRun(ctx context.Context, runID string) ([]payroll.PaySlip, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + payslipColumns + ` FROM payslips WHERE run_id = $1 ORDER BY created_at`

	rows, err := q.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payslips: %w", err)
	}
	defer rows.Close()

	return collectPayslips(rows)
}

func (r *payslipRepository) ListByEmployee(ctx context.Context, employeeID string, limit, offset int) ([]payroll.PaySlip, int, error) {
	q := GetQuerier(ctx, r.db)

	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM payslips WHERE employee_id = $1`, employeeID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count payslips: %w", err)
	}

	query := `SELECT ` + payslipColumns + ` FROM payslips WHERE employee_id = $1 ORDER BY period_start DESC LIMIT $2 OFFSET $3`

	rows, err := q.Query(ctx, query, employeeID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list employee payslips: %w", err)
	}
	defer rows.Close()

	slips, err := collectPayslips(rows)
	if err != nil {
		return nil, 0, err
	}
	return slips, total, nil
}

func (r *payslipRepository) DeleteByRun(ctx context.Context, runID string) error {
	q := GetQuerier(ctx, r.db)

	if _, err := q.Exec(ctx, `DELETE FROM payslips WHERE run_id = $1`, runID); err != nil {
		return fmt.Errorf("failed to delete payslips: %w", err)
	}
	return nil
}

func (r *payslipRepository) MarkRunPaid(ctx context.Context, runID string, paidAt time.Time) error {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE payslips
		SET payment_status = 'paid', paid_at = $2
		WHERE run_id = $1 AND payment_status = 'pending'
	`

	if _, err := q.Exec(ctx, query, runID, paidAt); err != nil {
		return fmt.Errorf("failed to mark payslips paid: %w", err)
	}
	return nil
}

func collectPayslips(rows pgx.Rows) ([]payroll.PaySlip, error) {
	var slips []payroll.PaySlip
	for rows.Next() {
		slip, err := scanPayslip(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payslip: %w", err)
		}
		slips = append(slips, *slip)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payslips: %w", err)
	}
	return slips, nil
}

func scanPayslip(row pgx.Row) (*payroll.PaySlip, error) {
	var slip payroll.PaySlip
	var earnings, deductions []byte

	err := row.Scan(
		&slip.ID, &slip.RunID, &slip.DetailID, &slip.EmployeeID, &slip.PeriodStart, &slip.PeriodEnd,
		&earnings, &deductions, &slip.GrossSalary, &slip.TotalDeductions, &slip.NetPay,
		&slip.PaymentStatus, &slip.PaidAt, &slip.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(earnings, &slip.Earnings); err != nil {
		return nil, fmt.Errorf("unmarshal earnings: %w", err)
	}
	if err := json.Unmarshal(deductions, &slip.Deductions); err != nil {
		return nil, fmt.Errorf("unmarshal deductions: %w", err)
	}
	return &slip, nil
}
