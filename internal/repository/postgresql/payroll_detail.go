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

type payrollDetailRepository struct {
	db *database.DB
}

func NewPayrollDetailRepository(db *database.DB) payroll.DetailRepository {
	return &payrollDetailRepository{db: db}
}

const detailColumns = `
	id, run_id, employee_id, employee_name,
	base_salary, base_reason, allowances, allowance_names, gross_salary,
	deductions, penalties, overtime, attendance,
	refunds, bonus, benefit, net_salary, net_pay,
	bank_status, exceptions, created_at, updated_at
`

func (r *payrollDetailRepository) Create(ctx context.Context, detail *payroll.EmployeePayrollDetail) error {
	q := GetQuerier(ctx, r.db)

	deductions, err := json.Marshal(detail.Deductions)
	if err != nil {
		return fmt.Errorf("marshal deductions: %w", err)
	}
	penalties, err := json.Marshal(detail.Penalties)
	if err != nil {
		return fmt.Errorf("marshal penalties: %w", err)
	}
	overtime, err := json.Marshal(detail.Overtime)
	if err != nil {
		return fmt.Errorf("marshal overtime: %w", err)
	}
	attendanceSnapshot, err := json.Marshal(detail.Attendance)
	if err != nil {
		return fmt.Errorf("marshal attendance snapshot: %w", err)
	}

	query := `
		INSERT INTO employee_payroll_details (
			id, run_id, employee_id, employee_name,
			base_salary, base_reason, allowances, allowance_names, gross_salary,
			deductions, penalties, overtime, attendance,
			refunds, bonus, benefit, net_salary, net_pay,
			bank_status, exceptions, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11,
			$12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22
		)
	`

	_, err = q.Exec(ctx, query,
		detail.ID, detail.RunID, detail.EmployeeID, detail.EmployeeName,
		detail.BaseSalary, detail.BaseReason, detail.Allowances, detail.AllowanceNames, detail.GrossSalary,
		deductions, penalties, overtime, attendanceSnapshot,
		detail.Refunds, detail.Bonus, detail.Benefit, detail.NetSalary, detail.NetPay,
		detail.BankStatus, detail.Exceptions, detail.CreatedAt, detail.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create payroll detail: %w", err)
	}
	return nil
}

func (r *payrollDetailRepository) GetByID(ctx context.Context, id string) (*payroll.EmployeePayrollDetail, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + detailColumns + ` FROM employee_payroll_details WHERE id = $1`

	detail, err := scanDetail(q.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, payroll.ErrDetailNotFound
		}
		return nil, fmt.Errorf("failed to get payroll detail: %w", err)
	}
	return detail, nil
}

func (r *payrollDetailRepository) ListByRun(ctx context.Context, runID string) ([]payroll.EmployeePayrollDetail, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + detailColumns + ` FROM employee_payroll_details WHERE run_id = $1 ORDER BY employee_name`

	rows, err := q.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payroll details: %w", err)
	}
	defer rows.Close()

	var details []payroll.EmployeePayrollDetail
	for rows.Next() {
		detail, err := scanDetail(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payroll detail: %w", err)
		}
		details = append(details, *detail)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payroll details: %w", err)
	}
	return details, nil
}

func (r *payrollDetailRepository) CountByRun(ctx context.Context, runID string) (int, error) {
	q := GetQuerier(ctx, r.db)

	var count int
	err := q.QueryRow(ctx, `SELECT COUNT(*) FROM employee_payroll_details WHERE run_id = $1`, runID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count payroll details: %w", err)
	}
	return count, nil
}

func (r *payrollDetailRepository) DeleteByRun(ctx context.Context, runID string) error {
	q := GetQuerier(ctx, r.db)

	if _, err := q.Exec(ctx, `DELETE FROM employee_payroll_details WHERE run_id = $1`, runID); err != nil {
		return fmt.Errorf("failed to delete payroll details: %w", err)
	}
	return nil
}

func (r *payrollDetailRepository) MostRecentForEmployee(ctx context.Context, employeeID string, before time.Time) (*payroll.EmployeePayrollDetail, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT
			d.id, d.run_id, d.employee_id, d.employee_name,
			d.base_salary, d.base_reason, d.allowances, d.allowance_names, d.gross_salary,
			d.deductions, d.penalties, d.overtime, d.attendance,
			d.refunds, d.bonus, d.benefit, d.net_salary, d.net_pay,
			d.bank_status, d.exceptions, d.created_at, d.updated_at
		FROM employee_payroll_details d
		JOIN payroll_runs r ON r.id = d.run_id
		WHERE d.employee_id = $1
		  AND r.period_start < $2
		  AND r.status IN ('approved', 'locked', 'unlocked')
		ORDER BY r.period_start DESC
		LIMIT 1
	`

	detail, err := scanDetail(q.QueryRow(ctx, query, employeeID, before))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get prior payroll detail: %w", err)
	}
	return detail, nil
}

func scanDetail(row pgx.Row) (*payroll.EmployeePayrollDetail, error) {
	var detail payroll.EmployeePayrollDetail
	var deductions, penalties, overtime, attendanceSnapshot []byte

	err := row.Scan(
		&detail.ID, &detail.RunID, &detail.EmployeeID, &detail.EmployeeName,
		&detail.BaseSalary, &detail.BaseReason, &detail.Allowances, &detail.AllowanceNames, &detail.GrossSalary,
		&deductions, &penalties, &overtime, &attendanceSnapshot,
		&detail.Refunds, &detail.Bonus, &detail.Benefit, &detail.NetSalary, &detail.NetPay,
		&detail.BankStatus, &detail.Exceptions, &detail.CreatedAt, &detail.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(deductions, &detail.Deductions); err != nil {
		return nil, fmt.Errorf("unmarshal deductions: %w", err)
	}
	if err := json.Unmarshal(penalties, &detail.Penalties); err != nil {
		return nil, fmt.Errorf("unmarshal penalties: %w", err)
	}
	if err := json.Unmarshal(overtime, &detail.Overtime); err != nil {
		return nil, fmt.Errorf("unmarshal overtime: %w", err)
	}
	if err := json.Unmarshal(attendanceSnapshot, &detail.Attendance); err != nil {
		return nil, fmt.Errorf("unmarshal attendance snapshot: %w", err)
	}
	return &detail, nil
}
