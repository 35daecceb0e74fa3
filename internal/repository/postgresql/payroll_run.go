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

type payrollRunRepository struct {
	db *database.DB
}

func NewPayrollRunRepository(db *database.DB) payroll.RunRepository {
	return &payrollRunRepository{db: db}
}

const runColumns = `
	id, run_label, entity, period_start, period_end, status,
	total_base_salary, total_gross, total_allowances, total_deductions,
	total_tax, total_insurance, total_penalties, total_overtime,
	total_refunds, total_bonuses, total_benefits, total_net_pay,
	employee_count, processed_count, failed_count, irregularities, irregularities_count,
	created_by, submitted_by, manager_approved_by, finance_approved_by,
	rejected_by, rejection_reason, unlocked_by, unlock_reason,
	submitted_at, manager_approved_at, finance_approved_at, rejected_at, locked_at,
	created_at, updated_at
`

func (r *payrollRunRepository) Create(ctx context.Context, run *payroll.PayrollRun) error {
	q := GetQuerier(ctx, r.db)

	irregularities, err := json.Marshal(run.Irregularities)
	if err != nil {
		return fmt.Errorf("marshal irregularities: %w", err)
	}

	query := `
		INSERT INTO payroll_runs (
			id, run_label, entity, period_start, period_end, status,
			total_base_salary, total_gross, total_allowances, total_deductions,
			total_tax, total_insurance, total_penalties, total_overtime,
			total_refunds, total_bonuses, total_benefits, total_net_pay,
			employee_count, processed_count, failed_count, irregularities, irregularities_count,
			created_by, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18,
			$19, $20, $21, $22, $23, $24, $25, $26
		)
	`

	_, err = q.Exec(ctx, query,
		run.ID, run.RunLabel, run.Entity, run.PeriodStart, run.PeriodEnd, run.Status,
		run.TotalBaseSalary, run.TotalGross, run.TotalAllowances, run.TotalDeductions,
		run.TotalTax, run.TotalInsurance, run.TotalPenalties, run.TotalOvertime,
		run.TotalRefunds, run.TotalBonuses, run.TotalBenefits, run.TotalNetPay,
		run.EmployeeCount, run.ProcessedCount, run.FailedCount, irregularities, run.IrregularitiesCount,
		run.CreatedBy, run.CreatedAt, run.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create payroll run: %w", err)
	}
	return nil
}

func (r *payrollRunRepository) GetByID(ctx context.Context, id string) (*payroll.PayrollRun, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + runColumns + ` FROM payroll_runs WHERE id = $1`

	run, err := scanRun(q.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, payroll.ErrRunNotFound
		}
		return nil, fmt.Errorf("failed to get payroll run: %w", err)
	}
	return run, nil
}

func (r *payrollRunRepository) List(ctx context.Context, entity string, statuses []payroll.RunStatus, limit, offset int) ([]payroll.PayrollRun, int, error) {
	q := GetQuerier(ctx, r.db)

	conditions := "WHERE 1=1"
	args := []any{}
	argN := 1
	if entity != "" {
		conditions += fmt.Sprintf(" AND entity = $%d", argN)
		args = append(args, entity)
		argN++
	}
	if len(statuses) > 0 {
		conditions += fmt.Sprintf(" AND status = ANY($%d)", argN)
		statusStrings := make([]string, len(statuses))
		for i, s := range statuses {
			statusStrings[i] = string(s)
		}
		args = append(args, statusStrings)
		argN++
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM payroll_runs ` + conditions
	if err := q.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count payroll runs: %w", err)
	}

	query := `SELECT ` + runColumns + ` FROM payroll_runs ` + conditions +
		fmt.Sprintf(" ORDER BY period_start DESC, created_at DESC LIMIT $%d OFFSET $%d", argN, argN+1)
	args = append(args, limit, offset)

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list payroll runs: %w", err)
	}
	defer rows.Close()

	var runs []payroll.PayrollRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan payroll run: %w", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate payroll runs: %w", err)
	}
	return runs, total, nil
}

func (r *payrollRunRepository) ExistsForPeriod(ctx context.Context, entity string, periodStart time.Time, excludeRunID string) (bool, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT EXISTS (
			SELECT 1 FROM payroll_runs
			WHERE entity = $1
			  AND date_trunc('month', period_start) = date_trunc('month', $2::date)
			  AND status <> 'rejected'
			  AND ($3 = '' OR id <> $3)
		)
	`

	var exists bool
	if err := q.QueryRow(ctx, query, entity, periodStart, excludeRunID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check period runs: %w", err)
	}
	return exists, nil
}

// UpdateStatus persists the run's mutable fields but only while the stored
// status still equals from. A zero-row update means another request won.
func (r *payrollRunRepository) UpdateStatus(ctx context.Context, id string, from, to payroll.RunStatus, run *payroll.PayrollRun) error {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE payroll_runs SET
			status = $3,
			submitted_by = $4, submitted_at = $5,
			manager_approved_by = $6, manager_approved_at = $7,
			finance_approved_by = $8, finance_approved_at = $9,
			rejected_by = $10, rejected_at = $11, rejection_reason = $12,
			unlocked_by = $13, unlock_reason = $14, locked_at = $15,
			updated_at = NOW()
		WHERE id = $1 AND status = $2
	`

	tag, err := q.Exec(ctx, query, id, from, to,
		run.SubmittedBy, run.SubmittedAt,
		run.ManagerApprovedBy, run.ManagerApprovedAt,
		run.FinanceApprovedBy, run.FinanceApprovedAt,
		run.RejectedBy, run.RejectedAt, run.RejectionReason,
		run.UnlockedBy, run.UnlockReason, run.LockedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update payroll run status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: expected status '%s'", payroll.ErrRunStateChanged, from)
	}
	return nil
}

func (r *payrollRunRepository) UpdateTotals(ctx context.Context, run *payroll.PayrollRun) error {
	q := GetQuerier(ctx, r.db)

	irregularities, err := json.Marshal(run.Irregularities)
	if err != nil {
		return fmt.Errorf("marshal irregularities: %w", err)
	}

	query := `
		UPDATE payroll_runs SET
			total_base_salary = $2, total_gross = $3, total_allowances = $4,
			total_deductions = $5, total_tax = $6, total_insurance = $7,
			total_penalties = $8, total_overtime = $9, total_refunds = $10,
			total_bonuses = $11, total_benefits = $12, total_net_pay = $13,
			employee_count = $14, processed_count = $15, failed_count = $16,
			irregularities = $17, irregularities_count = $18, updated_at = NOW()
		WHERE id = $1
	`

	_, err = q.Exec(ctx, query, run.ID,
		run.TotalBaseSalary, run.TotalGross, run.TotalAllowances,
		run.TotalDeductions, run.TotalTax, run.TotalInsurance,
		run.TotalPenalties, run.TotalOvertime, run.TotalRefunds,
		run.TotalBonuses, run.TotalBenefits, run.TotalNetPay,
		run.EmployeeCount, run.ProcessedCount, run.FailedCount,
		irregularities, run.IrregularitiesCount,
	)
	if err != nil {
		return fmt.Errorf("failed to update payroll run totals: %w", err)
	}
	return nil
}

func scanRun(row pgx.Row) (*payroll.PayrollRun, error) {
	var run payroll.PayrollRun
	var irregularities []byte

	err := row.Scan(
		&run.ID, &run.RunLabel, &run.Entity, &run.PeriodStart, &run.PeriodEnd, &run.Status,
		&run.TotalBaseSalary, &run.TotalGross, &run.TotalAllowances, &run.TotalDeductions,
		&run.TotalTax, &run.TotalInsurance, &run.TotalPenalties, &run.TotalOvertime,
		&run.TotalRefunds, &run.TotalBonuses, &run.TotalBenefits, &run.TotalNetPay,
		&run.EmployeeCount, &run.ProcessedCount, &run.FailedCount, &irregularities, &run.IrregularitiesCount,
		&run.CreatedBy, &run.SubmittedBy, &run.ManagerApprovedBy, &run.FinanceApprovedBy,
		&run.RejectedBy, &run.RejectionReason, &run.UnlockedBy, &run.UnlockReason,
		&run.SubmittedAt, &run.ManagerApprovedAt, &run.FinanceApprovedAt, &run.RejectedAt, &run.LockedAt,
		&run.CreatedAt, &run.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(irregularities) > 0 {
		if err := json.Unmarshal(irregularities, &run.Irregularities); err != nil {
			return nil, fmt.Errorf("unmarshal irregularities: %w", err)
		}
	}
	return &run, nil
}
