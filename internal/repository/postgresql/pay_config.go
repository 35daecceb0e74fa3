package postgresql

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/meridianhr/payroll-backend-go/internal/domain/payconfig"
	"github.com/meridianhr/payroll-backend-go/internal/pkg/database"
)

type payConfigRepository struct {
	db *database.DB
}

func NewPayConfigRepository(db *database.DB) payconfig.ConfigRepository {
	return &payConfigRepository{db: db}
}

// Snapshot reads every approved configuration table in one pass. Only rows
// with status 'approved' are visible to payroll.
func (r *payConfigRepository) Snapshot(ctx context.Context, entity string, period time.Time) (payconfig.Snapshot, error) {
	snapshot := payconfig.Snapshot{
		Entity:             entity,
		Period:             period,
		EmployeeAllowances: make(map[string][]payconfig.Allowance),
		PayGrades:          make(map[string]payconfig.PayGrade),
	}

	if err := r.loadTaxRules(ctx, &snapshot); err != nil {
		return payconfig.Snapshot{}, err
	}
	if err := r.loadInsuranceBrackets(ctx, &snapshot); err != nil {
		return payconfig.Snapshot{}, err
	}
	if err := r.loadAllowances(ctx, &snapshot); err != nil {
		return payconfig.Snapshot{}, err
	}
	if err := r.loadPayGrades(ctx, &snapshot); err != nil {
		return payconfig.Snapshot{}, err
	}
	if err := r.loadSettings(ctx, entity, &snapshot); err != nil {
		return payconfig.Snapshot{}, err
	}

	return snapshot, nil
}

func (r *payConfigRepository) loadTaxRules(ctx context.Context, snapshot *payconfig.Snapshot) error {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT id, name, rate_pct, min_salary, max_salary
		FROM tax_rules
		WHERE status = 'approved'
		ORDER BY min_salary
	`

	rows, err := q.Query(ctx, query)
	if err != nil {
		return fmt.Errorf("%w: tax rules: %v", payconfig.ErrSnapshotUnavailable, err)
	}
	defer rows.Close()

	for rows.Next() {
		var rule payconfig.TaxRule
		if err := rows.Scan(&rule.ID, &rule.Name, &rule.RatePct, &rule.MinSalary, &rule.MaxSalary); err != nil {
			return fmt.Errorf("failed to scan tax rule: %w", err)
		}
		snapshot.TaxRules = append(snapshot.TaxRules, rule)
	}
	return rows.Err()
}

func (r *payConfigRepository) loadInsuranceBrackets(ctx context.Context, snapshot *payconfig.Snapshot) error {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT id, name, min_salary, max_salary, employee_rate_pct, employer_rate_pct
		FROM insurance_brackets
		WHERE status = 'approved'
		ORDER BY min_salary
	`

	rows, err := q.Query(ctx, query)
	if err != nil {
		return fmt.Errorf("%w: insurance brackets: %v", payconfig.ErrSnapshotUnavailable, err)
	}
	defer rows.Close()

	for rows.Next() {
		var bracket payconfig.InsuranceBracket
		if err := rows.Scan(&bracket.ID, &bracket.Name, &bracket.MinSalary, &bracket.MaxSalary,
			&bracket.EmployeeRatePct, &bracket.EmployerRatePct); err != nil {
			return fmt.Errorf("failed to scan insurance bracket: %w", err)
		}
		snapshot.InsuranceBrackets = append(snapshot.InsuranceBrackets, bracket)
	}
	return rows.Err()
}

func (r *payConfigRepository) loadAllowances(ctx context.Context, snapshot *payconfig.Snapshot) error {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT id, name, amount, employee_id
		FROM allowances
		WHERE status = 'approved'
		ORDER BY name
	`

	rows, err := q.Query(ctx, query)
	if err != nil {
		return fmt.Errorf("%w: allowances: %v", payconfig.ErrSnapshotUnavailable, err)
	}
	defer rows.Close()

	for rows.Next() {
		var allowance payconfig.Allowance
		var employeeID *string
		if err := rows.Scan(&allowance.ID, &allowance.Name, &allowance.Amount, &employeeID); err != nil {
			return fmt.Errorf("failed to scan allowance: %w", err)
		}
		if employeeID == nil {
			snapshot.DefaultAllowances = append(snapshot.DefaultAllowances, allowance)
		} else {
			snapshot.EmployeeAllowances[*employeeID] = append(snapshot.EmployeeAllowances[*employeeID], allowance)
		}
	}
	return rows.Err()
}

func (r *payConfigRepository) loadPayGrades(ctx context.Context, snapshot *payconfig.Snapshot) error {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT id, name, base_salary
		FROM pay_grades
		WHERE status = 'approved'
	`

	rows, err := q.Query(ctx, query)
	if err != nil {
		return fmt.Errorf("%w: pay grades: %v", payconfig.ErrSnapshotUnavailable, err)
	}
	defer rows.Close()

	for rows.Next() {
		var grade payconfig.PayGrade
		if err := rows.Scan(&grade.ID, &grade.Name, &grade.BaseSalary); err != nil {
			return fmt.Errorf("failed to scan pay grade: %w", err)
		}
		snapshot.PayGrades[grade.ID] = grade
	}
	return rows.Err()
}

func (r *payConfigRepository) loadSettings(ctx context.Context, entity string, snapshot *payconfig.Snapshot) error {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT minimum_wage, separation_benefit
		FROM payroll_settings
		WHERE entity = $1
	`

	err := q.QueryRow(ctx, query, entity).Scan(&snapshot.MinimumWage, &snapshot.SeparationBenefit)
	if err != nil {
		if err == pgx.ErrNoRows {
			// Settings are optional; a missing row means zero minimum wage
			// and no separation benefit.
			snapshot.MinimumWage = decimal.Zero
			snapshot.SeparationBenefit = decimal.Zero
			return nil
		}
		return fmt.Errorf("%w: payroll settings: %v", payconfig.ErrSnapshotUnavailable, err)
	}
	return nil
}
