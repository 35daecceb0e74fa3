package postgresql

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/meridianhr/payroll-backend-go/internal/domain/employee"
	"github.com/meridianhr/payroll-backend-go/internal/pkg/database"
)

type employeeRepository struct {
	db *database.DB
}

func NewEmployeeRepository(db *database.DB) employee.EmployeeRepository {
	return &employeeRepository{db: db}
}

const employeeColumns = `
	e.id, e.employee_code, e.full_name, e.department_id, d.name,
	e.pay_grade_id, e.base_salary, e.bank_account_number,
	e.hire_date, e.separation_date, e.separation_kind, e.offer_signing_bonus,
	e.employment_status, e.created_at, e.updated_at
`

const employeeFrom = `
	FROM employees e
	LEFT JOIN departments d ON d.id = e.department_id
`

func (r *employeeRepository) GetByID(ctx context.Context, id string) (*employee.Employee, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + employeeColumns + employeeFrom + ` WHERE e.id = $1`

	emp, err := scanEmployee(q.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, employee.ErrEmployeeNotFound
		}
		return nil, fmt.Errorf("failed to get employee: %w", err)
	}
	return emp, nil
}

// ActiveByDepartment resolves the run's target in three steps: department id,
// then case-insensitive department name, then every active employee. The
// level that fired is returned so callers can log the weaker matches.
func (r *employeeRepository) ActiveByDepartment(ctx context.Context, department string) ([]employee.Employee, employee.SelectionMatch, error) {
	q := GetQuerier(ctx, r.db)

	byID := `SELECT ` + employeeColumns + employeeFrom + `
		WHERE e.employment_status = 'active' AND e.department_id = $1
		ORDER BY e.full_name`
	employees, err := r.queryEmployees(ctx, q, byID, department)
	if err != nil {
		return nil, "", err
	}
	if len(employees) > 0 {
		return employees, employee.MatchedByID, nil
	}

	byName := `SELECT ` + employeeColumns + employeeFrom + `
		WHERE e.employment_status = 'active' AND LOWER(d.name) = LOWER($1)
		ORDER BY e.full_name`
	employees, err = r.queryEmployees(ctx, q, byName, department)
	if err != nil {
		return nil, "", err
	}
	if len(employees) > 0 {
		return employees, employee.MatchedByName, nil
	}

	allActive := `SELECT ` + employeeColumns + employeeFrom + `
		WHERE e.employment_status = 'active'
		ORDER BY e.full_name`
	employees, err = r.queryEmployees(ctx, q, allActive)
	if err != nil {
		return nil, "", err
	}
	return employees, employee.NoMatchAllActive, nil
}

func (r *employeeRepository) queryEmployees(ctx context.Context, q database.Querier, query string, args ...any) ([]employee.Employee, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query employees: %w", err)
	}
	defer rows.Close()

	var employees []employee.Employee
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan employee: %w", err)
		}
		employees = append(employees, *emp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate employees: %w", err)
	}
	return employees, nil
}

func scanEmployee(row pgx.Row) (*employee.Employee, error) {
	var emp employee.Employee
	err := row.Scan(
		&emp.ID, &emp.EmployeeCode, &emp.FullName, &emp.DepartmentID, &emp.DepartmentName,
		&emp.PayGradeID, &emp.BaseSalary, &emp.BankAccountNumber,
		&emp.HireDate, &emp.SeparationDate, &emp.SeparationKind, &emp.OfferSigningBonus,
		&emp.EmploymentStatus, &emp.CreatedAt, &emp.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &emp, nil
}
