package employee

import "context"

// EmployeeRepository is the directory of employees eligible for payroll.
type EmployeeRepository interface {
	GetByID(ctx context.Context, id string) (*Employee, error)

	// ActiveByDepartment resolves the run's target department by id, then by
	// case-insensitive name, then falls back to every active employee. The
	// returned SelectionMatch reports which level fired.
	ActiveByDepartment(ctx context.Context, department string) ([]Employee, SelectionMatch, error)
}
