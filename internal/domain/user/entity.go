package user

import "time"

type Role string

const (
	RolePayrollSpecialist Role = "payroll_specialist" // Prepares and submits runs
	RolePayrollManager    Role = "payroll_manager"    // Reviews runs, freezes/unfreezes
	RoleFinanceStaff      Role = "finance_staff"      // Final approval, payslip distribution
	RoleEmployee          Role = "employee"           // Self-service payslip access
)

type User struct {
	ID        string
	Email     string
	Role      Role
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time

	// DTO / Join
	EmployeeID *string
}

// IsPayrollSpecialist checks if the role prepares payroll runs
func (r Role) IsPayrollSpecialist() bool {
	return r == RolePayrollSpecialist
}

// IsPayrollManager checks if the role reviews payroll runs
func (r Role) IsPayrollManager() bool {
	return r == RolePayrollManager
}

// IsFinanceStaff checks if the role grants final approval
func (r Role) IsFinanceStaff() bool {
	return r == RoleFinanceStaff
}
