package employee

import (
	"time"

	"github.com/shopspring/decimal"
)

type Employee struct {
	ID                string
	EmployeeCode      string
	FullName          string
	DepartmentID      *string
	DepartmentName    *string
	PayGradeID        *string
	BaseSalary        *decimal.Decimal // employee-level override, used when no approved pay grade
	BankAccountNumber *string
	HireDate          time.Time
	SeparationDate    *time.Time // effective date of termination or resignation
	SeparationKind    *SeparationKind
	OfferSigningBonus *decimal.Decimal // signing bonus promised on the offer, if any
	EmploymentStatus  EmploymentStatus
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type EmploymentStatus string

const (
	EmploymentStatusActive     EmploymentStatus = "active"
	EmploymentStatusInactive   EmploymentStatus = "inactive"
	EmploymentStatusResigned   EmploymentStatus = "resigned"
	EmploymentStatusTerminated EmploymentStatus = "terminated"
)

type SeparationKind string

const (
	SeparationTermination SeparationKind = "termination"
	SeparationResignation SeparationKind = "resignation"
)

// IsActive reports whether the employee may be included in a payroll run.
func (e *Employee) IsActive() bool {
	return e.EmploymentStatus == EmploymentStatusActive
}

// HiredDuring reports whether the hire date falls inside [start, end].
func (e *Employee) HiredDuring(start, end time.Time) bool {
	return !e.HireDate.Before(start) && !e.HireDate.After(end)
}

// SeparatedDuring reports whether the separation effective date falls inside [start, end].
func (e *Employee) SeparatedDuring(start, end time.Time) bool {
	if e.SeparationDate == nil {
		return false
	}
	return !e.SeparationDate.Before(start) && !e.SeparationDate.After(end)
}

// SelectionMatch records which level of the department fallback chain
// produced the employee list for a run.
type SelectionMatch string

const (
	MatchedByID      SelectionMatch = "matched_by_id"
	MatchedByName    SelectionMatch = "matched_by_name"
	NoMatchAllActive SelectionMatch = "no_match_all_active"
)
