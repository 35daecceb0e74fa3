package payroll

import "errors"

var (
	ErrRunNotFound     = errors.New("payroll run not found")
	ErrDetailNotFound  = errors.New("employee payroll detail not found")
	ErrPayslipNotFound = errors.New("payslip not found")

	// State conflicts.
	ErrInvalidRunStatus    = errors.New("payroll run status does not allow this operation")
	ErrRunAlreadyProcessed = errors.New("payroll run has already been processed")
	ErrDuplicatePeriod     = errors.New("a payroll run already exists for this entity and period")
	ErrRunStateChanged     = errors.New("payroll run was modified by another request")
	ErrRunNotPaid          = errors.New("payroll run has not been finance approved")

	// Upstream dependencies.
	ErrDependencyUnavailable = errors.New("a payroll dependency is unavailable")
)
