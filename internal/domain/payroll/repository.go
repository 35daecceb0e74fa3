package payroll

import (
	"context"
	"time"
)

type RunRepository interface {
	Create(ctx context.Context, run *PayrollRun) error
	GetByID(ctx context.Context, id string) (*PayrollRun, error)
	List(ctx context.Context, entity string, statuses []RunStatus, limit, offset int) ([]PayrollRun, int, error)
	// ExistsForPeriod ignores rejected runs so a rejected period can be rerun.
	ExistsForPeriod(ctx context.Context, entity string, periodStart time.Time, excludeRunID string) (bool, error)
	// UpdateStatus flips status only when the stored status still equals from,
	// returning ErrRunStateChanged otherwise.
	UpdateStatus(ctx context.Context, id string, from, to RunStatus, run *PayrollRun) error
	UpdateTotals(ctx context.Context, run *PayrollRun) error
}

type DetailRepository interface {
	Create(ctx context.Context, detail *EmployeePayrollDetail) error
	GetByID(ctx context.Context, id string) (*EmployeePayrollDetail, error)
	ListByRun(ctx context.Context, runID string) ([]EmployeePayrollDetail, error)
	CountByRun(ctx context.Context, runID string) (int, error)
	DeleteByRun(ctx context.Context, runID string) error
	// MostRecentForEmployee returns the employee's detail from the latest
	// approved or locked run before the given period, if any.
	MostRecentForEmployee(ctx context.Context, employeeID string, before time.Time) (*EmployeePayrollDetail, error)
}

type PayslipRepository interface {
	Create(ctx context.Context, slip *PaySlip) error
	GetByID(ctx context.Context, id string) (*PaySlip, error)
	ListByRun(ctx context.Context, runID string) ([]PaySlip, error)
	ListByEmployee(ctx context.Context, employeeID string, limit, offset int) ([]PaySlip, int, error)
	DeleteByRun(ctx context.Context, runID string) error
	// MarkRunPaid flips every pending payslip under the run to paid.
	MarkRunPaid(ctx context.Context, runID string, paidAt time.Time) error
}

// PenaltyLedger reads approved misconduct deductions for a period.
type PenaltyLedger interface {
	ApprovedForPeriod(ctx context.Context, employeeID string, start, end time.Time) ([]MisconductPenalty, error)
}

// RefundLedger reads approved reimbursements not yet settled through payroll
// and marks them settled once a run pays them out.
type RefundLedger interface {
	UnsettledForEmployee(ctx context.Context, employeeID string, asOf time.Time) ([]Refund, error)
	// MarkSettled stamps the paying run on the refunds so no later run
	// disburses them again. Callers run it inside the transaction that
	// writes the detail row.
	MarkSettled(ctx context.Context, refundIDs []string, runID string) error
}
