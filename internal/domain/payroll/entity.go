package payroll

import (
	"time"

	"github.com/shopspring/decimal"
)

type RunStatus string

const (
	RunStatusDraft                  RunStatus = "draft"
	RunStatusUnderReview            RunStatus = "under_review"
	RunStatusPendingFinanceApproval RunStatus = "pending_finance_approval"
	RunStatusApproved               RunStatus = "approved"
	RunStatusRejected               RunStatus = "rejected"
	RunStatusLocked                 RunStatus = "locked"
	RunStatusUnlocked               RunStatus = "unlocked"
)

// runTransitions is the full lifecycle graph. Anything not listed here is
// an invalid transition.
var runTransitions = map[RunStatus][]RunStatus{
	RunStatusDraft:                  {RunStatusUnderReview, RunStatusRejected},
	RunStatusUnderReview:            {RunStatusPendingFinanceApproval, RunStatusRejected},
	RunStatusPendingFinanceApproval: {RunStatusApproved, RunStatusRejected},
	RunStatusApproved:               {RunStatusLocked},
	RunStatusRejected:               {RunStatusDraft},
	RunStatusLocked:                 {RunStatusUnlocked},
	RunStatusUnlocked:               {RunStatusLocked},
}

// CanTransitionTo reports whether the lifecycle allows moving to next.
func (s RunStatus) CanTransitionTo(next RunStatus) bool {
	for _, allowed := range runTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminalForEdits reports whether detail rows under the run are frozen.
func (s RunStatus) IsTerminalForEdits() bool {
	return s == RunStatusApproved || s == RunStatusLocked
}

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
)

type BankStatus string

const (
	BankStatusValid   BankStatus = "valid"
	BankStatusMissing BankStatus = "missing"
)

type IrregularityKind string

const (
	IrregularityNegativeNetPay   IrregularityKind = "negative_net_pay"
	IrregularityBelowMinimumWage IrregularityKind = "below_minimum_wage"
	IrregularitySalarySpike      IrregularityKind = "salary_spike"
	IrregularityMissingBank      IrregularityKind = "missing_bank_details"
	IrregularityCalculationError IrregularityKind = "calculation_error"
)

// Exception codes recorded on detail rows, joined with '|' when several apply.
const (
	ExceptionContractInactive = "CONTRACT_INACTIVE_OR_EXPIRED"
	ExceptionMissingBank      = "MISSING_BANK_DETAILS"
	ExceptionNegativeNetPay   = "NEGATIVE_NET_PAY"
	ExceptionBelowMinimumWage = "BELOW_MINIMUM_WAGE"
	ExceptionSalarySpike      = "SALARY_SPIKE"
)

type Irregularity struct {
	EmployeeID   string           `json:"employee_id"`
	EmployeeName string           `json:"employee_name"`
	Kind         IrregularityKind `json:"kind"`
	Detail       string           `json:"detail"`
}

// PayrollRun is one processing cycle for an entity and period.
type PayrollRun struct {
	ID          string
	RunLabel    string
	Entity      string
	PeriodStart time.Time
	PeriodEnd   time.Time
	Status      RunStatus

	TotalBaseSalary decimal.Decimal
	TotalGross      decimal.Decimal
	TotalAllowances decimal.Decimal
	TotalDeductions decimal.Decimal
	TotalTax        decimal.Decimal
	TotalInsurance  decimal.Decimal
	TotalPenalties  decimal.Decimal
	TotalOvertime   decimal.Decimal
	TotalRefunds    decimal.Decimal
	TotalBonuses    decimal.Decimal
	TotalBenefits   decimal.Decimal
	TotalNetPay     decimal.Decimal

	EmployeeCount  int
	ProcessedCount int
	FailedCount    int

	// Irregularities is capped for storage; IrregularitiesCount keeps the
	// true total across every employee.
	Irregularities      []Irregularity
	IrregularitiesCount int

	CreatedBy         string
	SubmittedBy       *string
	ManagerApprovedBy *string
	FinanceApprovedBy *string
	RejectedBy        *string
	RejectionReason   *string
	UnlockedBy        *string
	UnlockReason      *string

	SubmittedAt       *time.Time
	ManagerApprovedAt *time.Time
	FinanceApprovedAt *time.Time
	RejectedAt        *time.Time
	LockedAt          *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// DeductionsBreakdown itemizes everything subtracted from gross pay.
type DeductionsBreakdown struct {
	Tax             decimal.Decimal `json:"tax"`
	TaxReason       string          `json:"tax_reason"`
	Insurance       decimal.Decimal `json:"insurance"`
	InsuranceReason string          `json:"insurance_reason"`
	Penalties       decimal.Decimal `json:"penalties"`
	UnpaidLeaveNote string          `json:"unpaid_leave_note,omitempty"`
	Total           decimal.Decimal `json:"total"`
}

type PenaltyItem struct {
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason"`
}

type PenaltiesBreakdown struct {
	Misconduct  PenaltyItem     `json:"misconduct"`
	MissingWork PenaltyItem     `json:"missing_work"`
	Lateness    PenaltyItem     `json:"lateness"`
	Total       decimal.Decimal `json:"total"`
}

type OvertimeDetails struct {
	Minutes int             `json:"minutes"`
	Amount  decimal.Decimal `json:"amount"`
	Reason  string          `json:"reason"`
}

// AttendanceSnapshot freezes the attendance inputs on the detail row so the
// computed amounts stay explainable after the source records change.
type AttendanceSnapshot struct {
	ActualWorkMinutes    int `json:"actual_work_minutes"`
	ScheduledWorkMinutes int `json:"scheduled_work_minutes"`
	MissingWorkMinutes   int `json:"missing_work_minutes"`
	OvertimeMinutes      int `json:"overtime_minutes"`
	LatenessMinutes      int `json:"lateness_minutes"`
	WorkingDays          int `json:"working_days"`
	UnpaidLeaveDays      int `json:"unpaid_leave_days"`
}

// EmployeePayrollDetail is the per-employee outcome of a run.
type EmployeePayrollDetail struct {
	ID           string
	RunID        string
	EmployeeID   string
	EmployeeName string

	BaseSalary     decimal.Decimal
	BaseReason     string
	Allowances     decimal.Decimal
	AllowanceNames string
	GrossSalary    decimal.Decimal

	Deductions DeductionsBreakdown
	Penalties  PenaltiesBreakdown
	Overtime   OvertimeDetails
	Attendance AttendanceSnapshot

	Refunds decimal.Decimal
	Bonus   decimal.Decimal
	Benefit decimal.Decimal

	NetSalary decimal.Decimal
	NetPay    decimal.Decimal

	BankStatus BankStatus
	Exceptions *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// PaySlip is the published document derived from a detail row.
type PaySlip struct {
	ID          string
	RunID       string
	DetailID    string
	EmployeeID  string
	PeriodStart time.Time
	PeriodEnd   time.Time

	Earnings   []PaySlipLine
	Deductions []PaySlipLine

	GrossSalary     decimal.Decimal
	TotalDeductions decimal.Decimal
	NetPay          decimal.Decimal

	PaymentStatus PaymentStatus
	PaidAt        *time.Time

	CreatedAt time.Time
}

type PaySlipLine struct {
	Label  string          `json:"label"`
	Amount decimal.Decimal `json:"amount"`
}

// MisconductPenalty is one approved deduction from the misconduct ledger.
type MisconductPenalty struct {
	ID         string
	EmployeeID string
	Amount     decimal.Decimal
	Reason     string
	IssuedAt   time.Time
}

// Refund is one approved reimbursement owed to the employee.
type Refund struct {
	ID         string
	EmployeeID string
	Amount     decimal.Decimal
	Reason     string
	ApprovedAt time.Time
}
