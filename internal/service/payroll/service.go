package payroll

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridianhr/payroll-backend-go/internal/domain/payroll"
	"github.com/meridianhr/payroll-backend-go/internal/domain/user"
)

// Actor identifies the authenticated caller of a lifecycle operation.
type Actor struct {
	UserID     string
	Role       user.Role
	EmployeeID *string
}

// Service is the payroll run lifecycle: it gates when the Aggregator may run
// and when money may move, and enforces role and approver-identity rules.
type Service struct {
	runs       payroll.RunRepository
	details    payroll.DetailRepository
	payslips   payroll.PayslipRepository
	aggregator *Aggregator
	transact   Transactor
	logger     *slog.Logger
}

func NewService(
	runRepo payroll.RunRepository,
	detailRepo payroll.DetailRepository,
	payslipRepo payroll.PayslipRepository,
	aggregator *Aggregator,
	transact Transactor,
	logger *slog.Logger,
) *Service {
	return &Service{
		runs:       runRepo,
		details:    detailRepo,
		payslips:   payslipRepo,
		aggregator: aggregator,
		transact:   transact,
		logger:     logger,
	}
}

// CreateRun opens a new DRAFT run for an entity and period. At most one
// non-rejected run may exist per entity and calendar month.
func (s *Service) CreateRun(ctx context.Context, actor Actor, req payroll.CreateRunRequest) (*payroll.PayrollRun, error) {
	if !actor.Role.IsPayrollSpecialist() {
		return nil, user.ErrSpecialistAccessRequired
	}
	if errs := req.Validate(); len(errs) > 0 {
		return nil, errs
	}

	periodStart, periodEnd := req.PeriodRange()

	exists, err := s.runs.ExistsForPeriod(ctx, req.Entity, periodStart, "")
	if err != nil {
		return nil, fmt.Errorf("check existing runs for period: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("%w: entity %s, period %s", payroll.ErrDuplicatePeriod, req.Entity, req.Period)
	}

	now := time.Now()
	run := &payroll.PayrollRun{
		ID:          uuid.Must(uuid.NewV7()).String(),
		RunLabel:    req.RunLabel,
		Entity:      req.Entity,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
		Status:      payroll.RunStatusDraft,
		CreatedBy:   actor.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	zeroTotals(run)

	if err := s.runs.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("create payroll run: %w", err)
	}

	s.logger.Info("payroll run created",
		slog.String("run_id", run.ID),
		slog.String("run_label", run.RunLabel),
		slog.String("entity", run.Entity))
	return run, nil
}

// SubmitForReview moves DRAFT to UNDER_REVIEW and synchronously processes the
// run. The status flip happens first as an optimistic check, so a concurrent
// submit on the same run loses with a state-conflict error. If processing
// fails, the run rolls back to DRAFT with the failure counted.
func (s *Service) SubmitForReview(ctx context.Context, actor Actor, runID string) (*payroll.PayrollRun, error) {
	if !actor.Role.IsPayrollSpecialist() {
		return nil, user.ErrSpecialistAccessRequired
	}

	run, err := s.runs.GetByID(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !run.Status.CanTransitionTo(payroll.RunStatusUnderReview) {
		return nil, transitionError(run.Status, payroll.RunStatusUnderReview)
	}

	now := time.Now()
	run.Status = payroll.RunStatusUnderReview
	run.SubmittedBy = &actor.UserID
	run.SubmittedAt = &now
	if err := s.runs.UpdateStatus(ctx, run.ID, payroll.RunStatusDraft, payroll.RunStatusUnderReview, run); err != nil {
		return nil, err
	}

	if procErr := s.aggregator.ProcessRun(ctx, run); procErr != nil {
		run.Status = payroll.RunStatusDraft
		run.FailedCount++
		if rbErr := s.runs.UpdateStatus(ctx, run.ID, payroll.RunStatusUnderReview, payroll.RunStatusDraft, run); rbErr != nil {
			s.logger.Error("failed to roll back run to draft after processing error",
				slog.String("run_id", run.ID), slog.Any("error", rbErr))
		}
		return nil, procErr
	}

	if err := s.runs.UpdateTotals(ctx, run); err != nil {
		return nil, fmt.Errorf("persist run totals: %w", err)
	}

	s.logger.Info("payroll run processed",
		slog.String("run_id", run.ID),
		slog.Int("employees", run.EmployeeCount),
		slog.Int("failed", run.FailedCount),
		slog.String("total_net_pay", run.TotalNetPay.StringFixed(2)))
	return run, nil
}

// ApproveByManager advances UNDER_REVIEW to PENDING_FINANCE_APPROVAL. The
// manager must not be the specialist who created the run.
func (s *Service) ApproveByManager(ctx context.Context, actor Actor, runID string) (*payroll.PayrollRun, error) {
	if !actor.Role.IsPayrollManager() {
		return nil, user.ErrManagerAccessRequired
	}

	run, err := s.runs.GetByID(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !run.Status.CanTransitionTo(payroll.RunStatusPendingFinanceApproval) {
		return nil, transitionError(run.Status, payroll.RunStatusPendingFinanceApproval)
	}
	if run.CreatedBy == actor.UserID {
		return nil, user.ErrSelfApproval
	}

	now := time.Now()
	run.Status = payroll.RunStatusPendingFinanceApproval
	run.ManagerApprovedBy = &actor.UserID
	run.ManagerApprovedAt = &now
	if err := s.runs.UpdateStatus(ctx, run.ID, payroll.RunStatusUnderReview, payroll.RunStatusPendingFinanceApproval, run); err != nil {
		return nil, err
	}

	s.logger.Info("payroll run approved by manager", slog.String("run_id", run.ID))
	return run, nil
}

// ApproveByFinance grants final approval and marks every payslip of the run
// PAID in the same transaction as the status flip.
func (s *Service) ApproveByFinance(ctx context.Context, actor Actor, runID string) (*payroll.PayrollRun, error) {
	if !actor.Role.IsFinanceStaff() {
		return nil, user.ErrFinanceAccessRequired
	}

	run, err := s.runs.GetByID(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !run.Status.CanTransitionTo(payroll.RunStatusApproved) {
		return nil, transitionError(run.Status, payroll.RunStatusApproved)
	}
	if run.CreatedBy == actor.UserID {
		return nil, user.ErrSelfApproval
	}
	if run.ManagerApprovedBy != nil && *run.ManagerApprovedBy == actor.UserID {
		return nil, user.ErrDuplicateApprover
	}

	now := time.Now()
	run.Status = payroll.RunStatusApproved
	run.FinanceApprovedBy = &actor.UserID
	run.FinanceApprovedAt = &now

	err = s.transact(ctx, func(txCtx context.Context) error {
		if err := s.runs.UpdateStatus(txCtx, run.ID, payroll.RunStatusPendingFinanceApproval, payroll.RunStatusApproved, run); err != nil {
			return err
		}
		return s.payslips.MarkRunPaid(txCtx, run.ID, now)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("payroll run approved by finance, payslips marked paid",
		slog.String("run_id", run.ID),
		slog.String("total_net_pay", run.TotalNetPay.StringFixed(2)))
	return run, nil
}

// Reject moves a run to REJECTED with a mandatory reason. Specialists reject
// their own drafts and reviews; finance rejects at the final gate.
func (s *Service) Reject(ctx context.Context, actor Actor, runID string, req payroll.RejectRunRequest) (*payroll.PayrollRun, error) {
	if errs := req.Validate(); len(errs) > 0 {
		return nil, errs
	}

	run, err := s.runs.GetByID(ctx, runID)
	if err != nil {
		return nil, err
	}

	if !run.Status.CanTransitionTo(payroll.RunStatusRejected) {
		return nil, transitionError(run.Status, payroll.RunStatusRejected)
	}
	if run.Status == payroll.RunStatusPendingFinanceApproval {
		if !actor.Role.IsFinanceStaff() {
			return nil, user.ErrFinanceAccessRequired
		}
	} else if !actor.Role.IsPayrollSpecialist() && !actor.Role.IsPayrollManager() {
		return nil, user.ErrSpecialistAccessRequired
	}

	now := time.Now()
	from := run.Status
	run.Status = payroll.RunStatusRejected
	run.RejectedBy = &actor.UserID
	run.RejectedAt = &now
	run.RejectionReason = &req.Reason
	if err := s.runs.UpdateStatus(ctx, run.ID, from, payroll.RunStatusRejected, run); err != nil {
		return nil, err
	}

	s.logger.Info("payroll run rejected",
		slog.String("run_id", run.ID), slog.String("reason", req.Reason))
	return run, nil
}

// Reopen returns a REJECTED run to DRAFT for another attempt. Prior detail
// rows and payslips are discarded in the same transaction so the next
// submission computes the run fresh.
func (s *Service) Reopen(ctx context.Context, actor Actor, runID string) (*payroll.PayrollRun, error) {
	if !actor.Role.IsPayrollSpecialist() {
		return nil, user.ErrSpecialistAccessRequired
	}

	run, err := s.runs.GetByID(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !run.Status.CanTransitionTo(payroll.RunStatusDraft) {
		return nil, transitionError(run.Status, payroll.RunStatusDraft)
	}

	run.Status = payroll.RunStatusDraft
	zeroTotals(run)
	run.EmployeeCount = 0
	run.ProcessedCount = 0
	run.FailedCount = 0
	run.Irregularities = nil
	run.IrregularitiesCount = 0

	err = s.transact(ctx, func(txCtx context.Context) error {
		if err := s.payslips.DeleteByRun(txCtx, run.ID); err != nil {
			return err
		}
		if err := s.details.DeleteByRun(txCtx, run.ID); err != nil {
			return err
		}
		if err := s.runs.UpdateStatus(txCtx, run.ID, payroll.RunStatusRejected, payroll.RunStatusDraft, run); err != nil {
			return err
		}
		return s.runs.UpdateTotals(txCtx, run)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("payroll run reopened", slog.String("run_id", run.ID))
	return run, nil
}

// Freeze locks an APPROVED or UNLOCKED run. Payslips are untouched.
func (s *Service) Freeze(ctx context.Context, actor Actor, runID string) (*payroll.PayrollRun, error) {
	if !actor.Role.IsPayrollManager() {
		return nil, user.ErrManagerAccessRequired
	}

	run, err := s.runs.GetByID(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !run.Status.CanTransitionTo(payroll.RunStatusLocked) {
		return nil, transitionError(run.Status, payroll.RunStatusLocked)
	}

	now := time.Now()
	from := run.Status
	run.Status = payroll.RunStatusLocked
	run.LockedAt = &now
	if err := s.runs.UpdateStatus(ctx, run.ID, from, payroll.RunStatusLocked, run); err != nil {
		return nil, err
	}

	s.logger.Info("payroll run locked", slog.String("run_id", run.ID))
	return run, nil
}

// Unfreeze unlocks a LOCKED run. The reason is stored verbatim.
func (s *Service) Unfreeze(ctx context.Context, actor Actor, runID string, req payroll.UnlockRunRequest) (*payroll.PayrollRun, error) {
	if !actor.Role.IsPayrollManager() {
		return nil, user.ErrManagerAccessRequired
	}
	if errs := req.Validate(); len(errs) > 0 {
		return nil, errs
	}

	run, err := s.runs.GetByID(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !run.Status.CanTransitionTo(payroll.RunStatusUnlocked) {
		return nil, transitionError(run.Status, payroll.RunStatusUnlocked)
	}

	run.Status = payroll.RunStatusUnlocked
	run.UnlockedBy = &actor.UserID
	run.UnlockReason = &req.Reason
	if err := s.runs.UpdateStatus(ctx, run.ID, payroll.RunStatusLocked, payroll.RunStatusUnlocked, run); err != nil {
		return nil, err
	}

	s.logger.Info("payroll run unlocked",
		slog.String("run_id", run.ID), slog.String("reason", req.Reason))
	return run, nil
}

// GeneratePayslips rebuilds the run's payslips from its detail rows. Existing
// slips are replaced; on a finance-approved run the regenerated slips keep
// the PAID status and the original approval time.
func (s *Service) GeneratePayslips(ctx context.Context, actor Actor, runID string) ([]payroll.PaySlip, error) {
	if !actor.Role.IsFinanceStaff() {
		return nil, user.ErrFinanceAccessRequired
	}

	run, err := s.runs.GetByID(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run.Status != payroll.RunStatusApproved && run.Status != payroll.RunStatusLocked && run.Status != payroll.RunStatusUnlocked {
		return nil, fmt.Errorf("%w: cannot generate payslips for payroll run in status '%s', run must be approved", payroll.ErrInvalidRunStatus, run.Status)
	}

	details, err := s.details.ListByRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("list details for run %s: %w", runID, err)
	}

	slips := make([]payroll.PaySlip, 0, len(details))
	err = s.transact(ctx, func(txCtx context.Context) error {
		if err := s.payslips.DeleteByRun(txCtx, runID); err != nil {
			return err
		}
		for i := range details {
			slip := buildPaySlip(&details[i], run)
			if run.FinanceApprovedAt != nil {
				slip.PaymentStatus = payroll.PaymentStatusPaid
				slip.PaidAt = run.FinanceApprovedAt
			}
			if err := s.payslips.Create(txCtx, slip); err != nil {
				return err
			}
			slips = append(slips, *slip)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("payslips generated",
		slog.String("run_id", runID), slog.Int("count", len(slips)))
	return slips, nil
}

func (s *Service) GetRun(ctx context.Context, runID string) (*payroll.PayrollRun, error) {
	return s.runs.GetByID(ctx, runID)
}

func (s *Service) ListRuns(ctx context.Context, query payroll.ListRunsQuery) ([]payroll.PayrollRun, int, error) {
	query.Normalize()
	offset := (query.Page - 1) * query.PageSize
	return s.runs.List(ctx, query.Entity, query.Statuses, query.PageSize, offset)
}

func (s *Service) ListDetails(ctx context.Context, runID string) ([]payroll.EmployeePayrollDetail, error) {
	if _, err := s.runs.GetByID(ctx, runID); err != nil {
		return nil, err
	}
	return s.details.ListByRun(ctx, runID)
}

func (s *Service) ListPayslips(ctx context.Context, runID string) ([]payroll.PaySlip, error) {
	if _, err := s.runs.GetByID(ctx, runID); err != nil {
		return nil, err
	}
	return s.payslips.ListByRun(ctx, runID)
}

// GetPayslip returns one payslip. Employee callers may only read their own.
func (s *Service) GetPayslip(ctx context.Context, actor Actor, payslipID string) (*payroll.PaySlip, error) {
	slip, err := s.payslips.GetByID(ctx, payslipID)
	if err != nil {
		return nil, err
	}
	if actor.Role == user.RoleEmployee {
		if actor.EmployeeID == nil || *actor.EmployeeID != slip.EmployeeID {
			return nil, payroll.ErrPayslipNotFound
		}
	}
	return slip, nil
}

// ListEmployeePayslips is the self-service view of an employee's own slips.
func (s *Service) ListEmployeePayslips(ctx context.Context, actor Actor, limit, offset int) ([]payroll.PaySlip, int, error) {
	if actor.EmployeeID == nil {
		return nil, 0, payroll.ErrPayslipNotFound
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.payslips.ListByEmployee(ctx, *actor.EmployeeID, limit, offset)
}

// ExportPayslipsCSV renders the run's payslips as a CSV document for the
// finance hand-off to bank transfer tooling. Only a finance-approved run may
// be exported.
func (s *Service) ExportPayslipsCSV(ctx context.Context, runID string) ([]byte, error) {
	run, err := s.runs.GetByID(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run.FinanceApprovedAt == nil {
		return nil, fmt.Errorf("%w: run %s", payroll.ErrRunNotPaid, runID)
	}

	details, err := s.details.ListByRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("list details for run %s: %w", runID, err)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	header := []string{"run_label", "employee_id", "employee_name", "gross", "tax", "insurance", "penalties", "net_pay", "bank_status", "exceptions"}
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for i := range details {
		d := &details[i]
		exceptions := ""
		if d.Exceptions != nil {
			exceptions = *d.Exceptions
		}
		row := []string{
			run.RunLabel,
			d.EmployeeID,
			d.EmployeeName,
			d.GrossSalary.StringFixed(2),
			d.Deductions.Tax.StringFixed(2),
			d.Deductions.Insurance.StringFixed(2),
			d.Penalties.Total.StringFixed(2),
			d.NetPay.StringFixed(2),
			string(d.BankStatus),
			exceptions,
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func transitionError(from, to payroll.RunStatus) error {
	return fmt.Errorf("%w: cannot move payroll run from '%s' to '%s'", payroll.ErrInvalidRunStatus, from, to)
}

func zeroTotals(run *payroll.PayrollRun) {
	run.TotalBaseSalary = decimal.Zero
	run.TotalGross = decimal.Zero
	run.TotalAllowances = decimal.Zero
	run.TotalDeductions = decimal.Zero
	run.TotalTax = decimal.Zero
	run.TotalInsurance = decimal.Zero
	run.TotalPenalties = decimal.Zero
	run.TotalOvertime = decimal.Zero
	run.TotalRefunds = decimal.Zero
	run.TotalBonuses = decimal.Zero
	run.TotalBenefits = decimal.Zero
	run.TotalNetPay = decimal.Zero
}
