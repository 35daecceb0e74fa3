package payroll

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianhr/payroll-backend-go/internal/domain/employee"
	"github.com/meridianhr/payroll-backend-go/internal/domain/payconfig"
	"github.com/meridianhr/payroll-backend-go/internal/domain/payroll"
	"github.com/meridianhr/payroll-backend-go/internal/domain/user"
)

var (
	specialist = Actor{UserID: "user-spec", Role: user.RolePayrollSpecialist}
	manager    = Actor{UserID: "user-mgr", Role: user.RolePayrollManager}
	finance    = Actor{UserID: "user-fin", Role: user.RoleFinanceStaff}
)

type serviceHarness struct {
	svc      *Service
	runs     *fakeRunRepo
	details  *fakeDetailRepo
	payslips *fakePayslipRepo
}

func newServiceHarness(roster []employee.Employee, runs ...*payroll.PayrollRun) *serviceHarness {
	runRepo := newFakeRunRepo(runs...)
	details := &fakeDetailRepo{}
	payslips := &fakePayslipRepo{}
	calc := NewCalculator(&fakeAttendance{}, &fakeLeave{}, &fakePenaltyLedger{}, &fakeRefundLedger{},
		newFakeSideFundRepo(), details, payslips, StandardRates{}, testLogger())
	employees := &fakeEmployeeRepo{
		ActiveByDepartmentFunc: func(ctx context.Context, department string) ([]employee.Employee, employee.SelectionMatch, error) {
			return roster, employee.MatchedByID, nil
		},
	}
	config := &fakeConfigRepo{
		SnapshotFunc: func(ctx context.Context, entity string, period time.Time) (payconfig.Snapshot, error) {
			return flatTaxSnapshot(), nil
		},
	}
	agg := NewAggregator(calc, employees, config, details, passthroughTransactor, 2, 100, testLogger())
	svc := NewService(runRepo, details, payslips, agg, passthroughTransactor, testLogger())
	return &serviceHarness{svc: svc, runs: runRepo, details: details, payslips: payslips}
}

func draftRun() *payroll.PayrollRun {
	run := juneRun()
	run.Status = payroll.RunStatusDraft
	run.CreatedBy = specialist.UserID
	return run
}

func TestCreateRunRequiresSpecialist(t *testing.T) {
	h := newServiceHarness(nil)
	_, err := h.svc.CreateRun(context.Background(), manager, payroll.CreateRunRequest{
		RunLabel: "PR-2026-07", Entity: "HQ", Period: "2026-07",
	})
	assert.ErrorIs(t, err, user.ErrSpecialistAccessRequired)
}

func TestCreateRunRejectsDuplicatePeriod(t *testing.T) {
	h := newServiceHarness(nil, draftRun())
	_, err := h.svc.CreateRun(context.Background(), specialist, payroll.CreateRunRequest{
		RunLabel: "PR-2026-06-b", Entity: "HQ", Period: "2026-06",
	})
	assert.ErrorIs(t, err, payroll.ErrDuplicatePeriod)
}

func TestCreateRunAllowsPeriodAfterRejection(t *testing.T) {
	rejected := draftRun()
	rejected.Status = payroll.RunStatusRejected
	h := newServiceHarness(nil, rejected)

	run, err := h.svc.CreateRun(context.Background(), specialist, payroll.CreateRunRequest{
		RunLabel: "PR-2026-06-retry", Entity: "HQ", Period: "2026-06",
	})
	require.NoError(t, err)
	assert.Equal(t, payroll.RunStatusDraft, run.Status)
	assert.Equal(t, time.June, run.PeriodStart.Month())
	assert.Equal(t, 30, run.PeriodEnd.Day())
}

func TestSubmitForReviewProcessesRun(t *testing.T) {
	roster := []employee.Employee{rosterEmployee("emp-1", 6000)}
	h := newServiceHarness(roster, draftRun())

	run, err := h.svc.SubmitForReview(context.Background(), specialist, draftRun().ID)
	require.NoError(t, err)

	assert.Equal(t, payroll.RunStatusUnderReview, run.Status)
	assert.Equal(t, 1, run.ProcessedCount)
	assert.True(t, run.TotalNetPay.Equal(money(5100)), "netPay = %s", run.TotalNetPay)
	require.NotNil(t, run.SubmittedBy)
	assert.Equal(t, specialist.UserID, *run.SubmittedBy)

	stored, err := h.runs.GetByID(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, payroll.RunStatusUnderReview, stored.Status)
	assert.True(t, stored.TotalNetPay.Equal(money(5100)))
}

func TestSubmitForReviewRejectsNonDraft(t *testing.T) {
	run := draftRun()
	run.Status = payroll.RunStatusLocked
	h := newServiceHarness(nil, run)

	_, err := h.svc.SubmitForReview(context.Background(), specialist, run.ID)
	assert.ErrorIs(t, err, payroll.ErrInvalidRunStatus)
}

func TestSubmitForReviewLosesConcurrentRace(t *testing.T) {
	run := draftRun()
	h := newServiceHarness(nil, run)
	h.runs.UpdateStatusFunc = func(ctx context.Context, id string, from, to payroll.RunStatus, r *payroll.PayrollRun) error {
		return payroll.ErrRunStateChanged
	}

	_, err := h.svc.SubmitForReview(context.Background(), specialist, run.ID)
	assert.ErrorIs(t, err, payroll.ErrRunStateChanged)
}

func TestSubmitForReviewRollsBackOnProcessingFailure(t *testing.T) {
	roster := []employee.Employee{rosterEmployee("emp-1", 6000)}
	run := draftRun()
	h := newServiceHarness(roster, run)

	// Any detail write fails, including the degenerate audit row, so the
	// whole processing attempt errors out.
	h.details.CreateFunc = func(ctx context.Context, detail *payroll.EmployeePayrollDetail) error {
		return assert.AnError
	}

	_, err := h.svc.SubmitForReview(context.Background(), specialist, run.ID)
	require.Error(t, err)

	stored, getErr := h.runs.GetByID(context.Background(), run.ID)
	require.NoError(t, getErr)
	assert.Equal(t, payroll.RunStatusDraft, stored.Status)
	assert.Equal(t, 1, stored.FailedCount)
}

func TestManagerApprovalTransitions(t *testing.T) {
	run := draftRun()
	run.Status = payroll.RunStatusUnderReview
	h := newServiceHarness(nil, run)

	approved, err := h.svc.ApproveByManager(context.Background(), manager, run.ID)
	require.NoError(t, err)
	assert.Equal(t, payroll.RunStatusPendingFinanceApproval, approved.Status)
	require.NotNil(t, approved.ManagerApprovedBy)
	assert.Equal(t, manager.UserID, *approved.ManagerApprovedBy)
}

func TestManagerApprovalStatusCheckedBeforeIdentity(t *testing.T) {
	// A manager who also created the run, approving a DRAFT: the state
	// conflict is reported, not the self-approval.
	run := draftRun()
	run.CreatedBy = manager.UserID
	h := newServiceHarness(nil, run)

	_, err := h.svc.ApproveByManager(context.Background(), manager, run.ID)
	assert.ErrorIs(t, err, payroll.ErrInvalidRunStatus)
}

func TestManagerCannotApproveOwnRun(t *testing.T) {
	run := draftRun()
	run.Status = payroll.RunStatusUnderReview
	run.CreatedBy = manager.UserID
	h := newServiceHarness(nil, run)

	_, err := h.svc.ApproveByManager(context.Background(), manager, run.ID)
	assert.ErrorIs(t, err, user.ErrSelfApproval)
}

func TestFinanceApprovalMarksPayslipsPaid(t *testing.T) {
	run := draftRun()
	run.Status = payroll.RunStatusPendingFinanceApproval
	run.ManagerApprovedBy = strptr(manager.UserID)
	h := newServiceHarness(nil, run)
	require.NoError(t, h.payslips.Create(context.Background(), &payroll.PaySlip{
		ID: "slip-1", RunID: run.ID, EmployeeID: "emp-1",
		PaymentStatus: payroll.PaymentStatusPending,
	}))

	approved, err := h.svc.ApproveByFinance(context.Background(), finance, run.ID)
	require.NoError(t, err)
	assert.Equal(t, payroll.RunStatusApproved, approved.Status)

	slip, err := h.payslips.GetByID(context.Background(), "slip-1")
	require.NoError(t, err)
	assert.Equal(t, payroll.PaymentStatusPaid, slip.PaymentStatus)
	assert.NotNil(t, slip.PaidAt)
}

func TestFinanceApproverMustDifferFromManager(t *testing.T) {
	run := draftRun()
	run.Status = payroll.RunStatusPendingFinanceApproval
	run.ManagerApprovedBy = strptr(finance.UserID)
	h := newServiceHarness(nil, run)

	_, err := h.svc.ApproveByFinance(context.Background(), finance, run.ID)
	assert.ErrorIs(t, err, user.ErrDuplicateApprover)
}

func TestRejectRequiresReason(t *testing.T) {
	run := draftRun()
	h := newServiceHarness(nil, run)

	_, err := h.svc.Reject(context.Background(), specialist, run.ID, payroll.RejectRunRequest{})
	require.Error(t, err)
	assert.NotErrorIs(t, err, payroll.ErrInvalidRunStatus)
}

func TestRejectRoleDependsOnStatus(t *testing.T) {
	req := payroll.RejectRunRequest{Reason: "numbers look off"}

	t.Run("finance cannot reject a review", func(t *testing.T) {
		run := draftRun()
		run.Status = payroll.RunStatusUnderReview
		h := newServiceHarness(nil, run)
		_, err := h.svc.Reject(context.Background(), finance, run.ID, req)
		assert.ErrorIs(t, err, user.ErrSpecialistAccessRequired)
	})

	t.Run("specialist cannot reject at the finance gate", func(t *testing.T) {
		run := draftRun()
		run.Status = payroll.RunStatusPendingFinanceApproval
		h := newServiceHarness(nil, run)
		_, err := h.svc.Reject(context.Background(), specialist, run.ID, req)
		assert.ErrorIs(t, err, user.ErrFinanceAccessRequired)
	})

	t.Run("finance rejects at the finance gate", func(t *testing.T) {
		run := draftRun()
		run.Status = payroll.RunStatusPendingFinanceApproval
		h := newServiceHarness(nil, run)
		rejected, err := h.svc.Reject(context.Background(), finance, run.ID, req)
		require.NoError(t, err)
		assert.Equal(t, payroll.RunStatusRejected, rejected.Status)
		require.NotNil(t, rejected.RejectionReason)
		assert.Equal(t, req.Reason, *rejected.RejectionReason)
	})

	t.Run("approved runs cannot be rejected", func(t *testing.T) {
		run := draftRun()
		run.Status = payroll.RunStatusApproved
		h := newServiceHarness(nil, run)
		_, err := h.svc.Reject(context.Background(), finance, run.ID, req)
		assert.ErrorIs(t, err, payroll.ErrInvalidRunStatus)
	})
}

func TestReopenClearsDetailsAndPayslips(t *testing.T) {
	run := draftRun()
	run.Status = payroll.RunStatusRejected
	run.ProcessedCount = 3
	h := newServiceHarness(nil, run)
	require.NoError(t, h.details.Create(context.Background(), &payroll.EmployeePayrollDetail{ID: "d-1", RunID: run.ID}))
	require.NoError(t, h.payslips.Create(context.Background(), &payroll.PaySlip{ID: "s-1", RunID: run.ID}))

	reopened, err := h.svc.Reopen(context.Background(), specialist, run.ID)
	require.NoError(t, err)
	assert.Equal(t, payroll.RunStatusDraft, reopened.Status)
	assert.Equal(t, 0, reopened.ProcessedCount)

	remaining, err := h.details.ListByRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Empty(t, remaining)
	slips, err := h.payslips.ListByRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Empty(t, slips)
}

func TestFreezeAndUnfreeze(t *testing.T) {
	run := draftRun()
	run.Status = payroll.RunStatusApproved
	h := newServiceHarness(nil, run)

	locked, err := h.svc.Freeze(context.Background(), manager, run.ID)
	require.NoError(t, err)
	assert.Equal(t, payroll.RunStatusLocked, locked.Status)

	_, err = h.svc.Unfreeze(context.Background(), manager, run.ID, payroll.UnlockRunRequest{})
	require.Error(t, err, "unlock without a reason must fail")

	unlocked, err := h.svc.Unfreeze(context.Background(), manager, run.ID, payroll.UnlockRunRequest{Reason: "correction for emp-2"})
	require.NoError(t, err)
	assert.Equal(t, payroll.RunStatusUnlocked, unlocked.Status)
	require.NotNil(t, unlocked.UnlockReason)

	relocked, err := h.svc.Freeze(context.Background(), manager, run.ID)
	require.NoError(t, err)
	assert.Equal(t, payroll.RunStatusLocked, relocked.Status)
}

func TestGeneratePayslipsPreservesPaidStatus(t *testing.T) {
	approvedAt := time.Date(2026, 7, 2, 9, 0, 0, 0, time.UTC)
	run := draftRun()
	run.Status = payroll.RunStatusApproved
	run.FinanceApprovedAt = &approvedAt
	h := newServiceHarness(nil, run)
	require.NoError(t, h.details.Create(context.Background(), &payroll.EmployeePayrollDetail{
		ID: "d-1", RunID: run.ID, EmployeeID: "emp-1",
		BaseSalary: money(6000), GrossSalary: money(6000),
		NetSalary: money(5100), NetPay: money(5100),
	}))
	require.NoError(t, h.payslips.Create(context.Background(), &payroll.PaySlip{
		ID: "old-slip", RunID: run.ID, EmployeeID: "emp-1",
		PaymentStatus: payroll.PaymentStatusPaid,
	}))

	slips, err := h.svc.GeneratePayslips(context.Background(), finance, run.ID)
	require.NoError(t, err)
	require.Len(t, slips, 1)
	assert.NotEqual(t, "old-slip", slips[0].ID)
	assert.Equal(t, payroll.PaymentStatusPaid, slips[0].PaymentStatus)
	require.NotNil(t, slips[0].PaidAt)
	assert.True(t, slips[0].PaidAt.Equal(approvedAt))
}

func TestGeneratePayslipsRequiresApprovedRun(t *testing.T) {
	run := draftRun()
	run.Status = payroll.RunStatusUnderReview
	h := newServiceHarness(nil, run)

	_, err := h.svc.GeneratePayslips(context.Background(), finance, run.ID)
	assert.ErrorIs(t, err, payroll.ErrInvalidRunStatus)
}

func TestEmployeeCanOnlyReadOwnPayslip(t *testing.T) {
	h := newServiceHarness(nil)
	require.NoError(t, h.payslips.Create(context.Background(), &payroll.PaySlip{
		ID: "slip-1", RunID: "run-1", EmployeeID: "emp-1",
	}))

	self := Actor{UserID: "u-1", Role: user.RoleEmployee, EmployeeID: strptr("emp-1")}
	slip, err := h.svc.GetPayslip(context.Background(), self, "slip-1")
	require.NoError(t, err)
	assert.Equal(t, "emp-1", slip.EmployeeID)

	other := Actor{UserID: "u-2", Role: user.RoleEmployee, EmployeeID: strptr("emp-2")}
	_, err = h.svc.GetPayslip(context.Background(), other, "slip-1")
	assert.ErrorIs(t, err, payroll.ErrPayslipNotFound)

	_, err = h.svc.GetPayslip(context.Background(), finance, "slip-1")
	assert.NoError(t, err)
}

func TestExportPayslipsCSV(t *testing.T) {
	run := draftRun()
	run.Status = payroll.RunStatusApproved
	approvedAt := time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)
	run.FinanceApprovedAt = &approvedAt
	h := newServiceHarness(nil, run)
	require.NoError(t, h.details.Create(context.Background(), &payroll.EmployeePayrollDetail{
		ID: "d-1", RunID: run.ID, EmployeeID: "emp-1", EmployeeName: "Ari Wibowo",
		BaseSalary: money(6000), GrossSalary: money(5600),
		Deductions: payroll.DeductionsBreakdown{Tax: money(600), Insurance: money(280)},
		NetSalary:  money(4720), NetPay: money(4720),
		BankStatus: payroll.BankStatusValid,
	}))

	out, err := h.svc.ExportPayslipsCSV(context.Background(), run.ID)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "run_label,employee_id,employee_name,gross,tax,insurance,penalties,net_pay,bank_status,exceptions", lines[0])
	assert.Contains(t, lines[1], "Ari Wibowo")
	assert.Contains(t, lines[1], "4720.00")
	assert.Contains(t, lines[1], "valid")
}

func TestExportPayslipsCSVRequiresFinanceApproval(t *testing.T) {
	run := draftRun()
	h := newServiceHarness(nil, run)

	_, err := h.svc.ExportPayslipsCSV(context.Background(), run.ID)
	assert.ErrorIs(t, err, payroll.ErrRunNotPaid)
}
