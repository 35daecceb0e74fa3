package payroll

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridianhr/payroll-backend-go/internal/domain/attendance"
	"github.com/meridianhr/payroll-backend-go/internal/domain/employee"
	"github.com/meridianhr/payroll-backend-go/internal/domain/payconfig"
	"github.com/meridianhr/payroll-backend-go/internal/domain/payroll"
	"github.com/meridianhr/payroll-backend-go/internal/domain/sidefund"
)

// Fakes are function-field stubs: set only what a test needs, leave the
// rest to harmless defaults.

type fakeAttendance struct {
	ForPeriodFunc func(ctx context.Context, employeeID string, start, end time.Time) (attendance.Summary, error)
}

func (f *fakeAttendance) ForPeriod(ctx context.Context, employeeID string, start, end time.Time) (attendance.Summary, error) {
	if f.ForPeriodFunc != nil {
		return f.ForPeriodFunc(ctx, employeeID, start, end)
	}
	return attendance.Summary{EmployeeID: employeeID}, nil
}

type fakeLeave struct {
	UnpaidDaysFunc func(ctx context.Context, employeeID string, start, end time.Time) (int, error)
}

func (f *fakeLeave) UnpaidDays(ctx context.Context, employeeID string, start, end time.Time) (int, error) {
	if f.UnpaidDaysFunc != nil {
		return f.UnpaidDaysFunc(ctx, employeeID, start, end)
	}
	return 0, nil
}

type fakePenaltyLedger struct {
	ApprovedForPeriodFunc func(ctx context.Context, employeeID string, start, end time.Time) ([]payroll.MisconductPenalty, error)
}

func (f *fakePenaltyLedger) ApprovedForPeriod(ctx context.Context, employeeID string, start, end time.Time) ([]payroll.MisconductPenalty, error) {
	if f.ApprovedForPeriodFunc != nil {
		return f.ApprovedForPeriodFunc(ctx, employeeID, start, end)
	}
	return nil, nil
}

// fakeRefundLedger keeps open refunds in memory and records settlement the
// same way the SQL ledger does.
type fakeRefundLedger struct {
	mu      sync.Mutex
	open    []payroll.Refund
	settled map[string]string // refund id -> paying run id

	UnsettledForEmployeeFunc func(ctx context.Context, employeeID string, asOf time.Time) ([]payroll.Refund, error)
	MarkSettledFunc          func(ctx context.Context, refundIDs []string, runID string) error
}

func newFakeRefundLedger(refunds ...payroll.Refund) *fakeRefundLedger {
	return &fakeRefundLedger{open: refunds, settled: make(map[string]string)}
}

func (f *fakeRefundLedger) UnsettledForEmployee(ctx context.Context, employeeID string, asOf time.Time) ([]payroll.Refund, error) {
	if f.UnsettledForEmployeeFunc != nil {
		return f.UnsettledForEmployeeFunc(ctx, employeeID, asOf)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []payroll.Refund
	for _, r := range f.open {
		if r.EmployeeID != employeeID || r.ApprovedAt.After(asOf) {
			continue
		}
		if _, ok := f.settled[r.ID]; ok {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeRefundLedger) MarkSettled(ctx context.Context, refundIDs []string, runID string) error {
	if f.MarkSettledFunc != nil {
		return f.MarkSettledFunc(ctx, refundIDs, runID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.settled == nil {
		f.settled = make(map[string]string)
	}
	for _, id := range refundIDs {
		if _, ok := f.settled[id]; !ok {
			f.settled[id] = runID
		}
	}
	return nil
}

// fakeSideFundRepo keeps records in memory and implements the conditional
// claim the same way the SQL repository does.
type fakeSideFundRepo struct {
	mu      sync.Mutex
	records map[string]*sidefund.Record

	ClaimFunc func(ctx context.Context, id, runID string, paidAt time.Time) (bool, error)
}

func newFakeSideFundRepo(records ...*sidefund.Record) *fakeSideFundRepo {
	repo := &fakeSideFundRepo{records: make(map[string]*sidefund.Record)}
	for _, r := range records {
		repo.records[r.ID] = r
	}
	return repo
}

func (f *fakeSideFundRepo) Create(ctx context.Context, record *sidefund.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[record.ID] = record
	return nil
}

func (f *fakeSideFundRepo) GetByID(ctx context.Context, id string) (*sidefund.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.records[id]
	if !ok {
		return nil, sidefund.ErrRecordNotFound
	}
	copied := *record
	return &copied, nil
}

func (f *fakeSideFundRepo) ListPending(ctx context.Context, limit, offset int) ([]sidefund.Record, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var pending []sidefund.Record
	for _, r := range f.records {
		if r.Status == sidefund.StatusPending {
			pending = append(pending, *r)
		}
	}
	return pending, len(pending), nil
}

func (f *fakeSideFundRepo) ApprovedForEmployee(ctx context.Context, employeeID string) ([]sidefund.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var approved []sidefund.Record
	for _, r := range f.records {
		if r.EmployeeID == employeeID && r.Status == sidefund.StatusApproved {
			approved = append(approved, *r)
		}
	}
	return approved, nil
}

func (f *fakeSideFundRepo) ExistsForTrigger(ctx context.Context, employeeID, triggerKey string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.records {
		if r.EmployeeID == employeeID && r.TriggerKey == triggerKey {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeSideFundRepo) UpdateStatus(ctx context.Context, id string, from, to sidefund.Status, approverID *string, rejectionReason *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.records[id]
	if !ok || record.Status != from {
		return sidefund.ErrRecordNotPending
	}
	record.Status = to
	record.ApproverID = approverID
	record.RejectionReason = rejectionReason
	return nil
}

func (f *fakeSideFundRepo) Claim(ctx context.Context, id, runID string, paidAt time.Time) (bool, error) {
	if f.ClaimFunc != nil {
		return f.ClaimFunc(ctx, id, runID, paidAt)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.records[id]
	if !ok || record.Status != sidefund.StatusApproved {
		return false, nil
	}
	record.Status = sidefund.StatusPaid
	record.PaidInRunID = &runID
	return true, nil
}

func (f *fakeSideFundRepo) UpdatePaymentDate(ctx context.Context, id string, paymentDate time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.records[id]
	if !ok {
		return sidefund.ErrRecordNotFound
	}
	record.PaymentDate = &paymentDate
	return nil
}

type fakeDetailRepo struct {
	mu      sync.Mutex
	details []payroll.EmployeePayrollDetail

	CreateFunc                func(ctx context.Context, detail *payroll.EmployeePayrollDetail) error
	MostRecentForEmployeeFunc func(ctx context.Context, employeeID string, before time.Time) (*payroll.EmployeePayrollDetail, error)
	CountByRunFunc            func(ctx context.Context, runID string) (int, error)
}

func (f *fakeDetailRepo) Create(ctx context.Context, detail *payroll.EmployeePayrollDetail) error {
	if f.CreateFunc != nil {
		return f.CreateFunc(ctx, detail)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.details = append(f.details, *detail)
	return nil
}

func (f *fakeDetailRepo) GetByID(ctx context.Context, id string) (*payroll.EmployeePayrollDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.details {
		if f.details[i].ID == id {
			copied := f.details[i]
			return &copied, nil
		}
	}
	return nil, payroll.ErrDetailNotFound
}

func (f *fakeDetailRepo) ListByRun(ctx context.Context, runID string) ([]payroll.EmployeePayrollDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []payroll.EmployeePayrollDetail
	for _, d := range f.details {
		if d.RunID == runID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeDetailRepo) CountByRun(ctx context.Context, runID string) (int, error) {
	if f.CountByRunFunc != nil {
		return f.CountByRunFunc(ctx, runID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, d := range f.details {
		if d.RunID == runID {
			count++
		}
	}
	return count, nil
}

func (f *fakeDetailRepo) DeleteByRun(ctx context.Context, runID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.details[:0]
	for _, d := range f.details {
		if d.RunID != runID {
			kept = append(kept, d)
		}
	}
	f.details = kept
	return nil
}

func (f *fakeDetailRepo) MostRecentForEmployee(ctx context.Context, employeeID string, before time.Time) (*payroll.EmployeePayrollDetail, error) {
	if f.MostRecentForEmployeeFunc != nil {
		return f.MostRecentForEmployeeFunc(ctx, employeeID, before)
	}
	return nil, nil
}

type fakePayslipRepo struct {
	mu    sync.Mutex
	slips []payroll.PaySlip

	CreateFunc      func(ctx context.Context, slip *payroll.PaySlip) error
	MarkRunPaidFunc func(ctx context.Context, runID string, paidAt time.Time) error
}

func (f *fakePayslipRepo) Create(ctx context.Context, slip *payroll.PaySlip) error {
	if f.CreateFunc != nil {
		return f.CreateFunc(ctx, slip)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.slips = append(f.slips, *slip)
	return nil
}

func (f *fakePayslipRepo) GetByID(ctx context.Context, id string) (*payroll.PaySlip, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.slips {
		if f.slips[i].ID == id {
			copied := f.slips[i]
			return &copied, nil
		}
	}
	return nil, payroll.ErrPayslipNotFound
}

func (f *fakePayslipRepo) ListByRun(ctx context.Context, runID string) ([]payroll.PaySlip, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []payroll.PaySlip
	for _, s := range f.slips {
		if s.RunID == runID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakePayslipRepo) ListByEmployee(ctx context.Context, employeeID string, limit, offset int) ([]payroll.PaySlip, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []payroll.PaySlip
	for _, s := range f.slips {
		if s.EmployeeID == employeeID {
			out = append(out, s)
		}
	}
	return out, len(out), nil
}

func (f *fakePayslipRepo) DeleteByRun(ctx context.Context, runID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.slips[:0]
	for _, s := range f.slips {
		if s.RunID != runID {
			kept = append(kept, s)
		}
	}
	f.slips = kept
	return nil
}

func (f *fakePayslipRepo) MarkRunPaid(ctx context.Context, runID string, paidAt time.Time) error {
	if f.MarkRunPaidFunc != nil {
		return f.MarkRunPaidFunc(ctx, runID, paidAt)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.slips {
		if f.slips[i].RunID == runID && f.slips[i].PaymentStatus == payroll.PaymentStatusPending {
			f.slips[i].PaymentStatus = payroll.PaymentStatusPaid
			f.slips[i].PaidAt = &paidAt
		}
	}
	return nil
}

type fakeEmployeeRepo struct {
	ActiveByDepartmentFunc func(ctx context.Context, department string) ([]employee.Employee, employee.SelectionMatch, error)
	GetByIDFunc            func(ctx context.Context, id string) (*employee.Employee, error)
}

func (f *fakeEmployeeRepo) GetByID(ctx context.Context, id string) (*employee.Employee, error) {
	if f.GetByIDFunc != nil {
		return f.GetByIDFunc(ctx, id)
	}
	return nil, employee.ErrEmployeeNotFound
}

func (f *fakeEmployeeRepo) ActiveByDepartment(ctx context.Context, department string) ([]employee.Employee, employee.SelectionMatch, error) {
	if f.ActiveByDepartmentFunc != nil {
		return f.ActiveByDepartmentFunc(ctx, department)
	}
	return nil, employee.NoMatchAllActive, nil
}

type fakeConfigRepo struct {
	SnapshotFunc func(ctx context.Context, entity string, period time.Time) (payconfig.Snapshot, error)
}

func (f *fakeConfigRepo) Snapshot(ctx context.Context, entity string, period time.Time) (payconfig.Snapshot, error) {
	if f.SnapshotFunc != nil {
		return f.SnapshotFunc(ctx, entity, period)
	}
	return payconfig.Snapshot{
		EmployeeAllowances: map[string][]payconfig.Allowance{},
		PayGrades:          map[string]payconfig.PayGrade{},
	}, nil
}

type fakeRunRepo struct {
	mu   sync.Mutex
	runs map[string]*payroll.PayrollRun

	ExistsForPeriodFunc func(ctx context.Context, entity string, periodStart time.Time, excludeRunID string) (bool, error)
	UpdateStatusFunc    func(ctx context.Context, id string, from, to payroll.RunStatus, run *payroll.PayrollRun) error
}

func newFakeRunRepo(runs ...*payroll.PayrollRun) *fakeRunRepo {
	repo := &fakeRunRepo{runs: make(map[string]*payroll.PayrollRun)}
	for _, r := range runs {
		repo.runs[r.ID] = r
	}
	return repo
}

func (f *fakeRunRepo) Create(ctx context.Context, run *payroll.PayrollRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *run
	f.runs[run.ID] = &copied
	return nil
}

func (f *fakeRunRepo) GetByID(ctx context.Context, id string) (*payroll.PayrollRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[id]
	if !ok {
		return nil, payroll.ErrRunNotFound
	}
	copied := *run
	return &copied, nil
}

func (f *fakeRunRepo) List(ctx context.Context, entity string, statuses []payroll.RunStatus, limit, offset int) ([]payroll.PayrollRun, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []payroll.PayrollRun
	for _, r := range f.runs {
		out = append(out, *r)
	}
	return out, len(out), nil
}

func (f *fakeRunRepo) ExistsForPeriod(ctx context.Context, entity string, periodStart time.Time, excludeRunID string) (bool, error) {
	if f.ExistsForPeriodFunc != nil {
		return f.ExistsForPeriodFunc(ctx, entity, periodStart, excludeRunID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.runs {
		if r.Entity == entity &&
			r.PeriodStart.Year() == periodStart.Year() && r.PeriodStart.Month() == periodStart.Month() &&
			r.Status != payroll.RunStatusRejected && r.ID != excludeRunID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRunRepo) UpdateStatus(ctx context.Context, id string, from, to payroll.RunStatus, run *payroll.PayrollRun) error {
	if f.UpdateStatusFunc != nil {
		return f.UpdateStatusFunc(ctx, id, from, to, run)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.runs[id]
	if !ok {
		return payroll.ErrRunNotFound
	}
	if stored.Status != from {
		return payroll.ErrRunStateChanged
	}
	copied := *run
	copied.Status = to
	f.runs[id] = &copied
	return nil
}

func (f *fakeRunRepo) UpdateTotals(ctx context.Context, run *payroll.PayrollRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if stored, ok := f.runs[run.ID]; ok {
		status := stored.Status
		copied := *run
		copied.Status = status
		f.runs[run.ID] = &copied
	}
	return nil
}

func passthroughTransactor(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func money(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func strptr(s string) *string {
	return &s
}

func decptr(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}
