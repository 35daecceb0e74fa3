package payroll

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridianhr/payroll-backend-go/internal/domain/attendance"
	"github.com/meridianhr/payroll-backend-go/internal/domain/employee"
	"github.com/meridianhr/payroll-backend-go/internal/domain/leave"
	"github.com/meridianhr/payroll-backend-go/internal/domain/payconfig"
	"github.com/meridianhr/payroll-backend-go/internal/domain/payroll"
	"github.com/meridianhr/payroll-backend-go/internal/domain/sidefund"
)

// fallbackBaseSalary is used only when an employee has no approved pay grade,
// no salary override, and no configured minimum wage.
var fallbackBaseSalary = decimal.NewFromInt(4500000)

var salarySpikeThreshold = decimal.NewFromFloat(0.25)

// Calculator turns one employee plus the period's external summaries into one
// EmployeePayrollDetail and one PaySlip. It holds no run-lifecycle knowledge;
// the Aggregator owns transactions and failure isolation around it.
type Calculator struct {
	attendance attendance.Provider
	leave      leave.Provider
	penalties  payroll.PenaltyLedger
	refunds    payroll.RefundLedger
	sideFunds  sidefund.Repository
	details    payroll.DetailRepository
	payslips   payroll.PayslipRepository
	rates      RateCalculator
	logger     *slog.Logger
}

func NewCalculator(
	attendanceProvider attendance.Provider,
	leaveProvider leave.Provider,
	penaltyLedger payroll.PenaltyLedger,
	refundLedger payroll.RefundLedger,
	sideFundRepo sidefund.Repository,
	detailRepo payroll.DetailRepository,
	payslipRepo payroll.PayslipRepository,
	rates RateCalculator,
	logger *slog.Logger,
) *Calculator {
	if rates == nil {
		rates = StandardRates{}
	}
	return &Calculator{
		attendance: attendanceProvider,
		leave:      leaveProvider,
		penalties:  penaltyLedger,
		refunds:    refundLedger,
		sideFunds:  sideFundRepo,
		details:    detailRepo,
		payslips:   payslipRepo,
		rates:      rates,
		logger:     logger,
	}
}

// CalcResult carries the persisted outputs plus the irregularities the
// Aggregator folds into the run.
type CalcResult struct {
	Detail         *payroll.EmployeePayrollDetail
	PaySlip        *payroll.PaySlip
	Irregularities []payroll.Irregularity
}

// Process runs the full per-employee algorithm and persists the detail and
// payslip. Side-fund claims happen through the same context so the caller's
// transaction covers them together with the writes.
func (c *Calculator) Process(ctx context.Context, emp *employee.Employee, run *payroll.PayrollRun, snapshot payconfig.Snapshot) (*CalcResult, error) {
	if !emp.IsActive() && !emp.SeparatedDuring(run.PeriodStart, run.PeriodEnd) {
		return nil, fmt.Errorf("%w: employee %s", employee.ErrEmployeeInactive, emp.ID)
	}

	var irregularities []payroll.Irregularity
	var exceptionCodes []string

	baseSalary, baseReason := c.resolveBaseSalary(emp, snapshot)

	grants := snapshot.AllowancesFor(emp.ID)
	allowanceTotal := payconfig.SumAllowances(grants)
	allowanceNames := payconfig.DescribeAllowances(grants)

	daysInPeriod := daysInclusive(run.PeriodStart, run.PeriodEnd)
	unpaidDays, err := c.leave.UnpaidDays(ctx, emp.ID, run.PeriodStart, run.PeriodEnd)
	if err != nil {
		return nil, fmt.Errorf("%w: leave summary for employee %s: %v", payroll.ErrDependencyUnavailable, emp.ID, err)
	}
	daysWorked := c.prorationDays(emp, run, daysInPeriod, unpaidDays)

	if err := c.autoCreateSideFunds(ctx, emp, run, snapshot); err != nil {
		return nil, err
	}

	summary, err := c.attendance.ForPeriod(ctx, emp.ID, run.PeriodStart, run.PeriodEnd)
	if err != nil {
		return nil, fmt.Errorf("%w: attendance summary for employee %s: %v", payroll.ErrDependencyUnavailable, emp.ID, err)
	}

	// Work-ratio proration takes precedence; day-ratio is the fallback when
	// no scheduled minutes were captured for the period. Multiplication
	// happens before division so exact fractions stay exact.
	fullPay := baseSalary.Add(allowanceTotal)
	var ratioNum, ratioDen decimal.Decimal
	if summary.HasRecords() {
		worked := summary.ActualWorkMinutes
		if worked > summary.ScheduledWorkMinutes {
			worked = summary.ScheduledWorkMinutes
		}
		ratioNum = decimal.NewFromInt(int64(worked))
		ratioDen = decimal.NewFromInt(int64(summary.ScheduledWorkMinutes))
	} else {
		ratioNum = decimal.NewFromInt(int64(daysWorked))
		ratioDen = decimal.NewFromInt(int64(daysInPeriod))
	}
	gross := fullPay.Mul(ratioNum).Div(ratioDen)

	taxRule, taxMatch := snapshot.MatchTaxRule(baseSalary)
	var tax decimal.Decimal
	var taxReason string
	switch taxMatch {
	case payconfig.TaxMatchedByBand:
		tax = baseSalary.Mul(taxRule.RatePct).Div(decimal.NewFromInt(100))
		taxReason = fmt.Sprintf("%s (%s%%)", taxRule.Name, taxRule.RatePct.String())
	case payconfig.TaxFallbackFirstApproved:
		tax = baseSalary.Mul(taxRule.RatePct).Div(decimal.NewFromInt(100))
		taxReason = fmt.Sprintf("%s (%s%%, no band matched)", taxRule.Name, taxRule.RatePct.String())
		c.logger.Warn("tax rule fallback to first approved rule",
			slog.String("employee_id", emp.ID),
			slog.String("rule", taxRule.Name))
	default:
		tax = decimal.Zero
		taxReason = "no approved tax rule"
		c.logger.Warn("no tax rule available, applying zero tax",
			slog.String("employee_id", emp.ID))
	}

	var insurance decimal.Decimal
	insuranceReason := "no insurance bracket matched"
	if bracket, ok := snapshot.MatchInsuranceBracket(baseSalary); ok {
		insurance = gross.Mul(bracket.EmployeeRatePct).Div(decimal.NewFromInt(100))
		insuranceReason = fmt.Sprintf("%s (%s%%)", bracket.Name, bracket.EmployeeRatePct.String())
	}

	rate := minuteRate(baseSalary, summary.WorkingDays, daysInPeriod)
	penalties, err := c.buildPenalties(ctx, emp, run, summary, rate)
	if err != nil {
		return nil, err
	}

	overtime := payroll.OvertimeDetails{
		Minutes: summary.OvertimeMinutes,
		Amount:  c.rates.OvertimePay(rate, summary.OvertimeMinutes),
	}
	if overtime.Minutes > 0 {
		overtime.Reason = fmt.Sprintf("%d overtime minutes at 150%%", overtime.Minutes)
	}

	refundTotal, refundIDs, err := c.collectRefunds(ctx, emp.ID, run.PeriodEnd)
	if err != nil {
		return nil, err
	}

	bonus, benefit, err := c.claimSideFunds(ctx, emp.ID, run)
	if err != nil {
		return nil, err
	}

	var unpaidLeaveNote string
	if unpaidDays > 0 {
		unpaidLeaveNote = fmt.Sprintf("%d unpaid leave days reduced proration", unpaidDays)
	}

	netSalary := gross.Sub(tax).Sub(insurance)
	netPay := netSalary.Sub(penalties.Total).Add(overtime.Amount).Add(refundTotal).Add(bonus).Add(benefit)

	// Wage-floor clamp wins over the negative clamp; an employee below both
	// thresholds is reported once, as a wage-floor irregularity.
	proratedMinWage := snapshot.MinimumWage.Mul(ratioNum).Div(ratioDen)
	if snapshot.MinimumWage.IsPositive() && netPay.LessThan(proratedMinWage) {
		irregularities = append(irregularities, payroll.Irregularity{
			EmployeeID:   emp.ID,
			EmployeeName: emp.FullName,
			Kind:         payroll.IrregularityBelowMinimumWage,
			Detail:       fmt.Sprintf("net pay %s raised to prorated minimum wage %s", netPay.StringFixed(2), proratedMinWage.StringFixed(2)),
		})
		exceptionCodes = append(exceptionCodes, payroll.ExceptionBelowMinimumWage)
		netPay = proratedMinWage
	} else if netPay.IsNegative() {
		irregularities = append(irregularities, payroll.Irregularity{
			EmployeeID:   emp.ID,
			EmployeeName: emp.FullName,
			Kind:         payroll.IrregularityNegativeNetPay,
			Detail:       fmt.Sprintf("net pay %s clamped to zero", netPay.StringFixed(2)),
		})
		exceptionCodes = append(exceptionCodes, payroll.ExceptionNegativeNetPay)
		netPay = decimal.Zero
	}

	bankStatus := payroll.BankStatusValid
	if emp.BankAccountNumber == nil || strings.TrimSpace(*emp.BankAccountNumber) == "" {
		bankStatus = payroll.BankStatusMissing
		irregularities = append(irregularities, payroll.Irregularity{
			EmployeeID:   emp.ID,
			EmployeeName: emp.FullName,
			Kind:         payroll.IrregularityMissingBank,
			Detail:       "no bank account on file",
		})
		exceptionCodes = append(exceptionCodes, payroll.ExceptionMissingBank)
	}

	if spike, prior := c.detectSalarySpike(ctx, emp.ID, baseSalary, run.PeriodStart); spike {
		irregularities = append(irregularities, payroll.Irregularity{
			EmployeeID:   emp.ID,
			EmployeeName: emp.FullName,
			Kind:         payroll.IrregularitySalarySpike,
			Detail:       fmt.Sprintf("base salary %s is more than 25%% above previous %s", baseSalary.StringFixed(2), prior.StringFixed(2)),
		})
		exceptionCodes = append(exceptionCodes, payroll.ExceptionSalarySpike)
	}

	var exceptions *string
	if len(exceptionCodes) > 0 {
		joined := strings.Join(exceptionCodes, "|")
		exceptions = &joined
	}

	now := time.Now()
	detail := &payroll.EmployeePayrollDetail{
		ID:             uuid.Must(uuid.NewV7()).String(),
		RunID:          run.ID,
		EmployeeID:     emp.ID,
		EmployeeName:   emp.FullName,
		BaseSalary:     baseSalary,
		BaseReason:     baseReason,
		Allowances:     allowanceTotal,
		AllowanceNames: allowanceNames,
		GrossSalary:    gross,
		Deductions: payroll.DeductionsBreakdown{
			Tax:             tax,
			TaxReason:       taxReason,
			Insurance:       insurance,
			InsuranceReason: insuranceReason,
			Penalties:       penalties.Total,
			UnpaidLeaveNote: unpaidLeaveNote,
			Total:           tax.Add(insurance).Add(penalties.Total),
		},
		Penalties: penalties,
		Overtime:  overtime,
		Attendance: payroll.AttendanceSnapshot{
			ActualWorkMinutes:    summary.ActualWorkMinutes,
			ScheduledWorkMinutes: summary.ScheduledWorkMinutes,
			MissingWorkMinutes:   summary.MissingWorkMinutes,
			OvertimeMinutes:      summary.OvertimeMinutes,
			LatenessMinutes:      summary.LatenessMinutes,
			WorkingDays:          summary.WorkingDays,
			UnpaidLeaveDays:      unpaidDays,
		},
		Refunds:    refundTotal,
		Bonus:      bonus,
		Benefit:    benefit,
		NetSalary:  netSalary,
		NetPay:     netPay,
		BankStatus: bankStatus,
		Exceptions: exceptions,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := c.details.Create(ctx, detail); err != nil {
		return nil, fmt.Errorf("create payroll detail for employee %s: %w", emp.ID, err)
	}

	slip := buildPaySlip(detail, run)
	if err := c.payslips.Create(ctx, slip); err != nil {
		return nil, fmt.Errorf("create payslip for employee %s: %w", emp.ID, err)
	}

	// Settled in the same transaction as the detail row, so a paid refund
	// never reappears in a later run.
	if len(refundIDs) > 0 {
		if err := c.refunds.MarkSettled(ctx, refundIDs, run.ID); err != nil {
			return nil, fmt.Errorf("settle refunds for employee %s: %w", emp.ID, err)
		}
	}

	return &CalcResult{Detail: detail, PaySlip: slip, Irregularities: irregularities}, nil
}

// resolveBaseSalary walks the fallback chain: approved pay grade, then
// employee-level override, then configured minimum wage, then a hard default.
func (c *Calculator) resolveBaseSalary(emp *employee.Employee, snapshot payconfig.Snapshot) (decimal.Decimal, string) {
	if emp.PayGradeID != nil {
		if grade, ok := snapshot.PayGrades[*emp.PayGradeID]; ok {
			return grade.BaseSalary, fmt.Sprintf("pay grade %s", grade.Name)
		}
	}
	if emp.BaseSalary != nil && emp.BaseSalary.IsPositive() {
		return *emp.BaseSalary, "employee salary override"
	}
	if snapshot.MinimumWage.IsPositive() {
		return snapshot.MinimumWage, "configured minimum wage"
	}
	return fallbackBaseSalary, "default base salary"
}

// prorationDays counts compensable calendar days: the period shortened by a
// mid-period hire or separation, minus unpaid leave days.
func (c *Calculator) prorationDays(emp *employee.Employee, run *payroll.PayrollRun, daysInPeriod, unpaidDays int) int {
	start := run.PeriodStart
	if emp.HiredDuring(run.PeriodStart, run.PeriodEnd) {
		start = emp.HireDate
	}
	end := run.PeriodEnd
	if emp.SeparatedDuring(run.PeriodStart, run.PeriodEnd) {
		end = *emp.SeparationDate
	}
	days := daysInclusive(start, end) - unpaidDays
	if days < 0 {
		days = 0
	}
	if days > daysInPeriod {
		days = daysInPeriod
	}
	return days
}

// autoCreateSideFunds opens pending side-fund records for a mid-period hire
// with a signing bonus on the offer, and for a mid-period separation when a
// benefit amount is configured. Both are keyed by a trigger so re-runs after
// rejection never duplicate them.
func (c *Calculator) autoCreateSideFunds(ctx context.Context, emp *employee.Employee, run *payroll.PayrollRun, snapshot payconfig.Snapshot) error {
	period := run.PeriodStart.Format("2006-01")

	if emp.HiredDuring(run.PeriodStart, run.PeriodEnd) && emp.OfferSigningBonus != nil && emp.OfferSigningBonus.IsPositive() {
		if err := c.createSideFundOnce(ctx, emp.ID, sidefund.KindSigningBonus, *emp.OfferSigningBonus,
			fmt.Sprintf("%s:%s", sidefund.KindSigningBonus, period)); err != nil {
			return err
		}
	}

	if emp.SeparatedDuring(run.PeriodStart, run.PeriodEnd) && snapshot.SeparationBenefit.IsPositive() {
		if err := c.createSideFundOnce(ctx, emp.ID, sidefund.KindSeparationBenefit, snapshot.SeparationBenefit,
			fmt.Sprintf("%s:%s", sidefund.KindSeparationBenefit, period)); err != nil {
			return err
		}
	}

	return nil
}

func (c *Calculator) createSideFundOnce(ctx context.Context, employeeID string, kind sidefund.Kind, amount decimal.Decimal, triggerKey string) error {
	exists, err := c.sideFunds.ExistsForTrigger(ctx, employeeID, triggerKey)
	if err != nil {
		return fmt.Errorf("check side fund trigger for employee %s: %w", employeeID, err)
	}
	if exists {
		return nil
	}
	now := time.Now()
	record := &sidefund.Record{
		ID:         uuid.Must(uuid.NewV7()).String(),
		EmployeeID: employeeID,
		Kind:       kind,
		Amount:     amount,
		Status:     sidefund.StatusPending,
		TriggerKey: triggerKey,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := c.sideFunds.Create(ctx, record); err != nil {
		return fmt.Errorf("create %s record for employee %s: %w", kind, employeeID, err)
	}
	c.logger.Info("side fund record opened",
		slog.String("employee_id", employeeID),
		slog.String("kind", string(kind)),
		slog.String("amount", amount.StringFixed(2)))
	return nil
}

func (c *Calculator) buildPenalties(ctx context.Context, emp *employee.Employee, run *payroll.PayrollRun, summary attendance.Summary, rate decimal.Decimal) (payroll.PenaltiesBreakdown, error) {
	var breakdown payroll.PenaltiesBreakdown

	ledger, err := c.penalties.ApprovedForPeriod(ctx, emp.ID, run.PeriodStart, run.PeriodEnd)
	if err != nil {
		return breakdown, fmt.Errorf("%w: penalty ledger for employee %s: %v", payroll.ErrDependencyUnavailable, emp.ID, err)
	}
	misconduct := decimal.Zero
	reasons := make([]string, 0, len(ledger))
	for _, p := range ledger {
		misconduct = misconduct.Add(p.Amount)
		reasons = append(reasons, p.Reason)
	}
	breakdown.Misconduct = payroll.PenaltyItem{Amount: misconduct, Reason: strings.Join(reasons, "; ")}

	missing := c.rates.MissingWorkPenalty(rate, summary.MissingWorkMinutes)
	if summary.MissingWorkMinutes > 0 {
		breakdown.MissingWork = payroll.PenaltyItem{
			Amount: missing,
			Reason: fmt.Sprintf("%d missing work minutes", summary.MissingWorkMinutes),
		}
	}

	late := c.rates.LatenessPenalty(rate, summary.LatenessMinutes)
	if summary.LatenessMinutes > 0 {
		breakdown.Lateness = payroll.PenaltyItem{
			Amount: late,
			Reason: fmt.Sprintf("%d lateness minutes at 50%%", summary.LatenessMinutes),
		}
	}

	breakdown.Total = misconduct.Add(missing).Add(late)
	return breakdown, nil
}

func (c *Calculator) collectRefunds(ctx context.Context, employeeID string, asOf time.Time) (decimal.Decimal, []string, error) {
	refunds, err := c.refunds.UnsettledForEmployee(ctx, employeeID, asOf)
	if err != nil {
		return decimal.Zero, nil, fmt.Errorf("%w: refund ledger for employee %s: %v", payroll.ErrDependencyUnavailable, employeeID, err)
	}
	total := decimal.Zero
	ids := make([]string, 0, len(refunds))
	for _, r := range refunds {
		total = total.Add(r.Amount)
		ids = append(ids, r.ID)
	}
	return total, ids, nil
}

// claimSideFunds settles at most one approved signing bonus and one approved
// separation benefit. The conditional Claim is what makes payment at-most-once
// under concurrent runs; a lost race simply yields zero here.
func (c *Calculator) claimSideFunds(ctx context.Context, employeeID string, run *payroll.PayrollRun) (bonus, benefit decimal.Decimal, err error) {
	bonus, benefit = decimal.Zero, decimal.Zero

	records, err := c.sideFunds.ApprovedForEmployee(ctx, employeeID)
	if err != nil {
		return bonus, benefit, fmt.Errorf("list approved side funds for employee %s: %w", employeeID, err)
	}

	for _, record := range records {
		if !record.PayableIn(run.PeriodStart, run.PeriodEnd) {
			continue
		}
		switch record.Kind {
		case sidefund.KindSigningBonus:
			if !bonus.IsZero() {
				continue
			}
		case sidefund.KindSeparationBenefit:
			if !benefit.IsZero() {
				continue
			}
		default:
			continue
		}

		claimed, claimErr := c.sideFunds.Claim(ctx, record.ID, run.ID, time.Now())
		if claimErr != nil {
			return bonus, benefit, fmt.Errorf("claim side fund %s: %w", record.ID, claimErr)
		}
		if !claimed {
			c.logger.Warn("side fund claim lost to a concurrent run",
				slog.String("record_id", record.ID),
				slog.String("run_id", run.ID))
			continue
		}

		switch record.Kind {
		case sidefund.KindSigningBonus:
			bonus = record.Amount
		case sidefund.KindSeparationBenefit:
			benefit = record.Amount
		}
	}

	return bonus, benefit, nil
}

func (c *Calculator) detectSalarySpike(ctx context.Context, employeeID string, baseSalary decimal.Decimal, before time.Time) (bool, decimal.Decimal) {
	prior, err := c.details.MostRecentForEmployee(ctx, employeeID, before)
	if err != nil || prior == nil {
		return false, decimal.Zero
	}
	if !prior.BaseSalary.IsPositive() {
		return false, decimal.Zero
	}
	increase := baseSalary.Sub(prior.BaseSalary).Div(prior.BaseSalary)
	return increase.GreaterThan(salarySpikeThreshold), prior.BaseSalary
}

func buildPaySlip(detail *payroll.EmployeePayrollDetail, run *payroll.PayrollRun) *payroll.PaySlip {
	earnings := []payroll.PaySlipLine{
		{Label: "Base Salary", Amount: detail.BaseSalary},
	}
	if detail.Allowances.IsPositive() {
		label := "Allowances"
		if detail.AllowanceNames != "" {
			label = "Allowances (" + detail.AllowanceNames + ")"
		}
		earnings = append(earnings, payroll.PaySlipLine{Label: label, Amount: detail.Allowances})
	}
	if detail.Overtime.Amount.IsPositive() {
		earnings = append(earnings, payroll.PaySlipLine{Label: "Overtime", Amount: detail.Overtime.Amount})
	}
	if detail.Refunds.IsPositive() {
		earnings = append(earnings, payroll.PaySlipLine{Label: "Refunds", Amount: detail.Refunds})
	}
	if detail.Bonus.IsPositive() {
		earnings = append(earnings, payroll.PaySlipLine{Label: "Signing Bonus", Amount: detail.Bonus})
	}
	if detail.Benefit.IsPositive() {
		earnings = append(earnings, payroll.PaySlipLine{Label: "Separation Benefit", Amount: detail.Benefit})
	}

	deductions := []payroll.PaySlipLine{
		{Label: "Tax", Amount: detail.Deductions.Tax},
		{Label: "Insurance", Amount: detail.Deductions.Insurance},
	}
	if detail.Penalties.Total.IsPositive() {
		deductions = append(deductions, payroll.PaySlipLine{Label: "Penalties", Amount: detail.Penalties.Total})
	}

	return &payroll.PaySlip{
		ID:              uuid.Must(uuid.NewV7()).String(),
		RunID:           run.ID,
		DetailID:        detail.ID,
		EmployeeID:      detail.EmployeeID,
		PeriodStart:     run.PeriodStart,
		PeriodEnd:       run.PeriodEnd,
		Earnings:        earnings,
		Deductions:      deductions,
		GrossSalary:     detail.GrossSalary,
		TotalDeductions: detail.Deductions.Total,
		NetPay:          detail.NetPay,
		PaymentStatus:   payroll.PaymentStatusPending,
		CreatedAt:       time.Now(),
	}
}

// newZeroDetail builds an all-zero detail row used when an employee's
// calculation fails and only an audit record remains.
func newZeroDetail(runID, employeeID, employeeName string) *payroll.EmployeePayrollDetail {
	now := time.Now()
	return &payroll.EmployeePayrollDetail{
		ID:           uuid.Must(uuid.NewV7()).String(),
		RunID:        runID,
		EmployeeID:   employeeID,
		EmployeeName: employeeName,
		BaseSalary:   decimal.Zero,
		Allowances:   decimal.Zero,
		GrossSalary:  decimal.Zero,
		Refunds:      decimal.Zero,
		Bonus:        decimal.Zero,
		Benefit:      decimal.Zero,
		NetSalary:    decimal.Zero,
		NetPay:       decimal.Zero,
		BankStatus:   payroll.BankStatusMissing,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func daysInclusive(start, end time.Time) int {
	if end.Before(start) {
		return 0
	}
	return int(end.Sub(start).Hours()/24) + 1
}
