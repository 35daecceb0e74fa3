package payroll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/meridianhr/payroll-backend-go/internal/domain/employee"
	"github.com/meridianhr/payroll-backend-go/internal/domain/payconfig"
	"github.com/meridianhr/payroll-backend-go/internal/domain/payroll"
)

// Transactor runs fn inside one database transaction. Production wiring binds
// this to postgresql.WithTransaction; tests substitute a passthrough.
type Transactor func(ctx context.Context, fn func(ctx context.Context) error) error

// Aggregator fans the Calculator out across a run's employees and folds the
// results into run-level totals. One employee's calculation failure never
// fails the run; it becomes a degenerate detail row and an exception count.
// An unavailable upstream dependency does fail the run, since every employee
// would be affected the same way.
type Aggregator struct {
	calculator *Calculator
	employees  employee.EmployeeRepository
	config     payconfig.ConfigRepository
	details    payroll.DetailRepository
	transact   Transactor

	workerLimit       int
	irregularitiesCap int
	logger            *slog.Logger
}

func NewAggregator(
	calculator *Calculator,
	employeeRepo employee.EmployeeRepository,
	configRepo payconfig.ConfigRepository,
	detailRepo payroll.DetailRepository,
	transact Transactor,
	workerLimit int,
	irregularitiesCap int,
	logger *slog.Logger,
) *Aggregator {
	if workerLimit < 1 {
		workerLimit = 1
	}
	if irregularitiesCap < 1 {
		irregularitiesCap = 100
	}
	return &Aggregator{
		calculator:        calculator,
		employees:         employeeRepo,
		config:            configRepo,
		details:           detailRepo,
		transact:          transact,
		workerLimit:       workerLimit,
		irregularitiesCap: irregularitiesCap,
		logger:            logger,
	}
}

type employeeOutcome struct {
	result *CalcResult
	failed bool
}

// ProcessRun computes the whole run and populates its counts and totals. The
// caller owns the lifecycle status around this call.
func (a *Aggregator) ProcessRun(ctx context.Context, run *payroll.PayrollRun) error {
	if run.Status.IsTerminalForEdits() {
		return fmt.Errorf("%w: run %s is %s and its detail rows are frozen", payroll.ErrRunAlreadyProcessed, run.ID, run.Status)
	}

	existing, err := a.details.CountByRun(ctx, run.ID)
	if err != nil {
		return fmt.Errorf("count existing details for run %s: %w", run.ID, err)
	}
	if existing > 0 {
		return fmt.Errorf("%w: run %s already has %d detail rows", payroll.ErrRunAlreadyProcessed, run.ID, existing)
	}

	snapshot, err := a.config.Snapshot(ctx, run.Entity, run.PeriodStart)
	if err != nil {
		return fmt.Errorf("%w: configuration snapshot for entity %s: %v", payroll.ErrDependencyUnavailable, run.Entity, err)
	}

	targets, match, err := a.employees.ActiveByDepartment(ctx, run.Entity)
	if err != nil {
		return fmt.Errorf("%w: employee directory for entity %s: %v", payroll.ErrDependencyUnavailable, run.Entity, err)
	}
	switch match {
	case employee.MatchedByName:
		a.logger.Warn("entity resolved by name match instead of id",
			slog.String("run_id", run.ID), slog.String("entity", run.Entity))
	case employee.NoMatchAllActive:
		a.logger.Warn("entity did not resolve, processing all active employees",
			slog.String("run_id", run.ID), slog.String("entity", run.Entity))
	}

	outcomes := make([]employeeOutcome, len(targets))
	var mu sync.Mutex

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(a.workerLimit)
	for i := range targets {
		group.Go(func() error {
			emp := &targets[i]
			var result *CalcResult
			txErr := a.transact(groupCtx, func(txCtx context.Context) error {
				var calcErr error
				result, calcErr = a.calculator.Process(txCtx, emp, run, snapshot)
				return calcErr
			})
			if txErr == nil {
				mu.Lock()
				outcomes[i] = employeeOutcome{result: result}
				mu.Unlock()
				return nil
			}

			// A shared upstream being down would degrade every employee the
			// same way; abort the run instead of recording audit rows.
			if errors.Is(txErr, payroll.ErrDependencyUnavailable) {
				return txErr
			}

			a.logger.Error("employee payroll calculation failed",
				slog.String("run_id", run.ID),
				slog.String("employee_id", emp.ID),
				slog.Any("error", txErr))

			// The failure row is written outside the failed transaction so
			// the run still carries an auditable record for this employee.
			degenerate := a.degenerateDetail(emp, run, txErr)
			if writeErr := a.details.Create(groupCtx, degenerate); writeErr != nil {
				return fmt.Errorf("record failure for employee %s: %w", emp.ID, writeErr)
			}
			mu.Lock()
			outcomes[i] = employeeOutcome{
				result: &CalcResult{
					Detail: degenerate,
					Irregularities: []payroll.Irregularity{{
						EmployeeID:   emp.ID,
						EmployeeName: emp.FullName,
						Kind:         payroll.IrregularityCalculationError,
						Detail:       txErr.Error(),
					}},
				},
				failed: true,
			}
			mu.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}

	a.foldTotals(run, outcomes)
	return nil
}

// foldTotals computes aggregates once, after every worker has finished.
func (a *Aggregator) foldTotals(run *payroll.PayrollRun, outcomes []employeeOutcome) {
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
	run.EmployeeCount = len(outcomes)
	run.ProcessedCount = 0
	run.FailedCount = 0
	run.Irregularities = nil
	run.IrregularitiesCount = 0

	for _, outcome := range outcomes {
		if outcome.result == nil {
			continue
		}
		detail := outcome.result.Detail
		if outcome.failed {
			run.FailedCount++
		} else {
			run.ProcessedCount++
			run.TotalBaseSalary = run.TotalBaseSalary.Add(detail.BaseSalary)
			run.TotalGross = run.TotalGross.Add(detail.GrossSalary)
			run.TotalAllowances = run.TotalAllowances.Add(detail.Allowances)
			run.TotalDeductions = run.TotalDeductions.Add(detail.Deductions.Total)
			run.TotalTax = run.TotalTax.Add(detail.Deductions.Tax)
			run.TotalInsurance = run.TotalInsurance.Add(detail.Deductions.Insurance)
			run.TotalPenalties = run.TotalPenalties.Add(detail.Penalties.Total)
			run.TotalOvertime = run.TotalOvertime.Add(detail.Overtime.Amount)
			run.TotalRefunds = run.TotalRefunds.Add(detail.Refunds)
			run.TotalBonuses = run.TotalBonuses.Add(detail.Bonus)
			run.TotalBenefits = run.TotalBenefits.Add(detail.Benefit)
			run.TotalNetPay = run.TotalNetPay.Add(detail.NetPay)
		}
		for _, irr := range outcome.result.Irregularities {
			run.IrregularitiesCount++
			if len(run.Irregularities) < a.irregularitiesCap {
				run.Irregularities = append(run.Irregularities, irr)
			}
		}
	}
}

func (a *Aggregator) degenerateDetail(emp *employee.Employee, run *payroll.PayrollRun, cause error) *payroll.EmployeePayrollDetail {
	msg := cause.Error()
	if errors.Is(cause, employee.ErrEmployeeInactive) {
		msg = payroll.ExceptionContractInactive
	}
	detail := newZeroDetail(run.ID, emp.ID, emp.FullName)
	detail.BankStatus = payroll.BankStatusMissing
	detail.Exceptions = &msg
	return detail
}
