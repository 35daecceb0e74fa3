package payroll

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianhr/payroll-backend-go/internal/domain/attendance"
	"github.com/meridianhr/payroll-backend-go/internal/domain/employee"
	"github.com/meridianhr/payroll-backend-go/internal/domain/payconfig"
	"github.com/meridianhr/payroll-backend-go/internal/domain/payroll"
)

func rosterEmployee(id string, base int64) employee.Employee {
	return employee.Employee{
		ID:                id,
		EmployeeCode:      "E-" + id,
		FullName:          "Employee " + id,
		BaseSalary:        decptr(base),
		BankAccountNumber: strptr("99" + id),
		HireDate:          time.Date(2022, 3, 1, 0, 0, 0, 0, time.UTC),
		EmploymentStatus:  employee.EmploymentStatusActive,
	}
}

func newTestAggregator(roster []employee.Employee, details *fakeDetailRepo, snapshot payconfig.Snapshot) *Aggregator {
	if details == nil {
		details = &fakeDetailRepo{}
	}
	calc := newTestCalculator(nil, nil, nil, details, nil)
	employees := &fakeEmployeeRepo{
		ActiveByDepartmentFunc: func(ctx context.Context, department string) ([]employee.Employee, employee.SelectionMatch, error) {
			return roster, employee.MatchedByID, nil
		},
	}
	config := &fakeConfigRepo{
		SnapshotFunc: func(ctx context.Context, entity string, period time.Time) (payconfig.Snapshot, error) {
			return snapshot, nil
		},
	}
	return NewAggregator(calc, employees, config, details, passthroughTransactor, 4, 100, testLogger())
}

func TestAggregatorFoldsTotals(t *testing.T) {
	roster := []employee.Employee{
		rosterEmployee("emp-1", 6000),
		rosterEmployee("emp-2", 4000),
		rosterEmployee("emp-3", 2000),
	}
	details := &fakeDetailRepo{}
	agg := newTestAggregator(roster, details, flatTaxSnapshot())

	run := juneRun()
	require.NoError(t, agg.ProcessRun(context.Background(), run))

	assert.Equal(t, 3, run.EmployeeCount)
	assert.Equal(t, 3, run.ProcessedCount)
	assert.Equal(t, 0, run.FailedCount)
	assert.True(t, run.TotalBaseSalary.Equal(money(12000)), "base = %s", run.TotalBaseSalary)
	assert.True(t, run.TotalGross.Equal(money(12000)), "gross = %s", run.TotalGross)
	assert.True(t, run.TotalTax.Equal(money(1200)), "tax = %s", run.TotalTax)
	assert.True(t, run.TotalInsurance.Equal(money(600)), "insurance = %s", run.TotalInsurance)
	assert.True(t, run.TotalNetPay.Equal(money(10200)), "netPay = %s", run.TotalNetPay)

	// Run totals reconcile with the persisted detail rows.
	sum := money(0)
	for _, d := range details.details {
		sum = sum.Add(d.NetPay)
	}
	assert.True(t, run.TotalNetPay.Equal(sum))
}

func TestAggregatorIsolatesEmployeeFailure(t *testing.T) {
	roster := []employee.Employee{
		rosterEmployee("emp-1", 6000),
		rosterEmployee("emp-2", 4000),
	}
	details := &fakeDetailRepo{}
	stored := &fakeDetailRepo{}
	details.CreateFunc = func(ctx context.Context, detail *payroll.EmployeePayrollDetail) error {
		if detail.EmployeeID == "emp-2" && !detail.NetPay.IsZero() {
			return errors.New("write conflict")
		}
		return stored.Create(ctx, detail)
	}
	details.CountByRunFunc = stored.CountByRun

	agg := newTestAggregator(roster, details, flatTaxSnapshot())

	run := juneRun()
	require.NoError(t, agg.ProcessRun(context.Background(), run))

	assert.Equal(t, 2, run.EmployeeCount)
	assert.Equal(t, 1, run.ProcessedCount)
	assert.Equal(t, 1, run.FailedCount)

	// The failed employee still has an auditable all-zero row.
	var failedRow *payroll.EmployeePayrollDetail
	for i := range stored.details {
		if stored.details[i].EmployeeID == "emp-2" {
			failedRow = &stored.details[i]
		}
	}
	require.NotNil(t, failedRow)
	assert.True(t, failedRow.NetPay.IsZero())
	require.NotNil(t, failedRow.Exceptions)
	assert.Contains(t, *failedRow.Exceptions, "write conflict")

	// The failure surfaces as a calculation-error irregularity, and the
	// healthy employee's totals are unaffected.
	require.Len(t, run.Irregularities, 1)
	assert.Equal(t, payroll.IrregularityCalculationError, run.Irregularities[0].Kind)
	assert.Equal(t, "emp-2", run.Irregularities[0].EmployeeID)
	assert.True(t, run.TotalNetPay.Equal(money(5100)), "netPay = %s", run.TotalNetPay)
}

func TestAggregatorRejectsAlreadyProcessedRun(t *testing.T) {
	details := &fakeDetailRepo{}
	require.NoError(t, details.Create(context.Background(), &payroll.EmployeePayrollDetail{
		ID: "d-1", RunID: juneRun().ID, EmployeeID: "emp-1",
	}))

	agg := newTestAggregator(nil, details, flatTaxSnapshot())
	err := agg.ProcessRun(context.Background(), juneRun())
	assert.ErrorIs(t, err, payroll.ErrRunAlreadyProcessed)
}

func TestAggregatorCapsIrregularities(t *testing.T) {
	var roster []employee.Employee
	for i := 0; i < 8; i++ {
		emp := rosterEmployee(fmt.Sprintf("emp-%d", i), 6000)
		emp.BankAccountNumber = nil
		roster = append(roster, emp)
	}
	details := &fakeDetailRepo{}
	calc := newTestCalculator(nil, nil, nil, details, nil)
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
	agg := NewAggregator(calc, employees, config, details, passthroughTransactor, 4, 5, testLogger())

	run := juneRun()
	require.NoError(t, agg.ProcessRun(context.Background(), run))

	assert.Equal(t, 8, run.ProcessedCount)
	assert.Len(t, run.Irregularities, 5)
	assert.Equal(t, 8, run.IrregularitiesCount)
}

func TestAggregatorAbortsOnDependencyOutage(t *testing.T) {
	roster := []employee.Employee{
		rosterEmployee("emp-1", 6000),
		rosterEmployee("emp-2", 4000),
	}
	details := &fakeDetailRepo{}
	att := &fakeAttendance{
		ForPeriodFunc: func(ctx context.Context, employeeID string, start, end time.Time) (attendance.Summary, error) {
			return attendance.Summary{}, errors.New("attendance service timeout")
		},
	}
	calc := newTestCalculator(att, nil, nil, details, nil)
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
	agg := NewAggregator(calc, employees, config, details, passthroughTransactor, 4, 100, testLogger())

	err := agg.ProcessRun(context.Background(), juneRun())
	assert.ErrorIs(t, err, payroll.ErrDependencyUnavailable)
	assert.Empty(t, details.details, "an outage must not leave audit rows behind")
}

func TestAggregatorWritesContractExceptionForInactiveEmployee(t *testing.T) {
	inactive := rosterEmployee("emp-1", 6000)
	inactive.EmploymentStatus = employee.EmploymentStatusInactive

	details := &fakeDetailRepo{}
	agg := newTestAggregator([]employee.Employee{inactive}, details, flatTaxSnapshot())

	run := juneRun()
	require.NoError(t, agg.ProcessRun(context.Background(), run))

	assert.Equal(t, 0, run.ProcessedCount)
	assert.Equal(t, 1, run.FailedCount)
	require.Len(t, details.details, 1)
	require.NotNil(t, details.details[0].Exceptions)
	assert.Equal(t, payroll.ExceptionContractInactive, *details.details[0].Exceptions)
}

func TestAggregatorRefusesFrozenRun(t *testing.T) {
	agg := newTestAggregator(nil, nil, flatTaxSnapshot())

	run := juneRun()
	run.Status = payroll.RunStatusApproved
	err := agg.ProcessRun(context.Background(), run)
	assert.ErrorIs(t, err, payroll.ErrRunAlreadyProcessed)
}

func TestAggregatorSnapshotFailureFailsRun(t *testing.T) {
	calc := newTestCalculator(nil, nil, nil, nil, nil)
	employees := &fakeEmployeeRepo{}
	config := &fakeConfigRepo{
		SnapshotFunc: func(ctx context.Context, entity string, period time.Time) (payconfig.Snapshot, error) {
			return payconfig.Snapshot{}, payconfig.ErrSnapshotUnavailable
		},
	}
	agg := NewAggregator(calc, employees, config, &fakeDetailRepo{}, passthroughTransactor, 4, 100, testLogger())

	err := agg.ProcessRun(context.Background(), juneRun())
	assert.ErrorIs(t, err, payroll.ErrDependencyUnavailable)
}
