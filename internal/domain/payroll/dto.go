package payroll

import (
	"time"

	"github.com/meridianhr/payroll-backend-go/internal/pkg/validator"
)

type CreateRunRequest struct {
	RunLabel string `json:"run_label"`
	Entity   string `json:"entity"`
	Period   string `json:"period"` // YYYY-MM
}

func (r CreateRunRequest) Validate() validator.ValidationErrors {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.RunLabel) {
		errs = append(errs, validator.ValidationError{Field: "run_label", Message: "run label is required"})
	} else if !validator.IsValidRunLabel(r.RunLabel) {
		errs = append(errs, validator.ValidationError{Field: "run_label", Message: "run label must look like PR-2026-08 or PR-2026-08-HQ"})
	}

	if validator.IsEmpty(r.Entity) {
		errs = append(errs, validator.ValidationError{Field: "entity", Message: "entity is required"})
	}

	if validator.IsEmpty(r.Period) {
		errs = append(errs, validator.ValidationError{Field: "period", Message: "period is required"})
	} else if _, ok := validator.IsValidPeriod(r.Period); !ok {
		errs = append(errs, validator.ValidationError{Field: "period", Message: "period must be in YYYY-MM format"})
	}

	return errs
}

// PeriodRange resolves the request period into [first day, last day].
func (r CreateRunRequest) PeriodRange() (time.Time, time.Time) {
	start, _ := validator.IsValidPeriod(r.Period)
	end := start.AddDate(0, 1, -1)
	return start, end
}

type RejectRunRequest struct {
	Reason string `json:"reason"`
}

func (r RejectRunRequest) Validate() validator.ValidationErrors {
	var errs validator.ValidationErrors
	if validator.IsEmpty(r.Reason) {
		errs = append(errs, validator.ValidationError{Field: "reason", Message: "rejection reason is required"})
	}
	return errs
}

type UnlockRunRequest struct {
	Reason string `json:"reason"`
}

func (r UnlockRunRequest) Validate() validator.ValidationErrors {
	var errs validator.ValidationErrors
	if validator.IsEmpty(r.Reason) {
		errs = append(errs, validator.ValidationError{Field: "reason", Message: "unlock reason is required"})
	}
	return errs
}

type ListRunsQuery struct {
	Entity   string
	Statuses []RunStatus
	Page     int
	PageSize int
}

func (q *ListRunsQuery) Normalize() {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 || q.PageSize > 100 {
		q.PageSize = 20
	}
}

type RunSummaryResponse struct {
	ID                  string         `json:"id"`
	RunLabel            string         `json:"run_label"`
	Entity              string         `json:"entity"`
	PeriodStart         time.Time      `json:"period_start"`
	PeriodEnd           time.Time      `json:"period_end"`
	Status              RunStatus      `json:"status"`
	TotalGross          string         `json:"total_gross"`
	TotalNetPay         string         `json:"total_net_pay"`
	EmployeeCount       int            `json:"employee_count"`
	ProcessedCount      int            `json:"processed_count"`
	FailedCount         int            `json:"failed_count"`
	Irregularities      []Irregularity `json:"irregularities,omitempty"`
	IrregularitiesCount int            `json:"irregularities_count"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

func NewRunSummaryResponse(run *PayrollRun) RunSummaryResponse {
	return RunSummaryResponse{
		ID:                  run.ID,
		RunLabel:            run.RunLabel,
		Entity:              run.Entity,
		PeriodStart:         run.PeriodStart,
		PeriodEnd:           run.PeriodEnd,
		Status:              run.Status,
		TotalGross:          run.TotalGross.StringFixed(2),
		TotalNetPay:         run.TotalNetPay.StringFixed(2),
		EmployeeCount:       run.EmployeeCount,
		ProcessedCount:      run.ProcessedCount,
		FailedCount:         run.FailedCount,
		Irregularities:      run.Irregularities,
		IrregularitiesCount: run.IrregularitiesCount,
		CreatedAt:           run.CreatedAt,
		UpdatedAt:           run.UpdatedAt,
	}
}
