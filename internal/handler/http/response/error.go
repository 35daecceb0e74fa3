package response

import (
	"errors"
	"net/http"

	"github.com/meridianhr/payroll-backend-go/internal/domain/employee"
	"github.com/meridianhr/payroll-backend-go/internal/domain/payroll"
	"github.com/meridianhr/payroll-backend-go/internal/domain/sidefund"
	"github.com/meridianhr/payroll-backend-go/internal/domain/user"
	"github.com/meridianhr/payroll-backend-go/internal/pkg/validator"
)

// HandleError maps domain errors to HTTP responses
func HandleError(w http.ResponseWriter, err error) {
	// Check if it's a validation error
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		ValidationError(w, validationErrs.ToMap())
		return
	}

	switch {
	// Authorization errors
	case errors.Is(err, user.ErrSpecialistAccessRequired),
		errors.Is(err, user.ErrManagerAccessRequired),
		errors.Is(err, user.ErrFinanceAccessRequired),
		errors.Is(err, user.ErrSelfApproval),
		errors.Is(err, user.ErrDuplicateApprover):
		Forbidden(w, err.Error())

	// Not found
	case errors.Is(err, payroll.ErrRunNotFound):
		NotFound(w, "Payroll run not found")
	case errors.Is(err, payroll.ErrDetailNotFound):
		NotFound(w, "Employee payroll detail not found")
	case errors.Is(err, payroll.ErrPayslipNotFound):
		NotFound(w, "Payslip not found")
	case errors.Is(err, employee.ErrEmployeeNotFound):
		NotFound(w, "Employee not found")
	case errors.Is(err, sidefund.ErrRecordNotFound):
		NotFound(w, "Side fund record not found")
	case errors.Is(err, user.ErrUserNotFound):
		NotFound(w, "User not found")

	// State conflicts
	case errors.Is(err, payroll.ErrInvalidRunStatus),
		errors.Is(err, payroll.ErrRunAlreadyProcessed),
		errors.Is(err, payroll.ErrDuplicatePeriod),
		errors.Is(err, payroll.ErrRunStateChanged),
		errors.Is(err, payroll.ErrRunNotPaid),
		errors.Is(err, sidefund.ErrRecordNotPending),
		errors.Is(err, sidefund.ErrRecordNotApproved),
		errors.Is(err, sidefund.ErrAlreadyClaimed),
		errors.Is(err, sidefund.ErrDuplicateTrigger):
		Conflict(w, err.Error())

	// Upstream dependencies
	case errors.Is(err, payroll.ErrDependencyUnavailable):
		ServiceUnavailable(w, err.Error())

	// Default
	default:
		InternalServerError(w, "An unexpected error occurred")
	}
}
