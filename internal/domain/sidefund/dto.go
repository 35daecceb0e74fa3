package sidefund

import (
	"github.com/meridianhr/payroll-backend-go/internal/pkg/validator"
)

type RejectRequest struct {
	Reason string `json:"reason"`
}

func (r RejectRequest) Validate() validator.ValidationErrors {
	var errs validator.ValidationErrors
	if validator.IsEmpty(r.Reason) {
		errs = append(errs, validator.ValidationError{Field: "reason", Message: "rejection reason is required"})
	}
	return errs
}

type UpdatePaymentDateRequest struct {
	PaymentDate string `json:"payment_date"` // YYYY-MM-DD
}

func (r UpdatePaymentDateRequest) Validate() validator.ValidationErrors {
	var errs validator.ValidationErrors
	if validator.IsEmpty(r.PaymentDate) {
		errs = append(errs, validator.ValidationError{Field: "payment_date", Message: "payment date is required"})
	} else if _, ok := validator.IsValidDate(r.PaymentDate); !ok {
		errs = append(errs, validator.ValidationError{Field: "payment_date", Message: "payment date must be in YYYY-MM-DD format"})
	}
	return errs
}
