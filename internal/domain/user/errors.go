package user

import "errors"

var (
	ErrSpecialistAccessRequired = errors.New("payroll specialist access required")
	ErrManagerAccessRequired    = errors.New("payroll manager access required")
	ErrFinanceAccessRequired    = errors.New("finance staff access required")
	ErrSelfApproval             = errors.New("an approver cannot approve their own submission")
	ErrDuplicateApprover        = errors.New("finance approver must differ from the manager approver")
	ErrUserNotFound             = errors.New("user not found")
)
