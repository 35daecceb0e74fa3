package payconfig

import "errors"

var (
	ErrSnapshotUnavailable = errors.New("approved payroll configuration is unavailable")
	ErrPayGradeNotFound    = errors.New("approved pay grade not found")
)
