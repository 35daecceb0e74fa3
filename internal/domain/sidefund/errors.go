package sidefund

import "errors"

var (
	ErrRecordNotFound    = errors.New("side fund record not found")
	ErrRecordNotPending  = errors.New("side fund record is not pending")
	ErrRecordNotApproved = errors.New("side fund record is not approved")
	ErrAlreadyClaimed    = errors.New("side fund record has already been paid")
	ErrDuplicateTrigger  = errors.New("side fund record already exists for this trigger")
)
