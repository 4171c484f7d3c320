// Package apperr holds the sentinel errors shared by the service and its surfaces.
package apperr

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalid           = errors.New("invalid input")
	ErrDuplicate         = errors.New("duplicate application")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrCycleClosed       = errors.New("admissions cycle is closed")
	ErrWaitlistEmpty     = errors.New("waitlist is empty")
	ErrDispatchBusy      = errors.New("a dispatch is already in progress")
	ErrDispatchFailed    = errors.New("dispatch failed, try again")
)
