package models

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrForbidden         = errors.New("forbidden")
	ErrDuplicateAutoBook = errors.New("an active auto-book already exists for this event")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrPassInProgress    = errors.New("another processing pass holds the lease")
	ErrStoreUnavailable  = errors.New("store unavailable")
)
