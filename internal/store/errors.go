package store

import "errors"

var (
	// ErrConflict is a uniqueness or booking-overlap violation.
	ErrConflict = errors.New("calendar or booking conflict")
	// ErrNotFound covers missing calendars and missing or already cancelled appointments.
	ErrNotFound            = errors.New("calendar record not found")
	ErrIdempotencyConflict = errors.New("idempotency key reused for a different booking")
)
