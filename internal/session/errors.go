package session

import "errors"

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("chat session not found")
	ErrInvalidInput    = errors.New("invalid input")
	// ErrStorage wraps any failure of the durable store. Callers resubmit; nothing is retried here.
	ErrStorage = errors.New("chat session storage error")
)
