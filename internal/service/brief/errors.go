package brief

import "errors"

// Sentinel errors for the brief service layer.
var (
	ErrNotFound        = errors.New("brief not found")
	ErrForbidden       = errors.New("access denied")
	ErrSessionNotFound = errors.New("brief session not found or expired")
	ErrTooManyTurns    = errors.New("brief session has too many turns")
	ErrIncomplete      = errors.New("brief is not complete yet")
	ErrEmptyMessage    = errors.New("message is empty")
	ErrUnavailable     = errors.New("brief assistant is not available")
)
