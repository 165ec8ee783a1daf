package invoice

import "errors"

// Sentinel errors for the invoice service layer.
var (
	ErrNotFound          = errors.New("invoice not found")
	ErrForbidden         = errors.New("admin access required")
	ErrInvalidTransition = errors.New("invalid invoice status transition")
	ErrNoLineItems       = errors.New("invoice needs at least one line item")
)
