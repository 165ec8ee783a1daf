package contact

import "errors"

// Sentinel errors for the contact service layer.
var (
	ErrNotFound  = errors.New("contact submission not found")
	ErrForbidden = errors.New("admin access required")
)
