package audit

import "errors"

// Sentinel errors for the audit service layer.
var (
	ErrForbidden = errors.New("access denied")
)
