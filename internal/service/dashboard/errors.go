package dashboard

import "errors"

// Sentinel errors for the dashboard service layer.
var (
	ErrForbidden = errors.New("access denied")
)
