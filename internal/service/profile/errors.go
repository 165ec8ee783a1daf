package profile

import "errors"

// Sentinel errors for the profile service layer.
var (
	ErrNotFound    = errors.New("profile not found")
	ErrForbidden   = errors.New("not allowed to manage profiles")
	ErrInvalidRole = errors.New("invalid role")
	ErrSelfDemote  = errors.New("admins cannot remove their own admin role")
)
