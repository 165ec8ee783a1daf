package project

import "errors"

// Sentinel errors for the project service layer.
var (
	ErrNotFound          = errors.New("project not found")
	ErrMilestoneNotFound = errors.New("milestone not found")
	ErrTimeNotFound      = errors.New("time entry not found")
	ErrClientNotFound    = errors.New("client not found")
	ErrForbidden         = errors.New("admin access required")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNotDeletable      = errors.New("only planning or cancelled projects can be deleted")
)
