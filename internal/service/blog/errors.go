package blog

import "errors"

// Sentinel errors for the blog service layer.
var (
	ErrNotFound  = errors.New("article not found")
	ErrForbidden = errors.New("admin access required")
)
