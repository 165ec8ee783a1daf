package chat

import "errors"

// Sentinel errors for the chat service layer.
var (
	ErrEmptyMessage = errors.New("message is empty")
	ErrUnavailable  = errors.New("assistant is not available")
)
