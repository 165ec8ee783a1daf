package api

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/brightpixel/agency-portal/internal/email"
	"github.com/brightpixel/agency-portal/internal/pkg/httputil"
	"github.com/brightpixel/agency-portal/internal/security"
	"github.com/brightpixel/agency-portal/internal/service/audit"
	"github.com/brightpixel/agency-portal/internal/service/blog"
	"github.com/brightpixel/agency-portal/internal/service/brief"
	"github.com/brightpixel/agency-portal/internal/service/chat"
	"github.com/brightpixel/agency-portal/internal/service/contact"
	"github.com/brightpixel/agency-portal/internal/service/dashboard"
	"github.com/brightpixel/agency-portal/internal/service/invoice"
	"github.com/brightpixel/agency-portal/internal/service/profile"
	"github.com/brightpixel/agency-portal/internal/service/project"
	"github.com/brightpixel/agency-portal/internal/storage"
)

// =============================================================================
// ERROR SANITIZER
// Service errors are mapped to a status and a public message here. Internal
// errors (database details, provider responses) never reach API consumers:
// 5xx responses carry a generic message and the full error is logged.
// =============================================================================

// errorStatus lists the sentinel errors with a fixed client-facing status.
var errorStatus = []struct {
	err    error
	status int
}{
	{profile.ErrNotFound, http.StatusNotFound},
	{project.ErrNotFound, http.StatusNotFound},
	{project.ErrMilestoneNotFound, http.StatusNotFound},
	{project.ErrTimeNotFound, http.StatusNotFound},
	{project.ErrClientNotFound, http.StatusUnprocessableEntity},
	{invoice.ErrNotFound, http.StatusNotFound},
	{blog.ErrNotFound, http.StatusNotFound},
	{contact.ErrNotFound, http.StatusNotFound},
	{brief.ErrNotFound, http.StatusNotFound},
	{brief.ErrSessionNotFound, http.StatusNotFound},

	{profile.ErrForbidden, http.StatusForbidden},
	{project.ErrForbidden, http.StatusForbidden},
	{invoice.ErrForbidden, http.StatusForbidden},
	{blog.ErrForbidden, http.StatusForbidden},
	{contact.ErrForbidden, http.StatusForbidden},
	{brief.ErrForbidden, http.StatusForbidden},
	{audit.ErrForbidden, http.StatusForbidden},
	{dashboard.ErrForbidden, http.StatusForbidden},

	{project.ErrInvalidTransition, http.StatusConflict},
	{project.ErrNotDeletable, http.StatusConflict},
	{invoice.ErrInvalidTransition, http.StatusConflict},
	{brief.ErrIncomplete, http.StatusConflict},
	{brief.ErrTooManyTurns, http.StatusConflict},
	{profile.ErrSelfDemote, http.StatusConflict},

	{profile.ErrInvalidRole, http.StatusBadRequest},
	{invoice.ErrNoLineItems, http.StatusBadRequest},
	{chat.ErrEmptyMessage, http.StatusBadRequest},
	{brief.ErrEmptyMessage, http.StatusBadRequest},
	{storage.ErrInvalidKey, http.StatusBadRequest},
	{email.ErrUnknownTemplate, http.StatusBadRequest},
	{email.ErrNoRecipient, http.StatusBadRequest},
	{storage.ErrTooLarge, http.StatusRequestEntityTooLarge},
	{storage.ErrUnsupportedType, http.StatusUnsupportedMediaType},

	{chat.ErrUnavailable, http.StatusServiceUnavailable},
	{brief.ErrUnavailable, http.StatusServiceUnavailable},
	{storage.ErrNotConfigured, http.StatusServiceUnavailable},
}

// writeError maps err to an HTTP response.
func writeError(w http.ResponseWriter, err error) {
	var ve *security.ValidationError
	if errors.As(err, &ve) {
		httputil.ErrorWithCode(w, http.StatusUnprocessableEntity, "validation_failed", "invalid input", ve.Fields)
		return
	}
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			if e.status >= 500 {
				respondSafeError(w, e.status, err, publicMessage(e.err))
				return
			}
			httputil.Error(w, e.status, publicMessage(e.err))
			return
		}
	}
	respondSafeError(w, http.StatusInternalServerError, err, safeErrorMessage(http.StatusInternalServerError, err))
}

// publicMessage strips the "storage: " style package prefix from a sentinel.
func publicMessage(err error) string {
	msg := err.Error()
	if i := strings.Index(msg, ": "); i >= 0 && !strings.Contains(msg[:i], " ") {
		msg = msg[i+2:]
	}
	return msg
}

// sanitizedError logs the full internal error and returns a public-safe message.
func sanitizedError(code int, internalErr error, publicMsg string) string {
	if internalErr != nil {
		log.Printf("ERROR [%d]: %s: %v", code, publicMsg, internalErr)
	}
	return publicMsg
}

// respondSafeError logs the internal error and sends a sanitized JSON error
// response to the client.
func respondSafeError(w http.ResponseWriter, code int, internalErr error, publicMsg string) {
	httputil.Error(w, code, sanitizedError(code, internalErr, publicMsg))
}

// safeErrorMessage maps common internal error patterns to public-safe messages.
// For 400-level errors the original message is about user input and is kept.
func safeErrorMessage(code int, internalErr error) string {
	if code < 500 {
		if internalErr != nil {
			return internalErr.Error()
		}
		return "Bad request"
	}

	if internalErr == nil {
		return "An internal error occurred"
	}

	errStr := strings.ToLower(internalErr.Error())

	switch {
	case strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "dial tcp"):
		return "Service temporarily unavailable"

	case strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded") ||
		strings.Contains(errStr, "context canceled"):
		return "Request timed out"

	case strings.Contains(errStr, "sql") ||
		strings.Contains(errStr, "pq:") ||
		strings.Contains(errStr, "scan") ||
		strings.Contains(errStr, "database"):
		return "A database error occurred"

	default:
		return "An internal error occurred"
	}
}
