// Package security holds the request hardening used by every public
// endpoint: markup sanitization, sliding-window rate limiting, session
// timeout checks and struct validation.
package security
