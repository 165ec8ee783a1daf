package domain

import "time"

// SecurityEventType names what happened.
type SecurityEventType string

const (
	EventRateLimited    SecurityEventType = "rate_limited"
	EventInputRejected  SecurityEventType = "input_rejected"
	EventLoginSuccess   SecurityEventType = "login_success"
	EventLoginFailure   SecurityEventType = "login_failure"
	EventTokenInvalid   SecurityEventType = "token_invalid"
	EventSessionExpired SecurityEventType = "session_expired"
	EventAccessDenied   SecurityEventType = "access_denied"
	EventLogout         SecurityEventType = "logout"
)

// Severity grades a security event.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// SecurityLog is one entry in the audit trail.
type SecurityLog struct {
	ID        string            `json:"id" db:"id"`
	EventType SecurityEventType `json:"event_type" db:"event_type"`
	Severity  Severity          `json:"severity" db:"severity"`
	UserID    *string           `json:"user_id" db:"user_id"`
	IPAddress string            `json:"ip_address" db:"ip_address"`
	UserAgent string            `json:"user_agent" db:"user_agent"`
	Path      string            `json:"path" db:"path"`
	Details   map[string]any    `json:"details" db:"details"`
	CreatedAt time.Time         `json:"created_at" db:"created_at"`
}
