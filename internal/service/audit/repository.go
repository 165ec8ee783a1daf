package audit

import (
	"context"
	"time"

	"github.com/brightpixel/agency-portal/internal/domain"
)

// Repository defines the data access contract for security logs.
// Implementations must be safe for concurrent use.
type Repository interface {
	Create(ctx context.Context, ev *domain.SecurityLog) error

	// List returns entries matching the filter, newest first.
	List(ctx context.Context, f ListFilter) ([]domain.SecurityLog, int, error)

	// DeleteBefore removes entries created before cutoff and returns how many.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// ListFilter controls pagination and filtering for security log queries.
type ListFilter struct {
	EventType domain.SecurityEventType
	Severity  domain.Severity
	UserID    string
	Since     *time.Time
	Limit     int
	Offset    int
}
