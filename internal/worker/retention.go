package worker

import (
	"context"
	"time"

	"github.com/brightpixel/agency-portal/internal/pkg/distlock"
)

const (
	// DefaultRetentionInterval is how often old security logs are purged.
	DefaultRetentionInterval = 24 * time.Hour

	// DefaultSecurityLogDays applies when retention.security_log_days is unset.
	DefaultSecurityLogDays = 90
)

// Purger deletes security log entries older than a cutoff.
// *audit.Service implements it.
type Purger interface {
	Purge(ctx context.Context, olderThan time.Duration) (int64, error)
}

// RetentionWorker periodically removes old security log entries.
type RetentionWorker struct {
	logs Purger
	keep time.Duration
	job  periodic
}

// NewRetentionWorker keeps days of security logs.
func NewRetentionWorker(logs Purger, days int, lock distlock.DistLock) *RetentionWorker {
	if days <= 0 {
		days = DefaultSecurityLogDays
	}
	w := &RetentionWorker{logs: logs, keep: time.Duration(days) * 24 * time.Hour}
	w.job = periodic{name: "RetentionWorker", interval: DefaultRetentionInterval, lock: lock, fn: w.RunOnce}
	return w
}

// Start blocks until ctx is cancelled.
func (w *RetentionWorker) Start(ctx context.Context) {
	w.job.start(ctx)
}

// RunOnce purges entries older than the retention period.
func (w *RetentionWorker) RunOnce(ctx context.Context) error {
	_, err := w.logs.Purge(ctx, w.keep)
	return err
}
