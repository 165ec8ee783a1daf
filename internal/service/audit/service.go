package audit

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/brightpixel/agency-portal/internal/domain"
	"github.com/brightpixel/agency-portal/internal/pkg/logger"
	"github.com/brightpixel/agency-portal/internal/security"
)

const recordTimeout = 5 * time.Second

// Service records and queries security events.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates an audit service backed by the given repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// WithClock replaces the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Record stores ev. It never fails the caller: storage errors are logged.
// The write outlives the request context so events from aborted requests
// are kept.
func (s *Service) Record(ctx context.Context, ev domain.SecurityLog) {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = s.now().UTC()
	}
	if ev.Severity == "" {
		ev.Severity = domain.SeverityInfo
	}
	ev.UserAgent = security.Truncate(ev.UserAgent, 512)
	ev.Path = security.Truncate(ev.Path, 500)

	kv := []any{"type", string(ev.EventType), "ip", ev.IPAddress, "path", ev.Path}
	if ev.UserID != nil {
		kv = append(kv, "user_id", *ev.UserID)
	}
	if ev.Severity == domain.SeverityInfo {
		logger.Info("security_event", kv...)
	} else {
		logger.Warn("security_event", append(kv, "severity", string(ev.Severity))...)
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	if err := s.repo.Create(ctx, &ev); err != nil {
		log.Printf("[audit.Service] failed to store %s event: %v", ev.EventType, err)
	}
}

// List returns security log entries. Admin only.
func (s *Service) List(ctx context.Context, p domain.Principal, f ListFilter) ([]domain.SecurityLog, int, error) {
	if !p.IsAdmin() {
		return nil, 0, ErrForbidden
	}
	switch f.Severity {
	case "", domain.SeverityInfo, domain.SeverityWarning, domain.SeverityCritical:
	default:
		return nil, 0, security.NewValidationError("severity", "is invalid")
	}
	return s.repo.List(ctx, f)
}

// Purge deletes entries older than olderThan.
func (s *Service) Purge(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("purge: retention must be positive, got %s", olderThan)
	}
	cutoff := s.now().UTC().Add(-olderThan)
	n, err := s.repo.DeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge security logs: %w", err)
	}
	log.Printf("[audit.Service] purged %d security log entries before %s", n, cutoff.Format(time.RFC3339))
	return n, nil
}
