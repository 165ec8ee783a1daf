package project

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/brightpixel/agency-portal/internal/domain"
	"github.com/brightpixel/agency-portal/internal/security"
)

// TimeInput holds the fields for logging time. An empty EntryDate means
// today.
type TimeInput struct {
	Description string `json:"description" validate:"max=1000"`
	Minutes     int    `json:"minutes" validate:"gte=1,lte=1440"`
	Billable    bool   `json:"billable"`
	RateCents   int64  `json:"rate_cents" validate:"gte=0"`
	EntryDate   string `json:"entry_date" validate:"omitempty,datetime=2006-01-02"`
}

// LogTime records work on a project. Entries cannot be dated in the future.
func (s *Service) LogTime(ctx context.Context, p domain.Principal, projectID string, in TimeInput) (*domain.TimeEntry, error) {
	if !p.IsAdmin() {
		return nil, ErrForbidden
	}
	if _, err := s.repo.Get(ctx, projectID); err != nil {
		return nil, err
	}
	in.Description = s.sanitize.Text(in.Description)
	if err := security.Validate(in); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	date := today
	if d := parseDate(in.EntryDate); d != nil {
		date = *d
	}
	if date.After(today) {
		return nil, security.NewValidationError("entry_date", "must not be in the future")
	}

	e := &domain.TimeEntry{
		ID:          uuid.New().String(),
		ProjectID:   projectID,
		UserID:      p.UserID,
		Description: in.Description,
		Minutes:     in.Minutes,
		Billable:    in.Billable,
		RateCents:   in.RateCents,
		EntryDate:   date,
		CreatedAt:   now,
	}
	if err := s.repo.CreateTime(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// ListTime returns the time entries of a project visible to p.
func (s *Service) ListTime(ctx context.Context, p domain.Principal, projectID string) ([]domain.TimeEntry, error) {
	if _, err := s.Get(ctx, p, projectID); err != nil {
		return nil, err
	}
	return s.repo.ListTime(ctx, projectID)
}

// DeleteTime removes a time entry. Admin only.
func (s *Service) DeleteTime(ctx context.Context, p domain.Principal, id string) error {
	if !p.IsAdmin() {
		return ErrForbidden
	}
	if _, err := s.repo.GetTime(ctx, id); err != nil {
		return err
	}
	return s.repo.DeleteTime(ctx, id)
}

// TimeSummary totals the minutes and billable amount logged on a project.
func (s *Service) TimeSummary(ctx context.Context, p domain.Principal, projectID string) (*domain.TimeSummary, error) {
	entries, err := s.ListTime(ctx, p, projectID)
	if err != nil {
		return nil, err
	}
	sum := Summarize(projectID, entries)
	return &sum, nil
}

// Summarize aggregates entries into a TimeSummary.
func Summarize(projectID string, entries []domain.TimeEntry) domain.TimeSummary {
	sum := domain.TimeSummary{ProjectID: projectID, Entries: len(entries)}
	for i := range entries {
		e := &entries[i]
		sum.TotalMinutes += e.Minutes
		if e.Billable {
			sum.BillableMinutes += e.Minutes
			sum.BillableCents += e.AmountCents()
		}
	}
	return sum
}
