package project

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/brightpixel/agency-portal/internal/domain"
	"github.com/brightpixel/agency-portal/internal/security"
)

const dateLayout = "2006-01-02"

// Service implements project, milestone and time tracking logic.
// All public methods are safe for concurrent use if the underlying
// repository is concurrency-safe.
type Service struct {
	repo     Repository
	sanitize *security.Sanitizer
	now      func() time.Time
}

// NewService creates a project service backed by the given repository.
func NewService(repo Repository, maxFieldLength int) *Service {
	return &Service{repo: repo, sanitize: security.NewSanitizer(maxFieldLength), now: time.Now}
}

// WithClock replaces the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// CreateInput holds the fields for creating a project.
type CreateInput struct {
	ClientID    string `json:"client_id" validate:"required"`
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description" validate:"max=5000"`
	BudgetCents int64  `json:"budget_cents" validate:"gte=0"`
	StartDate   string `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	DueDate     string `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
}

// UpdateInput holds the editable project fields.
type UpdateInput struct {
	Name        *string `json:"name" validate:"omitempty,max=200"`
	Description *string `json:"description" validate:"omitempty,max=5000"`
	BudgetCents *int64  `json:"budget_cents" validate:"omitempty,gte=0"`
	StartDate   *string `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	DueDate     *string `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
}

// List returns the projects visible to p. Clients only see their own.
func (s *Service) List(ctx context.Context, p domain.Principal, f ListFilter) ([]domain.Project, int, error) {
	if !p.IsAdmin() {
		f.ClientID = p.UserID
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, 0, security.NewValidationError("status", "is invalid")
	}
	f.Search = s.sanitize.Text(f.Search)
	return s.repo.List(ctx, f)
}

// Get returns a project visible to p. Another client's project is
// reported as not found.
func (s *Service) Get(ctx context.Context, p domain.Principal, id string) (*domain.Project, error) {
	proj, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.IsAdmin() && proj.ClientID != p.UserID {
		return nil, ErrNotFound
	}
	return proj, nil
}

// Create adds a project in planning status. Admin only.
func (s *Service) Create(ctx context.Context, p domain.Principal, in CreateInput) (*domain.Project, error) {
	if !p.IsAdmin() {
		return nil, ErrForbidden
	}
	in.Name = s.sanitize.Text(in.Name)
	in.Description = s.sanitize.Text(in.Description)
	if err := security.Validate(in); err != nil {
		return nil, err
	}

	ok, err := s.repo.ClientExists(ctx, in.ClientID)
	if err != nil {
		return nil, fmt.Errorf("check client: %w", err)
	}
	if !ok {
		return nil, ErrClientNotFound
	}

	now := s.now().UTC()
	proj := &domain.Project{
		ID:          uuid.New().String(),
		ClientID:    in.ClientID,
		Name:        in.Name,
		Description: in.Description,
		Status:      domain.ProjectPlanning,
		BudgetCents: in.BudgetCents,
		StartDate:   parseDate(in.StartDate),
		DueDate:     parseDate(in.DueDate),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if proj.StartDate != nil && proj.DueDate != nil && proj.DueDate.Before(*proj.StartDate) {
		return nil, security.NewValidationError("due_date", "must not be before start_date")
	}
	if err := s.repo.Create(ctx, proj); err != nil {
		return nil, err
	}
	log.Printf("[project.Service] created project %s for client %s", proj.ID, proj.ClientID)
	return proj, nil
}

// Update modifies project details. Admin only.
func (s *Service) Update(ctx context.Context, p domain.Principal, id string, in UpdateInput) (*domain.Project, error) {
	if !p.IsAdmin() {
		return nil, ErrForbidden
	}
	if in.Name != nil {
		v := s.sanitize.Text(*in.Name)
		if v == "" {
			return nil, security.NewValidationError("name", "is required")
		}
		in.Name = &v
	}
	if in.Description != nil {
		v := s.sanitize.Text(*in.Description)
		in.Description = &v
	}
	if err := security.Validate(in); err != nil {
		return nil, err
	}

	u := UpdateFields{Name: in.Name, Description: in.Description, BudgetCents: in.BudgetCents}
	if in.StartDate != nil {
		u.StartDate = parseDate(*in.StartDate)
	}
	if in.DueDate != nil {
		u.DueDate = parseDate(*in.DueDate)
	}
	return s.repo.Update(ctx, id, u)
}

// Transition moves a project to next, enforcing the status transition
// table. Completing a project sets its progress to 100.
func (s *Service) Transition(ctx context.Context, p domain.Principal, id string, next domain.ProjectStatus) (*domain.Project, error) {
	if !p.IsAdmin() {
		return nil, ErrForbidden
	}
	if !next.Valid() {
		return nil, security.NewValidationError("status", "is invalid")
	}
	proj, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !proj.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, proj.Status, next)
	}

	var progress *int
	if next == domain.ProjectCompleted {
		full := 100
		progress = &full
	}
	if err := s.repo.SetStatus(ctx, id, next, progress); err != nil {
		return nil, err
	}
	log.Printf("[project.Service] project %s: %s -> %s", id, proj.Status, next)

	proj.Status = next
	if progress != nil {
		proj.Progress = *progress
	}
	return proj, nil
}

// Delete removes a project that never started or was cancelled. Admin only.
func (s *Service) Delete(ctx context.Context, p domain.Principal, id string) error {
	if !p.IsAdmin() {
		return ErrForbidden
	}
	proj, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if proj.Status != domain.ProjectPlanning && proj.Status != domain.ProjectCancelled {
		return ErrNotDeletable
	}
	return s.repo.Delete(ctx, id)
}

func parseDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil
	}
	return &t
}
