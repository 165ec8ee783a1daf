package project

import (
	"context"
	"log"

	"github.com/google/uuid"

	"github.com/brightpixel/agency-portal/internal/domain"
	"github.com/brightpixel/agency-portal/internal/security"
)

// MilestoneInput holds the fields for a new milestone.
type MilestoneInput struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
	DueDate     string `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
	SortOrder   int    `json:"sort_order"`
}

// MilestoneUpdate holds the editable milestone fields.
type MilestoneUpdate struct {
	Title       *string                 `json:"title" validate:"omitempty,max=200"`
	Description *string                 `json:"description" validate:"omitempty,max=2000"`
	Status      *domain.MilestoneStatus `json:"status"`
	DueDate     *string                 `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
	SortOrder   *int                    `json:"sort_order"`
}

// ListMilestones returns the milestones of a project visible to p.
func (s *Service) ListMilestones(ctx context.Context, p domain.Principal, projectID string) ([]domain.Milestone, error) {
	if _, err := s.Get(ctx, p, projectID); err != nil {
		return nil, err
	}
	return s.repo.ListMilestones(ctx, projectID)
}

// AddMilestone appends a pending milestone and recomputes progress.
func (s *Service) AddMilestone(ctx context.Context, p domain.Principal, projectID string, in MilestoneInput) (*domain.Milestone, error) {
	if !p.IsAdmin() {
		return nil, ErrForbidden
	}
	if _, err := s.repo.Get(ctx, projectID); err != nil {
		return nil, err
	}
	in.Title = s.sanitize.Text(in.Title)
	in.Description = s.sanitize.Text(in.Description)
	if err := security.Validate(in); err != nil {
		return nil, err
	}

	m := &domain.Milestone{
		ID:          uuid.New().String(),
		ProjectID:   projectID,
		Title:       in.Title,
		Description: in.Description,
		Status:      domain.MilestonePending,
		DueDate:     parseDate(in.DueDate),
		SortOrder:   in.SortOrder,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.repo.CreateMilestone(ctx, m); err != nil {
		return nil, err
	}
	if err := s.recomputeProgress(ctx, projectID); err != nil {
		return nil, err
	}
	return m, nil
}

// UpdateMilestone edits a milestone. Moving it into or out of completed
// maintains completed_at and the project's progress.
func (s *Service) UpdateMilestone(ctx context.Context, p domain.Principal, id string, in MilestoneUpdate) (*domain.Milestone, error) {
	if !p.IsAdmin() {
		return nil, ErrForbidden
	}
	cur, err := s.repo.GetMilestone(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Title != nil {
		v := s.sanitize.Text(*in.Title)
		if v == "" {
			return nil, security.NewValidationError("title", "is required")
		}
		in.Title = &v
	}
	if in.Description != nil {
		v := s.sanitize.Text(*in.Description)
		in.Description = &v
	}
	if in.Status != nil && !in.Status.Valid() {
		return nil, security.NewValidationError("status", "is invalid")
	}
	if err := security.Validate(in); err != nil {
		return nil, err
	}

	u := MilestoneFields{
		Title:       in.Title,
		Description: in.Description,
		Status:      in.Status,
		SortOrder:   in.SortOrder,
	}
	if in.DueDate != nil {
		u.DueDate = parseDate(*in.DueDate)
	}
	statusChanged := in.Status != nil && *in.Status != cur.Status
	if statusChanged {
		if *in.Status == domain.MilestoneCompleted {
			now := s.now().UTC()
			u.CompletedAt = &now
		} else if cur.Status == domain.MilestoneCompleted {
			u.ClearCompleted = true
		}
	}

	m, err := s.repo.UpdateMilestone(ctx, id, u)
	if err != nil {
		return nil, err
	}
	if statusChanged {
		if err := s.recomputeProgress(ctx, m.ProjectID); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// CompleteMilestone marks a milestone completed.
func (s *Service) CompleteMilestone(ctx context.Context, p domain.Principal, id string) (*domain.Milestone, error) {
	done := domain.MilestoneCompleted
	return s.UpdateMilestone(ctx, p, id, MilestoneUpdate{Status: &done})
}

// DeleteMilestone removes a milestone and recomputes progress.
func (s *Service) DeleteMilestone(ctx context.Context, p domain.Principal, id string) error {
	if !p.IsAdmin() {
		return ErrForbidden
	}
	m, err := s.repo.GetMilestone(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteMilestone(ctx, id); err != nil {
		return err
	}
	return s.recomputeProgress(ctx, m.ProjectID)
}

// recomputeProgress sets progress to the share of completed milestones.
// A completed project stays at 100.
func (s *Service) recomputeProgress(ctx context.Context, projectID string) error {
	proj, err := s.repo.Get(ctx, projectID)
	if err != nil {
		return err
	}
	if proj.Status == domain.ProjectCompleted {
		return nil
	}
	ms, err := s.repo.ListMilestones(ctx, projectID)
	if err != nil {
		return err
	}
	progress := Progress(ms)
	if progress == proj.Progress {
		return nil
	}
	if err := s.repo.SetProgress(ctx, projectID, progress); err != nil {
		return err
	}
	log.Printf("[project.Service] project %s progress %d%%", projectID, progress)
	return nil
}

// Progress returns completed / total * 100, rounded down. No milestones
// means no progress.
func Progress(ms []domain.Milestone) int {
	if len(ms) == 0 {
		return 0
	}
	done := 0
	for _, m := range ms {
		if m.Status == domain.MilestoneCompleted {
			done++
		}
	}
	return done * 100 / len(ms)
}
