package project

import (
	"context"
	"time"

	"github.com/brightpixel/agency-portal/internal/domain"
)

// Repository defines the data access contract for projects, milestones and
// time entries. Implementations must be safe for concurrent use.
type Repository interface {
	// Get returns a single project. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, id string) (*domain.Project, error)

	// List returns projects matching the filter, ordered by created_at DESC.
	List(ctx context.Context, f ListFilter) ([]domain.Project, int, error)

	// Create inserts a new project.
	Create(ctx context.Context, p *domain.Project) error

	// Update applies the non-nil fields and returns the updated project.
	Update(ctx context.Context, id string, u UpdateFields) (*domain.Project, error)

	// SetStatus stores a new status and, when non-nil, progress.
	SetStatus(ctx context.Context, id string, status domain.ProjectStatus, progress *int) error

	// SetProgress stores the milestone-derived progress percentage.
	SetProgress(ctx context.Context, id string, progress int) error

	// Delete removes a project with its milestones and time entries.
	Delete(ctx context.Context, id string) error

	// ClientExists reports whether a client profile with this id exists.
	ClientExists(ctx context.Context, clientID string) (bool, error)

	// ListMilestones returns a project's milestones by sort order.
	ListMilestones(ctx context.Context, projectID string) ([]domain.Milestone, error)

	// GetMilestone returns ErrMilestoneNotFound if it doesn't exist.
	GetMilestone(ctx context.Context, id string) (*domain.Milestone, error)

	CreateMilestone(ctx context.Context, m *domain.Milestone) error

	// UpdateMilestone applies the non-nil fields.
	UpdateMilestone(ctx context.Context, id string, u MilestoneFields) (*domain.Milestone, error)

	DeleteMilestone(ctx context.Context, id string) error

	// ListTime returns a project's time entries, newest entry date first.
	ListTime(ctx context.Context, projectID string) ([]domain.TimeEntry, error)

	// GetTime returns ErrTimeNotFound if it doesn't exist.
	GetTime(ctx context.Context, id string) (*domain.TimeEntry, error)

	CreateTime(ctx context.Context, e *domain.TimeEntry) error

	DeleteTime(ctx context.Context, id string) error
}

// ListFilter controls pagination and filtering for project lists.
// An empty ClientID lists every client's projects.
type ListFilter struct {
	ClientID string
	Status   domain.ProjectStatus
	Search   string
	Limit    int
	Offset   int
}

// UpdateFields holds the mutable project fields. Nil fields are not applied.
type UpdateFields struct {
	Name        *string
	Description *string
	BudgetCents *int64
	StartDate   *time.Time
	DueDate     *time.Time
}

// MilestoneFields holds the mutable milestone fields.
type MilestoneFields struct {
	Title       *string
	Description *string
	Status      *domain.MilestoneStatus
	DueDate     *time.Time
	CompletedAt *time.Time
	SortOrder   *int
	// ClearCompleted resets completed_at when a milestone is reopened.
	ClearCompleted bool
}
