package brief

import (
	"context"

	"github.com/brightpixel/agency-portal/internal/domain"
)

// Repository defines the data access contract for submitted briefs.
// Implementations must be safe for concurrent use.
type Repository interface {
	Create(ctx context.Context, b *domain.ProjectBrief) error

	// Get returns a single brief. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, id string) (*domain.ProjectBrief, error)

	// List returns briefs matching the filter, newest first.
	List(ctx context.Context, f ListFilter) ([]domain.ProjectBrief, int, error)

	UpdateStatus(ctx context.Context, id string, status domain.BriefStatus) error
}

// ListFilter controls pagination and filtering for brief lists.
type ListFilter struct {
	Status domain.BriefStatus
	Limit  int
	Offset int
}
