package contact

import (
	"context"

	"github.com/brightpixel/agency-portal/internal/domain"
)

// Repository defines the data access contract for contact submissions.
// Implementations must be safe for concurrent use.
type Repository interface {
	Create(ctx context.Context, c *domain.ContactSubmission) error

	// Get returns a single submission. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, id string) (*domain.ContactSubmission, error)

	// List returns submissions matching the filter, newest first.
	List(ctx context.Context, f ListFilter) ([]domain.ContactSubmission, int, error)

	UpdateStatus(ctx context.Context, id string, status domain.ContactStatus) error

	Delete(ctx context.Context, id string) error
}

// ListFilter controls pagination and filtering for submission lists.
// Search matches name, email, company and message.
type ListFilter struct {
	Status domain.ContactStatus
	Search string
	Limit  int
	Offset int
}
