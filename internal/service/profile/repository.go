package profile

import (
	"context"

	"github.com/brightpixel/agency-portal/internal/domain"
)

// Repository defines the data access contract for profiles.
// Implementations must be safe for concurrent use.
type Repository interface {
	// Get returns a single profile. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, id string) (*domain.Profile, error)

	// GetByEmail looks a profile up by its normalized email.
	GetByEmail(ctx context.Context, email string) (*domain.Profile, error)

	// Create inserts a new profile.
	Create(ctx context.Context, p *domain.Profile) error

	// Update applies the non-nil fields and returns the updated profile.
	Update(ctx context.Context, id string, u UpdateFields) (*domain.Profile, error)

	// SetRole changes a profile's role.
	SetRole(ctx context.Context, id string, role domain.Role) error

	// List returns profiles matching the filter, ordered by created_at DESC.
	List(ctx context.Context, f ListFilter) ([]domain.Profile, int, error)
}

// ListFilter controls pagination and filtering for profile lists.
type ListFilter struct {
	Role   domain.Role
	Search string
	Limit  int
	Offset int
}

// UpdateFields holds the mutable profile fields. Nil fields are not applied.
type UpdateFields struct {
	FullName  *string
	Company   *string
	Phone     *string
	AvatarURL *string
}
