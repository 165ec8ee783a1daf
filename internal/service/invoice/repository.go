package invoice

import (
	"context"
	"time"

	"github.com/brightpixel/agency-portal/internal/domain"
)

// Repository defines the data access contract for invoices.
// Implementations must be safe for concurrent use.
type Repository interface {
	// Get returns a single invoice. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, id string) (*domain.Invoice, error)

	// List returns invoices matching the filter, ordered by created_at DESC.
	List(ctx context.Context, f ListFilter) ([]domain.Invoice, int, error)

	// Create inserts a new invoice.
	Create(ctx context.Context, inv *domain.Invoice) error

	// NextSequence returns the next invoice sequence number for year.
	NextSequence(ctx context.Context, year int) (int, error)

	// UpdateStatus stores status and lifecycle timestamps if the stored
	// status is still from. Otherwise it returns ErrInvalidTransition.
	UpdateStatus(ctx context.Context, inv *domain.Invoice, from domain.InvoiceStatus) error

	// MarkOverdue moves sent invoices due before now to overdue and
	// returns how many changed.
	MarkOverdue(ctx context.Context, now time.Time) (int, error)
}

// ListFilter controls pagination and filtering for invoice lists.
type ListFilter struct {
	ClientID      string
	ProjectID     string
	Status        domain.InvoiceStatus
	ExcludeDrafts bool
	Limit         int
	Offset        int
}

// Projects resolves the project an invoice bills.
type Projects interface {
	Get(ctx context.Context, id string) (*domain.Project, error)
}

// Profiles resolves the client an invoice is sent to.
type Profiles interface {
	Get(ctx context.Context, id string) (*domain.Profile, error)
}
