package dashboard

import (
	"context"
	"time"

	"github.com/brightpixel/agency-portal/internal/domain"
)

// Repository provides the aggregate queries behind the overviews.
// Implementations must be safe for concurrent use.
type Repository interface {
	ProjectCounts(ctx context.Context) (map[domain.ProjectStatus]int, error)

	// ActiveClients counts clients with at least one active project.
	ActiveClients(ctx context.Context) (int, error)

	InvoiceTotals(ctx context.Context, clientID string, monthStart time.Time) (InvoiceTotals, error)

	// MinutesLogged sums time entries dated on or after since. An empty
	// clientID covers every client.
	MinutesLogged(ctx context.Context, clientID string, since time.Time) (int, error)

	NewContacts(ctx context.Context, since time.Time) (int, error)
	PendingBriefs(ctx context.Context) (int, error)

	ClientProjects(ctx context.Context, clientID string) ([]domain.Project, error)
	Milestones(ctx context.Context, projectID string) ([]domain.Milestone, error)
}

// InvoiceTotals sums invoice amounts by state. Outstanding covers sent and
// overdue invoices.
type InvoiceTotals struct {
	OutstandingCents   int64 `json:"outstanding_cents"`
	OverdueCents       int64 `json:"overdue_cents"`
	OverdueCount       int   `json:"overdue_count"`
	PaidThisMonthCents int64 `json:"paid_this_month_cents"`
}
