package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/brightpixel/agency-portal/internal/domain"
	"github.com/brightpixel/agency-portal/internal/service/dashboard"
)

// DashboardRepo implements dashboard.Repository with aggregate queries.
type DashboardRepo struct{ db *sql.DB }

// NewDashboardRepo creates a Postgres-backed dashboard repository.
func NewDashboardRepo(db *sql.DB) *DashboardRepo { return &DashboardRepo{db: db} }

func (r *DashboardRepo) ProjectCounts(ctx context.Context) (map[domain.ProjectStatus]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM projects GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count projects by status: %w", err)
	}
	defer rows.Close()

	out := make(map[domain.ProjectStatus]int)
	for rows.Next() {
		var status domain.ProjectStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan project count: %w", err)
		}
		out[status] = n
	}
	return out, rows.Err()
}

func (r *DashboardRepo) ActiveClients(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT client_id) FROM projects
		WHERE status IN ('planning', 'in_progress', 'review')
	`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count active clients: %w", err)
	}
	return n, nil
}

func (r *DashboardRepo) InvoiceTotals(ctx context.Context, clientID string, monthStart time.Time) (dashboard.InvoiceTotals, error) {
	var t dashboard.InvoiceTotals
	err := r.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(total_cents) FILTER (WHERE status IN ('sent', 'overdue')), 0),
			COALESCE(SUM(total_cents) FILTER (WHERE status = 'overdue'), 0),
			COUNT(*) FILTER (WHERE status = 'overdue'),
			COALESCE(SUM(total_cents) FILTER (WHERE status = 'paid' AND paid_at >= $2), 0)
		FROM invoices
		WHERE ($1::text = '' OR client_id::text = $1)
	`, clientID, monthStart).Scan(&t.OutstandingCents, &t.OverdueCents, &t.OverdueCount, &t.PaidThisMonthCents)
	if err != nil {
		return t, fmt.Errorf("sum invoices: %w", err)
	}
	return t, nil
}

func (r *DashboardRepo) MinutesLogged(ctx context.Context, clientID string, since time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(t.minutes), 0)
		FROM time_entries t
		JOIN projects p ON p.id = t.project_id
		WHERE t.entry_date >= $2 AND ($1::text = '' OR p.client_id::text = $1)
	`, clientID, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sum minutes: %w", err)
	}
	return n, nil
}

func (r *DashboardRepo) NewContacts(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM contact_submissions WHERE created_at >= $1`, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count new contacts: %w", err)
	}
	return n, nil
}

func (r *DashboardRepo) PendingBriefs(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM project_briefs WHERE status = 'submitted'`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count pending briefs: %w", err)
	}
	return n, nil
}

func (r *DashboardRepo) ClientProjects(ctx context.Context, clientID string) ([]domain.Project, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+projectColumns+` FROM projects
		WHERE client_id = $1
		ORDER BY created_at DESC
	`, clientID)
	if err != nil {
		return nil, fmt.Errorf("list client projects: %w", err)
	}
	defer rows.Close()

	out := []domain.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (r *DashboardRepo) Milestones(ctx context.Context, projectID string) ([]domain.Milestone, error) {
	return (&ProjectRepo{db: r.db}).ListMilestones(ctx, projectID)
}
