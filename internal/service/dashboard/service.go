package dashboard

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/brightpixel/agency-portal/internal/domain"
)

const newContactWindow = 7 * 24 * time.Hour

// AdminOverview is the staff landing page.
type AdminOverview struct {
	ProjectsByStatus map[domain.ProjectStatus]int `json:"projects_by_status"`
	ActiveProjects   int                          `json:"active_projects"`
	ActiveClients    int                          `json:"active_clients"`
	Invoices         InvoiceTotals                `json:"invoices"`
	MinutesThisMonth int                          `json:"minutes_this_month"`
	NewContacts      int                          `json:"new_contacts_7d"`
	PendingBriefs    int                          `json:"pending_briefs"`
	GeneratedAt      time.Time                    `json:"generated_at"`
}

// ProjectCard summarizes one project for its client.
type ProjectCard struct {
	Project         domain.Project    `json:"project"`
	MilestonesTotal int               `json:"milestones_total"`
	MilestonesDone  int               `json:"milestones_done"`
	NextMilestone   *domain.Milestone `json:"next_milestone,omitempty"`
}

// ClientOverview is a client's landing page.
type ClientOverview struct {
	Projects          []ProjectCard `json:"projects"`
	OpenInvoicesCents int64         `json:"open_invoices_cents"`
	OverdueInvoices   int           `json:"overdue_invoices"`
	MinutesThisMonth  int           `json:"minutes_this_month"`
	GeneratedAt       time.Time     `json:"generated_at"`
}

// Service assembles dashboard data.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a dashboard service backed by the given repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// WithClock replaces the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// AdminOverview returns business totals. Admin only.
func (s *Service) AdminOverview(ctx context.Context, p domain.Principal) (*AdminOverview, error) {
	if !p.IsAdmin() {
		return nil, ErrForbidden
	}
	now := s.now().UTC()
	month := monthStart(now)
	out := &AdminOverview{GeneratedAt: now}

	counts, err := s.repo.ProjectCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("project counts: %w", err)
	}
	out.ProjectsByStatus = counts
	for status, n := range counts {
		if status.Active() {
			out.ActiveProjects += n
		}
	}
	if out.ActiveClients, err = s.repo.ActiveClients(ctx); err != nil {
		return nil, fmt.Errorf("active clients: %w", err)
	}
	if out.Invoices, err = s.repo.InvoiceTotals(ctx, "", month); err != nil {
		return nil, fmt.Errorf("invoice totals: %w", err)
	}
	if out.MinutesThisMonth, err = s.repo.MinutesLogged(ctx, "", month); err != nil {
		return nil, fmt.Errorf("minutes logged: %w", err)
	}
	if out.NewContacts, err = s.repo.NewContacts(ctx, now.Add(-newContactWindow)); err != nil {
		return nil, fmt.Errorf("new contacts: %w", err)
	}
	if out.PendingBriefs, err = s.repo.PendingBriefs(ctx); err != nil {
		return nil, fmt.Errorf("pending briefs: %w", err)
	}
	return out, nil
}

// ClientOverview returns the projects and open invoices of clientID.
// Clients may only request their own overview; an empty clientID means the
// caller.
func (s *Service) ClientOverview(ctx context.Context, p domain.Principal, clientID string) (*ClientOverview, error) {
	if clientID == "" {
		clientID = p.UserID
	}
	if !p.IsAdmin() && clientID != p.UserID {
		return nil, ErrForbidden
	}
	now := s.now().UTC()
	month := monthStart(now)
	out := &ClientOverview{GeneratedAt: now, Projects: []ProjectCard{}}

	projects, err := s.repo.ClientProjects(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("client projects: %w", err)
	}
	for _, pr := range projects {
		ms, err := s.repo.Milestones(ctx, pr.ID)
		if err != nil {
			return nil, fmt.Errorf("milestones for %s: %w", pr.ID, err)
		}
		out.Projects = append(out.Projects, buildCard(pr, ms))
	}

	totals, err := s.repo.InvoiceTotals(ctx, clientID, month)
	if err != nil {
		return nil, fmt.Errorf("invoice totals: %w", err)
	}
	out.OpenInvoicesCents = totals.OutstandingCents
	out.OverdueInvoices = totals.OverdueCount

	if out.MinutesThisMonth, err = s.repo.MinutesLogged(ctx, clientID, month); err != nil {
		return nil, fmt.Errorf("minutes logged: %w", err)
	}
	return out, nil
}

// buildCard counts milestones and picks the next open one: lowest sort
// order first, then earliest due date.
func buildCard(p domain.Project, ms []domain.Milestone) ProjectCard {
	card := ProjectCard{Project: p, MilestonesTotal: len(ms)}
	var open []domain.Milestone
	for _, m := range ms {
		if m.Status == domain.MilestoneCompleted {
			card.MilestonesDone++
			continue
		}
		open = append(open, m)
	}
	if len(open) == 0 {
		return card
	}
	sort.SliceStable(open, func(i, j int) bool {
		if open[i].SortOrder != open[j].SortOrder {
			return open[i].SortOrder < open[j].SortOrder
		}
		if open[i].DueDate == nil || open[j].DueDate == nil {
			return open[j].DueDate == nil && open[i].DueDate != nil
		}
		return open[i].DueDate.Before(*open[j].DueDate)
	})
	next := open[0]
	card.NextMilestone = &next
	return card
}
