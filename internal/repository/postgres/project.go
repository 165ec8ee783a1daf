package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/brightpixel/agency-portal/internal/domain"
	"github.com/brightpixel/agency-portal/internal/service/project"
)

const (
	projectColumns   = `id, client_id, name, description, status, budget_cents, progress, start_date, due_date, created_at, updated_at`
	milestoneColumns = `id, project_id, title, description, status, due_date, completed_at, sort_order, created_at`
	timeColumns      = `id, project_id, user_id, description, minutes, billable, rate_cents, entry_date, created_at`
)

// ProjectRepo implements project.Repository against PostgreSQL.
type ProjectRepo struct{ db *sql.DB }

// NewProjectRepo creates a Postgres-backed project repository.
func NewProjectRepo(db *sql.DB) *ProjectRepo { return &ProjectRepo{db: db} }

func scanProject(row rowScanner) (*domain.Project, error) {
	p := &domain.Project{}
	err := row.Scan(&p.ID, &p.ClientID, &p.Name, &p.Description, &p.Status, &p.BudgetCents,
		&p.Progress, &p.StartDate, &p.DueDate, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func scanMilestone(row rowScanner) (*domain.Milestone, error) {
	m := &domain.Milestone{}
	err := row.Scan(&m.ID, &m.ProjectID, &m.Title, &m.Description, &m.Status, &m.DueDate,
		&m.CompletedAt, &m.SortOrder, &m.CreatedAt)
	return m, err
}

func scanTime(row rowScanner) (*domain.TimeEntry, error) {
	e := &domain.TimeEntry{}
	err := row.Scan(&e.ID, &e.ProjectID, &e.UserID, &e.Description, &e.Minutes, &e.Billable,
		&e.RateCents, &e.EntryDate, &e.CreatedAt)
	return e, err
}

func (r *ProjectRepo) Get(ctx context.Context, id string) (*domain.Project, error) {
	p, err := scanProject(r.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, project.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

func (r *ProjectRepo) List(ctx context.Context, f project.ListFilter) ([]domain.Project, int, error) {
	var w where
	if f.ClientID != "" {
		w.add("client_id = $%d", f.ClientID)
	}
	if f.Status != "" {
		w.add("status = $%d", f.Status)
	}
	if f.Search != "" {
		w.add("(name ILIKE $%[1]d OR description ILIKE $%[1]d)", likePattern(f.Search))
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM projects`+w.String(), w.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count projects: %w", err)
	}

	q, args := w.page(`SELECT `+projectColumns+` FROM projects`+w.String()+` ORDER BY created_at DESC`, f.Limit, f.Offset)
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	out := []domain.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan project: %w", err)
		}
		out = append(out, *p)
	}
	return out, total, rows.Err()
}

func (r *ProjectRepo) Create(ctx context.Context, p *domain.Project) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO projects (id, client_id, name, description, status, budget_cents, progress,
		                      start_date, due_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, p.ID, p.ClientID, p.Name, p.Description, p.Status, p.BudgetCents, p.Progress,
		p.StartDate, p.DueDate, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create project: %w", err)
	}
	return nil
}

func (r *ProjectRepo) Update(ctx context.Context, id string, u project.UpdateFields) (*domain.Project, error) {
	var s setter
	if u.Name != nil {
		s.add("name", *u.Name)
	}
	if u.Description != nil {
		s.add("description", *u.Description)
	}
	if u.BudgetCents != nil {
		s.add("budget_cents", *u.BudgetCents)
	}
	if u.StartDate != nil {
		s.add("start_date", *u.StartDate)
	}
	if u.DueDate != nil {
		s.add("due_date", *u.DueDate)
	}
	if s.empty() {
		return r.Get(ctx, id)
	}
	s.raw("updated_at = NOW()")
	q, args := s.build("projects", id)

	p, err := scanProject(r.db.QueryRowContext(ctx, q+` RETURNING `+projectColumns, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, project.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update project: %w", err)
	}
	return p, nil
}

func (r *ProjectRepo) SetStatus(ctx context.Context, id string, status domain.ProjectStatus, progress *int) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE projects SET status = $1, progress = COALESCE($2::int, progress), updated_at = NOW()
		WHERE id = $3
	`, status, progress, id)
	if err != nil {
		return fmt.Errorf("set project status: %w", err)
	}
	return affected(res, project.ErrNotFound)
}

func (r *ProjectRepo) SetProgress(ctx context.Context, id string, progress int) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE projects SET progress = $1, updated_at = NOW() WHERE id = $2`, progress, id)
	if err != nil {
		return fmt.Errorf("set project progress: %w", err)
	}
	return affected(res, project.ErrNotFound)
}

// Delete relies on ON DELETE CASCADE for milestones and time entries.
func (r *ProjectRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	return affected(res, project.ErrNotFound)
}

func (r *ProjectRepo) ClientExists(ctx context.Context, clientID string) (bool, error) {
	var ok bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM profiles WHERE id = $1 AND role = 'client')`, clientID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check client: %w", err)
	}
	return ok, nil
}

func (r *ProjectRepo) ListMilestones(ctx context.Context, projectID string) ([]domain.Milestone, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+milestoneColumns+` FROM milestones
		WHERE project_id = $1
		ORDER BY sort_order, due_date NULLS LAST, created_at
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list milestones: %w", err)
	}
	defer rows.Close()

	out := []domain.Milestone{}
	for rows.Next() {
		m, err := scanMilestone(rows)
		if err != nil {
			return nil, fmt.Errorf("scan milestone: %w", err)
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func (r *ProjectRepo) GetMilestone(ctx context.Context, id string) (*domain.Milestone, error) {
	m, err := scanMilestone(r.db.QueryRowContext(ctx, `SELECT `+milestoneColumns+` FROM milestones WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, project.ErrMilestoneNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get milestone: %w", err)
	}
	return m, nil
}

func (r *ProjectRepo) CreateMilestone(ctx context.Context, m *domain.Milestone) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO milestones (id, project_id, title, description, status, due_date, completed_at, sort_order, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, m.ID, m.ProjectID, m.Title, m.Description, m.Status, m.DueDate, m.CompletedAt, m.SortOrder, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("create milestone: %w", err)
	}
	return nil
}

func (r *ProjectRepo) UpdateMilestone(ctx context.Context, id string, u project.MilestoneFields) (*domain.Milestone, error) {
	var s setter
	if u.Title != nil {
		s.add("title", *u.Title)
	}
	if u.Description != nil {
		s.add("description", *u.Description)
	}
	if u.Status != nil {
		s.add("status", *u.Status)
	}
	if u.DueDate != nil {
		s.add("due_date", *u.DueDate)
	}
	if u.SortOrder != nil {
		s.add("sort_order", *u.SortOrder)
	}
	switch {
	case u.ClearCompleted:
		s.raw("completed_at = NULL")
	case u.CompletedAt != nil:
		s.add("completed_at", *u.CompletedAt)
	}
	if s.empty() {
		return r.GetMilestone(ctx, id)
	}
	q, args := s.build("milestones", id)

	m, err := scanMilestone(r.db.QueryRowContext(ctx, q+` RETURNING `+milestoneColumns, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, project.ErrMilestoneNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update milestone: %w", err)
	}
	return m, nil
}

func (r *ProjectRepo) DeleteMilestone(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM milestones WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete milestone: %w", err)
	}
	return affected(res, project.ErrMilestoneNotFound)
}

func (r *ProjectRepo) ListTime(ctx context.Context, projectID string) ([]domain.TimeEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+timeColumns+` FROM time_entries
		WHERE project_id = $1
		ORDER BY entry_date DESC, created_at DESC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list time entries: %w", err)
	}
	defer rows.Close()

	out := []domain.TimeEntry{}
	for rows.Next() {
		e, err := scanTime(rows)
		if err != nil {
			return nil, fmt.Errorf("scan time entry: %w", err)
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func (r *ProjectRepo) GetTime(ctx context.Context, id string) (*domain.TimeEntry, error) {
	e, err := scanTime(r.db.QueryRowContext(ctx, `SELECT `+timeColumns+` FROM time_entries WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, project.ErrTimeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get time entry: %w", err)
	}
	return e, nil
}

func (r *ProjectRepo) CreateTime(ctx context.Context, e *domain.TimeEntry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO time_entries (id, project_id, user_id, description, minutes, billable, rate_cents, entry_date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, e.ID, e.ProjectID, e.UserID, e.Description, e.Minutes, e.Billable, e.RateCents, e.EntryDate, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("create time entry: %w", err)
	}
	return nil
}

func (r *ProjectRepo) DeleteTime(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM time_entries WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete time entry: %w", err)
	}
	return affected(res, project.ErrTimeNotFound)
}
