package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/brightpixel/agency-portal/internal/domain"
	"github.com/brightpixel/agency-portal/internal/service/brief"
)

const briefColumns = `id, session_id, contact_name, email, company, project_type, goals, features,
	budget, timeline, summary, transcript, status, created_at`

// BriefRepo implements brief.Repository against PostgreSQL.
type BriefRepo struct{ db *sql.DB }

// NewBriefRepo creates a Postgres-backed brief repository.
func NewBriefRepo(db *sql.DB) *BriefRepo { return &BriefRepo{db: db} }

func scanBrief(row rowScanner) (*domain.ProjectBrief, error) {
	b := &domain.ProjectBrief{}
	err := row.Scan(&b.ID, &b.SessionID, &b.ContactName, &b.Email, &b.Company, &b.ProjectType,
		&b.Goals, pq.Array(&b.Features), &b.Budget, &b.Timeline, &b.Summary,
		jsonColumn[[]domain.ChatMessage]{&b.Transcript}, &b.Status, &b.CreatedAt)
	return b, err
}

func (r *BriefRepo) Create(ctx context.Context, b *domain.ProjectBrief) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO project_briefs (`+briefColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, b.ID, b.SessionID, b.ContactName, b.Email, b.Company, b.ProjectType, b.Goals,
		pq.Array(b.Features), b.Budget, b.Timeline, b.Summary,
		jsonColumn[[]domain.ChatMessage]{&b.Transcript}, b.Status, b.CreatedAt)
	if err != nil {
		return fmt.Errorf("create brief: %w", err)
	}
	return nil
}

func (r *BriefRepo) Get(ctx context.Context, id string) (*domain.ProjectBrief, error) {
	b, err := scanBrief(r.db.QueryRowContext(ctx, `SELECT `+briefColumns+` FROM project_briefs WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, brief.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get brief: %w", err)
	}
	return b, nil
}

func (r *BriefRepo) List(ctx context.Context, f brief.ListFilter) ([]domain.ProjectBrief, int, error) {
	var w where
	if f.Status != "" {
		w.add("status = $%d", f.Status)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM project_briefs`+w.String(), w.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count briefs: %w", err)
	}

	q, args := w.page(`SELECT `+briefColumns+` FROM project_briefs`+w.String()+` ORDER BY created_at DESC`, f.Limit, f.Offset)
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list briefs: %w", err)
	}
	defer rows.Close()

	out := []domain.ProjectBrief{}
	for rows.Next() {
		b, err := scanBrief(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan brief: %w", err)
		}
		out = append(out, *b)
	}
	return out, total, rows.Err()
}

func (r *BriefRepo) UpdateStatus(ctx context.Context, id string, status domain.BriefStatus) error {
	res, err := r.db.ExecContext(ctx, `UPDATE project_briefs SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("update brief status: %w", err)
	}
	return affected(res, brief.ErrNotFound)
}
