package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/brightpixel/agency-portal/internal/domain"
	"github.com/brightpixel/agency-portal/internal/service/contact"
)

const contactColumns = `id, name, email, company, phone, service, budget, message, status, ip_address, user_agent, created_at`

// ContactRepo implements contact.Repository against PostgreSQL.
type ContactRepo struct{ db *sql.DB }

// NewContactRepo creates a Postgres-backed contact repository.
func NewContactRepo(db *sql.DB) *ContactRepo { return &ContactRepo{db: db} }

func scanContact(row rowScanner) (*domain.ContactSubmission, error) {
	c := &domain.ContactSubmission{}
	err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Company, &c.Phone, &c.Service, &c.Budget,
		&c.Message, &c.Status, &c.IPAddress, &c.UserAgent, &c.CreatedAt)
	return c, err
}

func (r *ContactRepo) Create(ctx context.Context, c *domain.ContactSubmission) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO contact_submissions (`+contactColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, c.ID, c.Name, c.Email, c.Company, c.Phone, c.Service, c.Budget, c.Message, c.Status,
		c.IPAddress, c.UserAgent, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("create contact submission: %w", err)
	}
	return nil
}

func (r *ContactRepo) Get(ctx context.Context, id string) (*domain.ContactSubmission, error) {
	c, err := scanContact(r.db.QueryRowContext(ctx,
		`SELECT `+contactColumns+` FROM contact_submissions WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, contact.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get contact submission: %w", err)
	}
	return c, nil
}

func (r *ContactRepo) List(ctx context.Context, f contact.ListFilter) ([]domain.ContactSubmission, int, error) {
	var w where
	if f.Status != "" {
		w.add("status = $%d", f.Status)
	}
	if f.Search != "" {
		w.add("(name ILIKE $%[1]d OR email ILIKE $%[1]d OR company ILIKE $%[1]d OR message ILIKE $%[1]d)",
			likePattern(f.Search))
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM contact_submissions`+w.String(), w.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count contact submissions: %w", err)
	}

	q, args := w.page(`SELECT `+contactColumns+` FROM contact_submissions`+w.String()+` ORDER BY created_at DESC`, f.Limit, f.Offset)
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list contact submissions: %w", err)
	}
	defer rows.Close()

	out := []domain.ContactSubmission{}
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan contact submission: %w", err)
		}
		out = append(out, *c)
	}
	return out, total, rows.Err()
}

func (r *ContactRepo) UpdateStatus(ctx context.Context, id string, status domain.ContactStatus) error {
	res, err := r.db.ExecContext(ctx, `UPDATE contact_submissions SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("update contact status: %w", err)
	}
	return affected(res, contact.ErrNotFound)
}

func (r *ContactRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM contact_submissions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete contact submission: %w", err)
	}
	return affected(res, contact.ErrNotFound)
}
