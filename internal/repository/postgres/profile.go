package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/brightpixel/agency-portal/internal/domain"
	"github.com/brightpixel/agency-portal/internal/service/profile"
)

const profileColumns = `id, email, full_name, company, phone, role, avatar_url, created_at, updated_at`

// ProfileRepo implements profile.Repository against PostgreSQL.
type ProfileRepo struct{ db *sql.DB }

// NewProfileRepo creates a Postgres-backed profile repository.
func NewProfileRepo(db *sql.DB) *ProfileRepo { return &ProfileRepo{db: db} }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (*domain.Profile, error) {
	p := &domain.Profile{}
	err := row.Scan(&p.ID, &p.Email, &p.FullName, &p.Company, &p.Phone, &p.Role, &p.AvatarURL, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *ProfileRepo) get(ctx context.Context, col, val string) (*domain.Profile, error) {
	p, err := scanProfile(r.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE `+col+` = $1`, val))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, profile.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

func (r *ProfileRepo) Get(ctx context.Context, id string) (*domain.Profile, error) {
	return r.get(ctx, "id", id)
}

func (r *ProfileRepo) GetByEmail(ctx context.Context, email string) (*domain.Profile, error) {
	return r.get(ctx, "email", email)
}

func (r *ProfileRepo) Create(ctx context.Context, p *domain.Profile) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO profiles (id, email, full_name, company, phone, role, avatar_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, p.ID, p.Email, p.FullName, p.Company, p.Phone, p.Role, p.AvatarURL, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create profile: %w", err)
	}
	return nil
}

func (r *ProfileRepo) Update(ctx context.Context, id string, u profile.UpdateFields) (*domain.Profile, error) {
	var s setter
	if u.FullName != nil {
		s.add("full_name", *u.FullName)
	}
	if u.Company != nil {
		s.add("company", *u.Company)
	}
	if u.Phone != nil {
		s.add("phone", *u.Phone)
	}
	if u.AvatarURL != nil {
		s.add("avatar_url", *u.AvatarURL)
	}
	if s.empty() {
		return r.Get(ctx, id)
	}
	s.raw("updated_at = NOW()")
	q, args := s.build("profiles", id)

	p, err := scanProfile(r.db.QueryRowContext(ctx, q+` RETURNING `+profileColumns, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, profile.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return p, nil
}

func (r *ProfileRepo) SetRole(ctx context.Context, id string, role domain.Role) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE profiles SET role = $1, updated_at = NOW() WHERE id = $2`, role, id)
	if err != nil {
		return fmt.Errorf("set role: %w", err)
	}
	return affected(res, profile.ErrNotFound)
}

func (r *ProfileRepo) List(ctx context.Context, f profile.ListFilter) ([]domain.Profile, int, error) {
	var w where
	if f.Role != "" {
		w.add("role = $%d", f.Role)
	}
	if f.Search != "" {
		w.add("(full_name ILIKE $%[1]d OR email ILIKE $%[1]d OR company ILIKE $%[1]d)", likePattern(f.Search))
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM profiles`+w.String(), w.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count profiles: %w", err)
	}

	q, args := w.page(`SELECT `+profileColumns+` FROM profiles`+w.String()+` ORDER BY created_at DESC`, f.Limit, f.Offset)
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	out := []domain.Profile{}
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan profile: %w", err)
		}
		out = append(out, *p)
	}
	return out, total, rows.Err()
}
