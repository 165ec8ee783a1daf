package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/brightpixel/agency-portal/internal/domain"
	"github.com/brightpixel/agency-portal/internal/service/blog"
)

// source_guid is NULL for hand-written articles so the unique index only
// covers imported ones.
const articleColumns = `id, slug, title, excerpt, content, cover_image_url, tags, status, author_id,
	source_url, COALESCE(source_guid, ''), published_at, created_at, updated_at`

// ArticleRepo implements blog.Repository against PostgreSQL.
type ArticleRepo struct{ db *sql.DB }

// NewArticleRepo creates a Postgres-backed article repository.
func NewArticleRepo(db *sql.DB) *ArticleRepo { return &ArticleRepo{db: db} }

func scanArticle(row rowScanner) (*domain.Article, error) {
	a := &domain.Article{}
	err := row.Scan(&a.ID, &a.Slug, &a.Title, &a.Excerpt, &a.Content, &a.CoverImageURL,
		pq.Array(&a.Tags), &a.Status, &a.AuthorID, &a.SourceURL, &a.SourceGUID,
		&a.PublishedAt, &a.CreatedAt, &a.UpdatedAt)
	if a.Tags == nil {
		a.Tags = []string{}
	}
	return a, err
}

func (r *ArticleRepo) get(ctx context.Context, col, val string) (*domain.Article, error) {
	a, err := scanArticle(r.db.QueryRowContext(ctx,
		`SELECT `+articleColumns+` FROM articles WHERE `+col+` = $1`, val))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, blog.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get article: %w", err)
	}
	return a, nil
}

func (r *ArticleRepo) Get(ctx context.Context, id string) (*domain.Article, error) {
	return r.get(ctx, "id", id)
}

func (r *ArticleRepo) GetBySlug(ctx context.Context, slug string) (*domain.Article, error) {
	return r.get(ctx, "slug", slug)
}

func (r *ArticleRepo) List(ctx context.Context, f blog.ListFilter) ([]domain.Article, int, error) {
	var w where
	if f.Status != "" {
		w.add("status = $%d", f.Status)
	}
	if f.Tag != "" {
		w.add("$%d = ANY(tags)", f.Tag)
	}
	if f.Search != "" {
		w.add("(title ILIKE $%[1]d OR excerpt ILIKE $%[1]d OR content ILIKE $%[1]d)", likePattern(f.Search))
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM articles`+w.String(), w.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count articles: %w", err)
	}

	order := ` ORDER BY created_at DESC`
	if f.Status == domain.ArticlePublished {
		order = ` ORDER BY published_at DESC`
	}
	q, args := w.page(`SELECT `+articleColumns+` FROM articles`+w.String()+order, f.Limit, f.Offset)
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list articles: %w", err)
	}
	defer rows.Close()

	out := []domain.Article{}
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan article: %w", err)
		}
		out = append(out, *a)
	}
	return out, total, rows.Err()
}

func (r *ArticleRepo) exists(ctx context.Context, col, val string) (bool, error) {
	var ok bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM articles WHERE `+col+` = $1)`, val).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check article %s: %w", col, err)
	}
	return ok, nil
}

func (r *ArticleRepo) SlugExists(ctx context.Context, slug string) (bool, error) {
	return r.exists(ctx, "slug", slug)
}

func (r *ArticleRepo) SourceExists(ctx context.Context, guid string) (bool, error) {
	return r.exists(ctx, "source_guid", guid)
}

func (r *ArticleRepo) Create(ctx context.Context, a *domain.Article) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO articles (id, slug, title, excerpt, content, cover_image_url, tags, status, author_id,
		                      source_url, source_guid, published_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NULLIF($11, ''), $12, $13, $14)
	`, a.ID, a.Slug, a.Title, a.Excerpt, a.Content, a.CoverImageURL, pq.Array(a.Tags), a.Status,
		a.AuthorID, a.SourceURL, a.SourceGUID, a.PublishedAt, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create article: %w", err)
	}
	return nil
}

func (r *ArticleRepo) Save(ctx context.Context, a *domain.Article) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE articles
		SET slug = $1, title = $2, excerpt = $3, content = $4, cover_image_url = $5, tags = $6,
		    status = $7, published_at = $8, updated_at = $9
		WHERE id = $10
	`, a.Slug, a.Title, a.Excerpt, a.Content, a.CoverImageURL, pq.Array(a.Tags),
		a.Status, a.PublishedAt, a.UpdatedAt, a.ID)
	if err != nil {
		return fmt.Errorf("save article: %w", err)
	}
	return affected(res, blog.ErrNotFound)
}

func (r *ArticleRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM articles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete article: %w", err)
	}
	return affected(res, blog.ErrNotFound)
}
