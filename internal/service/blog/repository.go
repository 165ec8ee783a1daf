package blog

import (
	"context"

	"github.com/brightpixel/agency-portal/internal/domain"
)

// Repository defines the data access contract for articles.
// Implementations must be safe for concurrent use.
type Repository interface {
	// Get returns a single article. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, id string) (*domain.Article, error)

	// GetBySlug returns ErrNotFound if no article has this slug.
	GetBySlug(ctx context.Context, slug string) (*domain.Article, error)

	// List returns articles matching the filter. Published articles are
	// ordered by published_at DESC, others by created_at DESC.
	List(ctx context.Context, f ListFilter) ([]domain.Article, int, error)

	// SlugExists reports whether any article uses slug.
	SlugExists(ctx context.Context, slug string) (bool, error)

	// SourceExists reports whether an article was already imported from
	// the feed item with this GUID.
	SourceExists(ctx context.Context, guid string) (bool, error)

	Create(ctx context.Context, a *domain.Article) error

	// Save overwrites the mutable fields of an existing article.
	Save(ctx context.Context, a *domain.Article) error

	Delete(ctx context.Context, id string) error
}

// ListFilter controls pagination and filtering for article lists.
type ListFilter struct {
	Status domain.ArticleStatus
	Tag    string
	Search string
	Limit  int
	Offset int
}
