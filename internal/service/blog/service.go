package blog

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/brightpixel/agency-portal/internal/domain"
	"github.com/brightpixel/agency-portal/internal/security"
)

const maxSlugAttempts = 100

// Service implements blog business logic.
type Service struct {
	repo     Repository
	sanitize *security.Sanitizer
	now      func() time.Time
}

// NewService creates a blog service backed by the given repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, sanitize: security.NewSanitizer(300), now: time.Now}
}

// WithClock replaces the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// ListPublished returns articles visible on the public site.
func (s *Service) ListPublished(ctx context.Context, f ListFilter) ([]domain.Article, int, error) {
	f.Status = domain.ArticlePublished
	f.Tag = strings.ToLower(s.sanitize.Text(f.Tag))
	f.Search = s.sanitize.Text(f.Search)
	return s.repo.List(ctx, f)
}

// GetBySlug returns a published article. Drafts are reported as not found.
func (s *Service) GetBySlug(ctx context.Context, slug string) (*domain.Article, error) {
	a, err := s.repo.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if !a.IsPublished() {
		return nil, ErrNotFound
	}
	return a, nil
}

// List returns articles in any status. Admin only.
func (s *Service) List(ctx context.Context, p domain.Principal, f ListFilter) ([]domain.Article, int, error) {
	if !p.IsAdmin() {
		return nil, 0, ErrForbidden
	}
	f.Search = s.sanitize.Text(f.Search)
	return s.repo.List(ctx, f)
}

// Get returns an article in any status. Admin only.
func (s *Service) Get(ctx context.Context, p domain.Principal, id string) (*domain.Article, error) {
	if !p.IsAdmin() {
		return nil, ErrForbidden
	}
	return s.repo.Get(ctx, id)
}

// ArticleInput holds the fields for creating an article.
type ArticleInput struct {
	Title         string   `json:"title" validate:"required,max=200"`
	Excerpt       string   `json:"excerpt" validate:"max=500"`
	Content       string   `json:"content" validate:"required"`
	CoverImageURL string   `json:"cover_image_url" validate:"omitempty,http_url,max=1000"`
	Tags          []string `json:"tags" validate:"max=10,dive,max=40"`
	Publish       bool     `json:"publish"`
}

// ArticleUpdate holds the editable article fields.
type ArticleUpdate struct {
	Title         *string   `json:"title" validate:"omitempty,max=200"`
	Excerpt       *string   `json:"excerpt" validate:"omitempty,max=500"`
	Content       *string   `json:"content"`
	CoverImageURL *string   `json:"cover_image_url" validate:"omitempty,http_url,max=1000"`
	Tags          *[]string `json:"tags" validate:"omitempty,max=10,dive,max=40"`
}

// Create adds an article. The slug is derived from the title and made
// unique with a numeric suffix.
func (s *Service) Create(ctx context.Context, p domain.Principal, in ArticleInput) (*domain.Article, error) {
	if !p.IsAdmin() {
		return nil, ErrForbidden
	}
	in.Title = s.sanitize.Text(in.Title)
	in.Excerpt = s.sanitize.Text(in.Excerpt)
	in.Content = s.sanitize.HTML(in.Content)
	in.Tags = s.cleanTags(in.Tags)
	if err := security.Validate(in); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	a := &domain.Article{
		ID:            uuid.New().String(),
		Title:         in.Title,
		Excerpt:       in.Excerpt,
		Content:       in.Content,
		CoverImageURL: in.CoverImageURL,
		Tags:          in.Tags,
		Status:        domain.ArticleDraft,
		AuthorID:      &p.UserID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if in.Publish {
		a.Status = domain.ArticlePublished
		a.PublishedAt = &now
	}
	if err := s.insert(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// insert fills slug and excerpt and stores a.
func (s *Service) insert(ctx context.Context, a *domain.Article) error {
	if a.Excerpt == "" {
		a.Excerpt = Excerpt(a.Content)
	}
	slug, err := s.uniqueSlug(ctx, Slugify(a.Title))
	if err != nil {
		return err
	}
	a.Slug = slug
	if err := s.repo.Create(ctx, a); err != nil {
		return err
	}
	log.Printf("[blog.Service] created article %s (%s)", a.Slug, a.Status)
	return nil
}

// Update edits an article. The slug is kept so published links stay valid.
func (s *Service) Update(ctx context.Context, p domain.Principal, id string, in ArticleUpdate) (*domain.Article, error) {
	if !p.IsAdmin() {
		return nil, ErrForbidden
	}
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Title != nil {
		v := s.sanitize.Text(*in.Title)
		in.Title = &v
	}
	if in.Excerpt != nil {
		v := s.sanitize.Text(*in.Excerpt)
		in.Excerpt = &v
	}
	if in.Tags != nil {
		v := s.cleanTags(*in.Tags)
		in.Tags = &v
	}
	if err := security.Validate(in); err != nil {
		return nil, err
	}

	if in.Title != nil {
		if *in.Title == "" {
			return nil, security.NewValidationError("title", "is required")
		}
		a.Title = *in.Title
	}
	if in.Content != nil {
		content := s.sanitize.HTML(*in.Content)
		if content == "" {
			return nil, security.NewValidationError("content", "is required")
		}
		a.Content = content
	}
	if in.Excerpt != nil {
		a.Excerpt = *in.Excerpt
	}
	if a.Excerpt == "" {
		a.Excerpt = Excerpt(a.Content)
	}
	if in.CoverImageURL != nil {
		a.CoverImageURL = *in.CoverImageURL
	}
	if in.Tags != nil {
		a.Tags = *in.Tags
	}
	a.UpdatedAt = s.now().UTC()

	if err := s.repo.Save(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Publish makes an article public. Republishing keeps the original date.
func (s *Service) Publish(ctx context.Context, p domain.Principal, id string) (*domain.Article, error) {
	return s.setStatus(ctx, p, id, domain.ArticlePublished)
}

// Unpublish hides an article from the public site.
func (s *Service) Unpublish(ctx context.Context, p domain.Principal, id string) (*domain.Article, error) {
	return s.setStatus(ctx, p, id, domain.ArticleDraft)
}

func (s *Service) setStatus(ctx context.Context, p domain.Principal, id string, status domain.ArticleStatus) (*domain.Article, error) {
	if !p.IsAdmin() {
		return nil, ErrForbidden
	}
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Status == status {
		return a, nil
	}
	now := s.now().UTC()
	a.Status = status
	a.UpdatedAt = now
	if status == domain.ArticlePublished && a.PublishedAt == nil {
		a.PublishedAt = &now
	}
	if err := s.repo.Save(ctx, a); err != nil {
		return nil, err
	}
	log.Printf("[blog.Service] article %s is now %s", a.Slug, status)
	return a, nil
}

// Delete removes an article. Admin only.
func (s *Service) Delete(ctx context.Context, p domain.Principal, id string) error {
	if !p.IsAdmin() {
		return ErrForbidden
	}
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

func (s *Service) uniqueSlug(ctx context.Context, base string) (string, error) {
	slug := base
	for i := 2; i < maxSlugAttempts; i++ {
		taken, err := s.repo.SlugExists(ctx, slug)
		if err != nil {
			return "", fmt.Errorf("check slug: %w", err)
		}
		if !taken {
			return slug, nil
		}
		slug = fmt.Sprintf("%s-%d", base, i)
	}
	return base + "-" + uuid.New().String()[:8], nil
}

// cleanTags lower-cases, trims and de-duplicates tags.
func (s *Service) cleanTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.Join(strings.Fields(s.sanitize.Text(t)), " "))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
