package domain

import "time"

// ArticleStatus is either draft or published.
type ArticleStatus string

const (
	ArticleDraft     ArticleStatus = "draft"
	ArticlePublished ArticleStatus = "published"
)

// Article is a blog post on the marketing site.
type Article struct {
	ID            string        `json:"id" db:"id"`
	Slug          string        `json:"slug" db:"slug"`
	Title         string        `json:"title" db:"title"`
	Excerpt       string        `json:"excerpt" db:"excerpt"`
	Content       string        `json:"content" db:"content"`
	CoverImageURL string        `json:"cover_image_url" db:"cover_image_url"`
	Tags          []string      `json:"tags" db:"tags"`
	Status        ArticleStatus `json:"status" db:"status"`
	AuthorID      *string       `json:"author_id" db:"author_id"`
	SourceURL     string        `json:"source_url,omitempty" db:"source_url"`
	SourceGUID    string        `json:"-" db:"source_guid"`
	PublishedAt   *time.Time    `json:"published_at" db:"published_at"`
	CreatedAt     time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at" db:"updated_at"`
}

// IsPublished returns true if the article is visible on the public site.
func (a *Article) IsPublished() bool {
	return a.Status == ArticlePublished
}
