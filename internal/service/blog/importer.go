package blog

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/mmcdole/gofeed"

	"github.com/brightpixel/agency-portal/internal/domain"
)

// ImportResult counts what one feed import did.
type ImportResult struct {
	Feed    string `json:"feed"`
	Fetched int    `json:"fetched"`
	Created int    `json:"created"`
	Skipped int    `json:"skipped"`
	Failed  int    `json:"failed"`
}

// Importer turns RSS/Atom feed items into articles. Items are matched by
// GUID so re-importing a feed only adds new entries.
type Importer struct {
	svc         *Service
	parser      *gofeed.Parser
	autoPublish bool
	maxItems    int
}

// NewImporter creates an importer. New articles are drafts unless
// autoPublish is set.
func NewImporter(svc *Service, autoPublish bool, maxItems int) *Importer {
	fp := gofeed.NewParser()
	fp.UserAgent = "agency-portal-feed-importer/1.0"
	fp.Client = &http.Client{Timeout: 30 * time.Second}
	if maxItems <= 0 {
		maxItems = 20
	}
	return &Importer{svc: svc, parser: fp, autoPublish: autoPublish, maxItems: maxItems}
}

// Import fetches feedURL and stores the items not seen before.
func (im *Importer) Import(ctx context.Context, feedURL string) (ImportResult, error) {
	res := ImportResult{Feed: feedURL}

	feed, err := im.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return res, fmt.Errorf("fetch feed %s: %w", feedURL, err)
	}

	items := feed.Items
	if len(items) > im.maxItems {
		items = items[:im.maxItems]
	}
	res.Fetched = len(items)

	for _, item := range items {
		created, err := im.importItem(ctx, item)
		switch {
		case err != nil:
			res.Failed++
			log.Printf("[blog.Importer] %s: item %q: %v", feedURL, item.Title, err)
		case created:
			res.Created++
		default:
			res.Skipped++
		}
	}

	log.Printf("[blog.Importer] %s: fetched=%d created=%d skipped=%d failed=%d",
		feedURL, res.Fetched, res.Created, res.Skipped, res.Failed)
	return res, nil
}

func (im *Importer) importItem(ctx context.Context, item *gofeed.Item) (bool, error) {
	guid := item.GUID
	if guid == "" {
		guid = item.Link
	}
	if guid == "" {
		return false, nil
	}
	exists, err := im.svc.repo.SourceExists(ctx, guid)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	s := im.svc
	content := item.Content
	if content == "" {
		content = item.Description
	}
	content = s.sanitize.HTML(content)
	title := s.sanitize.Text(item.Title)
	if title == "" || content == "" {
		return false, nil
	}

	now := s.now().UTC()
	a := &domain.Article{
		ID:         uuid.New().String(),
		Title:      title,
		Excerpt:    s.sanitize.Text(item.Description),
		Content:    content,
		Tags:       s.cleanTags(item.Categories),
		Status:     domain.ArticleDraft,
		SourceURL:  item.Link,
		SourceGUID: guid,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if len([]rune(a.Excerpt)) > excerptLength {
		a.Excerpt = Excerpt(a.Excerpt)
	}
	if item.Image != nil && isHTTPURL(item.Image.URL) {
		a.CoverImageURL = item.Image.URL
	}
	if im.autoPublish {
		published := now
		if item.PublishedParsed != nil {
			published = item.PublishedParsed.UTC()
		}
		a.Status = domain.ArticlePublished
		a.PublishedAt = &published
	}

	if err := s.insert(ctx, a); err != nil {
		return false, err
	}
	return true, nil
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
