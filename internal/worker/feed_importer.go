package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brightpixel/agency-portal/internal/pkg/distlock"
	"github.com/brightpixel/agency-portal/internal/service/blog"
)

// DefaultImportInterval applies when blog.interval_minutes is unset.
const DefaultImportInterval = time.Hour

// FeedSource imports one feed. *blog.Importer implements it.
type FeedSource interface {
	Import(ctx context.Context, feedURL string) (blog.ImportResult, error)
}

// FeedImporter pulls every configured feed into the blog on a schedule.
type FeedImporter struct {
	source        FeedSource
	feeds         []string
	maxConcurrent int
	job           periodic

	// Stats
	totalRuns    int64
	totalCreated int64
	totalErrors  int64
}

// FeedImporterConfig holds configuration for the feed importer.
type FeedImporterConfig struct {
	Feeds         []string
	Interval      time.Duration
	MaxConcurrent int
	// Lock keeps concurrent instances from importing the same items twice.
	// Nil runs unlocked.
	Lock distlock.DistLock
}

// NewFeedImporter creates a feed importer.
func NewFeedImporter(source FeedSource, cfg FeedImporterConfig) *FeedImporter {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultImportInterval
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 3
	}
	f := &FeedImporter{
		source:        source,
		feeds:         cfg.Feeds,
		maxConcurrent: cfg.MaxConcurrent,
	}
	f.job = periodic{name: "FeedImporter", interval: cfg.Interval, lock: cfg.Lock, fn: f.RunOnce}
	return f
}

// Start blocks until ctx is cancelled.
func (f *FeedImporter) Start(ctx context.Context) {
	if len(f.feeds) == 0 {
		log.Println("[FeedImporter] No feeds configured, not starting")
		return
	}
	f.job.start(ctx)
}

// RunOnce imports every feed. Feeds are independent: one failing feed does
// not stop the others, and the failures are returned joined.
func (f *FeedImporter) RunOnce(ctx context.Context) error {
	atomic.AddInt64(&f.totalRuns, 1)

	sem := make(chan struct{}, f.maxConcurrent)
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)

	for _, feed := range f.feeds {
		select {
		case <-ctx.Done():
			wg.Wait()
			return ctx.Err()
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func(feed string) {
			defer wg.Done()
			defer func() { <-sem }()

			res, err := f.source.Import(ctx, feed)
			if err != nil {
				atomic.AddInt64(&f.totalErrors, 1)
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", feed, err))
				mu.Unlock()
				return
			}
			atomic.AddInt64(&f.totalCreated, int64(res.Created))
		}(feed)
	}
	wg.Wait()
	return errors.Join(errs...)
}

// Stats returns counters since start.
func (f *FeedImporter) Stats() map[string]int64 {
	return map[string]int64{
		"total_runs":    atomic.LoadInt64(&f.totalRuns),
		"total_created": atomic.LoadInt64(&f.totalCreated),
		"total_errors":  atomic.LoadInt64(&f.totalErrors),
	}
}
