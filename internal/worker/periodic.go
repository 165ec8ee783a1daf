// Package worker runs the periodic background jobs: blog feed import, the
// overdue invoice sweep and security log retention.
package worker

import (
	"context"
	"log"
	"time"

	"github.com/brightpixel/agency-portal/internal/pkg/distlock"
)

// periodic runs fn once on start and then every interval until ctx is
// cancelled. With a lock, a tick only runs on the instance that holds it.
type periodic struct {
	name     string
	interval time.Duration
	lock     distlock.DistLock
	fn       func(context.Context) error
}

func (p *periodic) start(ctx context.Context) {
	log.Printf("[%s] Starting (interval=%s)", p.name, p.interval)

	p.tick(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("[%s] Stopping", p.name)
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

// tick runs one cycle and reports whether it ran.
func (p *periodic) tick(ctx context.Context) bool {
	start := time.Now()
	if p.lock == nil {
		if err := p.fn(ctx); err != nil {
			log.Printf("[%s] Cycle failed: %v", p.name, err)
		}
		return true
	}

	ran, err := distlock.RunExclusive(ctx, p.lock, p.fn)
	switch {
	case err != nil:
		log.Printf("[%s] Cycle failed: %v", p.name, err)
	case !ran:
		log.Printf("[%s] Skipped, another instance holds the lock", p.name)
		return false
	default:
		log.Printf("[%s] Cycle completed in %s", p.name, time.Since(start).Round(time.Millisecond))
	}
	return ran
}
