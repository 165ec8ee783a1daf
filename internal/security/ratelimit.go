package security

import (
	"context"
	"sync"
	"time"
)

// Decision is the outcome of one rate limit check.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAfter time.Duration
}

// Limiter decides whether the caller identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// Rule names a limit applied to one group of routes.
type Rule struct {
	Name   string
	Limit  int
	Window time.Duration
}

// SlidingWindow is an in-process limiter keeping a timestamp log per key.
// A request is rejected when limit requests already fall inside the
// trailing window; entries at or before now-window no longer count.
type SlidingWindow struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu        sync.Mutex
	hits      map[string][]time.Time
	lastSweep time.Time
}

// NewSlidingWindow creates a limiter allowing limit requests per window.
func NewSlidingWindow(limit int, window time.Duration) *SlidingWindow {
	if limit < 1 {
		limit = 1
	}
	return &SlidingWindow{
		limit:  limit,
		window: window,
		now:    time.Now,
		hits:   make(map[string][]time.Time),
	}
}

// WithClock replaces the time source. Used by tests.
func (l *SlidingWindow) WithClock(now func() time.Time) *SlidingWindow {
	l.now = now
	return l
}

// Allow records a request for key if it fits in the window.
func (l *SlidingWindow) Allow(_ context.Context, key string) (Decision, error) {
	now := l.now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweep(now, cutoff)

	ts := prune(l.hits[key], cutoff)
	d := Decision{Limit: l.limit}

	if len(ts) >= l.limit {
		l.hits[key] = ts
		d.ResetAfter = ts[0].Add(l.window).Sub(now)
		return d, nil
	}

	ts = append(ts, now)
	l.hits[key] = ts
	d.Allowed = true
	d.Remaining = l.limit - len(ts)
	d.ResetAfter = ts[0].Add(l.window).Sub(now)
	return d, nil
}

// Reset forgets every request recorded for key.
func (l *SlidingWindow) Reset(key string) {
	l.mu.Lock()
	delete(l.hits, key)
	l.mu.Unlock()
}

// Len returns the number of keys currently tracked.
func (l *SlidingWindow) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.hits)
}

// sweep drops idle keys at most once per window. Caller holds mu.
func (l *SlidingWindow) sweep(now, cutoff time.Time) {
	if now.Sub(l.lastSweep) < l.window {
		return
	}
	l.lastSweep = now
	for k, ts := range l.hits {
		if len(ts) == 0 || !ts[len(ts)-1].After(cutoff) {
			delete(l.hits, k)
		}
	}
}

func prune(ts []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(ts) && !ts[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return ts
	}
	return append(ts[:0], ts[i:]...)
}
