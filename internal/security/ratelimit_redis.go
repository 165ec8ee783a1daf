package security

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// slidingWindowScript prunes, counts and conditionally records a request in
// one round trip. Scores are unix milliseconds.
// Returns {allowed, count, reset_ms}.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
local reset = window
if oldest[2] then
	reset = tonumber(oldest[2]) + window - now
end

if count >= limit then
	return {0, count, reset}
end

redis.call('ZADD', key, now, ARGV[4])
redis.call('PEXPIRE', key, window)
return {1, count + 1, reset}
`)

// RedisSlidingWindow shares the sliding window across instances with a
// sorted set per key.
type RedisSlidingWindow struct {
	client *redis.Client
	prefix string
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewRedisSlidingWindow creates a Redis limiter for rule.
func NewRedisSlidingWindow(client *redis.Client, rule Rule) *RedisSlidingWindow {
	limit := rule.Limit
	if limit < 1 {
		limit = 1
	}
	return &RedisSlidingWindow{
		client: client,
		prefix: fmt.Sprintf("ratelimit:%s:", rule.Name),
		limit:  limit,
		window: rule.Window,
		now:    time.Now,
	}
}

// WithClock replaces the time source. Used by tests.
func (l *RedisSlidingWindow) WithClock(now func() time.Time) *RedisSlidingWindow {
	l.now = now
	return l
}

// Allow records a request for key if it fits in the window.
func (l *RedisSlidingWindow) Allow(ctx context.Context, key string) (Decision, error) {
	now := l.now().UnixMilli()
	res, err := slidingWindowScript.Run(ctx, l.client,
		[]string{l.prefix + key},
		now, l.window.Milliseconds(), l.limit, member(now),
	).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit %s: %w", l.prefix, err)
	}
	if len(res) != 3 {
		return Decision{}, fmt.Errorf("rate limit %s: unexpected reply %v", l.prefix, res)
	}

	d := Decision{
		Allowed:    res[0] == 1,
		Limit:      l.limit,
		ResetAfter: time.Duration(res[2]) * time.Millisecond,
	}
	if d.Allowed {
		d.Remaining = l.limit - int(res[1])
	}
	return d, nil
}

// NewLimiter returns a Redis-backed limiter when client is set, otherwise an
// in-process one.
func NewLimiter(client *redis.Client, rule Rule) Limiter {
	if client != nil {
		return NewRedisSlidingWindow(client, rule)
	}
	return NewSlidingWindow(rule.Limit, rule.Window)
}

func member(now int64) string {
	b := make([]byte, 6)
	rand.Read(b)
	return fmt.Sprintf("%d-%s", now, hex.EncodeToString(b))
}
