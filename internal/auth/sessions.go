package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/brightpixel/agency-portal/internal/security"
)

var (
	ErrSessionNotFound = errors.New("auth: session not found")
	ErrSessionExpired  = errors.New("auth: session expired")
)

// Session is a staff login.
type Session struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Picture      string    `json:"picture"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
}

// SessionStore persists sessions. Implementations do not judge expiry
// beyond dropping entries older than their own TTL.
type SessionStore interface {
	Save(ctx context.Context, s *Session, ttl time.Duration) error
	Get(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
}

// expiredRetention is how long a store keeps a session past its deadline, so
// a returning user is told the session expired rather than not found.
const expiredRetention = 24 * time.Hour

// Sessions applies idle and absolute timeouts on top of a SessionStore.
type Sessions struct {
	store    SessionStore
	idle     time.Duration
	absolute time.Duration
	now      func() time.Time
}

// NewSessions creates a session manager.
func NewSessions(store SessionStore, idle, absolute time.Duration) *Sessions {
	return &Sessions{store: store, idle: idle, absolute: absolute, now: time.Now}
}

// IdleTimeout returns the configured idle timeout.
func (m *Sessions) IdleTimeout() time.Duration { return m.idle }

// Start creates a session for a signed-in user.
func (m *Sessions) Start(ctx context.Context, userID, email, name, picture string) (*Session, error) {
	id, err := randomID()
	if err != nil {
		return nil, err
	}
	now := m.now()
	s := &Session{
		ID:           id,
		UserID:       userID,
		Email:        email,
		Name:         name,
		Picture:      picture,
		CreatedAt:    now,
		LastActivity: now,
	}
	if err := m.store.Save(ctx, s, m.storeTTL(s, now)); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return s, nil
}

// Peek returns a live session without recording activity.
func (m *Sessions) Peek(ctx context.Context, id string) (*Session, error) {
	s, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	now := m.now()
	if m.expired(s, now) {
		_ = m.store.Delete(ctx, id)
		return nil, ErrSessionExpired
	}
	return s, nil
}

// Resume returns a live session and extends its idle window.
func (m *Sessions) Resume(ctx context.Context, id string) (*Session, error) {
	s, err := m.Peek(ctx, id)
	if err != nil {
		return nil, err
	}
	s.LastActivity = m.now()
	if err := m.store.Save(ctx, s, m.storeTTL(s, s.LastActivity)); err != nil {
		return nil, fmt.Errorf("touch session: %w", err)
	}
	return s, nil
}

// End deletes a session.
func (m *Sessions) End(ctx context.Context, id string) error {
	return m.store.Delete(ctx, id)
}

// Remaining reports how long s stays valid and whether the client should
// warn the user now.
func (m *Sessions) Remaining(s *Session, warnBefore time.Duration) (time.Duration, bool) {
	now := m.now()
	left := security.SessionRemaining(s.LastActivity, m.idle, now)
	if m.absolute > 0 {
		if abs := s.CreatedAt.Add(m.absolute).Sub(now); abs < left {
			left = abs
		}
	}
	if left < 0 {
		left = 0
	}
	return left, left > 0 && left <= warnBefore
}

// storeTTL keeps the entry until expiredRetention after the earlier of the
// idle and absolute deadlines. Expiry itself is decided by expired.
func (m *Sessions) storeTTL(s *Session, now time.Time) time.Duration {
	deadline := s.LastActivity.Add(m.idle)
	if m.absolute > 0 {
		if abs := s.CreatedAt.Add(m.absolute); abs.Before(deadline) {
			deadline = abs
		}
	}
	return deadline.Sub(now) + expiredRetention
}

func (m *Sessions) expired(s *Session, now time.Time) bool {
	if security.SessionExpired(s.LastActivity, m.idle, now) {
		return true
	}
	return m.absolute > 0 && now.Sub(s.CreatedAt) >= m.absolute
}

func randomID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// MemorySessionStore keeps sessions in process memory.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]memoryEntry
	now      func() time.Time
}

type memoryEntry struct {
	session   Session
	expiresAt time.Time
}

// NewMemorySessionStore creates an empty store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]memoryEntry), now: time.Now}
}

func (s *MemorySessionStore) Save(_ context.Context, sess *Session, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := memoryEntry{session: *sess}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	s.sessions[sess.ID] = e
	return nil
}

func (s *MemorySessionStore) Get(_ context.Context, id string) (*Session, error) {
	s.mu.RLock()
	e, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	if !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt) {
		s.mu.Lock()
		delete(s.sessions, id)
		s.mu.Unlock()
		return nil, ErrSessionNotFound
	}
	sess := e.session
	return &sess, nil
}

func (s *MemorySessionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	return nil
}

// Cleanup drops expired entries.
func (s *MemorySessionStore) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	n := 0
	for id, e := range s.sessions {
		if !e.expiresAt.IsZero() && !now.Before(e.expiresAt) {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}

// RedisSessionStore keeps sessions in Redis so every instance sees them.
type RedisSessionStore struct {
	client *redis.Client
	prefix string
}

// NewRedisSessionStore creates a store with keys under "session:".
func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{client: client, prefix: "session:"}
}

func (s *RedisSessionStore) Save(ctx context.Context, sess *Session, ttl time.Duration) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.prefix+sess.ID, data, ttl).Err()
}

func (s *RedisSessionStore) Get(ctx context.Context, id string) (*Session, error) {
	data, err := s.client.Get(ctx, s.prefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &sess, nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, s.prefix+id).Err()
}
