package brief

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/brightpixel/agency-portal/internal/config"
	"github.com/brightpixel/agency-portal/internal/domain"
)

// DraftStore keeps in-progress wizard sessions. Get returns
// ErrSessionNotFound for unknown or expired sessions.
type DraftStore interface {
	Get(ctx context.Context, id string) (*domain.BriefSession, error)
	Save(ctx context.Context, s *domain.BriefSession, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}

// MemoryDraftStore is a process-local DraftStore for development and single
// instance deployments.
type MemoryDraftStore struct {
	mu      sync.Mutex
	entries map[string]memoryDraft
	now     func() time.Time
}

type memoryDraft struct {
	data      []byte
	expiresAt time.Time
}

// NewMemoryDraftStore creates an empty MemoryDraftStore.
func NewMemoryDraftStore() *MemoryDraftStore {
	return &MemoryDraftStore{entries: make(map[string]memoryDraft), now: time.Now}
}

// WithClock replaces the time source.
func (m *MemoryDraftStore) WithClock(now func() time.Time) *MemoryDraftStore {
	m.now = now
	return m
}

func (m *MemoryDraftStore) Get(_ context.Context, id string) (*domain.BriefSession, error) {
	m.mu.Lock()
	e, ok := m.entries[id]
	if ok && !m.now().Before(e.expiresAt) {
		delete(m.entries, id)
		ok = false
	}
	m.mu.Unlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	var s domain.BriefSession
	if err := json.Unmarshal(e.data, &s); err != nil {
		return nil, fmt.Errorf("decode brief session: %w", err)
	}
	return &s, nil
}

func (m *MemoryDraftStore) Save(_ context.Context, s *domain.BriefSession, ttl time.Duration) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode brief session: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for id, e := range m.entries {
		if !now.Before(e.expiresAt) {
			delete(m.entries, id)
		}
	}
	m.entries[s.ID] = memoryDraft{data: data, expiresAt: now.Add(ttl)}
	return nil
}

func (m *MemoryDraftStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	delete(m.entries, id)
	m.mu.Unlock()
	return nil
}

const redisDraftPrefix = "brief:"

// RedisDraftStore shares wizard sessions across instances.
type RedisDraftStore struct {
	client *redis.Client
}

// NewRedisDraftStore creates a RedisDraftStore.
func NewRedisDraftStore(client *redis.Client) *RedisDraftStore {
	return &RedisDraftStore{client: client}
}

func (r *RedisDraftStore) Get(ctx context.Context, id string) (*domain.BriefSession, error) {
	data, err := r.client.Get(ctx, redisDraftPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get brief session: %w", err)
	}
	var s domain.BriefSession
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode brief session: %w", err)
	}
	return &s, nil
}

func (r *RedisDraftStore) Save(ctx context.Context, s *domain.BriefSession, ttl time.Duration) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode brief session: %w", err)
	}
	if err := r.client.Set(ctx, redisDraftPrefix+s.ID, data, ttl).Err(); err != nil {
		return fmt.Errorf("save brief session: %w", err)
	}
	return nil
}

func (r *RedisDraftStore) Delete(ctx context.Context, id string) error {
	return r.client.Del(ctx, redisDraftPrefix+id).Err()
}

// NewDraftStore builds the store selected by cfg.DraftStore. The Redis store
// falls back to memory when no client is available.
func NewDraftStore(ctx context.Context, cfg config.BriefConfig, rdb *redis.Client) (DraftStore, error) {
	switch cfg.DraftStore {
	case "", "memory":
		return NewMemoryDraftStore(), nil
	case "redis":
		if rdb == nil {
			log.Printf("[brief] redis draft store requested without redis, using memory")
			return NewMemoryDraftStore(), nil
		}
		return NewRedisDraftStore(rdb), nil
	case "dynamodb":
		if cfg.DynamoDBTable == "" {
			return nil, errors.New("brief: dynamodb draft store needs a table name")
		}
		return NewDynamoDraftStore(ctx, cfg.DynamoDBTable, cfg.AWSRegion)
	default:
		return nil, fmt.Errorf("brief: unknown draft store %q", cfg.DraftStore)
	}
}
