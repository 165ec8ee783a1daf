package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightpixel/agency-portal/internal/auth"
	"github.com/brightpixel/agency-portal/internal/config"
	"github.com/brightpixel/agency-portal/internal/domain"
	"github.com/brightpixel/agency-portal/internal/email"
	"github.com/brightpixel/agency-portal/internal/llm"
	"github.com/brightpixel/agency-portal/internal/security"
	"github.com/brightpixel/agency-portal/internal/service/audit"
	"github.com/brightpixel/agency-portal/internal/service/blog"
	"github.com/brightpixel/agency-portal/internal/service/chat"
	"github.com/brightpixel/agency-portal/internal/service/contact"
	"github.com/brightpixel/agency-portal/internal/service/invoice"
	"github.com/brightpixel/agency-portal/internal/service/profile"
	"github.com/brightpixel/agency-portal/internal/service/project"
	"github.com/brightpixel/agency-portal/internal/storage"
)

const (
	testSecret = "test-secret"
	adminID    = "11111111-1111-1111-1111-111111111111"
	clientID   = "22222222-2222-2222-2222-222222222222"
)

// =============================================================================
// FAKES
// =============================================================================

type fakeLLM struct {
	reply string
	err   error
	got   llm.Request
}

func (f *fakeLLM) Complete(_ context.Context, req llm.Request) (*llm.Response, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Response{Content: f.reply, Model: "test"}, nil
}

type eventSink struct {
	mu     sync.Mutex
	events []domain.SecurityLog
}

func (s *eventSink) Create(_ context.Context, ev *domain.SecurityLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, *ev)
	return nil
}

func (s *eventSink) List(_ context.Context, f audit.ListFilter) ([]domain.SecurityLog, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []domain.SecurityLog{}
	for _, ev := range s.events {
		if f.EventType != "" && ev.EventType != f.EventType {
			continue
		}
		out = append(out, ev)
	}
	return out, len(out), nil
}

func (s *eventSink) DeleteBefore(context.Context, time.Time) (int64, error) { return 0, nil }

func (s *eventSink) ofType(t domain.SecurityEventType) []domain.SecurityLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.SecurityLog
	for _, ev := range s.events {
		if ev.EventType == t {
			out = append(out, ev)
		}
	}
	return out
}

// profileStore is an in-memory profile.Repository.
type profileStore map[string]*domain.Profile

func (p profileStore) Get(_ context.Context, id string) (*domain.Profile, error) {
	prof, ok := p[id]
	if !ok {
		return nil, profile.ErrNotFound
	}
	cp := *prof
	return &cp, nil
}

func (p profileStore) GetByEmail(_ context.Context, email string) (*domain.Profile, error) {
	for _, prof := range p {
		if prof.Email == email {
			cp := *prof
			return &cp, nil
		}
	}
	return nil, profile.ErrNotFound
}

func (p profileStore) Create(_ context.Context, prof *domain.Profile) error {
	p[prof.ID] = prof
	return nil
}

func (p profileStore) Update(ctx context.Context, id string, u profile.UpdateFields) (*domain.Profile, error) {
	prof, ok := p[id]
	if !ok {
		return nil, profile.ErrNotFound
	}
	if u.FullName != nil {
		prof.FullName = *u.FullName
	}
	if u.Company != nil {
		prof.Company = *u.Company
	}
	if u.Phone != nil {
		prof.Phone = *u.Phone
	}
	return p.Get(ctx, id)
}

func (p profileStore) SetRole(_ context.Context, id string, role domain.Role) error {
	prof, ok := p[id]
	if !ok {
		return profile.ErrNotFound
	}
	prof.Role = role
	return nil
}

func (p profileStore) List(context.Context, profile.ListFilter) ([]domain.Profile, int, error) {
	out := []domain.Profile{}
	for _, prof := range p {
		out = append(out, *prof)
	}
	return out, len(out), nil
}

type contactRepo struct {
	mu   sync.Mutex
	subs map[string]domain.ContactSubmission
}

func (r *contactRepo) Create(_ context.Context, c *domain.ContactSubmission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs[c.ID] = *c
	return nil
}

func (r *contactRepo) Get(_ context.Context, id string) (*domain.ContactSubmission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.subs[id]
	if !ok {
		return nil, contact.ErrNotFound
	}
	return &c, nil
}

func (r *contactRepo) List(context.Context, contact.ListFilter) ([]domain.ContactSubmission, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.ContactSubmission{}
	for _, c := range r.subs {
		out = append(out, c)
	}
	return out, len(out), nil
}

func (r *contactRepo) UpdateStatus(_ context.Context, id string, status domain.ContactStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.subs[id]
	if !ok {
		return contact.ErrNotFound
	}
	c.Status = status
	r.subs[id] = c
	return nil
}

func (r *contactRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.subs, id)
	return nil
}

func (r *contactRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

type articleRepo struct {
	articles []domain.Article
}

func (r *articleRepo) Get(_ context.Context, id string) (*domain.Article, error) {
	for _, a := range r.articles {
		if a.ID == id {
			return &a, nil
		}
	}
	return nil, blog.ErrNotFound
}

func (r *articleRepo) GetBySlug(_ context.Context, slug string) (*domain.Article, error) {
	for _, a := range r.articles {
		if a.Slug == slug {
			return &a, nil
		}
	}
	return nil, blog.ErrNotFound
}

func (r *articleRepo) List(_ context.Context, f blog.ListFilter) ([]domain.Article, int, error) {
	out := []domain.Article{}
	for _, a := range r.articles {
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		out = append(out, a)
	}
	return out, len(out), nil
}

func (r *articleRepo) SlugExists(context.Context, string) (bool, error)   { return false, nil }
func (r *articleRepo) SourceExists(context.Context, string) (bool, error) { return false, nil }
func (r *articleRepo) Create(context.Context, *domain.Article) error      { return nil }
func (r *articleRepo) Save(context.Context, *domain.Article) error        { return nil }
func (r *articleRepo) Delete(context.Context, string) error               { return nil }

// =============================================================================
// HARNESS
// =============================================================================

type harness struct {
	handler  http.Handler
	llm      *fakeLLM
	events   *eventSink
	contacts *contactRepo
	sender   *email.LogSender
	tokens   *auth.TokenVerifier
}

func newHarness(t *testing.T, mutate func(cfg *config.Config)) *harness {
	t.Helper()
	cfg := &config.Config{}
	cfg.Security.RateLimits = map[string]config.RateLimitRule{}
	if mutate != nil {
		mutate(cfg)
	}

	h := &harness{
		llm:      &fakeLLM{reply: "We build web apps."},
		events:   &eventSink{},
		contacts: &contactRepo{subs: map[string]domain.ContactSubmission{}},
		sender:   email.NewLogSender(cfg.Email),
		tokens:   auth.NewTokenVerifier(testSecret, ""),
	}
	events := audit.NewService(h.events)
	profiles := profile.NewService(profileStore{
		adminID:  {ID: adminID, Email: "staff@agency.test", Role: domain.RoleAdmin},
		clientID: {ID: clientID, Email: "client@example.com", Role: domain.RoleClient},
	}, 0)
	now := time.Now().UTC()
	articles := &articleRepo{articles: []domain.Article{
		{ID: "a1", Slug: "hello-world", Title: "Hello", Status: domain.ArticlePublished, PublishedAt: &now, Tags: []string{}},
		{ID: "a2", Slug: "secret-draft", Title: "Draft", Status: domain.ArticleDraft, Tags: []string{}},
	}}

	srv := NewServer(Deps{
		Config: cfg,
		Auth: auth.NewMiddleware(auth.MiddlewareConfig{
			Verifier:   h.tokens,
			Profiles:   profiles,
			Events:     events,
			IsNotFound: profile.IsNotFound,
		}),
		Events:   events,
		Profiles: profiles,
		Blog:     blog.NewService(articles),
		Contacts: contact.NewService(h.contacts, nil, nil, contact.Options{}),
		Chat:     chat.NewService(h.llm, chat.Config{}),
		Sender:   h.sender,
	})
	h.handler = srv.Handler()
	return h
}

func (h *harness) token(t *testing.T, userID string) string {
	t.Helper()
	tok, err := h.tokens.Issue(userID, "", "", time.Hour)
	require.NoError(t, err)
	return tok
}

func (h *harness) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "203.0.113.7:4000"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// =============================================================================
// TESTS
// =============================================================================

func TestSecurityHeaders(t *testing.T) {
	h := newHarness(t, nil)
	rec := h.do(t, http.MethodGet, "/health/live", nil, "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "default-src 'none'")
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestHealthWithoutDependencies(t *testing.T) {
	h := newHarness(t, nil)
	rec := h.do(t, http.MethodGet, "/health/ready", nil, "")

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	checks := body["checks"].(map[string]any)
	assert.Equal(t, notConfigured, checks["database"].(map[string]any)["message"])
}

func TestPostChat(t *testing.T) {
	h := newHarness(t, nil)
	rec := h.do(t, http.MethodPost, "/api/chat", map[string]any{
		"message": "What do you build?",
		"history": []map[string]string{
			{"role": "user", "content": "hi"},
			{"role": "assistant", "content": "Hello!"},
		},
	}, "")

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "We build web apps.", decode[map[string]string](t, rec)["reply"])
	require.Len(t, h.llm.got.Messages, 3)
	assert.Equal(t, "What do you build?", h.llm.got.Messages[2].Content)
	assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Limit"))
}

func TestPostChatRecordsStrippedMarkup(t *testing.T) {
	h := newHarness(t, nil)
	rec := h.do(t, http.MethodPost, "/api/chat", map[string]any{
		"message": `<script>alert(1)</script>Tell me about pricing`,
	}, "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Tell me about pricing", h.llm.got.Messages[0].Content)

	rejected := h.events.ofType(domain.EventInputRejected)
	require.Len(t, rejected, 1)
	assert.Equal(t, []string{"message"}, rejected[0].Details["fields"])
	assert.Equal(t, "/api/chat", rejected[0].Path)
}

func TestPostChatErrors(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(t, http.MethodPost, "/api/chat", map[string]any{"message": "   "}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	h.llm.err = fmt.Errorf("bedrock: %w", llm.ErrNotConfigured)
	rec = h.do(t, http.MethodPost, "/api/chat", map[string]any{"message": "hello"}, "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	h.llm.err = errors.New("dial tcp 10.0.0.1:443: connection refused")
	rec = h.do(t, http.MethodPost, "/api/chat", map[string]any{"message": "hello"}, "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "10.0.0.1")
}

func TestRateLimitExceeded(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config) {
		cfg.Security.RateLimits["chat"] = config.RateLimitRule{Requests: 2, WindowSeconds: 60}
	})

	for i := 0; i < 2; i++ {
		rec := h.do(t, http.MethodPost, "/api/chat", map[string]any{"message": "hello"}, "")
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := h.do(t, http.MethodPost, "/api/chat", map[string]any{"message": "hello"}, "")

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "rate_limited", decode[map[string]any](t, rec)["code"])
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	limited := h.events.ofType(domain.EventRateLimited)
	require.Len(t, limited, 1)
	assert.Equal(t, "chat", limited[0].Details["rule"])
	assert.Equal(t, "203.0.113.7", limited[0].IPAddress)

	// Other rules keep their own budget.
	rec = h.do(t, http.MethodGet, "/api/blog", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func (h *harness) chatFrom(t *testing.T, remoteAddr, forwardedFor string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"message":"hello"}`))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = remoteAddr
	if forwardedFor != "" {
		req.Header.Set("X-Forwarded-For", forwardedFor)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func TestRateLimitIgnoresForwardedForFromUntrustedPeer(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config) {
		cfg.Security.RateLimits["chat"] = config.RateLimitRule{Requests: 2, WindowSeconds: 60}
	})

	var codes []int
	for i := 0; i < 4; i++ {
		rec := h.chatFrom(t, "198.51.100.20:5000", fmt.Sprintf("10.0.0.%d", i))
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{200, 200, 429, 429}, codes)

	limited := h.events.ofType(domain.EventRateLimited)
	require.NotEmpty(t, limited)
	assert.Equal(t, "198.51.100.20", limited[0].IPAddress)
}

func TestRateLimitUsesForwardedForFromTrustedProxy(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config) {
		cfg.Server.TrustedProxies = []string{"10.1.0.0/16"}
		cfg.Security.RateLimits["chat"] = config.RateLimitRule{Requests: 1, WindowSeconds: 60}
	})

	// Distinct clients behind the proxy get their own budget.
	assert.Equal(t, http.StatusOK, h.chatFrom(t, "10.1.2.3:443", "203.0.113.1").Code)
	assert.Equal(t, http.StatusOK, h.chatFrom(t, "10.1.2.3:443", "203.0.113.2").Code)
	assert.Equal(t, http.StatusTooManyRequests, h.chatFrom(t, "10.1.2.3:443", "203.0.113.1").Code)

	// A hop the client prepended itself does not hide its real address.
	assert.Equal(t, http.StatusTooManyRequests, h.chatFrom(t, "10.1.2.3:443", "192.0.2.99, 203.0.113.2").Code)

	limited := h.events.ofType(domain.EventRateLimited)
	require.Len(t, limited, 2)
	assert.Equal(t, "203.0.113.1", limited[0].IPAddress)
	assert.Equal(t, "203.0.113.2", limited[1].IPAddress)
}

func TestParseTrustedProxies(t *testing.T) {
	got := parseTrustedProxies([]string{"10.0.0.0/8", " 127.0.0.1 ", "not-an-ip", "", "::1"})
	require.Len(t, got, 3)
	assert.Equal(t, "10.0.0.0/8", got[0].String())
	assert.Equal(t, "127.0.0.1/32", got[1].String())
	assert.Equal(t, "::1/128", got[2].String())
}

func TestSubmitContact(t *testing.T) {
	h := newHarness(t, nil)
	valid := map[string]string{
		"name":    "Ada Lovelace",
		"email":   "Ada@Example.com",
		"message": "We need a new marketing site.",
	}

	rec := h.do(t, http.MethodPost, "/api/contact", valid, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, 1, h.contacts.count())

	bad := map[string]string{"name": "Ada", "email": "not-an-email", "message": "short"}
	rec = h.do(t, http.MethodPost, "/api/contact", bad, "")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "validation_failed", body["code"])
	fields := body["details"].(map[string]any)
	assert.Contains(t, fields, "email")
	assert.Contains(t, fields, "message")

	bot := map[string]string{
		"name": "Bot", "email": "bot@example.com",
		"message": "Buy cheap followers now!!", "website": "http://spam.test",
	}
	rec = h.do(t, http.MethodPost, "/api/contact", bot, "")
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 1, h.contacts.count())
}

func TestPublicBlog(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(t, http.MethodGet, "/api/blog", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[map[string]any](t, rec)
	assert.EqualValues(t, 1, list["total"])

	rec = h.do(t, http.MethodGet, "/api/blog/hello-world", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(t, http.MethodGet, "/api/blog/secret-draft", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAuthorization(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(t, http.MethodGet, "/api/admin/contacts", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = h.do(t, http.MethodGet, "/api/admin/contacts", nil, "not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Len(t, h.events.ofType(domain.EventTokenInvalid), 1)

	rec = h.do(t, http.MethodGet, "/api/admin/contacts", nil, h.token(t, clientID))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Len(t, h.events.ofType(domain.EventAccessDenied), 1)

	rec = h.do(t, http.MethodGet, "/api/admin/contacts", nil, h.token(t, adminID))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(t, http.MethodGet, "/api/admin/security-logs?event_type=access_denied", nil, h.token(t, adminID))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decode[map[string]any](t, rec)["total"])
}

func TestUnknownProfileIsForbidden(t *testing.T) {
	h := newHarness(t, nil)
	rec := h.do(t, http.MethodGet, "/api/me", nil, h.token(t, "33333333-3333-3333-3333-333333333333"))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.do(t, http.MethodGet, "/api/me", nil, h.token(t, clientID))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "client@example.com", decode[map[string]any](t, rec)["email"])

	rec = h.do(t, http.MethodPatch, "/api/me", map[string]string{"company": "<i>Acme</i> Ltd"}, h.token(t, clientID))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Acme Ltd", decode[map[string]any](t, rec)["company"])
	assert.Len(t, h.events.ofType(domain.EventInputRejected), 1)
}

func TestMalformedIDIsNotFound(t *testing.T) {
	h := newHarness(t, nil)
	rec := h.do(t, http.MethodGet, "/api/admin/contacts/not-a-uuid", nil, h.token(t, adminID))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(t, http.MethodGet, "/api/admin/contacts/44444444-4444-4444-4444-444444444444", nil, h.token(t, adminID))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSendEmail(t *testing.T) {
	h := newHarness(t, nil)

	var logs bytes.Buffer
	log.SetOutput(&logs)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	rec := h.do(t, http.MethodPost, "/api/email/send", map[string]string{
		"to":      "Client@Example.com",
		"subject": "Kickoff <b>notes</b>",
		"html":    `<p>Agenda</p><script>steal()</script><a href="javascript:x()">x</a>`,
	}, h.token(t, adminID))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, logs.String(), "email sent to cl***@example.com")
	assert.NotContains(t, strings.ToLower(logs.String()), "client@example.com")
	assert.True(t, strings.HasPrefix(decode[map[string]string](t, rec)["message_id"], "log-"))

	sent := h.sender.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "client@example.com", sent[0].To)
	assert.Equal(t, "Kickoff notes", sent[0].Subject)
	assert.Contains(t, sent[0].HTML, "<p>Agenda</p>")
	assert.NotContains(t, sent[0].HTML, "script")
	assert.NotContains(t, sent[0].HTML, "javascript")

	rec = h.do(t, http.MethodPost, "/api/email/send", map[string]string{
		"to": "nope", "subject": "x", "html": "<p>x</p>",
	}, h.token(t, adminID))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = h.do(t, http.MethodPost, "/api/email/send", map[string]string{
		"to": "a@example.com", "subject": "x", "html": "<p>x</p>",
	}, h.token(t, clientID))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Len(t, h.sender.Sent(), 1)
}

func TestUploadWithoutStorage(t *testing.T) {
	h := newHarness(t, nil)
	rec := h.do(t, http.MethodPost, "/api/uploads", nil, h.token(t, clientID))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		err    error
		status int
		msg    string
	}{
		{fmt.Errorf("get: %w", project.ErrNotFound), http.StatusNotFound, ""},
		{invoice.ErrInvalidTransition, http.StatusConflict, ""},
		{project.ErrForbidden, http.StatusForbidden, ""},
		{storage.ErrTooLarge, http.StatusRequestEntityTooLarge, ""},
		{storage.ErrUnsupportedType, http.StatusUnsupportedMediaType, ""},
		{chat.ErrUnavailable, http.StatusServiceUnavailable, ""},
		{security.NewValidationError("email", "must be a valid email"), http.StatusUnprocessableEntity, "invalid input"},
		{errors.New(`pq: relation "x" does not exist`), http.StatusInternalServerError, "A database error occurred"},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeError(rec, tt.err)
			assert.Equal(t, tt.status, rec.Code)
			if tt.msg != "" {
				assert.Equal(t, tt.msg, decode[map[string]any](t, rec)["error"])
			}
		})
	}
}

func TestPublicMessage(t *testing.T) {
	assert.Equal(t, "file too large", publicMessage(errors.New("storage: file too large")))
	assert.Equal(t, "no such thing: really", publicMessage(errors.New("no such thing: really")))
}
