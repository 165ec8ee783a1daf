package api

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/brightpixel/agency-portal/internal/auth"
	"github.com/brightpixel/agency-portal/internal/config"
	"github.com/brightpixel/agency-portal/internal/email"
	"github.com/brightpixel/agency-portal/internal/security"
	"github.com/brightpixel/agency-portal/internal/service/audit"
	"github.com/brightpixel/agency-portal/internal/service/blog"
	"github.com/brightpixel/agency-portal/internal/service/brief"
	"github.com/brightpixel/agency-portal/internal/service/chat"
	"github.com/brightpixel/agency-portal/internal/service/contact"
	"github.com/brightpixel/agency-portal/internal/service/dashboard"
	"github.com/brightpixel/agency-portal/internal/service/invoice"
	"github.com/brightpixel/agency-portal/internal/service/profile"
	"github.com/brightpixel/agency-portal/internal/service/project"
	"github.com/brightpixel/agency-portal/internal/storage"
)

// Deps is everything the handlers need. Store, Google and Redis may be nil.
type Deps struct {
	Config *config.Config
	DB     *sql.DB
	Redis  *redis.Client
	Store  *storage.Store

	Auth   *auth.Middleware
	Google *auth.GoogleLogin
	Events *audit.Service

	Profiles  *profile.Service
	Projects  *project.Service
	Invoices  *invoice.Service
	Blog      *blog.Service
	Importer  *blog.Importer
	Contacts  *contact.Service
	Chat      *chat.Service
	Briefs    *brief.Service
	Dashboard *dashboard.Service

	Sender    email.Sender
	Templates *email.Templates
}

// Server represents the API server
type Server struct {
	config   config.ServerConfig
	handler  http.Handler
	handlers *Handlers
	router   *chi.Mux
	server   *http.Server
}

// NewServer wires the handlers, rate limiters and routes.
func NewServer(deps Deps) *Server {
	h := NewHandlers(deps)
	router := SetupRoutes(h)
	return &Server{
		config:   deps.Config.Server,
		handler:  router,
		handlers: h,
		router:   router,
	}
}

// ListenAndServe starts the HTTP server
func (s *Server) ListenAndServe() error {
	s.server = &http.Server{
		Addr:    s.config.Addr(),
		Handler: s.handler,
		// Uploads are capped at storage.max_upload_mb, so a minute is plenty.
		ReadTimeout:       time.Minute,
		ReadHeaderTimeout: 15 * time.Second,
		// LLM calls may take up to llm.timeout_seconds.
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler returns the HTTP handler for testing
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Handlers holds the services behind every route.
type Handlers struct {
	Deps
	health   *HealthChecker
	limiters map[string]security.Limiter
	rules    map[string]security.Rule
	field    *security.Sanitizer
}

// Rate limit rule names, matching security.rate_limits keys in the config.
const (
	ruleChat    = "chat"
	ruleBrief   = "brief"
	ruleContact = "contact"
	ruleEmail   = "email"
	ruleAPI     = "api"
	ruleUpload  = "upload"
)

// NewHandlers builds one limiter per rule, backed by Redis when configured.
func NewHandlers(deps Deps) *Handlers {
	h := &Handlers{
		Deps:     deps,
		limiters: make(map[string]security.Limiter),
		rules:    make(map[string]security.Rule),
		field:    security.NewSanitizer(deps.Config.Security.MaxFieldLength),
	}
	for _, name := range []string{ruleChat, ruleBrief, ruleContact, ruleEmail, ruleAPI, ruleUpload} {
		cfg := deps.Config.Security.Rule(name)
		rule := security.Rule{Name: name, Limit: cfg.Requests, Window: cfg.Window()}
		h.rules[name] = rule
		h.limiters[name] = security.NewLimiter(deps.Redis, rule)
	}

	var pinger Pinger
	if deps.Store != nil {
		pinger = deps.Store
	}
	h.health = NewHealthChecker(deps.DB, deps.Redis, pinger)
	return h
}
