package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/brightpixel/agency-portal/internal/api"
	"github.com/brightpixel/agency-portal/internal/auth"
	"github.com/brightpixel/agency-portal/internal/config"
	"github.com/brightpixel/agency-portal/internal/email"
	"github.com/brightpixel/agency-portal/internal/llm"
	"github.com/brightpixel/agency-portal/internal/pkg/logger"
	"github.com/brightpixel/agency-portal/internal/repository/postgres"
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

// checkPortAvailable verifies that the target port is not already in use.
func checkPortAvailable(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("%s is already in use: %v", addr, err)
	}
	ln.Close()
	return nil
}

// openRedis connects to Redis. An empty URL or an unreachable server yields
// nil and the in-memory fallbacks are used.
func openRedis(ctx context.Context, url string) *redis.Client {
	if url == "" {
		log.Println("Redis not configured (REDIS_URL not set), using in-memory rate limits and sessions")
		return nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		opts = &redis.Options{Addr: url}
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Printf("Warning: Redis connection failed: %v, falling back to in-memory stores", err)
		client.Close()
		return nil
	}
	log.Println("Redis connected")
	return client
}

func main() {
	logger.SetLevel(logger.ParseLevel(os.Getenv("LOG_LEVEL")))
	logger.SetRedactPII(os.Getenv("LOG_PII") != "true")

	cfg, err := config.LoadFromEnv(envOr("CONFIG_PATH", "config/config.yaml"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := checkPortAvailable(cfg.Server.Addr()); err != nil {
		log.Fatalf("Pre-flight check FAILED: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connected")

	redisClient := openRedis(ctx, cfg.Redis.URL)
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Upload storage is optional; /api/uploads answers 503 without it.
	store, err := storage.New(ctx, cfg.Storage)
	switch {
	case errors.Is(err, storage.ErrNotConfigured):
		log.Println("Upload storage not configured (S3_BUCKET not set)")
		store = nil
	case err != nil:
		log.Fatalf("Failed to initialize storage: %v", err)
	}

	completer, err := llm.New(ctx, cfg.LLM)
	if err != nil {
		log.Fatalf("Failed to initialize LLM provider: %v", err)
	}
	log.Printf("LLM provider: %s", cfg.LLM.Provider)

	sender, err := email.NewSender(ctx, cfg.Email)
	if err != nil {
		log.Fatalf("Failed to initialize email sender: %v", err)
	}
	templates, err := email.NewTemplates()
	if err != nil {
		log.Fatalf("Failed to parse email templates: %v", err)
	}
	log.Printf("Email provider: %s", cfg.Email.Provider)

	drafts, err := brief.NewDraftStore(ctx, cfg.Brief, redisClient)
	if err != nil {
		log.Fatalf("Failed to initialize brief draft store: %v", err)
	}

	// Repositories
	profileRepo := postgres.NewProfileRepo(db)
	projectRepo := postgres.NewProjectRepo(db)

	// Services
	events := audit.NewService(postgres.NewSecurityLogRepo(db))
	profiles := profile.NewService(profileRepo, cfg.Security.MaxFieldLength)
	projects := project.NewService(projectRepo, cfg.Security.MaxFieldLength)
	invoices := invoice.NewService(postgres.NewInvoiceRepo(db), projectRepo, profileRepo, sender, templates, invoice.Options{
		AgencyName:     cfg.Email.FromName,
		PortalURL:      cfg.Server.PublicURL,
		MaxFieldLength: cfg.Security.MaxFieldLength,
	})
	blogSvc := blog.NewService(postgres.NewArticleRepo(db))
	contacts := contact.NewService(postgres.NewContactRepo(db), sender, templates, contact.Options{
		NotifyEmail:      cfg.Email.NotifyEmail,
		AgencyName:       cfg.Email.FromName,
		AdminURL:         cfg.Server.PublicURL,
		MaxMessageLength: cfg.Security.MaxMessageLength,
		MaxFieldLength:   cfg.Security.MaxFieldLength,
	})
	chatSvc := chat.NewService(completer, chat.Config{
		MaxHistory:       cfg.Security.MaxHistory,
		MaxMessageLength: cfg.Security.MaxMessageLength,
		Temperature:      cfg.LLM.Temperature,
		MaxTokens:        cfg.LLM.MaxTokens,
	})
	briefs := brief.NewService(postgres.NewBriefRepo(db), drafts, completer, sender, templates, brief.Options{
		NotifyEmail:      cfg.Email.NotifyEmail,
		AdminURL:         cfg.Server.PublicURL,
		DraftTTL:         cfg.Brief.DraftTTL(),
		MaxTurns:         cfg.Brief.MaxTurns,
		MaxMessageLength: cfg.Security.MaxMessageLength,
		Temperature:      cfg.LLM.Temperature,
		MaxTokens:        cfg.LLM.MaxTokens,
	})

	// Authentication: bearer tokens for clients, Google sessions for staff.
	var sessionStore auth.SessionStore
	if redisClient != nil {
		sessionStore = auth.NewRedisSessionStore(redisClient)
	} else {
		mem := auth.NewMemorySessionStore()
		go cleanupSessions(ctx, mem)
		sessionStore = mem
	}
	sessions := auth.NewSessions(sessionStore, cfg.Auth.IdleTimeout(), cfg.Auth.AbsoluteTimeout())
	middleware := auth.NewMiddleware(auth.MiddlewareConfig{
		Verifier:   auth.NewTokenVerifier(cfg.Auth.JWTSecret, cfg.Auth.JWTAudience),
		Sessions:   sessions,
		Profiles:   profiles,
		Events:     events,
		CookieName: cfg.Auth.CookieName,
		WarnBefore: cfg.Auth.WarnBefore(),
		IsNotFound: profile.IsNotFound,
	})

	var google *auth.GoogleLogin
	if cfg.Auth.GoogleEnabled() {
		google = auth.NewGoogleLogin(cfg.Auth, cfg.Server.PublicURL, sessions, profiles, events)

		// Validate OAuth credentials before accepting traffic so a
		// misconfiguration does not surface only at login time.
		log.Println("Validating Google OAuth credentials...")
		if err := google.ValidateCredentials(ctx); err != nil {
			log.Fatalf("OAuth pre-flight FAILED: %v", err)
		}
		log.Printf("Google staff login enabled for domain: %s", cfg.Auth.AllowedDomain)
	} else {
		log.Println("Google staff login disabled")
	}

	server := api.NewServer(api.Deps{
		Config:    cfg,
		DB:        db,
		Redis:     redisClient,
		Store:     store,
		Auth:      middleware,
		Google:    google,
		Events:    events,
		Profiles:  profiles,
		Projects:  projects,
		Invoices:  invoices,
		Blog:      blogSvc,
		Importer:  blog.NewImporter(blogSvc, cfg.Blog.AutoPublish, cfg.Blog.MaxItemsPerFeed),
		Contacts:  contacts,
		Chat:      chatSvc,
		Briefs:    briefs,
		Dashboard: dashboard.NewService(postgres.NewDashboardRepo(db)),
		Sender:    sender,
		Templates: templates,
	})

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Starting server on %s", cfg.Server.Addr())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	log.Println("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	log.Println("Server stopped")
}

func cleanupSessions(ctx context.Context, store *auth.MemorySessionStore) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := store.Cleanup(); n > 0 {
				log.Printf("[auth] Removed %d expired sessions", n)
			}
		}
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
