package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/brightpixel/agency-portal/internal/config"
	"github.com/brightpixel/agency-portal/internal/email"
	"github.com/brightpixel/agency-portal/internal/pkg/distlock"
	"github.com/brightpixel/agency-portal/internal/pkg/logger"
	"github.com/brightpixel/agency-portal/internal/repository/postgres"
	"github.com/brightpixel/agency-portal/internal/service/audit"
	"github.com/brightpixel/agency-portal/internal/service/blog"
	"github.com/brightpixel/agency-portal/internal/service/invoice"
	"github.com/brightpixel/agency-portal/internal/worker"
)

func main() {
	log.Println("Starting agency portal worker...")
	logger.SetLevel(logger.ParseLevel(os.Getenv("LOG_LEVEL")))

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config/config.yaml"
	}
	cfg, err := config.LoadFromEnv(path)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Connected to database")

	// Redis is optional. Without it the locks fall back to Postgres
	// advisory locks.
	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			opts = &redis.Options{Addr: cfg.Redis.URL}
		}
		redisClient = redis.NewClient(opts)
		pingCtx, pingCancel := context.WithTimeout(ctx, 3*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			log.Printf("Warning: Redis connection failed: %v, using advisory locks", err)
			redisClient.Close()
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
		pingCancel()
	}

	sender, err := email.NewSender(ctx, cfg.Email)
	if err != nil {
		log.Fatalf("Failed to initialize email sender: %v", err)
	}
	templates, err := email.NewTemplates()
	if err != nil {
		log.Fatalf("Failed to parse email templates: %v", err)
	}

	blogSvc := blog.NewService(postgres.NewArticleRepo(db))
	invoices := invoice.NewService(postgres.NewInvoiceRepo(db), postgres.NewProjectRepo(db), postgres.NewProfileRepo(db), sender, templates, invoice.Options{
		AgencyName:     cfg.Email.FromName,
		PortalURL:      cfg.Server.PublicURL,
		MaxFieldLength: cfg.Security.MaxFieldLength,
	})
	events := audit.NewService(postgres.NewSecurityLogRepo(db))

	feeds := worker.NewFeedImporter(blog.NewImporter(blogSvc, cfg.Blog.AutoPublish, cfg.Blog.MaxItemsPerFeed), worker.FeedImporterConfig{
		Feeds:    cfg.Blog.Feeds,
		Interval: cfg.Blog.Interval(),
		Lock:     distlock.NewLock(redisClient, db, "feed-import", 30*time.Minute),
	})
	sweeper := worker.NewInvoiceSweeper(invoices, 0, distlock.NewLock(redisClient, db, "invoice-sweep", 10*time.Minute))
	retention := worker.NewRetentionWorker(events, cfg.Retention.SecurityLogDays, distlock.NewLock(redisClient, db, "log-retention", 10*time.Minute))

	log.Printf("Feeds: %d, security log retention: %d days", len(cfg.Blog.Feeds), cfg.Retention.SecurityLogDays)

	var wg sync.WaitGroup
	for _, start := range []func(context.Context){feeds.Start, sweeper.Start, retention.Start} {
		wg.Add(1)
		go func(start func(context.Context)) {
			defer wg.Done()
			start(ctx)
		}(start)
	}

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down worker...")
	cancel()
	wg.Wait()
	log.Printf("Feed import stats: %v", feeds.Stats())
	log.Println("Worker stopped")
}
