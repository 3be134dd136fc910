// Command server starts the review-guardian HTTP API.
//
// The service accepts review text via POST /api/reviews/analyze and CSV
// uploads via POST /api/uploads/file, delegates classification to the
// external scoring service, persists raw uploads and the latest summary
// artifact to the object store, and serves that summary to the polling
// dashboard via GET /api/summary/latest.
//
// Usage:
//
//	go run ./cmd/server [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/reviewguard/reviewguard/internal/ingest"
	"github.com/reviewguard/reviewguard/internal/ingest/uploadrepo"
	"github.com/reviewguard/reviewguard/internal/scoring"
	"github.com/reviewguard/reviewguard/internal/server"
	"github.com/reviewguard/reviewguard/internal/storage"
	"github.com/reviewguard/reviewguard/internal/summary"
	"github.com/reviewguard/reviewguard/pkg/config"
	"github.com/reviewguard/reviewguard/pkg/health"
	"github.com/reviewguard/reviewguard/pkg/kafka"
	"github.com/reviewguard/reviewguard/pkg/logger"
	"github.com/reviewguard/reviewguard/pkg/metrics"
	"github.com/reviewguard/reviewguard/pkg/postgres"
	"github.com/reviewguard/reviewguard/pkg/redis"
	"github.com/reviewguard/reviewguard/pkg/resilience"
)

// main loads configuration, connects dependencies (S3, classifier, optional
// Postgres/Redis/Kafka), wires the ingest service and HTTP handler, and
// starts the server. Graceful shutdown is triggered by SIGINT/SIGTERM.
func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting review guardian", "port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer shutdownMetrics(context.Background())
		slog.Info("metrics server started", "port", cfg.Metrics.Port)
	}

	blobs := storage.NewS3Store(cfg.S3)
	slog.Info("object store initialized", "bucket", cfg.S3.Bucket, "region", cfg.S3.Region)

	scorerOpts := []scoring.Option{}
	if m != nil {
		scorerOpts = append(scorerOpts, scoring.WithMetrics(m))
	}
	scorer := scoring.NewClient(cfg.Scoring, scorerOpts...)
	slog.Info("scoring client initialized", "url", cfg.Scoring.BaseURL)

	// Postgres holds upload-history rows. The API degrades (no history
	// endpoint) rather than failing to start if it never comes up.
	var db *postgres.Client
	err = resilience.Retry(ctx, "postgres", resilience.RetryConfig{MaxAttempts: 5}, func() error {
		var connErr error
		db, connErr = postgres.New(cfg.Postgres)
		return connErr
	})
	if err != nil {
		slog.Warn("postgres unavailable, upload history disabled", "error", err)
		db = nil
	} else {
		defer db.Close()
		slog.Info("connected to postgres")
	}

	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb, err = redis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, summary reads go straight to the object store", "error", err)
			rdb = nil
		} else {
			defer rdb.Close()
			slog.Info("redis cache initialized", "addr", cfg.Redis.Addr)
		}
	}

	var producer *kafka.Producer
	if cfg.Kafka.Enabled {
		producer = kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.ReviewIngested)
		defer producer.Close()
		slog.Info("kafka producer initialized", "topic", cfg.Kafka.Topics.ReviewIngested)
	}

	cacheOpts := []summary.Option{}
	if rdb != nil {
		cacheOpts = append(cacheOpts, summary.WithRedis(rdb, cfg.Redis.CacheTTL))
	}
	if m != nil {
		cacheOpts = append(cacheOpts, summary.WithMetrics(m))
	}
	cache := summary.NewCache(blobs, cacheOpts...)

	svcOpts := []ingest.Option{}
	var uploads server.UploadLister
	if db != nil {
		repo := uploadrepo.New(db)
		uploads = repo
		svcOpts = append(svcOpts, ingest.WithUploadRecorder(repo))
	}
	if producer != nil {
		svcOpts = append(svcOpts, ingest.WithEvents(producer))
	}
	if m != nil {
		svcOpts = append(svcOpts, ingest.WithMetrics(m))
	}
	svc := ingest.New(blobs, scorer, cache, cfg.Uploads, cfg.Summary.TopFlaggedLimit, svcOpts...)

	checker := health.NewChecker()
	checker.Register("s3", func(ctx context.Context) health.ComponentHealth {
		if err := blobs.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})
	checker.Register("scoring", func(ctx context.Context) health.ComponentHealth {
		if err := scorer.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})
	checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
		if db == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		if err := db.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if rdb == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		if err := rdb.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	h := server.New(svc, cache, uploads, cfg.Uploads.MaxFileSize)
	router := server.NewRouter(h, checker, m, cfg.Server.RequestTimeout)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()
	slog.Info("review guardian listening", "addr", httpServer.Addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("review guardian stopped")
}
