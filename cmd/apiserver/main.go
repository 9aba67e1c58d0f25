// The apiserver binary serves the RxDossier REST API: synchronous
// analysis runs, async job submission, and report retrieval.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/turtacn/RxDossier/internal/application/export"
	"github.com/turtacn/RxDossier/internal/config"
	"github.com/turtacn/RxDossier/internal/infrastructure/database/postgres"
	"github.com/turtacn/RxDossier/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/RxDossier/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/RxDossier/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/RxDossier/internal/infrastructure/storage/minio"
	httpserver "github.com/turtacn/RxDossier/internal/interfaces/http"
	"github.com/turtacn/RxDossier/internal/interfaces/http/handlers"
	"github.com/turtacn/RxDossier/internal/interfaces/http/middleware"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to configuration file")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	if err := run(cfg, logger); err != nil {
		logger.Error("apiserver exited with error", logging.Err(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger logging.Logger) error {
	// Metrics
	registry := promclient.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	var metrics *prometheus.Collector
	if cfg.Metrics.Enabled {
		metrics = prometheus.NewCollector(cfg.Metrics.Namespace, registry)
	}

	// Persistence
	conn, err := postgres.NewConnection(cfg.Database, logger)
	if err != nil {
		return err
	}
	defer conn.Close()

	if cfg.Database.MigrationPath != "" {
		if err := postgres.RunMigrations(postgres.BuildDSN(cfg.Database), cfg.Database.MigrationPath); err != nil {
			return err
		}
	}
	repo := postgres.NewReportRepo(conn.DB(), logger)

	// Literature cache (memory or redis)
	cache, closeCache, err := buildLiteratureCache(cfg, logger)
	if err != nil {
		return err
	}
	if closeCache != nil {
		defer closeCache()
	}

	// Enrichment pipeline
	orchestrator, err := buildOrchestrator(cfg, cache, metrics, logger)
	if err != nil {
		return err
	}

	// Artifact store is optional; exports fall back to inline downloads.
	var artifacts export.ArtifactStore
	if cfg.Storage.Endpoint != "" {
		store, err := minio.NewStore(cfg.Storage, logger)
		if err != nil {
			logger.Warn("object storage unavailable, exports will not be archived", logging.Err(err))
		} else {
			artifacts = store
		}
	}
	exporter := export.NewService(artifacts, logger)

	// Async job queue is optional; without brokers only sync runs work.
	var queue handlers.JobQueue
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafka.NewProducer(cfg.Kafka, "apiserver", logger)
		if err != nil {
			return err
		}
		defer producer.Close()
		queue = producer
	}

	limiter := middleware.NewRateLimiter(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.Server.RateLimitPerSec,
		Burst:             cfg.Server.RateLimitBurst,
		SkipPaths:         []string{"/healthz", "/readyz", cfg.Metrics.Path},
	})
	defer limiter.Stop()

	router := httpserver.NewRouter(httpserver.RouterConfig{
		AnalysisHandler: handlers.NewAnalysisHandler(orchestrator, repo, queue, logger),
		ReportHandler:   handlers.NewReportHandler(repo, exporter, logger),
		HealthHandler: handlers.NewHealthHandler(map[string]handlers.ReadinessCheck{
			"database": func(ctx context.Context) error { return conn.DB().PingContext(ctx) },
		}, logger),
		RateLimiter:    limiter,
		MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		MetricsPath:    cfg.Metrics.Path,
		Logger:         logger,
	})

	server := httpserver.NewServer(cfg.Server, router, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("received shutdown signal", logging.String("signal", sig.String()))
	}

	return server.Shutdown(context.Background())
}

// loadConfig prefers the file, falling back to environment-only
// configuration when the file does not exist.
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config.LoadFromEnv()
	}
	return config.Load(path)
}
