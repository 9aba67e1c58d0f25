// The worker binary consumes queued analysis jobs from Kafka, runs the
// enrichment pipeline, persists the resulting reports, and publishes
// completion events.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/turtacn/RxDossier/internal/application/pipeline"
	"github.com/turtacn/RxDossier/internal/config"
	"github.com/turtacn/RxDossier/internal/domain/candidate"
	"github.com/turtacn/RxDossier/internal/infrastructure/database/postgres"
	"github.com/turtacn/RxDossier/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/RxDossier/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/RxDossier/internal/infrastructure/monitoring/prometheus"
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
		logger.Error("worker exited with error", logging.Err(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger logging.Logger) error {
	registry := promclient.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	var metrics *prometheus.Collector
	if cfg.Metrics.Enabled {
		metrics = prometheus.NewCollector(cfg.Metrics.Namespace, registry)
	}

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

	cache, closeCache, err := buildLiteratureCache(cfg, logger)
	if err != nil {
		return err
	}
	if closeCache != nil {
		defer closeCache()
	}

	orchestrator, err := buildOrchestrator(cfg, cache, metrics, logger)
	if err != nil {
		return err
	}

	producer, err := kafka.NewProducer(cfg.Kafka, "worker", logger)
	if err != nil {
		return err
	}
	defer producer.Close()

	// One consumer per concurrency slot; they share the group, so Kafka
	// spreads partitions across them.
	handler := newJobHandler(orchestrator, repo, producer, logger)
	consumers := make([]*kafka.Consumer, 0, cfg.Worker.Concurrency)
	for i := 0; i < cfg.Worker.Concurrency; i++ {
		consumer, err := kafka.NewConsumer(cfg.Kafka, kafka.TopicAnalysisRequest, handler.Handle, producer, kafka.ConsumerOptions{
			MaxRetries:      cfg.Worker.MaxRetries,
			RetryBackoff:    cfg.Worker.RetryBackoff,
			HandlerTimeout:  cfg.Worker.HandlerTimeout,
			DeadLetterTopic: kafka.TopicAnalysisDLQ,
		}, logger.With(logging.Int("consumer", i)))
		if err != nil {
			return err
		}
		consumers = append(consumers, consumer)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for _, consumer := range consumers {
		if err := consumer.Start(ctx); err != nil {
			return err
		}
	}

	healthSrv := startHealthServer(cfg.Worker.HealthPort, registry, logger)

	<-ctx.Done()
	logger.Info("shutting down worker")

	for _, consumer := range consumers {
		if err := consumer.Close(); err != nil {
			logger.Warn("consumer close failed", logging.Err(err))
		}
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return healthSrv.Shutdown(shutdownCtx)
}

// jobHandler turns one queued request into a persisted report and a
// completion event.
type jobHandler struct {
	orchestrator *pipeline.Orchestrator
	repo         candidate.ReportRepository
	producer     *kafka.Producer
	logger       logging.Logger
}

func newJobHandler(orchestrator *pipeline.Orchestrator, repo candidate.ReportRepository, producer *kafka.Producer, logger logging.Logger) *jobHandler {
	return &jobHandler{
		orchestrator: orchestrator,
		repo:         repo,
		producer:     producer,
		logger:       logger.Named("job_handler"),
	}
}

func (h *jobHandler) Handle(ctx context.Context, envelope kafka.EventEnvelope) error {
	var job kafka.AnalysisRequestPayload
	if err := envelope.DecodePayload(&job); err != nil {
		return err
	}

	h.logger.Info("processing analysis job",
		logging.String("job_id", job.JobID),
		logging.String("document_id", job.DocumentID),
		logging.Int("candidates", len(job.Candidates)),
	)

	report, err := h.orchestrator.Run(ctx, job.DocumentID, job.Candidates)
	if err != nil {
		return err
	}
	if err := h.repo.Save(ctx, report); err != nil {
		return err
	}

	completed := kafka.AnalysisCompletedPayload{
		JobID:       job.JobID,
		RunID:       report.RunID,
		DocumentID:  report.DocumentID,
		Completed:   report.Completed,
		Degraded:    report.Degraded,
		Failed:      report.Failed,
		GeneratedAt: report.GeneratedAt,
	}
	if err := h.producer.Publish(ctx, kafka.TopicAnalysisCompleted, job.DocumentID, "analysis.completed", completed); err != nil {
		// The report is saved; a lost completion event is recoverable by
		// polling the report endpoint.
		h.logger.Warn("failed to publish completion event",
			logging.String("job_id", job.JobID),
			logging.Err(err),
		)
	}
	return nil
}

// startHealthServer exposes /healthz and /metrics for probes.
func startHealthServer(port int, registry *promclient.Registry, logger logging.Logger) *http.Server {
	if port <= 0 {
		port = 8081
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("health server failed", logging.Err(err))
		}
	}()
	return srv
}

func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config.LoadFromEnv()
	}
	return config.Load(path)
}
