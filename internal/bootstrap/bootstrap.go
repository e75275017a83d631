package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/legal-intake/internal/config"
	"github.com/kirillkom/legal-intake/internal/core/ports"
	"github.com/kirillkom/legal-intake/internal/core/usecase"
	"github.com/kirillkom/legal-intake/internal/infrastructure/chunking"
	"github.com/kirillkom/legal-intake/internal/infrastructure/encryption"
	"github.com/kirillkom/legal-intake/internal/infrastructure/queue/nats"
	"github.com/kirillkom/legal-intake/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/legal-intake/internal/infrastructure/resilience"
	"github.com/kirillkom/legal-intake/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/legal-intake/internal/observability/metrics"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	Queue    *nats.Queue
	IngestUC ports.DocumentIngestor
	Jobs     *usecase.JobService
	Vault    ports.DocumentVault
	BatchUC  ports.BatchProcessor

	HTTPMetrics   *metrics.HTTPServerMetrics
	WorkerMetrics *metrics.WorkerMetrics

	closeFn func()
}

// New wires infrastructure for either binary. It refuses to start without a
// valid encryption key.
func New(ctx context.Context, cfg config.Config, service string, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	key, err := cfg.EncryptionKey()
	if err != nil {
		return nil, fmt.Errorf("decode encryption key: %w", err)
	}
	sealer, err := encryption.NewSealer(key)
	if err != nil {
		return nil, fmt.Errorf("init sealer: %w", err)
	}

	pipeline, err := NewPipeline(cfg, logger)
	if err != nil {
		return nil, err
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	jobRepo := postgres.NewJobRepository(db)
	encryptedRepo := postgres.NewEncryptedDocumentRepository(db)

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	workerMetrics := metrics.NewWorkerMetrics(service)
	executor := resilience.NewExecutor(resilience.DefaultConfig(), logger)
	executor.OnStateChange(workerMetrics.SetBreakerOpen)

	var splitter *chunking.Splitter
	if cfg.HandoffChunkSize > 0 {
		splitter = chunking.NewSplitter(cfg.HandoffChunkSize, cfg.HandoffChunkOverlap)
	}
	queue, err := nats.New(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		RedactedSubject:    cfg.NATSRedactedSubject,
		ResilienceExecutor: executor,
		Splitter:           splitter,
		Logger:             logger,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	vault := usecase.NewVaultService(sealer, encryptedRepo)
	processUC := usecase.NewProcessDocumentUseCase(
		jobRepo,
		storage,
		pipeline.Extractor,
		pipeline.Redactor,
		pipeline.Classifier,
		vault,
		queue,
		workerMetrics,
		logger,
	)
	batchUC := usecase.NewBatchProcessUseCase(jobRepo, workerMetrics.Instrument(processUC), cfg.WorkerConcurrency, logger)

	logger.Info("bootstrap_ready",
		"key_id", sealer.KeyID(),
		"worker_concurrency", cfg.WorkerConcurrency,
		"ocr_enabled", cfg.OCREnabled,
		"redaction_categories", len(pipeline.Redactor.Categories()),
	)

	return &App{
		Config: cfg,
		Logger: logger,

		Queue:    queue,
		IngestUC: usecase.NewIngestBatchUseCase(jobRepo, storage, queue),
		Jobs:     usecase.NewJobService(jobRepo, storage),
		Vault:    vault,
		BatchUC:  batchUC,

		HTTPMetrics:   metrics.NewHTTPServerMetrics(service),
		WorkerMetrics: workerMetrics,

		closeFn: func() {
			queue.Close()
			closeDB(db, logger)
		},
	}, nil
}

// ProcessTimeout bounds one external OCR invocation.
func ProcessTimeout(cfg config.Config) time.Duration {
	return time.Duration(cfg.ProcessTimeoutSeconds) * time.Second
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

func closeDB(db *sql.DB, logger *slog.Logger) {
	if err := db.Close(); err != nil {
		logger.Warn("postgres_close_failed", "error", err)
	}
}
