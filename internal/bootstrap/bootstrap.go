package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/luismhernandezs-crypto/doc-classifier/internal/config"
	"github.com/luismhernandezs-crypto/doc-classifier/internal/core/domain"
	"github.com/luismhernandezs-crypto/doc-classifier/internal/core/ports"
	"github.com/luismhernandezs-crypto/doc-classifier/internal/core/usecase"
	"github.com/luismhernandezs-crypto/doc-classifier/internal/infrastructure/classifier/remote"
	"github.com/luismhernandezs-crypto/doc-classifier/internal/infrastructure/export/xlsx"
	"github.com/luismhernandezs-crypto/doc-classifier/internal/infrastructure/extractor/local"
	"github.com/luismhernandezs-crypto/doc-classifier/internal/infrastructure/model/logreg"
	"github.com/luismhernandezs-crypto/doc-classifier/internal/infrastructure/ocr/httpocr"
	"github.com/luismhernandezs-crypto/doc-classifier/internal/infrastructure/queue/nats"
	"github.com/luismhernandezs-crypto/doc-classifier/internal/infrastructure/repository/sqlstore"
	"github.com/luismhernandezs-crypto/doc-classifier/internal/infrastructure/resilience"
	"github.com/luismhernandezs-crypto/doc-classifier/internal/infrastructure/storage/localfs"
	"github.com/luismhernandezs-crypto/doc-classifier/internal/infrastructure/storage/minio"
	"github.com/luismhernandezs-crypto/doc-classifier/internal/observability/metrics"
)

const bucketSetupTimeout = 10 * time.Second

type Options struct {
	Logger *slog.Logger
	// Registerer receives the pipeline collectors; nil keeps them unregistered.
	Registerer prometheus.Registerer
	// RequireQueue connects NATS even when classified events are disabled.
	RequireQueue bool
}

type App struct {
	Config config.Config
	Logger *slog.Logger

	Model    *logreg.Model
	Engine   *usecase.ClassificationEngine
	Store    ports.ArtifactStore
	Ledger   ports.Ledger
	Queue    ports.ReprocessQueue
	Observer *metrics.PipelineMetrics

	Pipeline *usecase.PipelineUseCase
	Metrics  *usecase.MetricsUseCase
	History  *usecase.HistoryUseCase
	Rebuild  *usecase.RebuildUseCase

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	registerer := opts.Registerer
	if registerer == nil {
		registerer = prometheus.NewRegistry()
	}
	observer := metrics.NewPipelineMetrics("doc-classifier", registerer)

	model, err := logreg.Load(cfg.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("load classification model: %w", err)
	}
	engine, err := usecase.NewClassificationEngine(model, cfg.UnknownCategory)
	if err != nil {
		return nil, fmt.Errorf("init classification engine: %w", err)
	}
	logger.Info("model_loaded", "path", cfg.ModelPath, "version", model.Version(), "classes", model.Classes())

	executor := resilience.NewExecutor(resilienceConfig(cfg),
		resilience.WithLogger(logger),
		resilience.WithStateObserver(observer.ObserveBreakerState),
	)

	store, err := newArtifactStore(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("init artifact store: %w", err)
	}
	ensureBuckets(ctx, store, logger, cfg.BucketIncoming, cfg.BucketClassified)

	db, ledger, err := newLedger(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("init ledger: %w", err)
	}

	closers := []func(){func() { _ = db.Close() }}
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var (
		queue  *nats.Queue
		events ports.EventPublisher
		reproc ports.ReprocessQueue
	)
	if cfg.EventsEnabled || opts.RequireQueue {
		queue, err = nats.New(cfg.NATSURL, nats.Options{
			EventsSubject:      cfg.NATSEventsSubject,
			ReprocessSubject:   cfg.NATSReprocessSubject,
			ResilienceExecutor: executor,
			Logger:             logger,
		})
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("init message queue: %w", err)
		}
		closers = append(closers, queue.Close)
		reproc = queue
		if cfg.EventsEnabled {
			events = queue
		}
	}

	var secondary ports.SecondaryClassifier
	if cfg.SecondaryClassifierURL != "" {
		secondary = remote.New(cfg.SecondaryClassifierURL, cfg.SecondaryTimeout, executor)
	}
	reconciler := usecase.NewReconciler(engine, secondary, usecase.ParseAuthority(cfg.GroundTruthAuthority), cfg.SecondaryTimeout)

	pipeline := usecase.NewPipelineUseCase(usecase.PipelineDeps{
		Extractor:  newExtractor(cfg, executor),
		Engine:     engine,
		Reconciler: reconciler,
		Gate:       usecase.NewConfidenceGate(cfg.ConfidenceThreshold, engine.Unknown()),
		Store:      store,
		Ledger:     ledger,
		Events:     events,
		Observer:   observer,
		Logger:     logger,
	}, usecase.PipelineConfig{
		IncomingBucket:   cfg.BucketIncoming,
		ClassifiedBucket: cfg.BucketClassified,
		MaxTextChars:     cfg.MaxTextChars,
		OCRTimeout:       cfg.OCRTimeout,
		ArtifactTimeout:  cfg.ArtifactTimeout,
		LedgerTimeout:    cfg.LedgerTimeout,
		EventsTimeout:    cfg.EventsTimeout,
	})

	metricsUC := usecase.NewMetricsUseCase(ledger, engine, observer, logger, usecase.MetricsConfig{
		CacheTTL:      cfg.QualityCacheTTL,
		RatePerMinute: cfg.QualityRatePerMinute,
		RecentRecords: cfg.RecentRecords,
		LedgerTimeout: cfg.LedgerTimeout,
	})

	return &App{
		Config:   cfg,
		Logger:   logger,
		Model:    model,
		Engine:   engine,
		Store:    store,
		Ledger:   ledger,
		Queue:    reproc,
		Observer: observer,

		Pipeline: pipeline,
		Metrics:  metricsUC,
		History:  usecase.NewHistoryUseCase(ledger, xlsx.NewExporter(logger)),
		Rebuild:  usecase.NewRebuildUseCase(store, pipeline, reproc, cfg.BucketIncoming, logger),

		closeFn: closeAll,
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

func resilienceConfig(cfg config.Config) resilience.Config {
	rc := resilience.DefaultConfig()
	rc.RetryMaxAttempts = cfg.ResilienceRetryMaxAttempts
	rc.RetryInitialBackoff = cfg.ResilienceRetryInitialBackoff
	rc.RetryMaxBackoff = cfg.ResilienceRetryMaxBackoff
	rc.BreakerEnabled = cfg.ResilienceBreakerEnabled
	rc.BreakerOpenTimeout = cfg.ResilienceBreakerOpenTimeout
	return rc
}

func newArtifactStore(cfg config.Config, logger *slog.Logger) (ports.ArtifactStore, error) {
	switch cfg.StorageBackend {
	case "localfs", "local", "fs":
		return localfs.New(cfg.StoragePath)
	case "", "minio", "s3":
		return minio.New(minio.Config{
			Endpoint:  cfg.MinIOEndpoint,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			UseSSL:    cfg.MinIOUseSSL,
			Region:    cfg.MinIORegion,
		}, logger)
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.StorageBackend)
	}
}

// ensureBuckets never fails startup; an unreachable store surfaces later as StorageWriteFailure.
func ensureBuckets(ctx context.Context, store ports.ArtifactStore, logger *slog.Logger, buckets ...string) {
	for _, bucket := range buckets {
		callCtx, cancel := context.WithTimeout(ctx, bucketSetupTimeout)
		err := store.EnsureBucket(callCtx, bucket)
		cancel()
		if err != nil {
			logger.Warn("bucket_setup_failed", "bucket", bucket, "error", err)
			continue
		}
		logger.Info("bucket_ready", "bucket", bucket)
	}
}

// newLedger fails only on configuration errors. An unreachable database is
// logged here and reported per request as PersistenceFailure.
func newLedger(ctx context.Context, cfg config.Config, logger *slog.Logger) (*sql.DB, *sqlstore.LedgerRepository, error) {
	dialect, err := sqlstore.DialectFor(cfg.LedgerDriver)
	if err != nil {
		return nil, nil, err
	}
	dsn := cfg.PostgresDSN
	if dialect == sqlstore.SQLite {
		dsn = cfg.SQLitePath
	}
	db, err := sqlstore.OpenDB(dialect, dsn)
	if err != nil {
		return nil, nil, domain.WrapError(domain.ErrFatalStartup, "open ledger", err)
	}
	ledger := sqlstore.NewLedgerRepository(db, dialect)

	callCtx, cancel := context.WithTimeout(ctx, ledgerSetupTimeout(cfg))
	defer cancel()
	if err := ledger.EnsureSchema(callCtx); err != nil {
		logger.Warn("ledger_unavailable", "driver", dialect.Name, "error", err)
		return db, ledger, nil
	}
	logger.Info("ledger_ready", "driver", dialect.Name)
	return db, ledger, nil
}

func ledgerSetupTimeout(cfg config.Config) time.Duration {
	if cfg.LedgerTimeout > 0 {
		return cfg.LedgerTimeout
	}
	return bucketSetupTimeout
}

func newExtractor(cfg config.Config, executor *resilience.Executor) ports.TextExtractor {
	if cfg.OCRBackend == "local" {
		return local.NewExtractor(cfg.MaxUploadBytes())
	}
	return httpocr.New(cfg.OCRURL, cfg.OCRTimeout, executor)
}
