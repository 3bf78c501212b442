package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kirillkom/document-enrichment/internal/config"
	"github.com/kirillkom/document-enrichment/internal/core/domain"
	"github.com/kirillkom/document-enrichment/internal/core/ports"
	"github.com/kirillkom/document-enrichment/internal/core/usecase"
	"github.com/kirillkom/document-enrichment/internal/infrastructure/extractor"
	"github.com/kirillkom/document-enrichment/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/document-enrichment/internal/infrastructure/queue/memory"
	"github.com/kirillkom/document-enrichment/internal/infrastructure/queue/nats"
	"github.com/kirillkom/document-enrichment/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/document-enrichment/internal/infrastructure/resilience"
	"github.com/kirillkom/document-enrichment/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/document-enrichment/internal/observability/metrics"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	Repo     ports.DocumentRepository
	Pipeline *usecase.Pipeline
	Recovery *usecase.RecoveryScanner
	IngestUC ports.DocumentIngestor
	RemoveUC ports.DocumentRemover
	Metrics  *metrics.PipelineMetrics

	// Transport is nil when NATS_URL is unset.
	Transport *nats.Transport

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewDocumentRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	storage, err := localfs.New(cfg.StoragePath, logger)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	pipelineMetrics := metrics.NewPipelineMetrics("document-enrichment")

	modelPolicy := resilience.DefaultConfig()
	modelPolicy.RetryMaxAttempts = cfg.ModelRetryMaxAttempts
	modelPolicy.RetryInitialBackoff = cfg.ModelRetryInitialBackoff
	modelPolicy.RetryMaxBackoff = cfg.ModelRetryMaxBackoff
	modelPolicy.BreakerEnabled = cfg.ModelBreakerEnabled
	modelPolicy.OnAttempt = pipelineMetrics.ObserveModelAttempt

	invoker := ollama.New(cfg.OllamaURL, ollama.Options{
		Timeout:            cfg.OllamaTimeout,
		APIKey:             cfg.OllamaAPIKey,
		RateLimitRPS:       cfg.OllamaRateLimitRPS,
		RateLimitBurst:     cfg.OllamaRateBurst,
		ResilienceExecutor: resilience.NewExecutor(modelPolicy),
	})
	analyzer := usecase.NewAnalyzer(invoker, usecase.AnalyzerConfig{
		ClassificationModel: cfg.ClassificationModel,
		SummaryModel:        cfg.SummaryModel,
	}, logger)

	queue := memory.New()
	pipeline := usecase.NewPipeline(
		repo,
		storage,
		queue,
		extractor.New(cfg.ExtractMaxChars, logger),
		analyzer,
		usecase.PipelineConfig{
			Workers:         cfg.Workers,
			MaxConcurrent:   cfg.MaxConcurrent,
			DocumentTimeout: cfg.DocumentTimeout,
		},
		usecase.WithObserver(pipelineMetrics),
		usecase.WithLogger(logger),
	)
	recovery := usecase.NewRecoveryScanner(repo, pipeline, logger).WithMetrics(pipelineMetrics)

	var submitter ports.DocumentSubmitter
	if cfg.AutoSubmitOnUpload {
		submitter = pipeline
	}
	ingestUC := usecase.NewIngestDocumentUseCase(repo, storage, submitter, logger)
	removeUC := usecase.NewRemoveDocumentUseCase(repo, storage, logger)

	var transport *nats.Transport
	if cfg.NATSURL != "" {
		transport, err = nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			QueueGroup:         cfg.NATSQueueGroup,
			ResilienceExecutor: resilience.NewExecutor(resilience.StorageConfig()),
			Logger:             logger,
		})
		if err != nil {
			queue.Close()
			_ = db.Close()
			return nil, fmt.Errorf("init submission transport: %w", err)
		}
	}

	return &App{
		Config: cfg,
		Logger: logger,

		Repo:     repo,
		Pipeline: pipeline,
		Recovery: recovery,
		IngestUC: ingestUC,
		RemoveUC: removeUC,
		Metrics:  pipelineMetrics,

		Transport: transport,

		closeFn: func() {
			if transport != nil {
				transport.Close()
			}
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

// ConsumeSubmissions feeds ids published on the submission transport into the
// pipeline until ctx is done. It returns immediately when no transport is configured.
func (a *App) ConsumeSubmissions(ctx context.Context) error {
	if a.Transport == nil {
		return nil
	}
	a.Logger.Info("submission_consumer_started", "subject", a.Config.NATSSubject)
	return a.Transport.SubscribeSubmissions(ctx, func(handlerCtx context.Context, documentID string) error {
		_, err := a.Pipeline.Submit(handlerCtx, documentID)
		if errors.Is(err, domain.ErrAlreadyInFlight) {
			return nil
		}
		return err
	})
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
