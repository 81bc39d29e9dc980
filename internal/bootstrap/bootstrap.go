package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/agrisense/agrisense-engine/internal/config"
	"github.com/agrisense/agrisense-engine/internal/core/ports"
	"github.com/agrisense/agrisense-engine/internal/core/usecase"
	"github.com/agrisense/agrisense-engine/internal/infrastructure/embedding/hashing"
	"github.com/agrisense/agrisense-engine/internal/infrastructure/index/memoryindex"
	"github.com/agrisense/agrisense-engine/internal/infrastructure/llm/hfinference"
	"github.com/agrisense/agrisense-engine/internal/infrastructure/queue/nats"
	"github.com/agrisense/agrisense-engine/internal/infrastructure/repository/postgres"
	"github.com/agrisense/agrisense-engine/internal/infrastructure/resilience"
	"github.com/agrisense/agrisense-engine/internal/infrastructure/store/memorystore"
	"github.com/agrisense/agrisense-engine/internal/observability/metrics"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	Metrics *metrics.HTTPServerMetrics
	Limiter *rate.Limiter

	Store     ports.DatasetStore
	Bus       ports.EventBus
	Query     *usecase.QueryService
	Ingestion *usecase.IngestionService
	Refresher *usecase.Refresher

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger, service string) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	docRepo := postgres.NewDocumentRepository(db)
	recRepo := postgres.NewRecordRepository(db)

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	bus, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init event bus: %w", err)
	}
	hfClient := hfinference.New(cfg.HFInferenceURL, cfg.HFGenModel, cfg.HFEmbedModel, cfg.HFToken, executor)

	var embedder ports.Embedder
	if cfg.EmbedderMode == "remote" {
		embedder = hfClient
	} else {
		embedder = hashing.New(cfg.EmbeddingDim)
	}

	index := memoryindex.New()
	store := memorystore.New()

	m := metrics.NewHTTPServerMetrics(service)
	composer := usecase.NewAnswerComposer(hfClient, logger)
	query := usecase.NewQueryService(
		embedder,
		index,
		store,
		usecase.NewRouter(),
		usecase.NewFusionEngine(),
		composer,
		usecase.NewVisualizationSelector(),
		usecase.RetrievalOptions{TopK: cfg.RetrievalTopK, MinScore: cfg.RetrievalMinScore},
		logger,
		metrics.NewQueryRecorder(service, m),
	)
	ingestion := usecase.NewIngestionService(docRepo, recRepo, bus, logger)
	refresher := usecase.NewRefresher(docRepo, recRepo, embedder, index, store, logger)

	return &App{
		Config:    cfg,
		Logger:    logger,
		Metrics:   m,
		Limiter:   rate.NewLimiter(rate.Limit(cfg.IngestRateLimit), cfg.IngestRateBurst),
		Store:     store,
		Bus:       bus,
		Query:     query,
		Ingestion: ingestion,
		Refresher: refresher,

		closeFn: func() {
			bus.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
