package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/agrisense/agrisense-engine/internal/core/domain"
	"github.com/agrisense/agrisense-engine/internal/core/ports"
)

// QueryMetrics receives pipeline outcomes. Implemented by the observability
// package; NopQueryMetrics for tests.
type QueryMetrics interface {
	ObserveQuery(intent string, confidence float64, degraded bool, elapsed time.Duration)
	ObserveChart(chartType string)
}

type NopQueryMetrics struct{}

func (NopQueryMetrics) ObserveQuery(string, float64, bool, time.Duration) {}
func (NopQueryMetrics) ObserveChart(string)                              {}

type RetrievalOptions struct {
	TopK     int
	MinScore float64
}

func DefaultRetrievalOptions() RetrievalOptions {
	return RetrievalOptions{TopK: 5, MinScore: 0.05}
}

// QueryService runs the full pipeline: validate, classify, retrieve and fuse
// concurrently over one snapshot pair, compose, visualize.
type QueryService struct {
	embedder ports.Embedder
	index    ports.DocumentIndex
	store    ports.DatasetStore
	router   *Router
	fusion   *FusionEngine
	composer *AnswerComposer
	selector *VisualizationSelector
	opts     RetrievalOptions
	logger   *slog.Logger
	metrics  QueryMetrics
}

func NewQueryService(
	embedder ports.Embedder,
	index ports.DocumentIndex,
	store ports.DatasetStore,
	router *Router,
	fusion *FusionEngine,
	composer *AnswerComposer,
	selector *VisualizationSelector,
	opts RetrievalOptions,
	logger *slog.Logger,
	metrics QueryMetrics,
) *QueryService {
	if opts.TopK <= 0 {
		opts = DefaultRetrievalOptions()
	}
	if metrics == nil {
		metrics = NopQueryMetrics{}
	}
	return &QueryService{
		embedder: embedder,
		index:    index,
		store:    store,
		router:   router,
		fusion:   fusion,
		composer: composer,
		selector: selector,
		opts:     opts,
		logger:   logger,
		metrics:  metrics,
	}
}

func (s *QueryService) Answer(ctx context.Context, req domain.QueryRequest) (domain.QueryResponse, error) {
	started := time.Now()

	query := strings.TrimSpace(req.Query)
	if query == "" {
		return domain.QueryResponse{}, domain.WrapError(domain.ErrInvalidQuery, "query.validate", errors.New("query is empty"))
	}
	if len(query) > domain.MaxQueryChars {
		return domain.QueryResponse{}, domain.WrapError(domain.ErrInvalidQuery, "query.validate", errors.New("query exceeds maximum length"))
	}

	intent, err := s.router.Classify(query, req.PolicyMode)
	if err != nil {
		return domain.QueryResponse{}, err
	}

	// Both legs read from snapshots taken now; ingestion racing this query
	// cannot produce a half-updated view.
	indexSnap := s.index.Snapshot()
	storeSnap := s.store.Snapshot()

	var (
		wg           sync.WaitGroup
		retrieved    []domain.ScoredDocument
		retrievalErr error
		fused        domain.FusionResult
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		retrieved, retrievalErr = s.retrieve(ctx, indexSnap, query)
	}()
	go func() {
		defer wg.Done()
		fused = s.fusion.Compute(storeSnap, intent)
	}()
	wg.Wait()

	degraded := false
	if retrievalErr != nil {
		s.logger.Warn("retrieval_failed, continuing with structured data only",
			slog.String("error", retrievalErr.Error()))
		retrieved = nil
		degraded = true
	}

	answer := s.composer.Compose(ctx, ComposeInput{
		Query:      query,
		Intent:     intent,
		Retrieved:  retrieved,
		Fusion:     fused,
		PolicyMode: req.PolicyMode,
	})
	if degraded {
		answer.Degraded = true
		if answer.Confidence > degradedConfidenceCap {
			answer.Confidence = degradedConfidenceCap
		}
	}

	resp := domain.QueryResponse{
		Answer:         answer.Text,
		Sources:        answer.Sources,
		Confidence:     answer.Confidence,
		PolicyInsights: answer.PolicyInsights,
		Intent:         intent.Category,
		Degraded:       answer.Degraded,
	}
	if req.IncludeVisualization {
		if viz := s.selector.Select(intent, fused); viz != nil {
			resp.Visualization = viz
			s.metrics.ObserveChart(string(viz.Type))
		}
	}

	elapsed := time.Since(started)
	s.metrics.ObserveQuery(string(intent.Category), resp.Confidence, resp.Degraded, elapsed)
	s.logger.Info("query_answered",
		slog.String("intent", string(intent.Category)),
		slog.Float64("confidence", resp.Confidence),
		slog.Float64("completeness", fused.Completeness),
		slog.Bool("degraded", resp.Degraded),
		slog.Int("sources", len(resp.Sources)),
		slog.Duration("elapsed", elapsed))
	return resp, nil
}

func (s *QueryService) retrieve(ctx context.Context, snap ports.IndexSnapshot, query string) ([]domain.ScoredDocument, error) {
	if snap.Len() == 0 {
		return nil, nil
	}
	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, domain.WrapError(domain.ErrIndexUnavailable, "query.embed", err)
	}
	return snap.Search(vector, s.opts.TopK, s.opts.MinScore), nil
}
