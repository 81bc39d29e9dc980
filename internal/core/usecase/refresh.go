package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/agrisense/agrisense-engine/internal/core/domain"
	"github.com/agrisense/agrisense-engine/internal/core/ports"
)

// embedBatchSize bounds one embedding call during hydration.
const embedBatchSize = 64

// Refresher rebuilds the in-memory generations from durable storage. It runs
// once at startup and again on every ingest event.
type Refresher struct {
	documents ports.DocumentRepository
	records   ports.RecordRepository
	embedder  ports.Embedder
	index     ports.DocumentIndex
	store     ports.DatasetStore
	logger    *slog.Logger
}

func NewRefresher(
	documents ports.DocumentRepository,
	records ports.RecordRepository,
	embedder ports.Embedder,
	index ports.DocumentIndex,
	store ports.DatasetStore,
	logger *slog.Logger,
) *Refresher {
	return &Refresher{
		documents: documents,
		records:   records,
		embedder:  embedder,
		index:     index,
		store:     store,
		logger:    logger,
	}
}

// Refresh hydrates both generations. Each side fails independently; a broken
// document refresh leaves the record store untouched and vice versa.
func (r *Refresher) Refresh(ctx context.Context) error {
	started := time.Now()

	docs, err := r.documents.ListAll(ctx)
	if err != nil {
		return err
	}
	if err := r.embedAll(ctx, docs); err != nil {
		return err
	}
	if err := r.index.Replace(docs); err != nil {
		return domain.WrapError(domain.ErrIndexUnavailable, "refresh.index", err)
	}

	records, err := r.records.ListAll(ctx)
	if err != nil {
		return err
	}
	r.store.Replace(records)

	r.logger.Info("generations_refreshed",
		slog.Int("documents", len(docs)),
		slog.Int("records", len(records)),
		slog.Duration("elapsed", time.Since(started)))
	return nil
}

// Handle adapts Refresh to the event bus subscription.
func (r *Refresher) Handle(ctx context.Context, event ports.IngestEvent) error {
	r.logger.Info("ingest_event_received",
		slog.String("kind", event.Kind),
		slog.String("dataset", event.Dataset))
	return r.Refresh(ctx)
}

func (r *Refresher) embedAll(ctx context.Context, docs []domain.Document) error {
	for start := 0; start < len(docs); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(docs) {
			end = len(docs)
		}
		texts := make([]string, 0, end-start)
		for _, doc := range docs[start:end] {
			texts = append(texts, doc.Text)
		}
		vectors, err := r.embedder.Embed(ctx, texts)
		if err != nil {
			return domain.WrapError(domain.ErrIndexUnavailable, "refresh.embed", err)
		}
		for i := range vectors {
			docs[start+i].Embedding = vectors[i]
		}
	}
	return nil
}
