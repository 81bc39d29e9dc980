package ports

import (
	"context"

	"github.com/agrisense/agrisense-engine/internal/core/domain"
)

// IndexSnapshot is a read-only view of one fully formed index generation.
// Searches against it never observe a partial write.
type IndexSnapshot interface {
	// Search returns the top-k documents by cosine similarity, filtered to
	// score >= minScore, ties broken by ascending document ID.
	Search(queryVector []float32, k int, minScore float64) []domain.ScoredDocument
	Len() int
}

// DocumentIndex stages documents and publishes immutable generations.
type DocumentIndex interface {
	// Add stages a document for the next generation. O(1) amortized.
	Add(doc domain.Document) error
	// Commit publishes all staged documents as a new generation atomically.
	Commit()
	// Replace publishes a new generation built from the given documents,
	// discarding anything staged.
	Replace(docs []domain.Document) error
	Snapshot() IndexSnapshot
}

// StoreSnapshot is a read-only view of one dataset store generation with the
// structured operations the fusion engine composes.
type StoreSnapshot interface {
	Datasets() []domain.DatasetInfo
	Has(dataset string) bool
	// Filter returns records of the dataset matching the predicate, in
	// insertion order. Unknown dataset yields ErrDatasetNotFound.
	Filter(dataset string, keep func(domain.DatasetRecord) bool) ([]domain.DatasetRecord, error)
	// Join inner-joins the datasets on their shared dimension keys. Fails
	// with ErrJoinKeyMismatch when no common non-empty key set exists and
	// with ErrAmbiguousJoin when a key tuple repeats within one dataset.
	Join(datasets []string, keys []string) ([]domain.DatasetRecord, error)
	// Aggregate groups records by the dimension keys and reduces measures
	// with fn, ordered by group key.
	Aggregate(records []domain.DatasetRecord, groupBy []string, fn domain.AggFunc) ([]domain.DatasetRecord, error)
	// Correlate aligns two measure series by the dimension keys and computes
	// the Pearson coefficient. Fails with ErrInsufficientData below the
	// minimum aligned sample size.
	Correlate(a, b domain.MeasureSeries, keys []string) (domain.Statistic, []domain.AlignedPair, error)
	// AlignTimeseries resamples records to yearly periods over the range,
	// marking missing periods as gaps instead of interpolating.
	AlignTimeseries(records []domain.DatasetRecord, measure string, years domain.YearRange) []domain.TimeSeriesPoint
}

// DatasetStore holds harmonized records and publishes immutable generations.
type DatasetStore interface {
	// Replace publishes a new generation holding exactly the given records.
	Replace(records []domain.DatasetRecord)
	Snapshot() StoreSnapshot
}

// Embedder builds fixed-dimension vectors for documents and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Generator is the external text-generation capability. It may time out or
// fail; callers own retry and degradation policy.
type Generator interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// DocumentRepository durably stores ingested documents, idempotent on the
// caller's stable external identifier.
type DocumentRepository interface {
	Upsert(ctx context.Context, externalID string, text string, meta domain.DocumentMetadata) error
	ListAll(ctx context.Context) ([]domain.Document, error)
}

// RecordRepository durably stores harmonized dataset rows, idempotent on the
// caller's stable external identifier.
type RecordRepository interface {
	Upsert(ctx context.Context, externalID string, record domain.DatasetRecord) error
	ListAll(ctx context.Context) ([]domain.DatasetRecord, error)
}

// IngestEvent announces that durable ingestion advanced and in-memory
// generations should be republished.
type IngestEvent struct {
	Kind    string `json:"kind"` // "document" or "record"
	Dataset string `json:"dataset"`
}

// EventBus publishes and consumes ingestion events across replicas.
type EventBus interface {
	PublishIngested(ctx context.Context, event IngestEvent) error
	SubscribeIngested(ctx context.Context, handler func(context.Context, IngestEvent) error) error
	Close()
}
