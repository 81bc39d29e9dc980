package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/agrisense/agrisense-engine/internal/core/domain"
	"github.com/agrisense/agrisense-engine/internal/core/ports"
)

// DocumentInput is one document to ingest. ExternalID is the caller's stable
// identifier; re-submitting it updates the stored text in place.
type DocumentInput struct {
	ExternalID string                  `json:"external_id"`
	Text       string                  `json:"text"`
	Metadata   domain.DocumentMetadata `json:"metadata"`
}

// RecordInput is one harmonized dataset row to ingest.
type RecordInput struct {
	ExternalID string               `json:"external_id"`
	Record     domain.DatasetRecord `json:"record"`
}

// IngestionService writes documents and records durably and announces the
// change on the event bus so every replica rebuilds its generations.
type IngestionService struct {
	documents ports.DocumentRepository
	records   ports.RecordRepository
	bus       ports.EventBus
	logger    *slog.Logger
}

func NewIngestionService(
	documents ports.DocumentRepository,
	records ports.RecordRepository,
	bus ports.EventBus,
	logger *slog.Logger,
) *IngestionService {
	return &IngestionService{documents: documents, records: records, bus: bus, logger: logger}
}

func (s *IngestionService) IngestDocuments(ctx context.Context, inputs []DocumentInput) (int, error) {
	if len(inputs) == 0 {
		return 0, domain.WrapError(domain.ErrInvalidQuery, "ingest.documents", errors.New("no documents given"))
	}
	for i, in := range inputs {
		if strings.TrimSpace(in.ExternalID) == "" || strings.TrimSpace(in.Text) == "" {
			return 0, domain.WrapError(domain.ErrInvalidQuery, "ingest.documents",
				fmt.Errorf("document %d: external_id and text are required", i))
		}
	}

	for _, in := range inputs {
		if err := s.documents.Upsert(ctx, in.ExternalID, in.Text, in.Metadata); err != nil {
			return 0, err
		}
	}
	s.announce(ctx, ports.IngestEvent{Kind: "document"})
	s.logger.Info("documents_ingested", slog.Int("count", len(inputs)))
	return len(inputs), nil
}

func (s *IngestionService) IngestRecords(ctx context.Context, inputs []RecordInput) (int, error) {
	if len(inputs) == 0 {
		return 0, domain.WrapError(domain.ErrInvalidQuery, "ingest.records", errors.New("no records given"))
	}
	for i, in := range inputs {
		if strings.TrimSpace(in.ExternalID) == "" || strings.TrimSpace(in.Record.Dataset) == "" {
			return 0, domain.WrapError(domain.ErrInvalidQuery, "ingest.records",
				fmt.Errorf("record %d: external_id and dataset are required", i))
		}
		if len(in.Record.Measures) == 0 {
			return 0, domain.WrapError(domain.ErrInvalidQuery, "ingest.records",
				fmt.Errorf("record %d: at least one measure is required", i))
		}
	}

	datasets := map[string]bool{}
	for _, in := range inputs {
		if err := s.records.Upsert(ctx, in.ExternalID, in.Record); err != nil {
			return 0, err
		}
		datasets[in.Record.Dataset] = true
	}
	for dataset := range datasets {
		s.announce(ctx, ports.IngestEvent{Kind: "record", Dataset: dataset})
	}
	s.logger.Info("records_ingested",
		slog.Int("count", len(inputs)),
		slog.Int("datasets", len(datasets)))
	return len(inputs), nil
}

// announce is best effort. Durable state already advanced; a replica that
// misses the event catches up on its next refresh.
func (s *IngestionService) announce(ctx context.Context, event ports.IngestEvent) {
	if s.bus == nil {
		return
	}
	if err := s.bus.PublishIngested(ctx, event); err != nil {
		s.logger.Warn("ingest_event_publish_failed",
			slog.String("kind", event.Kind),
			slog.String("error", err.Error()))
	}
}
