package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/time/rate"

	"github.com/agrisense/agrisense-engine/internal/core/domain"
	"github.com/agrisense/agrisense-engine/internal/core/ports"
	"github.com/agrisense/agrisense-engine/internal/core/usecase"
	"github.com/agrisense/agrisense-engine/internal/infrastructure/embedding/hashing"
	"github.com/agrisense/agrisense-engine/internal/infrastructure/index/memoryindex"
	"github.com/agrisense/agrisense-engine/internal/infrastructure/store/memorystore"
	"github.com/agrisense/agrisense-engine/internal/observability/metrics"
)

type generatorStub struct{}

func (generatorStub) Generate(context.Context, string, int) (string, error) {
	return "stub answer", nil
}

// repoStub tracks what the ingest endpoints persisted.
type repoStub struct {
	documents map[string]string
	records   map[string]domain.DatasetRecord
}

func newRepoStub() *repoStub {
	return &repoStub{documents: map[string]string{}, records: map[string]domain.DatasetRecord{}}
}

type documentRepoStub struct{ repo *repoStub }

func (s documentRepoStub) Upsert(_ context.Context, externalID, text string, _ domain.DocumentMetadata) error {
	s.repo.documents[externalID] = text
	return nil
}

func (s documentRepoStub) ListAll(context.Context) ([]domain.Document, error) { return nil, nil }

type recordRepoStub struct{ repo *repoStub }

func (s recordRepoStub) Upsert(_ context.Context, externalID string, rec domain.DatasetRecord) error {
	s.repo.records[externalID] = rec
	return nil
}

func (s recordRepoStub) ListAll(context.Context) ([]domain.DatasetRecord, error) { return nil, nil }

type busStub struct{ published int }

func (b *busStub) PublishIngested(context.Context, ports.IngestEvent) error {
	b.published++
	return nil
}

func (b *busStub) SubscribeIngested(context.Context, func(context.Context, ports.IngestEvent) error) error {
	return nil
}

func (b *busStub) Close() {}

func newTestHandler(t *testing.T, ratePerSec float64, burst int) (http.Handler, *repoStub) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	embedder := hashing.New(64)
	index := memoryindex.New()
	store := memorystore.New()
	store.Replace([]domain.DatasetRecord{
		{
			Dataset: "rainfall",
			Dimensions: domain.Dimensions{
				{Key: "state", Value: "punjab"},
				{Key: "year", Value: "2020"},
			},
			Measures: map[string]float64{"rainfall": 640.2},
		},
	})

	composer := usecase.NewAnswerComposer(generatorStub{}, logger)
	query := usecase.NewQueryService(
		embedder, index, store,
		usecase.NewRouter(), usecase.NewFusionEngine(), composer, usecase.NewVisualizationSelector(),
		usecase.DefaultRetrievalOptions(), logger, nil,
	)

	repo := newRepoStub()
	ingest := usecase.NewIngestionService(documentRepoStub{repo}, recordRepoStub{repo}, &busStub{}, logger)

	m := metrics.NewHTTPServerMetrics("agrisense-test")
	limiter := rate.NewLimiter(rate.Limit(ratePerSec), burst)
	router := NewRouter("agrisense-test", query, ingest, store, m, logger, limiter)
	return router.Handler(), repo
}

func TestHealthz(t *testing.T) {
	handler, _ := newTestHandler(t, 10, 10)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", res.Code)
	}
	if res.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected request id header")
	}
}

func TestQueryEndpoint(t *testing.T) {
	handler, _ := newTestHandler(t, 10, 10)

	body := `{"query": "What is the trend of rainfall in Punjab?", "include_visualization": true}`
	req := httptest.NewRequest(http.MethodPost, "/v1/query", strings.NewReader(body))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", res.Code, res.Body.String())
	}

	var resp domain.QueryResponse
	if err := json.NewDecoder(bytes.NewReader(res.Body.Bytes())).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Intent != domain.IntentTrend {
		t.Fatalf("intent = %q, want trend", resp.Intent)
	}
	if resp.Answer == "" {
		t.Fatalf("expected non-empty answer")
	}
}

func TestQueryEndpointEmptyQuery(t *testing.T) {
	handler, _ := newTestHandler(t, 10, 10)

	req := httptest.NewRequest(http.MethodPost, "/v1/query", strings.NewReader(`{"query": "  "}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", res.Code)
	}
}

func TestQueryEndpointInvalidJSON(t *testing.T) {
	handler, _ := newTestHandler(t, 10, 10)

	req := httptest.NewRequest(http.MethodPost, "/v1/query", strings.NewReader("{not json"))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", res.Code)
	}
}

func TestQueryEndpointRejectsGet(t *testing.T) {
	handler, _ := newTestHandler(t, 10, 10)

	req := httptest.NewRequest(http.MethodGet, "/v1/query", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", res.Code)
	}
}

func TestIngestDocumentsAccepted(t *testing.T) {
	handler, repo := newTestHandler(t, 10, 10)

	body := `{"documents": [{"external_id": "d-1", "text": "rainfall in punjab was heavy"}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/ingest/documents", strings.NewReader(body))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", res.Code, res.Body.String())
	}

	var resp map[string]int
	if err := json.Unmarshal(res.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["accepted"] != 1 {
		t.Fatalf("accepted = %d, want 1", resp["accepted"])
	}
	if _, ok := repo.documents["d-1"]; !ok {
		t.Fatalf("document was not persisted")
	}
}

func TestIngestRecordsAccepted(t *testing.T) {
	handler, repo := newTestHandler(t, 10, 10)

	body := `{"records": [{"external_id": "r-1", "record": {"dataset": "rainfall", "dimensions": [{"key": "state", "value": "punjab"}], "measures": {"rainfall": 640.2}}}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/ingest/records", strings.NewReader(body))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", res.Code, res.Body.String())
	}
	if _, ok := repo.records["r-1"]; !ok {
		t.Fatalf("record was not persisted")
	}
}

func TestIngestValidationError(t *testing.T) {
	handler, _ := newTestHandler(t, 10, 10)

	req := httptest.NewRequest(http.MethodPost, "/v1/ingest/documents", strings.NewReader(`{"documents": []}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", res.Code)
	}
}

func TestIngestRateLimited(t *testing.T) {
	handler, _ := newTestHandler(t, 1, 1)

	body := `{"documents": [{"external_id": "d-1", "text": "first"}]}`
	req1 := httptest.NewRequest(http.MethodPost, "/v1/ingest/documents", strings.NewReader(body))
	res1 := httptest.NewRecorder()
	handler.ServeHTTP(res1, req1)
	if res1.Code != http.StatusAccepted {
		t.Fatalf("first request status = %d, want 202", res1.Code)
	}

	req2 := httptest.NewRequest(http.MethodPost, "/v1/ingest/documents", strings.NewReader(body))
	res2 := httptest.NewRecorder()
	handler.ServeHTTP(res2, req2)
	if res2.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", res2.Code)
	}
}

func TestListDatasets(t *testing.T) {
	handler, _ := newTestHandler(t, 10, 10)

	req := httptest.NewRequest(http.MethodGet, "/v1/datasets", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", res.Code)
	}

	var resp struct {
		Datasets []domain.DatasetInfo `json:"datasets"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Datasets) != 1 || resp.Datasets[0].Name != "rainfall" {
		t.Fatalf("datasets = %+v", resp.Datasets)
	}
}
