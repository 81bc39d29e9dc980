package httpadapter

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/agrisense/agrisense-engine/internal/core/domain"
	"github.com/agrisense/agrisense-engine/internal/core/ports"
	"github.com/agrisense/agrisense-engine/internal/core/usecase"
	"github.com/agrisense/agrisense-engine/internal/observability/metrics"
)

type Router struct {
	query   *usecase.QueryService
	ingest  *usecase.IngestionService
	store   ports.DatasetStore
	metrics *metrics.HTTPServerMetrics
	logger  *slog.Logger
	limiter *rate.Limiter
	service string
}

func NewRouter(
	service string,
	query *usecase.QueryService,
	ingest *usecase.IngestionService,
	store ports.DatasetStore,
	m *metrics.HTTPServerMetrics,
	logger *slog.Logger,
	limiter *rate.Limiter,
) *Router {
	return &Router{
		query:   query,
		ingest:  ingest,
		store:   store,
		metrics: m,
		logger:  logger,
		limiter: limiter,
		service: service,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.Handle("/metrics", rt.metrics.Handler())
	mux.HandleFunc("/v1/query", rt.answerQuery)
	mux.Handle("/v1/ingest/documents", rateLimitMiddleware(rt.limiter, http.HandlerFunc(rt.ingestDocuments)))
	mux.Handle("/v1/ingest/records", rateLimitMiddleware(rt.limiter, http.HandlerFunc(rt.ingestRecords)))
	mux.HandleFunc("/v1/datasets", rt.listDatasets)

	var handler http.Handler = mux
	handler = rt.metrics.Middleware(rt.service, handler)
	handler = accessLogMiddleware(rt.logger, handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) answerQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req domain.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	resp, err := rt.query.Answer(r.Context(), req)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (rt *Router) ingestDocuments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Documents []usecase.DocumentInput `json:"documents"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	count, err := rt.ingest.IngestDocuments(r.Context(), req.Documents)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	rt.metrics.RecordDocumentsIngested(count)
	writeJSON(w, http.StatusAccepted, map[string]int{"accepted": count})
}

func (rt *Router) ingestRecords(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Records []usecase.RecordInput `json:"records"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	count, err := rt.ingest.IngestRecords(r.Context(), req.Records)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	rt.metrics.RecordRecordsIngested(count)
	writeJSON(w, http.StatusAccepted, map[string]int{"accepted": count})
}

func (rt *Router) listDatasets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"datasets": rt.store.Snapshot().Datasets()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
