package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	queriesTotal        *prometheus.CounterVec
	queryConfidence     *prometheus.HistogramVec
	queryDuration       *prometheus.HistogramVec
	degradedTotal       *prometheus.CounterVec
	visualizationsTotal *prometheus.CounterVec
	documentsIngested   prometheus.Counter
	recordsIngested     prometheus.Counter
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agrisense",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "agrisense",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "agrisense",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	queriesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agrisense",
			Subsystem: "query",
			Name:      "answered_total",
			Help:      "Total answered queries by routed intent.",
		},
		[]string{"service", "intent"},
	)
	queryConfidence := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "agrisense",
			Subsystem: "query",
			Name:      "confidence",
			Help:      "Distribution of answer confidence scores.",
			Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
		},
		[]string{"service", "intent"},
	)
	queryDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "agrisense",
			Subsystem: "query",
			Name:      "duration_seconds",
			Help:      "End-to-end query pipeline duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "intent"},
	)
	degradedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agrisense",
			Subsystem: "query",
			Name:      "degraded_total",
			Help:      "Total queries answered in degraded mode.",
		},
		[]string{"service", "intent"},
	)
	visualizationsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agrisense",
			Subsystem: "query",
			Name:      "visualizations_total",
			Help:      "Total visualizations emitted by chart type.",
		},
		[]string{"service", "chart_type"},
	)
	documentsIngested := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "agrisense",
			Subsystem: "ingest",
			Name:      "documents_total",
			Help:      "Total documents accepted for ingestion.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	recordsIngested := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "agrisense",
			Subsystem: "ingest",
			Name:      "records_total",
			Help:      "Total dataset records accepted for ingestion.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		queriesTotal,
		queryConfidence,
		queryDuration,
		degradedTotal,
		visualizationsTotal,
		documentsIngested,
		recordsIngested,
	)

	return &HTTPServerMetrics{
		registry:            registry,
		requestTotal:        requestTotal,
		requestDuration:     requestDuration,
		requestInFlight:     requestInFlight,
		queriesTotal:        queriesTotal,
		queryConfidence:     queryConfidence,
		queryDuration:       queryDuration,
		degradedTotal:       degradedTotal,
		visualizationsTotal: visualizationsTotal,
		documentsIngested:   documentsIngested,
		recordsIngested:     recordsIngested,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			r.URL.Path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}
