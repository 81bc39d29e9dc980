package metrics

import "time"

// QueryRecorder adapts HTTPServerMetrics to the query pipeline's metrics
// interface.
type QueryRecorder struct {
	service string
	metrics *HTTPServerMetrics
}

func NewQueryRecorder(service string, metrics *HTTPServerMetrics) *QueryRecorder {
	return &QueryRecorder{service: service, metrics: metrics}
}

func (r *QueryRecorder) ObserveQuery(intent string, confidence float64, degraded bool, elapsed time.Duration) {
	r.metrics.queriesTotal.WithLabelValues(r.service, intent).Inc()
	r.metrics.queryConfidence.WithLabelValues(r.service, intent).Observe(confidence)
	r.metrics.queryDuration.WithLabelValues(r.service, intent).Observe(elapsed.Seconds())
	if degraded {
		r.metrics.degradedTotal.WithLabelValues(r.service, intent).Inc()
	}
}

func (r *QueryRecorder) ObserveChart(chartType string) {
	r.metrics.visualizationsTotal.WithLabelValues(r.service, chartType).Inc()
}

func (m *HTTPServerMetrics) RecordDocumentsIngested(count int) {
	if count > 0 {
		m.documentsIngested.Add(float64(count))
	}
}

func (m *HTTPServerMetrics) RecordRecordsIngested(count int) {
	if count > 0 {
		m.recordsIngested.Add(float64(count))
	}
}
