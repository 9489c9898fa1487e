// Package metrics provides Prometheus metrics for the semantic indexing core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all metrics emitted by the indexing and query pipeline.
type Metrics struct {
	// HTTP (admin surface only — bus requests are tracked separately below)
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Bulk indexing
	IndexOperationsTotal   *prometheus.CounterVec
	IndexOperationDuration *prometheus.HistogramVec
	ItemsIndexedTotal      *prometheus.CounterVec
	ItemsSkippedTotal      *prometheus.CounterVec
	ItemsFailedTotal       *prometheus.CounterVec

	// Padding estimation
	PadEstimationDuration *prometheus.HistogramVec
	PadLengthTokens       *prometheus.GaugeVec

	// Query
	QueryOperationsTotal   *prometheus.CounterVec
	QueryOperationDuration *prometheus.HistogramVec
	QueryCacheHitsTotal    prometheus.Counter
	QueryCacheMissesTotal  prometheus.Counter

	// Embedding
	EmbeddingOperationsTotal   *prometheus.CounterVec
	EmbeddingOperationDuration *prometheus.HistogramVec
	EmbeddingRetriesTotal      *prometheus.CounterVec

	// Rate limiter
	RateLimiterDelaySeconds prometheus.Gauge
	RateLimitedCallsTotal   prometheus.Counter

	// Search engine
	EngineCallsTotal    *prometheus.CounterVec
	EngineCallDuration  *prometheus.HistogramVec
	EngineCallsFailed   *prometheus.CounterVec

	// Bus
	BusMessagesTotal *prometheus.CounterVec
}

// New creates a Metrics instance with all series registered under namespace
// against the default Prometheus registry.
func New(namespace string) *Metrics {
	return NewForRegisterer(namespace, prometheus.DefaultRegisterer)
}

// NewForRegisterer creates a Metrics instance registered against reg instead
// of the default registry — used in tests to avoid duplicate-registration
// panics across test functions.
func NewForRegisterer(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "semidx"
	}
	f := promauto.With(reg)

	return &Metrics{
		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of admin HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Admin HTTP request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Current number of admin HTTP requests being processed",
			},
		),

		IndexOperationsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "index_operations_total",
				Help:      "Total number of bulk-index operations",
			},
			[]string{"index", "status"},
		),
		IndexOperationDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "index_operation_duration_seconds",
				Help:      "Bulk-index operation duration in seconds",
				Buckets:   []float64{.1, .5, 1, 5, 10, 30, 60, 300, 900},
			},
			[]string{"index"},
		),
		ItemsIndexedTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "items_indexed_total",
				Help:      "Total number of items successfully written to the search engine",
			},
			[]string{"index"},
		),
		ItemsSkippedTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "items_skipped_total",
				Help:      "Total number of items skipped because their id already exists",
			},
			[]string{"index"},
		),
		ItemsFailedTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "items_failed_total",
				Help:      "Total number of items that failed to index",
			},
			[]string{"index", "reason"},
		),

		PadEstimationDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "pad_estimation_duration_seconds",
				Help:      "Duration of padding-length estimation scans",
				Buckets:   []float64{.01, .05, .1, .5, 1, 5, 10, 30},
			},
			[]string{"index"},
		),
		PadLengthTokens: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "pad_length_tokens",
				Help:      "Persisted pad-to-tokens length per index",
			},
			[]string{"index"},
		),

		QueryOperationsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "query_operations_total",
				Help:      "Total number of query operations",
			},
			[]string{"index", "status"},
		),
		QueryOperationDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "query_operation_duration_seconds",
				Help:      "Query operation duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"index"},
		),
		QueryCacheHitsTotal: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "query_cache_hits_total",
				Help:      "Total number of query result cache hits",
			},
		),
		QueryCacheMissesTotal: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "query_cache_misses_total",
				Help:      "Total number of query result cache misses",
			},
		),

		EmbeddingOperationsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "embedding_operations_total",
				Help:      "Total number of embedding calls",
			},
			[]string{"provider", "status"},
		),
		EmbeddingOperationDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "embedding_operation_duration_seconds",
				Help:      "Embedding call duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"provider"},
		),
		EmbeddingRetriesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "embedding_retries_total",
				Help:      "Total number of remote embedding retry attempts",
			},
			[]string{"reason"},
		),

		RateLimiterDelaySeconds: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "rate_limiter_delay_seconds",
				Help:      "Current inter-call delay applied by the remote embedding rate limiter",
			},
		),
		RateLimitedCallsTotal: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limited_calls_total",
				Help:      "Total number of remote embedding calls that received a 429 response",
			},
		),

		EngineCallsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "engine_calls_total",
				Help:      "Total number of search engine client calls",
			},
			[]string{"operation", "status"},
		),
		EngineCallDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "engine_call_duration_seconds",
				Help:      "Search engine client call duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"operation"},
		),
		EngineCallsFailed: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "engine_calls_failed_total",
				Help:      "Total number of search engine client calls that failed",
			},
			[]string{"operation"},
		),

		BusMessagesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bus_messages_total",
				Help:      "Total number of bus messages handled, by endpoint and outcome",
			},
			[]string{"endpoint", "outcome"},
		),
	}
}

var defaultMetrics *Metrics

// Default returns the process-wide metrics instance, creating it if needed.
func Default() *Metrics {
	if defaultMetrics == nil {
		defaultMetrics = New("semidx")
	}
	return defaultMetrics
}

// RecordHTTPRequest records an admin HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration float64) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, statusToString(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// RecordEmbeddingOperation records one embedding call.
func (m *Metrics) RecordEmbeddingOperation(provider string, success bool, duration float64) {
	status := "success"
	if !success {
		status = "error"
	}
	m.EmbeddingOperationsTotal.WithLabelValues(provider, status).Inc()
	m.EmbeddingOperationDuration.WithLabelValues(provider).Observe(duration)
}

// RecordEmbeddingRetry records one remote-provider retry attempt.
func (m *Metrics) RecordEmbeddingRetry(reason string) {
	m.EmbeddingRetriesTotal.WithLabelValues(reason).Inc()
}

// SetRateLimiterDelay records the rate limiter's current inter-call delay.
func (m *Metrics) SetRateLimiterDelay(seconds float64) {
	m.RateLimiterDelaySeconds.Set(seconds)
}

// RecordRateLimited records a 429 response from the remote embedding API.
func (m *Metrics) RecordRateLimited() {
	m.RateLimitedCallsTotal.Inc()
}

// RecordBusMessage records one handled bus message.
func (m *Metrics) RecordBusMessage(endpoint, outcome string) {
	m.BusMessagesTotal.WithLabelValues(endpoint, outcome).Inc()
}

func statusToString(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 300 && status < 400:
		return "3xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
