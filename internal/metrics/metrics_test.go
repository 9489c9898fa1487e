package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMetrics(t *testing.T) *Metrics {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewForRegisterer("test", reg)
}

func TestMetrics_RecordHTTPRequest(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordHTTPRequest("GET", "/health", 200, 0.01)
	m.RecordHTTPRequest("GET", "/health", 500, 0.02)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/health", "2xx")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/health", "5xx")))
}

func TestMetrics_RecordEmbeddingOperation(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordEmbeddingOperation("local", true, 0.1)
	m.RecordEmbeddingOperation("api", false, 0.2)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.EmbeddingOperationsTotal.WithLabelValues("local", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.EmbeddingOperationsTotal.WithLabelValues("api", "error")))
}

func TestMetrics_RecordEmbeddingRetry(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordEmbeddingRetry("context_length_exceeded")
	m.RecordEmbeddingRetry("context_length_exceeded")

	assert.Equal(t, float64(2), testutil.ToFloat64(m.EmbeddingRetriesTotal.WithLabelValues("context_length_exceeded")))
}

func TestMetrics_RateLimiterGauges(t *testing.T) {
	m := newTestMetrics(t)

	m.SetRateLimiterDelay(2.5)
	m.RecordRateLimited()
	m.RecordRateLimited()

	assert.Equal(t, float64(2.5), testutil.ToFloat64(m.RateLimiterDelaySeconds))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.RateLimitedCallsTotal))
}

func TestMetrics_RecordBusMessage(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordBusMessage("createIndex", "acked")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.BusMessagesTotal.WithLabelValues("createIndex", "acked")))
}

func TestStatusToString(t *testing.T) {
	tests := []struct {
		status   int
		expected string
	}{
		{200, "2xx"},
		{301, "3xx"},
		{404, "4xx"},
		{500, "5xx"},
		{100, "unknown"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, statusToString(tt.status))
	}
}

func TestDefault(t *testing.T) {
	m := Default()
	require.NotNil(t, m)
	assert.Equal(t, m, Default())
}
