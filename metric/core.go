package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "exchange"

// Blob transfer directions.
const (
	DirectionUpload   = "upload"
	DirectionDownload = "download"
)

// Metrics holds the counters every command records into.
// All Record methods are no-ops on a nil *Metrics.
type Metrics struct {
	MessagesProduced   *prometheus.CounterVec
	MessagesConsumed   *prometheus.CounterVec
	BytesProduced      *prometheus.CounterVec
	BytesConsumed      *prometheus.CounterVec
	ConsumerIdlePolls  *prometheus.CounterVec
	BlobOperations     *prometheus.CounterVec
	BlobBytes          *prometheus.CounterVec
	APIRequests        *prometheus.CounterVec
	APIRequestDuration *prometheus.HistogramVec
	PipelineRuns       *prometheus.CounterVec
}

// NewMetrics creates the exchange metrics without registering them.
func NewMetrics() *Metrics {
	return &Metrics{
		MessagesProduced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_produced_total",
			Help:      "Messages written to the broker",
		}, []string{"topic"}),

		MessagesConsumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_consumed_total",
			Help:      "Messages read and committed from the broker",
		}, []string{"topic"}),

		BytesProduced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_produced_total",
			Help:      "Payload bytes written to the broker",
		}, []string{"topic"}),

		BytesConsumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_consumed_total",
			Help:      "Payload bytes read from the broker",
		}, []string{"topic"}),

		ConsumerIdlePolls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "consumer_idle_polls_total",
			Help:      "Polls that returned no message before the deadline",
		}, []string{"topic"}),

		BlobOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blob_operations_total",
			Help:      "Blob store calls by backend, operation and status",
		}, []string{"backend", "operation", "status"}),

		BlobBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blob_bytes_total",
			Help:      "Bytes moved to or from a blob store",
		}, []string{"backend", "direction"}),

		APIRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "HTTP API requests by API name and status",
		}, []string{"api", "status"}),

		APIRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_request_duration_seconds",
			Help:      "HTTP API request latency",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"api"}),

		PipelineRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_runs_total",
			Help:      "Ingest and forward runs by outcome",
		}, []string{"pipeline", "outcome"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.MessagesProduced,
		m.MessagesConsumed,
		m.BytesProduced,
		m.BytesConsumed,
		m.ConsumerIdlePolls,
		m.BlobOperations,
		m.BlobBytes,
		m.APIRequests,
		m.APIRequestDuration,
		m.PipelineRuns,
	}
}

// RecordProduced counts one produced message of size bytes.
func (m *Metrics) RecordProduced(topic string, size int) {
	if m == nil {
		return
	}
	m.MessagesProduced.WithLabelValues(topic).Inc()
	m.BytesProduced.WithLabelValues(topic).Add(float64(size))
}

// RecordConsumed counts one consumed message of size bytes.
func (m *Metrics) RecordConsumed(topic string, size int) {
	if m == nil {
		return
	}
	m.MessagesConsumed.WithLabelValues(topic).Inc()
	m.BytesConsumed.WithLabelValues(topic).Add(float64(size))
}

// RecordIdlePoll counts a poll that produced nothing.
func (m *Metrics) RecordIdlePoll(topic string) {
	if m == nil {
		return
	}
	m.ConsumerIdlePolls.WithLabelValues(topic).Inc()
}

// RecordBlobOperation counts a blob store call as ok or error.
func (m *Metrics) RecordBlobOperation(backend, operation string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.BlobOperations.WithLabelValues(backend, operation, status).Inc()
}

// RecordBlobBytes adds n to the transfer counter for direction.
func (m *Metrics) RecordBlobBytes(backend, direction string, n int) {
	if m == nil {
		return
	}
	m.BlobBytes.WithLabelValues(backend, direction).Add(float64(n))
}

// RecordAPIRequest counts a request with its status label and latency.
func (m *Metrics) RecordAPIRequest(api, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.APIRequests.WithLabelValues(api, status).Inc()
	m.APIRequestDuration.WithLabelValues(api).Observe(duration.Seconds())
}

// RecordPipelineRun counts a pipeline run by outcome (ok, skipped, error).
func (m *Metrics) RecordPipelineRun(pipeline, outcome string) {
	if m == nil {
		return
	}
	m.PipelineRuns.WithLabelValues(pipeline, outcome).Inc()
}
