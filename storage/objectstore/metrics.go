package objectstore

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/exchange/metric"
)

// storeMetrics holds the ObjectStore specific series. The shared blob
// counters live in metric.Metrics.
type storeMetrics struct {
	operations *prometheus.CounterVec   // by bucket and operation
	latency    *prometheus.HistogramVec // by operation
	errors     *prometheus.CounterVec   // by operation
	objects    *prometheus.GaugeVec     // by bucket, updated on list
}

// newStoreMetrics creates and registers ObjectStore metrics with registry.
// A nil registry disables them.
func newStoreMetrics(registry *metric.Registry) (*storeMetrics, error) {
	if registry == nil {
		return nil, nil
	}

	m := &storeMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "exchange",
			Subsystem: "objectstore",
			Name:      "operations_total",
			Help:      "Object store calls by bucket and operation",
		}, []string{"bucket", "operation"}),

		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "exchange",
			Subsystem: "objectstore",
			Name:      "operation_duration_seconds",
			Help:      "Object store call duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 2.0},
		}, []string{"operation"}),

		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "exchange",
			Subsystem: "objectstore",
			Name:      "operation_errors_total",
			Help:      "Object store calls that failed",
		}, []string{"operation"}),

		objects: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "exchange",
			Subsystem: "objectstore",
			Name:      "object_count",
			Help:      "Objects seen by the last list of a bucket",
		}, []string{"bucket"}),
	}

	collectors := map[string]prometheus.Collector{
		"operations": m.operations,
		"latency":    m.latency,
		"errors":     m.errors,
		"objects":    m.objects,
	}
	for name, c := range collectors {
		if err := registry.Register("objectstore", name, c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// observe records one call that started at start.
func (m *storeMetrics) observe(bucket, operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(bucket, operation).Inc()
	m.latency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err != nil {
		m.errors.WithLabelValues(operation).Inc()
	}
}

func (m *storeMetrics) setObjectCount(bucket string, n int) {
	if m != nil {
		m.objects.WithLabelValues(bucket).Set(float64(n))
	}
}
