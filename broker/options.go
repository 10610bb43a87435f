package broker

import (
	"log/slog"
	"time"

	"github.com/c360/exchange/metric"
	"github.com/c360/exchange/pkg/retry"
)

// Defaults for the consumer polling loop.
const (
	DefaultTTL            = 30 * time.Second
	DefaultIdleBackoff    = 2 * time.Second
	DefaultMaxIdleRetries = 5
)

type options struct {
	logger         *slog.Logger
	metrics        *metric.Metrics
	retry          retry.Config
	idleBackoff    time.Duration
	maxIdleRetries int
	reader         MessageReader
	writer         MessageWriter
	newKey         func() string
}

func defaultOptions() options {
	return options{
		logger:         slog.Default(),
		retry:          retry.Broker(),
		idleBackoff:    DefaultIdleBackoff,
		maxIdleRetries: DefaultMaxIdleRetries,
	}
}

// Option configures a Producer or Consumer.
type Option func(*options)

// WithLogger sets the logger. Nil keeps slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics records produce and consume counts.
func WithMetrics(m *metric.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithRetry replaces the backoff used around broker writes.
func WithRetry(cfg retry.Config) Option {
	return func(o *options) {
		o.retry = cfg
	}
}

// WithIdleBackoff sets the pause after a poll that returned nothing.
func WithIdleBackoff(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.idleBackoff = d
		}
	}
}

// WithMaxIdleRetries sets how many consecutive idle polls are tolerated
// before the consumer stops.
func WithMaxIdleRetries(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.maxIdleRetries = n
		}
	}
}

// WithReader replaces the kafka-go reader, mainly for tests.
func WithReader(r MessageReader) Option {
	return func(o *options) {
		o.reader = r
	}
}

// WithWriter replaces the kafka-go writer, mainly for tests.
func WithWriter(w MessageWriter) Option {
	return func(o *options) {
		o.writer = w
	}
}

// WithKeyFunc replaces the UUID key generator.
func WithKeyFunc(fn func() string) Option {
	return func(o *options) {
		o.newKey = fn
	}
}
