package broker

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/c360/exchange/config"
	"github.com/c360/exchange/errors"
	"github.com/c360/exchange/metric"
	"github.com/c360/exchange/pkg/retry"
)

// MessageWriter is the subset of *kafka.Writer the Producer needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ProduceResult describes one successful write.
type ProduceResult struct {
	Topic    string `json:"topic"`
	Messages int    `json:"messages"`
	Bytes    int    `json:"bytes"`
	Key      string `json:"key"`
}

// Producer writes single messages keyed by a fresh UUID.
type Producer struct {
	writer  MessageWriter
	retry   retry.Config
	logger  *slog.Logger
	metrics *metric.Metrics
	newKey  func() string
}

// NewProducer builds a producer for the brokers in cfg. Writes wait for all
// in-sync replicas and time out after message_timeout_ms.
func NewProducer(cfg config.KafkaConfig, opts ...Option) (*Producer, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	writer := o.writer
	if writer == nil {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		transport, err := newTransport(cfg)
		if err != nil {
			return nil, err
		}
		writer = &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers()...),
			Balancer:               &kafka.LeastBytes{},
			RequiredAcks:           kafka.RequireAll,
			MaxAttempts:            1,
			WriteTimeout:           cfg.MessageTimeout(),
			AllowAutoTopicCreation: true,
			Transport:              transport,
			ErrorLogger:            kafkaLogger(o.logger, slog.LevelDebug),
		}
	}

	newKey := o.newKey
	if newKey == nil {
		newKey = func() string { return uuid.New().String() }
	}

	return &Producer{
		writer:  writer,
		retry:   o.retry,
		logger:  o.logger,
		metrics: o.metrics,
		newKey:  newKey,
	}, nil
}

// Produce writes payload to topic. Transient broker errors are retried.
func (p *Producer) Produce(ctx context.Context, topic string, payload []byte) (ProduceResult, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return ProduceResult{}, errors.WrapInvalid(
			fmt.Errorf("%w: topic is empty", errors.ErrInvalidData), "Producer", "Produce", "validate topic")
	}
	if len(payload) == 0 {
		return ProduceResult{}, errors.WrapInvalid(
			fmt.Errorf("%w: payload is empty", errors.ErrInvalidData), "Producer", "Produce", "validate payload")
	}

	key := p.newKey()
	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: payload,
	}

	cfg := p.retry
	cfg.OnRetry = func(attempt int, err error) {
		p.logger.Warn("Produce failed, retrying", "topic", topic, "attempt", attempt, "error", err)
	}

	err := errors.RetryIf(ctx, cfg, isRetryable, func() error {
		return p.writer.WriteMessages(ctx, msg)
	})
	if err != nil {
		switch {
		case ctx.Err() != nil:
			return ProduceResult{}, errors.Wrap(err, "Producer", "Produce", "write message")
		case errors.IsFatal(err):
			return ProduceResult{}, errors.WrapFatal(err, "Producer", "Produce", "write message")
		case !isRetryable(err):
			return ProduceResult{}, errors.WrapInvalid(err, "Producer", "Produce", "write message")
		default:
			return ProduceResult{}, errors.WrapTransient(err, "Producer", "Produce", "write message")
		}
	}

	p.metrics.RecordProduced(topic, len(payload))
	p.logger.Debug("Message produced", "topic", topic, "key", key, "bytes", len(payload))

	return ProduceResult{Topic: topic, Messages: 1, Bytes: len(payload), Key: key}, nil
}

// Close flushes and closes the writer.
func (p *Producer) Close() error {
	if err := p.writer.Close(); err != nil {
		return errors.Wrap(err, "Producer", "Close", "close writer")
	}
	return nil
}

// isRetryable reports whether a write error is worth another attempt.
func isRetryable(err error) bool {
	var writeErrs kafka.WriteErrors
	if stderrors.As(err, &writeErrs) {
		for _, e := range writeErrs {
			if e != nil && !isRetryable(e) {
				return false
			}
		}
		return true
	}

	var kerr kafka.Error
	if stderrors.As(err, &kerr) {
		return kerr.Temporary()
	}
	return errors.IsTransient(err)
}
