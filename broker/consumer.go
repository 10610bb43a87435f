package broker

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/segmentio/kafka-go"

	"github.com/c360/exchange/config"
	"github.com/c360/exchange/errors"
	"github.com/c360/exchange/metric"
)

// MessageReader is the subset of *kafka.Reader the Consumer needs.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ConsumeResult holds everything collected by one Consume call. Messages are
// keyed by arrival order starting at 1.
type ConsumeResult struct {
	Topic      string         `json:"topic"`
	Count      int            `json:"count"`
	Messages   map[int]string `json:"messages"`
	Sizes      []int          `json:"sizes"`
	TotalBytes int            `json:"total_bytes"`
}

func newConsumeResult(topic string) ConsumeResult {
	return ConsumeResult{Topic: topic, Messages: make(map[int]string)}
}

func (r *ConsumeResult) add(payload []byte) {
	r.Count++
	r.Messages[r.Count] = string(payload)
	r.Sizes = append(r.Sizes, len(payload))
	r.TotalBytes += len(payload)
}

// Ordered returns the payloads in arrival order.
func (r ConsumeResult) Ordered() []string {
	out := make([]string, 0, r.Count)
	for i := 1; i <= r.Count; i++ {
		out = append(out, r.Messages[i])
	}
	return out
}

// JSON encodes the messages as an object keyed "1".."n" in arrival order.
// Payloads are JSON strings, so invalid UTF-8 is replaced with U+FFFD and
// binary payloads do not round-trip.
func (r ConsumeResult) JSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i := 1; i <= r.Count; i++ {
		if i > 1 {
			buf.WriteByte(',')
		}
		buf.WriteString(strconv.Quote(strconv.Itoa(i)))
		buf.WriteByte(':')
		val, err := json.Marshal(r.Messages[i])
		if err != nil {
			return nil, errors.WrapInvalid(err, "ConsumeResult", "JSON", "encode message "+strconv.Itoa(i))
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Consumer drains a topic as a member of the configured consumer group.
type Consumer struct {
	reader         MessageReader
	topic          string
	idleBackoff    time.Duration
	maxIdleRetries int
	logger         *slog.Logger
	metrics        *metric.Metrics
}

// NewConsumer builds a group reader for topic starting at the earliest
// offset when the group has no commits. Offsets are committed explicitly.
func NewConsumer(cfg config.KafkaConfig, topic string, opts ...Option) (*Consumer, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: topic is empty", errors.ErrInvalidData), "Consumer", "NewConsumer", "validate topic")
	}

	reader := o.reader
	if reader == nil {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		if cfg.GroupID == "" {
			return nil, fmt.Errorf("%w: group_id is required to consume", errors.ErrInvalidConfig)
		}
		dialer, err := newDialer(cfg)
		if err != nil {
			return nil, err
		}
		reader = kafka.NewReader(kafka.ReaderConfig{
			Brokers:     cfg.Brokers(),
			GroupID:     cfg.GroupID,
			Topic:       topic,
			StartOffset: kafka.FirstOffset,
			MinBytes:    1,
			MaxBytes:    10e6,
			MaxWait:     500 * time.Millisecond,
			Dialer:      dialer,
			ErrorLogger: kafkaLogger(o.logger, slog.LevelDebug),
		})
	}

	return &Consumer{
		reader:         reader,
		topic:          topic,
		idleBackoff:    o.idleBackoff,
		maxIdleRetries: o.maxIdleRetries,
		logger:         o.logger.With("topic", topic),
		metrics:        o.metrics,
	}, nil
}

// Topic returns the topic being consumed.
func (c *Consumer) Topic() string {
	return c.topic
}

// Consume polls until more than maxIdleRetries consecutive polls come back
// empty, each poll waiting at most ttl. Every message is committed before the
// next poll. Cancelling ctx ends the loop and returns what was collected.
func (c *Consumer) Consume(ctx context.Context, ttl time.Duration) (ConsumeResult, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	result := newConsumeResult(c.topic)
	retries := 0

	for {
		if ctx.Err() != nil {
			return result, nil
		}

		pollCtx, cancel := context.WithTimeout(ctx, ttl)
		msg, err := c.reader.FetchMessage(pollCtx)
		cancel()

		if err != nil {
			if ctx.Err() != nil {
				return result, nil
			}
			if stderrors.Is(err, context.DeadlineExceeded) {
				c.logger.Info("Listening", "retry", retries, "max_retries", c.maxIdleRetries)
			} else {
				c.logger.Warn("Poll failed", "retry", retries, "error", err)
			}
			c.metrics.RecordIdlePoll(c.topic)

			retries++
			if retries > c.maxIdleRetries {
				c.logger.Info("No more messages, stopping", "count", result.Count, "bytes", result.TotalBytes)
				return result, nil
			}
			if !sleepCtx(ctx, c.idleBackoff) {
				return result, nil
			}
			continue
		}

		retries = 0
		result.add(msg.Value)
		if !utf8.Valid(msg.Value) {
			c.logger.Warn("Payload is not valid UTF-8, invalid bytes will be replaced in JSON output",
				"partition", msg.Partition, "offset", msg.Offset, "count", result.Count)
		}
		c.metrics.RecordConsumed(c.topic, len(msg.Value))
		c.logger.Debug("Message received",
			"partition", msg.Partition, "offset", msg.Offset, "bytes", len(msg.Value), "count", result.Count)

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return result, nil
			}
			return result, errors.WrapTransient(err, "Consumer", "Consume",
				fmt.Sprintf("commit offset %d on partition %d", msg.Offset, msg.Partition))
		}
	}
}

// Close leaves the consumer group and closes the reader.
func (c *Consumer) Close() error {
	if err := c.reader.Close(); err != nil {
		return errors.Wrap(err, "Consumer", "Close", "close reader")
	}
	return nil
}

// sleepCtx waits for d and reports false when ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
