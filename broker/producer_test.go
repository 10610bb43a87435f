package broker

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/exchange/config"
	"github.com/c360/exchange/errors"
	"github.com/c360/exchange/metric"
	"github.com/c360/exchange/pkg/retry"
	"github.com/c360/exchange/testutil"
)

func fastRetry() retry.Config {
	return retry.Config{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     2 * time.Millisecond,
		Multiplier:   2,
	}
}

func TestProducer_Produce(t *testing.T) {
	writer := &testutil.MockWriter{}
	registry := metric.NewRegistry()

	p, err := NewProducer(config.KafkaConfig{},
		WithWriter(writer),
		WithKeyFunc(func() string { return "key-1" }),
		WithMetrics(registry.CoreMetrics()),
	)
	require.NoError(t, err)

	payload := []byte(testutil.TestMessages[0])
	result, err := p.Produce(context.Background(), " orders ", payload)
	require.NoError(t, err)

	assert.Equal(t, ProduceResult{Topic: "orders", Messages: 1, Bytes: len(payload), Key: "key-1"}, result)

	written := writer.Written()
	require.Len(t, written, 1)
	assert.Equal(t, "orders", written[0].Topic)
	assert.Equal(t, []byte("key-1"), written[0].Key)
	assert.Equal(t, payload, written[0].Value)
}

func TestProducer_DefaultKeyIsUUID(t *testing.T) {
	writer := &testutil.MockWriter{}
	p, err := NewProducer(config.KafkaConfig{}, WithWriter(writer))
	require.NoError(t, err)

	first, err := p.Produce(context.Background(), "orders", []byte("a"))
	require.NoError(t, err)
	second, err := p.Produce(context.Background(), "orders", []byte("b"))
	require.NoError(t, err)

	parsed, err := uuid.Parse(first.Key)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(4), parsed.Version())
	assert.NotEqual(t, first.Key, second.Key)
}

func TestProducer_Produce_InvalidInput(t *testing.T) {
	writer := &testutil.MockWriter{}
	p, err := NewProducer(config.KafkaConfig{}, WithWriter(writer))
	require.NoError(t, err)

	tests := []struct {
		name    string
		topic   string
		payload []byte
	}{
		{"empty topic", "  ", []byte("x")},
		{"empty payload", "orders", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Produce(context.Background(), tt.topic, tt.payload)
			require.Error(t, err)
			assert.ErrorIs(t, err, errors.ErrInvalidData)
			assert.True(t, errors.IsInvalid(err))
		})
	}
	assert.Equal(t, 0, writer.Calls)
}

func TestProducer_Produce_RetriesTransient(t *testing.T) {
	writer := &testutil.MockWriter{
		WriteFunc: func(call int, _ ...kafka.Message) error {
			if call == 1 {
				return kafka.LeaderNotAvailable
			}
			return nil
		},
	}
	p, err := NewProducer(config.KafkaConfig{}, WithWriter(writer), WithRetry(fastRetry()))
	require.NoError(t, err)

	_, err = p.Produce(context.Background(), "orders", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, 2, writer.Calls)
	assert.Len(t, writer.Written(), 1)
}

func TestProducer_Produce_NonRetryable(t *testing.T) {
	writer := &testutil.MockWriter{
		WriteFunc: func(int, ...kafka.Message) error {
			return kafka.MessageSizeTooLarge
		},
	}
	p, err := NewProducer(config.KafkaConfig{}, WithWriter(writer), WithRetry(fastRetry()))
	require.NoError(t, err)

	_, err = p.Produce(context.Background(), "orders", []byte("x"))
	require.Error(t, err)
	assert.Equal(t, 1, writer.Calls)
	assert.True(t, errors.IsInvalid(err))
	assert.ErrorIs(t, err, kafka.MessageSizeTooLarge)
	assert.NotContains(t, err.Error(), "non-retryable")
}

func TestProducer_Produce_RetriesExhausted(t *testing.T) {
	writer := &testutil.MockWriter{
		WriteFunc: func(int, ...kafka.Message) error {
			return kafka.NotLeaderForPartition
		},
	}
	p, err := NewProducer(config.KafkaConfig{}, WithWriter(writer), WithRetry(fastRetry()))
	require.NoError(t, err)

	_, err = p.Produce(context.Background(), "orders", []byte("x"))
	require.Error(t, err)
	assert.Equal(t, 3, writer.Calls)
	assert.True(t, errors.IsTransient(err))
	assert.Contains(t, err.Error(), "Producer.Produce: write message failed")
}

func TestProducer_Close(t *testing.T) {
	writer := &testutil.MockWriter{}
	p, err := NewProducer(config.KafkaConfig{}, WithWriter(writer))
	require.NoError(t, err)

	require.NoError(t, p.Close())
	assert.True(t, writer.Closed)
}

func TestNewProducer_ValidatesConfig(t *testing.T) {
	_, err := NewProducer(config.KafkaConfig{BootstrapServers: " , "})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"leader election", kafka.LeaderNotAvailable, true},
		{"message too large", kafka.MessageSizeTooLarge, false},
		{"write errors all temporary", kafka.WriteErrors{kafka.LeaderNotAvailable, nil}, true},
		{"write errors mixed", kafka.WriteErrors{kafka.LeaderNotAvailable, kafka.MessageSizeTooLarge}, false},
		{"network", errors.ErrConnectionLost, true},
		{"canceled", context.Canceled, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isRetryable(tt.err))
		})
	}
}

func TestNewProducer_TLSSettings(t *testing.T) {
	_, err := NewProducer(config.KafkaConfig{
		BootstrapServers: "localhost:9093",
		TLS:              true,
		TLSCAFile:        "/nonexistent/ca.pem",
	})
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))

	p, err := NewProducer(config.KafkaConfig{
		BootstrapServers: "localhost:9093",
		TLS:              true,
		TLSInsecure:      true,
		SASLUsername:     "user",
		SASLPassword:     "pass",
	})
	require.NoError(t, err)
	require.NoError(t, p.Close())
}

func TestNewDialer(t *testing.T) {
	d, err := newDialer(config.KafkaConfig{BootstrapServers: "localhost:9092", ClientID: "exchange"})
	require.NoError(t, err)
	assert.Nil(t, d.TLS)
	assert.Nil(t, d.SASLMechanism)
	assert.Equal(t, "exchange", d.ClientID)

	d, err = newDialer(config.KafkaConfig{BootstrapServers: "localhost:9092", TLS: true, SASLUsername: "u", SASLPassword: "p"})
	require.NoError(t, err)
	require.NotNil(t, d.TLS)
	assert.Equal(t, "PLAIN", d.SASLMechanism.Name())
}

func TestNewProducer_SingleWriterAttempt(t *testing.T) {
	cfg := config.KafkaConfig{BootstrapServers: "localhost:9092"}
	p, err := NewProducer(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	w, ok := p.writer.(*kafka.Writer)
	require.True(t, ok)
	assert.Equal(t, 1, w.MaxAttempts, "retries are driven by the producer's retry config")
	assert.Equal(t, cfg.MessageTimeout(), w.WriteTimeout)
	assert.Equal(t, kafka.RequireAll, w.RequiredAcks)
}
