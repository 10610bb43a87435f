package broker

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"

	"github.com/c360/exchange/config"
	"github.com/c360/exchange/errors"
	"github.com/c360/exchange/pkg/tlsutil"
)

const dialTimeout = 10 * time.Second

func tlsConfig(cfg config.KafkaConfig) (*tls.Config, error) {
	tc, err := tlsutil.LoadClientTLSConfig(cfg.ClientTLS())
	if err != nil {
		return nil, errors.Wrap(err, "broker", "tlsConfig", "load broker TLS settings")
	}
	return tc, nil
}

func saslMechanism(cfg config.KafkaConfig) sasl.Mechanism {
	if cfg.SASLUsername == "" {
		return nil
	}
	return plain.Mechanism{
		Username: cfg.SASLUsername,
		Password: cfg.SASLPassword,
	}
}

// newDialer returns the dialer used by group readers.
func newDialer(cfg config.KafkaConfig) (*kafka.Dialer, error) {
	tc, err := tlsConfig(cfg)
	if err != nil {
		return nil, err
	}
	return &kafka.Dialer{
		ClientID:      cfg.ClientID,
		Timeout:       dialTimeout,
		DualStack:     true,
		TLS:           tc,
		SASLMechanism: saslMechanism(cfg),
	}, nil
}

// newTransport returns the transport used by writers.
func newTransport(cfg config.KafkaConfig) (*kafka.Transport, error) {
	tc, err := tlsConfig(cfg)
	if err != nil {
		return nil, err
	}
	return &kafka.Transport{
		ClientID:    cfg.ClientID,
		DialTimeout: dialTimeout,
		IdleTimeout: cfg.ConnectionMaxIdle(),
		TLS:         tc,
		SASL:        saslMechanism(cfg),
	}, nil
}

// kafkaLogger routes kafka-go's printf style logging into slog.
func kafkaLogger(logger *slog.Logger, level slog.Level) kafka.LoggerFunc {
	return func(msg string, args ...interface{}) {
		logger.Log(context.Background(), level, fmt.Sprintf(msg, args...), "component", "kafka-go")
	}
}

// Ping dials the bootstrap servers in order and asks the first reachable
// one for the cluster metadata. It returns the number of brokers in the
// cluster.
func Ping(ctx context.Context, cfg config.KafkaConfig) (int, error) {
	if err := cfg.Validate(); err != nil {
		return 0, errors.WrapInvalid(err, "broker", "Ping", "validate kafka config")
	}

	dialer, err := newDialer(cfg)
	if err != nil {
		return 0, err
	}

	var lastErr error
	for _, addr := range cfg.Brokers() {
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			lastErr = err
			continue
		}

		if deadline, ok := ctx.Deadline(); ok {
			_ = conn.SetDeadline(deadline)
		}
		brokers, err := conn.Brokers()
		_ = conn.Close()
		if err != nil {
			lastErr = err
			continue
		}
		return len(brokers), nil
	}

	return 0, errors.WrapTransient(
		fmt.Errorf("%w: %v", errors.ErrConnectionLost, lastErr), "broker", "Ping", "reach bootstrap servers")
}
