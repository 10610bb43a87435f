package natsclient

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/exchange/config"
	"github.com/c360/exchange/errors"
	"github.com/c360/exchange/pkg/retry"
)

func TestNewClient(t *testing.T) {
	client, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	assert.Equal(t, "nats://localhost:4222", client.URL())
	assert.Equal(t, StatusDisconnected, client.Status())
	assert.False(t, client.IsHealthy())
}

func TestNewClient_DrainTimeout(t *testing.T) {
	client, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, client.drainTimeout)

	client, err = NewClient("nats://localhost:4222", WithDrainTimeout(3*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, client.drainTimeout)
}

func TestNewClient_InvalidOption(t *testing.T) {
	_, err := NewClient("nats://localhost:4222", WithCircuitBreakerThreshold(0))
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))

	_, err = NewClient("nats://localhost:4222", WithTimeout(0))
	assert.True(t, errors.IsInvalid(err))
}

func TestNewFromConfig(t *testing.T) {
	client, err := NewFromConfig(config.NATSConfig{
		URLs:     []string{"nats://a:4222", "nats://b:4222"},
		Username: "svc",
		Password: "secret",
	})
	require.NoError(t, err)

	assert.Equal(t, "nats://a:4222,nats://b:4222", client.URL())
	assert.Equal(t, "svc", client.username)
	assert.Equal(t, "exchange", client.clientName)
	assert.Len(t, client.ConnectionOptions(), 10, "base options plus credentials and name")
	assert.Nil(t, client.tlsConfig)
}

func TestNewFromConfig_TLS(t *testing.T) {
	client, err := NewFromConfig(config.NATSConfig{
		URLs:        []string{"tls://a:4222"},
		TLS:         true,
		TLSInsecure: true,
	})
	require.NoError(t, err)
	require.NotNil(t, client.tlsConfig)
	assert.True(t, client.tlsConfig.InsecureSkipVerify)
	assert.Len(t, client.ConnectionOptions(), 10, "base options plus TLS and name")

	_, err = NewFromConfig(config.NATSConfig{
		URLs:      []string{"tls://a:4222"},
		TLS:       true,
		TLSCAFile: "/nonexistent/ca.pem",
	})
	assert.True(t, errors.IsFatal(err))
}

func TestCircuitBreaker_OpensAfterFailures(t *testing.T) {
	client, err := NewClient("nats://invalid:4222")
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		client.recordFailure()
	}
	assert.NotEqual(t, StatusCircuitOpen, client.Status())

	client.recordFailure()
	assert.Equal(t, StatusCircuitOpen, client.Status())
	assert.Equal(t, int32(5), client.Failures())
}

func TestCircuitBreaker_Reset(t *testing.T) {
	client, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		client.recordFailure()
	}
	require.Equal(t, StatusCircuitOpen, client.Status())

	client.resetCircuit()
	assert.Equal(t, int32(0), client.Failures())
	assert.Equal(t, StatusDisconnected, client.Status())
}

func TestCircuitBreaker_ExponentialBackoff(t *testing.T) {
	client, err := NewClient("nats://localhost:4222", WithMaxBackoff(10*time.Second))
	require.NoError(t, err)

	assert.Equal(t, time.Second, client.Backoff())

	for i := 0; i < 5; i++ {
		client.recordFailure()
	}
	assert.Equal(t, 2*time.Second, client.Backoff())

	for i := 0; i < 5; i++ {
		client.recordFailure()
	}
	assert.Equal(t, 4*time.Second, client.Backoff())

	for i := 0; i < 50; i++ {
		client.recordFailure()
	}
	assert.Equal(t, 10*time.Second, client.Backoff())
}

func TestCircuitBreaker_HalfOpen(t *testing.T) {
	client, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		client.recordFailure()
	}
	require.Equal(t, StatusCircuitOpen, client.Status())

	client.halfOpen()
	assert.Equal(t, StatusDisconnected, client.Status())

	client.setStatus(StatusConnected)
	client.halfOpen()
	assert.Equal(t, StatusConnected, client.Status(), "only an open circuit moves to half open")
}

func TestConcurrentSafety(t *testing.T) {
	client, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	var wg sync.WaitGroup
	iterations := 100

	wg.Add(4)
	go func() {
		defer wg.Done()
		for i := 0; i < iterations; i++ {
			client.setStatus(StatusConnecting)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < iterations; i++ {
			_ = client.Status()
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < iterations; i++ {
			client.recordFailure()
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < iterations; i++ {
			client.resetCircuit()
		}
	}()
	wg.Wait()

	assert.Contains(t, []ConnectionStatus{
		StatusDisconnected,
		StatusConnecting,
		StatusConnected,
		StatusReconnecting,
		StatusCircuitOpen,
	}, client.Status())
}

func TestIsHealthy(t *testing.T) {
	tests := []struct {
		name     string
		status   ConnectionStatus
		expected bool
	}{
		{"connected is healthy", StatusConnected, true},
		{"disconnected is not healthy", StatusDisconnected, false},
		{"connecting is not healthy", StatusConnecting, false},
		{"reconnecting is not healthy", StatusReconnecting, false},
		{"circuit open is not healthy", StatusCircuitOpen, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient("nats://localhost:4222")
			require.NoError(t, err)
			client.setStatus(tt.status)
			assert.Equal(t, tt.expected, client.IsHealthy())
			assert.Equal(t, tt.status.String(), client.Status().String())
		})
	}
}

func TestObjectStoreOps_NotConnected(t *testing.T) {
	client, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)
	ctx := context.Background()

	_, err = client.CreateObjectStore(ctx, jetstream.ObjectStoreConfig{Bucket: "exports"})
	assert.Equal(t, ErrNotConnected, err)

	_, err = client.ObjectStore(ctx, "exports")
	assert.Equal(t, ErrNotConnected, err)

	assert.Equal(t, ErrNotConnected, client.DeleteObjectStore(ctx, "exports"))

	_, err = client.ObjectStoreNames(ctx)
	assert.Equal(t, ErrNotConnected, err)

	_, err = client.RTT()
	assert.Equal(t, ErrNotConnected, err)

	_, err = client.JetStream()
	assert.True(t, errors.IsTransient(err))
}

func TestObjectStoreOps_CircuitOpen(t *testing.T) {
	client, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		client.recordFailure()
	}
	ctx := context.Background()

	_, err = client.CreateObjectStore(ctx, jetstream.ObjectStoreConfig{Bucket: "exports"})
	assert.Equal(t, ErrCircuitOpen, err)
	assert.Equal(t, ErrCircuitOpen, client.Connect(ctx))
}

func TestConnectWithRetry_StopsOnOpenCircuit(t *testing.T) {
	client, err := NewClient("nats://127.0.0.1:1",
		WithTimeout(50*time.Millisecond),
		WithCircuitBreakerThreshold(2),
		WithConnectRetry(retry.Config{MaxAttempts: 10, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}),
	)
	require.NoError(t, err)

	err = client.ConnectWithRetry(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, int32(2), client.Failures())
}

func TestClose_Idempotent(t *testing.T) {
	client, err := NewClient("nats://localhost:4222", WithToken("t0k"))
	require.NoError(t, err)

	require.NoError(t, client.Close(context.Background()))
	require.NoError(t, client.Close(context.Background()))
	assert.Empty(t, client.token)
	assert.Equal(t, StatusDisconnected, client.Status())
}

func TestIsAlreadyExistsError(t *testing.T) {
	assert.False(t, isAlreadyExistsError(nil))
	assert.True(t, isAlreadyExistsError(jetstream.ErrStreamNameAlreadyInUse))
	assert.True(t, isAlreadyExistsError(errors.WrapTransient(
		stdError("stream name already in use with a different configuration"), "c", "m", "a")))
	assert.False(t, isAlreadyExistsError(stdError("permission denied")))
}

type stdError string

func (e stdError) Error() string { return string(e) }
