package natsclient

import (
	"context"
	"crypto/tls"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360/exchange/config"
	"github.com/c360/exchange/errors"
	"github.com/c360/exchange/pkg/retry"
	"github.com/c360/exchange/pkg/tlsutil"
)

// ConnectionStatus represents the state of the NATS connection
type ConnectionStatus int

// Possible connection statuses
const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnecting
	StatusConnected
	StatusReconnecting
	StatusCircuitOpen
)

// String returns the string representation of ConnectionStatus
func (s ConnectionStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	case StatusCircuitOpen:
		return "circuit_open"
	default:
		return "unknown"
	}
}

// Both errors classify as transient.
var (
	ErrNotConnected = fmt.Errorf("%w to NATS", errors.ErrNotConnected)
	ErrCircuitOpen  = fmt.Errorf("circuit breaker is open: %w", errors.ErrNotConnected)
)

// Client manages one NATS connection and its JetStream context.
type Client struct {
	url      string
	status   atomic.Value // stores ConnectionStatus
	failures atomic.Int32
	logger   *slog.Logger

	conn *nats.Conn
	js   jetstream.JetStream

	// Circuit breaker
	lastFailure      atomic.Value // stores time.Time
	backoff          atomic.Value // stores time.Duration
	circuitFailures  atomic.Int32
	circuitThreshold int32
	maxBackoff       time.Duration

	// Connection options
	maxReconnects int
	reconnectWait time.Duration
	timeout       time.Duration
	drainTimeout  time.Duration
	connectRetry  retry.Config

	// Authentication, cleared on close
	username string
	password string
	token    string

	tlsConfig  *tls.Config
	clientName string

	mu      sync.RWMutex
	closeMu sync.Mutex
	closed  atomic.Bool
}

// NewClient creates a client for url (comma separated for a cluster).
func NewClient(url string, opts ...ClientOption) (*Client, error) {
	c := &Client{
		url:              url,
		logger:           slog.Default(),
		maxReconnects:    3,
		reconnectWait:    time.Second,
		circuitThreshold: 5,
		maxBackoff:       time.Minute,
		timeout:          5 * time.Second,
		drainTimeout:     10 * time.Second,
		connectRetry:     retry.Connect(),
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, errors.WrapInvalid(err, "Client", "NewClient", "apply option")
		}
	}

	c.logger = c.logger.With("component", "natsclient")
	c.status.Store(StatusDisconnected)
	c.backoff.Store(time.Second)
	c.lastFailure.Store(time.Time{})

	return c, nil
}

// NewFromConfig creates a client from nats_config.json settings. opts are
// applied after the config derived options.
func NewFromConfig(cfg config.NATSConfig, opts ...ClientOption) (*Client, error) {
	base := []ClientOption{WithName("exchange")}
	if cfg.Username != "" {
		base = append(base, WithCredentials(cfg.Username, cfg.Password))
	}
	if cfg.Token != "" {
		base = append(base, WithToken(cfg.Token))
	}
	tc, err := tlsutil.LoadClientTLSConfig(cfg.ClientTLS())
	if err != nil {
		return nil, err
	}
	if tc != nil {
		base = append(base, WithTLS(tc))
	}
	return NewClient(cfg.URL(), append(base, opts...)...)
}

// URL returns the NATS server URL
func (m *Client) URL() string {
	return m.url
}

// Status returns the current connection status
func (m *Client) Status() ConnectionStatus {
	val := m.status.Load()
	if val == nil {
		return StatusDisconnected
	}
	return val.(ConnectionStatus)
}

func (m *Client) setStatus(status ConnectionStatus) {
	m.status.Store(status)
}

// IsHealthy returns true if the connection is healthy
func (m *Client) IsHealthy() bool {
	return m.Status() == StatusConnected
}

// Failures returns the current failure count
func (m *Client) Failures() int32 {
	return m.failures.Load()
}

// Backoff returns the current circuit breaker backoff
func (m *Client) Backoff() time.Duration {
	return m.backoff.Load().(time.Duration)
}

// recordFailure records a failure and opens the circuit once the threshold
// is reached in the current round.
func (m *Client) recordFailure() {
	total := m.failures.Add(1)
	m.lastFailure.Store(time.Now())
	round := m.circuitFailures.Add(1)

	m.logger.Debug("Recorded failure", "failures", total, "circuit_failures", round)

	if round < m.circuitThreshold {
		return
	}

	current := m.Status()
	backoff := m.backoff.Load().(time.Duration)
	next := backoff * 2
	if next > m.maxBackoff {
		next = m.maxBackoff
	}

	if current != StatusCircuitOpen {
		if !m.status.CompareAndSwap(current, StatusCircuitOpen) {
			return
		}
		m.backoff.Store(next)
		m.circuitFailures.Store(0)
		m.logger.Warn("Circuit breaker opened", "failures", round, "backoff", backoff)
		time.AfterFunc(backoff, m.halfOpen)
		return
	}

	m.backoff.Store(next)
	m.circuitFailures.Store(0)
	m.logger.Warn("Circuit breaker still open", "backoff", next)
}

// resetCircuit resets the circuit breaker state
func (m *Client) resetCircuit() {
	m.failures.Store(0)
	m.circuitFailures.Store(0)
	m.backoff.Store(time.Second)
	m.lastFailure.Store(time.Time{})

	if m.Status() == StatusCircuitOpen {
		m.setStatus(StatusDisconnected)
	}
}

// halfOpen lets the next Connect try again after the backoff.
func (m *Client) halfOpen() {
	m.status.CompareAndSwap(StatusCircuitOpen, StatusDisconnected)
}

// ConnectionOptions returns the NATS connection options
func (m *Client) ConnectionOptions() []nats.Option {
	opts := []nats.Option{
		nats.MaxReconnects(m.maxReconnects),
		nats.ReconnectWait(m.reconnectWait),
		nats.Timeout(m.timeout),
		nats.DrainTimeout(m.drainTimeout),
		nats.DisconnectErrHandler(m.handleDisconnect),
		nats.ReconnectHandler(m.handleReconnect),
		nats.ClosedHandler(m.handleClosed),
		nats.ErrorHandler(m.handleError),
	}

	if m.username != "" && m.password != "" {
		opts = append(opts, nats.UserInfo(m.username, m.password))
	}
	if m.token != "" {
		opts = append(opts, nats.Token(m.token))
	}
	if m.tlsConfig != nil {
		opts = append(opts, nats.Secure(m.tlsConfig))
	}
	if m.clientName != "" {
		opts = append(opts, nats.Name(m.clientName))
	}

	return opts
}

// Connect makes one connection attempt bounded by ctx.
func (m *Client) Connect(ctx context.Context) error {
	if m.Status() == StatusCircuitOpen {
		m.logger.Debug("Circuit breaker is open, skipping connection attempt")
		return ErrCircuitOpen
	}

	m.setStatus(StatusConnecting)
	m.logger.Debug("Connecting to NATS", "url", m.url)

	opts := m.ConnectionOptions()

	connectDone := make(chan error, 1)
	go func() {
		conn, err := nats.Connect(m.url, opts...)
		if err != nil {
			connectDone <- err
			return
		}

		js, err := jetstream.New(conn)
		if err != nil {
			conn.Close()
			connectDone <- err
			return
		}

		m.mu.Lock()
		m.conn = conn
		m.js = js
		m.mu.Unlock()

		connectDone <- nil
	}()

	select {
	case err := <-connectDone:
		if err != nil {
			m.recordFailure()
			if m.Status() == StatusCircuitOpen {
				return ErrCircuitOpen
			}
			m.setStatus(StatusDisconnected)
			return errors.WrapTransient(err, "Client", "Connect", "establish connection")
		}
	case <-ctx.Done():
		m.recordFailure()
		if m.Status() != StatusCircuitOpen {
			m.setStatus(StatusDisconnected)
		}
		return errors.WrapTransient(ctx.Err(), "Client", "Connect", "connection cancelled")
	}

	m.setStatus(StatusConnected)
	m.resetCircuit()
	m.logger.Debug("Connected to NATS", "url", m.url)
	return nil
}

// ConnectWithRetry retries Connect with backoff until it succeeds, the retry
// budget runs out or the circuit opens.
func (m *Client) ConnectWithRetry(ctx context.Context) error {
	cfg := m.connectRetry
	cfg.OnRetry = func(attempt int, err error) {
		m.logger.Warn("NATS connection failed, retrying", "attempt", attempt, "error", err)
	}
	err := retry.Do(ctx, cfg, func() error {
		err := m.Connect(ctx)
		if stderrors.Is(err, ErrCircuitOpen) {
			return retry.NonRetryable(err)
		}
		return err
	})
	var nre *retry.NonRetryableError
	if stderrors.As(err, &nre) {
		return nre.Err
	}
	return err
}

// Close drains and closes the connection. Calling it more than once is safe.
func (m *Client) Close(ctx context.Context) error {
	m.closeMu.Lock()
	defer m.closeMu.Unlock()

	if m.closed.Load() {
		return nil
	}
	m.closed.Store(true)

	m.mu.Lock()
	defer m.mu.Unlock()

	var drainErr error
	if m.conn != nil {
		drainTimeout := m.drainTimeout
		if deadline, ok := ctx.Deadline(); ok {
			if remaining := time.Until(deadline); remaining > 0 && remaining < drainTimeout {
				drainTimeout = remaining
			}
		}

		conn := m.conn
		drainDone := make(chan error, 1)
		go func() {
			drainDone <- conn.Drain()
		}()

		timer := time.NewTimer(drainTimeout)
		defer timer.Stop()

		select {
		case err := <-drainDone:
			if err != nil {
				drainErr = errors.Wrap(err, "Client", "Close", "drain connection")
			}
		case <-timer.C:
			drainErr = errors.WrapTransient(
				fmt.Errorf("drain timeout after %v", drainTimeout), "Client", "Close", "drain connection")
		case <-ctx.Done():
			drainErr = errors.Wrap(ctx.Err(), "Client", "Close", "drain connection")
		}

		conn.Close()
		m.conn = nil
		m.js = nil
	}

	m.username = ""
	m.password = ""
	m.token = ""

	m.setStatus(StatusDisconnected)
	return drainErr
}

// RTT returns the round-trip time to the NATS server
func (m *Client) RTT() (time.Duration, error) {
	m.mu.RLock()
	conn := m.conn
	m.mu.RUnlock()

	if conn == nil || !conn.IsConnected() {
		return 0, ErrNotConnected
	}
	return conn.RTT()
}

// JetStream returns the JetStream context
func (m *Client) JetStream() (jetstream.JetStream, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.js == nil {
		return nil, errors.WrapTransient(ErrNotConnected, "Client", "JetStream", "get JetStream context")
	}
	return m.js, nil
}

// ready returns the JetStream context when the client may issue requests.
func (m *Client) ready() (jetstream.JetStream, error) {
	if m.Status() == StatusCircuitOpen {
		return nil, ErrCircuitOpen
	}
	if m.Status() != StatusConnected {
		return nil, ErrNotConnected
	}
	js, err := m.JetStream()
	if err != nil {
		m.recordFailure()
		return nil, err
	}
	return js, nil
}

// CreateObjectStore returns the bucket named in cfg, creating it when it
// does not exist.
func (m *Client) CreateObjectStore(ctx context.Context, cfg jetstream.ObjectStoreConfig) (jetstream.ObjectStore, error) {
	js, err := m.ready()
	if err != nil {
		return nil, err
	}

	bucket, err := js.ObjectStore(ctx, cfg.Bucket)
	if err == nil {
		m.resetCircuit()
		return bucket, nil
	}

	bucket, err = js.CreateObjectStore(ctx, cfg)
	if err != nil {
		if isAlreadyExistsError(err) {
			// created concurrently
			bucket, err = js.ObjectStore(ctx, cfg.Bucket)
			if err != nil {
				m.recordFailure()
				return nil, errors.Wrap(err, "Client", "CreateObjectStore",
					fmt.Sprintf("access existing bucket %s", cfg.Bucket))
			}
			m.resetCircuit()
			return bucket, nil
		}
		m.recordFailure()
		return nil, err
	}

	m.logger.Debug("Created object store bucket", "bucket", cfg.Bucket)
	m.resetCircuit()
	return bucket, nil
}

// ObjectStore returns an existing bucket. A missing bucket is reported as
// jetstream.ErrBucketNotFound and does not count as a connection failure.
func (m *Client) ObjectStore(ctx context.Context, name string) (jetstream.ObjectStore, error) {
	js, err := m.ready()
	if err != nil {
		return nil, err
	}

	bucket, err := js.ObjectStore(ctx, name)
	if err != nil {
		if !stderrors.Is(err, jetstream.ErrBucketNotFound) {
			m.recordFailure()
		}
		return nil, err
	}
	m.resetCircuit()
	return bucket, nil
}

// DeleteObjectStore deletes a bucket and its objects.
func (m *Client) DeleteObjectStore(ctx context.Context, name string) error {
	js, err := m.ready()
	if err != nil {
		return err
	}

	if err := js.DeleteObjectStore(ctx, name); err != nil {
		if !stderrors.Is(err, jetstream.ErrStreamNotFound) && !stderrors.Is(err, jetstream.ErrBucketNotFound) {
			m.recordFailure()
		}
		return err
	}
	m.resetCircuit()
	return nil
}

// ObjectStoreNames lists bucket names in sorted order.
func (m *Client) ObjectStoreNames(ctx context.Context) ([]string, error) {
	js, err := m.ready()
	if err != nil {
		return nil, err
	}

	lister := js.ObjectStoreNames(ctx)
	names := []string{}
	for name := range lister.Name() {
		names = append(names, name)
	}
	if err := lister.Error(); err != nil {
		m.recordFailure()
		return nil, err
	}

	m.resetCircuit()
	sort.Strings(names)
	return names, nil
}

func (m *Client) handleDisconnect(_ *nats.Conn, err error) {
	m.setStatus(StatusReconnecting)
	if err != nil {
		m.logger.Warn("Disconnected from NATS", "error", err)
	}
}

func (m *Client) handleReconnect(_ *nats.Conn) {
	m.setStatus(StatusConnected)
	m.resetCircuit()
	m.logger.Info("Reconnected to NATS", "url", m.url)
}

func (m *Client) handleClosed(_ *nats.Conn) {
	m.setStatus(StatusDisconnected)
}

func (m *Client) handleError(_ *nats.Conn, _ *nats.Subscription, err error) {
	m.logger.Error("NATS error", "error", err)
}

// isAlreadyExistsError checks if an error indicates a bucket already exists
func isAlreadyExistsError(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, jetstream.ErrStreamNameAlreadyInUse) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "bucket name already in use") ||
		strings.Contains(errStr, "already exists") ||
		strings.Contains(errStr, "stream name already in use")
}
