// Package requester fetches JSON documents from the HTTP data APIs listed in
// api_config.json.
package requester

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/c360/exchange/config"
	"github.com/c360/exchange/errors"
	"github.com/c360/exchange/metric"
	"github.com/c360/exchange/pkg/retry"
)

const (
	// DefaultTimeout bounds a single HTTP attempt.
	DefaultTimeout = 30 * time.Second

	// MaxBodySize caps the response body.
	MaxBodySize = 32 << 20

	// APIKeyHeader carries the key from api_config.json.
	APIKeyHeader = "apikey"
)

// Option configures a Requester.
type Option func(*Requester)

// WithLogger sets the logger; nil keeps slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Requester) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMetrics records every attempt into m.
func WithMetrics(m *metric.Metrics) Option {
	return func(r *Requester) {
		r.metrics = m
	}
}

// WithTimeout sets the per-attempt timeout. Values <= 0 keep the default.
func WithTimeout(d time.Duration) Option {
	return func(r *Requester) {
		if d > 0 {
			r.client.Timeout = d
		}
	}
}

// WithHTTPClient replaces the HTTP client. Its Timeout is used as is.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Requester) {
		if c != nil {
			r.client = c
		}
	}
}

// WithRetry sets the retry schedule for transient failures.
func WithRetry(cfg retry.Config) Option {
	return func(r *Requester) {
		r.retry = cfg
	}
}

// Requester issues authenticated GET requests.
type Requester struct {
	client  *http.Client
	retry   retry.Config
	logger  *slog.Logger
	metrics *metric.Metrics
}

// New creates a Requester with a 30s timeout and three attempts.
func New(opts ...Option) *Requester {
	r := &Requester{
		client: &http.Client{Timeout: DefaultTimeout},
		retry:  retry.DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Request GETs api.URL with the API key header and returns the body, which
// must be valid JSON. Rate limiting and server errors are retried.
func (r *Requester) Request(ctx context.Context, api config.APIDetails, name string) (json.RawMessage, error) {
	if api.URL == "" {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %q", errors.ErrMissingURL, name), "Requester", "Request", "validate api")
	}
	if _, err := url.ParseRequestURI(api.URL); err != nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: api %q url: %v", errors.ErrInvalidConfig, name, err), "Requester", "Request", "parse url")
	}
	if api.APIKey == "" {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %q", errors.ErrMissingKey, name), "Requester", "Request", "validate api")
	}

	cfg := r.retry
	cfg.OnRetry = func(attempt int, err error) {
		r.logger.Warn("API request failed, retrying", "api", name, "attempt", attempt, "error", err)
	}

	var body json.RawMessage
	err := errors.RetryIf(ctx, cfg, nil, func() error {
		var err error
		body, err = r.do(ctx, api, name)
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "Requester", "Request", "get "+name)
	}

	r.logger.Debug("API request succeeded", "api", name, "bytes", len(body))
	return body, nil
}

func (r *Requester) do(ctx context.Context, api config.APIDetails, name string) (json.RawMessage, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, api.URL, nil)
	if err != nil {
		r.metrics.RecordAPIRequest(name, "error", time.Since(start))
		return nil, errors.WrapInvalid(err, "Requester", "Request", "build request")
	}
	req.Header.Set(APIKeyHeader, api.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		r.metrics.RecordAPIRequest(name, "error", time.Since(start))
		if ctx.Err() != nil {
			return nil, errors.Wrap(ctx.Err(), "Requester", "Request", "send request")
		}
		return nil, errors.WrapTransient(
			fmt.Errorf("%w: %v", errors.ErrConnectionLost, err), "Requester", "Request", "send request")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodySize+1))
	r.metrics.RecordAPIRequest(name, strconv.Itoa(resp.StatusCode), time.Since(start))
	if err != nil {
		return nil, errors.WrapTransient(
			fmt.Errorf("%w: read body: %v", errors.ErrConnectionLost, err), "Requester", "Request", "read response")
	}

	if err := checkStatus(resp.StatusCode); err != nil {
		return nil, err
	}
	if len(data) > MaxBodySize {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: response exceeds %d bytes", errors.ErrInvalidData, MaxBodySize), "Requester", "Request", "read response")
	}

	data = bytes.TrimSpace(data)
	if !json.Valid(data) {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: response is not valid JSON", errors.ErrInvalidData), "Requester", "Request", "decode response")
	}
	return json.RawMessage(data), nil
}

// checkStatus maps a non-2xx status to an error class.
func checkStatus(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusTooManyRequests:
		return errors.WrapTransient(
			fmt.Errorf("%w: status %d", errors.ErrRateLimited, code), "Requester", "Request", "check status")
	case code >= 500:
		return errors.WrapTransient(
			fmt.Errorf("%w: status %d %s", errors.ErrUnexpectedStatus, code, http.StatusText(code)), "Requester", "Request", "check status")
	default:
		return errors.WrapInvalid(
			fmt.Errorf("%w: status %d %s", errors.ErrUnexpectedStatus, code, http.StatusText(code)), "Requester", "Request", "check status")
	}
}
