package requester

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
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
		MaxDelay:     time.Millisecond,
		Multiplier:   1,
	}
}

func TestRequest_Success(t *testing.T) {
	var gotKey, gotAccept string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get(APIKeyHeader)
		gotAccept = r.Header.Get("Accept")
		assert.Equal(t, http.MethodGet, r.Method)
		_, _ = w.Write([]byte(testutil.TestAPIResponse + "\n"))
	}))
	defer server.Close()

	registry := metric.NewRegistry()
	r := New(WithRetry(fastRetry()), WithMetrics(registry.CoreMetrics()))

	body, err := r.Request(context.Background(), config.APIDetails{URL: server.URL, APIKey: "secret"}, "weather")
	require.NoError(t, err)

	assert.JSONEq(t, testutil.TestAPIResponse, string(body))
	assert.Equal(t, "secret", gotKey)
	assert.Equal(t, "application/json", gotAccept)
	assert.Equal(t, 1.0, promtest.ToFloat64(registry.CoreMetrics().APIRequests.WithLabelValues("weather", "200")))
}

func TestRequest_StatusHandling(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantCalls int32
		wantErr   error
		transient bool
	}{
		{"rate limited", http.StatusTooManyRequests, "", 3, errors.ErrRateLimited, true},
		{"server error", http.StatusBadGateway, "", 3, errors.ErrUnexpectedStatus, true},
		{"not found", http.StatusNotFound, "", 1, errors.ErrUnexpectedStatus, false},
		{"unauthorized", http.StatusUnauthorized, "", 1, errors.ErrUnexpectedStatus, false},
		{"not json", http.StatusOK, "<html>oops</html>", 1, errors.ErrInvalidData, false},
		{"empty body", http.StatusOK, "", 1, errors.ErrInvalidData, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			r := New(WithRetry(fastRetry()))
			_, err := r.Request(context.Background(), config.APIDetails{URL: server.URL, APIKey: "k"}, "api")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.transient, errors.IsTransient(err))
			assert.Equal(t, tt.wantCalls, calls.Load())
		})
	}
}

func TestRequest_RecoversAfterTransientFailure(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"ok": true}`))
	}))
	defer server.Close()

	r := New(WithRetry(fastRetry()))
	body, err := r.Request(context.Background(), config.APIDetails{URL: server.URL, APIKey: "k"}, "api")
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok": true}`, string(body))
	assert.Equal(t, int32(2), calls.Load())
}

func TestRequest_BodyTooLarge(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`"`))
		_, _ = w.Write([]byte(strings.Repeat("a", MaxBodySize)))
		_, _ = w.Write([]byte(`"`))
	}))
	defer server.Close()

	r := New(WithRetry(fastRetry()))
	_, err := r.Request(context.Background(), config.APIDetails{URL: server.URL, APIKey: "k"}, "api")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidData)
	assert.Contains(t, err.Error(), "exceeds")
}

func TestRequest_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer server.Close()

	r := New(WithTimeout(20*time.Millisecond), WithRetry(retry.Config{MaxAttempts: 1}))
	_, err := r.Request(context.Background(), config.APIDetails{URL: server.URL, APIKey: "k"}, "api")
	require.Error(t, err)
	assert.True(t, errors.IsTransient(err))
	assert.ErrorIs(t, err, errors.ErrConnectionLost)
}

func TestRequest_InvalidDetails(t *testing.T) {
	r := New()
	ctx := context.Background()

	_, err := r.Request(ctx, config.APIDetails{APIKey: "k"}, "api")
	assert.ErrorIs(t, err, errors.ErrMissingURL)

	_, err = r.Request(ctx, config.APIDetails{URL: "not a url", APIKey: "k"}, "api")
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)

	_, err = r.Request(ctx, config.APIDetails{URL: "http://localhost"}, "api")
	assert.ErrorIs(t, err, errors.ErrMissingKey)
	assert.True(t, errors.IsInvalid(err))
}

func TestRequest_Cancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := New(WithRetry(fastRetry()))
	_, err := r.Request(ctx, config.APIDetails{URL: server.URL, APIKey: "k"}, "api")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, errors.IsTransient(err))
}
