package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig(attempts int) Config {
	return Config{
		MaxAttempts:  attempts,
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     100 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestDo_SucceedsAfterFailures(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastConfig(3), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("leader not available")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDo_AllAttemptsFail(t *testing.T) {
	sentinel := errors.New("broker down")
	attempts := 0
	err := Do(context.Background(), fastConfig(3), func() error {
		attempts++
		return sentinel
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed after 3 attempts")
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 3, attempts)
}

func TestDo_NonRetryableStopsImmediately(t *testing.T) {
	sentinel := errors.New("unknown topic")
	attempts := 0
	err := Do(context.Background(), fastConfig(5), func() error {
		attempts++
		return NonRetryable(sentinel)
	})

	require.Error(t, err)
	assert.True(t, IsNonRetryable(err))
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 1, attempts)
}

func TestNonRetryable_Nil(t *testing.T) {
	assert.NoError(t, NonRetryable(nil))
	assert.False(t, IsNonRetryable(nil))
}

func TestDo_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := Config{
		MaxAttempts:  5,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     1 * time.Second,
		Multiplier:   2.0,
	}

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	attempts := 0
	err := Do(ctx, cfg, func() error {
		attempts++
		return errors.New("error")
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "retry cancelled")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, attempts, 5)
}

func TestDo_BackoffTiming(t *testing.T) {
	start := time.Now()
	attempts := 0

	_ = Do(context.Background(), fastConfig(4), func() error {
		attempts++
		return errors.New("error")
	})

	elapsed := time.Since(start)

	// 10ms + 20ms + 40ms
	assert.GreaterOrEqual(t, elapsed, 70*time.Millisecond)
	assert.Less(t, elapsed, 250*time.Millisecond)
	assert.Equal(t, 4, attempts)
}

func TestDo_MaxDelayCaps(t *testing.T) {
	cfg := Config{
		MaxAttempts:  4,
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     25 * time.Millisecond,
		Multiplier:   10.0,
	}

	start := time.Now()
	_ = Do(context.Background(), cfg, func() error {
		return errors.New("error")
	})
	elapsed := time.Since(start)

	// 10ms + 25ms + 25ms
	assert.GreaterOrEqual(t, elapsed, 60*time.Millisecond)
	assert.Less(t, elapsed, 250*time.Millisecond)
}

func TestDo_OnRetryHook(t *testing.T) {
	var seen []int
	cfg := fastConfig(3)
	cfg.OnRetry = func(attempt int, err error) {
		assert.EqualError(t, err, "try again")
		seen = append(seen, attempt)
	}

	_ = Do(context.Background(), cfg, func() error {
		return errors.New("try again")
	})

	// no hook after the final attempt
	assert.Equal(t, []int{1, 2}, seen)
}

func TestDo_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		msg  string
	}{
		{"negative initial", Config{InitialDelay: -1}, "InitialDelay cannot be negative"},
		{"negative max", Config{MaxDelay: -1}, "MaxDelay cannot be negative"},
		{"negative multiplier", Config{Multiplier: -1}, "Multiplier cannot be negative"},
		{"max below initial", Config{InitialDelay: time.Second, MaxDelay: time.Millisecond}, "MaxDelay must be >= InitialDelay"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			err := Do(context.Background(), tt.cfg, func() error {
				called = true
				return nil
			})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
			assert.False(t, called)
		})
	}
}

func TestPresets(t *testing.T) {
	def := DefaultConfig()
	assert.Equal(t, 3, def.MaxAttempts)
	assert.Equal(t, 100*time.Millisecond, def.InitialDelay)
	assert.Equal(t, 5*time.Second, def.MaxDelay)
	assert.True(t, def.AddJitter)

	b := Broker()
	assert.Equal(t, 4, b.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, b.InitialDelay)
	assert.Equal(t, 2*time.Second, b.MaxDelay)

	c := Connect()
	assert.Equal(t, 10, c.MaxAttempts)
	assert.Equal(t, 50*time.Millisecond, c.InitialDelay)
	assert.Equal(t, 1*time.Second, c.MaxDelay)
}

func TestDo_ZeroAttemptsRunsOnce(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), Config{}, func() error {
		attempts++
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 1, attempts)
}

func TestSleepFor_TinyDelayWithJitter(t *testing.T) {
	cfg := Config{AddJitter: true}
	assert.Equal(t, time.Duration(2), cfg.sleepFor(2))

	d := cfg.sleepFor(100 * time.Millisecond)
	assert.GreaterOrEqual(t, d, 100*time.Millisecond)
	assert.Less(t, d, 125*time.Millisecond)
}
