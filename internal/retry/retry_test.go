package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureSleeps replaces the backoff sleep and records requested delays.
func captureSleeps(t *testing.T) *[]time.Duration {
	t.Helper()
	var delays []time.Duration
	orig := sleep
	sleep = func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}
	t.Cleanup(func() { sleep = orig })
	return &delays
}

func TestExecuteSucceedsAfterFailures(t *testing.T) {
	delays := captureSleeps(t)

	calls := 0
	op := func(_ context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}

	cfg := &Config{MaxAttempts: 3, BaseDelay: time.Second}
	err := Execute(context.Background(), cfg, op)

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *delays)
}

func TestExecuteFirstAttemptShortCircuits(t *testing.T) {
	delays := captureSleeps(t)

	calls := 0
	err := Execute(context.Background(), &Config{MaxAttempts: 3, BaseDelay: time.Second}, func(_ context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, *delays)
}

func TestExecuteExhaustsAttempts(t *testing.T) {
	delays := captureSleeps(t)

	calls := 0
	err := Execute(context.Background(), &Config{MaxAttempts: 3, BaseDelay: time.Second}, func(_ context.Context) error {
		calls++
		return errors.New("permanent")
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Equal(t, 3, calls)
	// No sleep follows the final attempt
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *delays)
}

func TestExecuteNilConfigUsesDefaults(t *testing.T) {
	captureSleeps(t)

	calls := 0
	err := Execute(context.Background(), nil, func(_ context.Context) error {
		calls++
		return errors.New("nope")
	})

	require.Error(t, err)
	assert.Equal(t, DefaultConfig().MaxAttempts, calls)
}

func TestExecuteContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := Execute(ctx, &Config{MaxAttempts: 3, BaseDelay: 10 * time.Millisecond}, func(_ context.Context) error {
		calls++
		cancel()
		return errors.New("transient")
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, (&Config{MaxAttempts: 1}).Validate())
	assert.Error(t, (&Config{MaxAttempts: 0}).Validate())
	assert.Error(t, (&Config{MaxAttempts: 3, BaseDelay: -time.Second}).Validate())
}
