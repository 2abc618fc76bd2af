package bpmn

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryPolicy_FailTwiceThenSucceed(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3, Delay: 0}

	calls := 0
	attempts, err := policy.Do(context.Background(), func(ctx context.Context, attempt int) error {
		calls++
		assert.Equal(t, calls, attempt)
		if calls < 3 {
			return errors.New("render failed")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 3, calls)
}

func TestRetryPolicy_AlwaysFail(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3, Delay: 0}

	attempts, err := policy.Do(context.Background(), func(ctx context.Context, attempt int) error {
		return fmt.Errorf("failure %d", attempt)
	})

	require.Error(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, "failure 3", err.Error())
}

func TestRetryPolicy_FirstTry(t *testing.T) {
	attempts, err := DefaultRetryPolicy().Do(context.Background(), func(ctx context.Context, attempt int) error {
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
}

func TestRetryPolicy_WaitsFixedDelay(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3, Delay: 20 * time.Millisecond}

	start := time.Now()
	attempts, err := policy.Do(context.Background(), func(ctx context.Context, attempt int) error {
		return errors.New("fail")
	})
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.Equal(t, 3, attempts)
	assert.GreaterOrEqual(t, elapsed, 40*time.Millisecond)
}

func TestRetryPolicy_ZeroAttemptsRunsOnce(t *testing.T) {
	attempts, err := RetryPolicy{}.Do(context.Background(), func(ctx context.Context, attempt int) error {
		return errors.New("fail")
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestRetryPolicy_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := RetryPolicy{MaxAttempts: 5, Delay: time.Hour}

	attempts, err := policy.Do(ctx, func(ctx context.Context, attempt int) error {
		cancel()
		return errors.New("fail")
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestDefaultRetryPolicy(t *testing.T) {
	p := DefaultRetryPolicy()
	assert.Equal(t, 3, p.MaxAttempts)
	assert.Equal(t, time.Second, p.Delay)
}
