package bpmn

import (
	"context"
	"time"

	"bpmn-backend/pkg/logger"

	"github.com/cenkalti/backoff/v5"
)

// RetryPolicy 固定间隔的有限次重试
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Delay: time.Second}
}

// Do 执行 fn 直到成功或用完次数，返回实际尝试次数和最后一次错误
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) (int, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	attempts := 0
	op := func() (struct{}, error) {
		attempts++
		return struct{}{}, fn(ctx, attempts)
	}

	_, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(&backoff.ConstantBackOff{Interval: p.Delay}),
		backoff.WithMaxTries(uint(maxAttempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.Warnf("attempt %d/%d failed: %v, retrying in %s", attempts, maxAttempts, err, next)
		}),
	)
	return attempts, err
}
