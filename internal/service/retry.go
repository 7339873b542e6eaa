package service

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	chatErrors "sudooom.date.chat/internal/errors"
)

// Retrier 存储层瞬时故障的有限次指数退避重试
type Retrier struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// Do 执行 op，只有 ErrTransientStore 会被重试
func (r Retrier) Do(ctx context.Context, op func(ctx context.Context) error) error {
	attempts := r.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	b := backoff.NewExponentialBackOff()
	if r.InitialInterval > 0 {
		b.InitialInterval = r.InitialInterval
	}
	if r.MaxInterval > 0 {
		b.MaxInterval = r.MaxInterval
	}
	b.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx)

	var lastErr error
	err := backoff.Retry(func() error {
		lastErr = op(ctx)
		if lastErr != nil && !chatErrors.IsRetryable(lastErr) {
			return backoff.Permanent(lastErr)
		}
		return lastErr
	}, policy)
	// ctx 结束时 backoff 返回 ctx.Err()，这里保留最后一次业务错误
	if err != nil && lastErr != nil {
		return lastErr
	}
	return err
}
