package pipeline

import (
	"context"
	"file-processor/pkg/log"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
)

// RetryPolicy 是有界的指数退避重试策略，与被包装的操作相互独立。
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	// Retryable 为 nil 时所有错误都会重试。
	Retryable func(error) bool
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	// 由尝试次数而不是总耗时来限制。
	b.MaxElapsedTime = 0

	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx)
}

// Do 执行 op，直到成功、遇到不可重试的错误或用尽尝试次数，返回实际尝试次数和最后的错误。
func (p RetryPolicy) Do(ctx context.Context, op func(ctx context.Context) error) (int, error) {
	attempts := 0
	err := backoff.RetryNotify(func() error {
		attempts++
		err := op(ctx)
		if err != nil && p.Retryable != nil && !p.Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, p.backOff(ctx), func(err error, wait time.Duration) {
		log.Warnw("[RetryPolicy] 操作失败，准备重试", "attempt", attempts, "wait", wait.String(), "error", err)
	})
	return attempts, err
}
