package fetch

import (
	"context"
	"time"

	"pulseboard/internal/application/port"
)

// Policy 单次请求的重试策略：第 n 次重试前等待 BaseDelay * 2^n
type Policy struct {
	// MaxRetries does not count the first call.
	MaxRetries int
	BaseDelay  time.Duration
	// RetryIf decides whether an error is worth another attempt.
	RetryIf func(error) bool
	// OnRetry is called before each wait.
	OnRetry func(attempt int, err error, delay time.Duration)

	sleep func(ctx context.Context, d time.Duration) error
}

// DefaultPolicy: 3 retries waiting 1s, 2s, 4s; only transient errors.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries: 3,
		BaseDelay:  time.Second,
		RetryIf:    port.IsTransient,
	}
}

func (p Policy) delay(attempt int) time.Duration {
	return p.BaseDelay << uint(attempt)
}

func (p Policy) wait(ctx context.Context, d time.Duration) error {
	if p.sleep != nil {
		return p.sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Do runs fn until it succeeds, returns a non-retryable error, ctx is done,
// or the retry budget is spent. The last error is returned unchanged.
func Do[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	retryIf := p.RetryIf
	if retryIf == nil {
		retryIf = port.IsTransient
	}

	var zero T
	for attempt := 0; ; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		// 调用方的 ctx 已结束（取消或超时）时不再重试
		if attempt >= p.MaxRetries || ctx.Err() != nil || !retryIf(err) {
			return zero, err
		}

		d := p.delay(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, d)
		}
		if werr := p.wait(ctx, d); werr != nil {
			return zero, err
		}
	}
}
