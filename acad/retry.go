package acad

import (
	"context"
	"math/rand/v2"
	"time"
)

// RetryPolicy bounds the retry loop applied to every automation call. Only
// transient-busy failures are retried; all other errors propagate on the
// first attempt.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// BaseDelay is the delay after the first busy failure; it doubles on
	// each subsequent one.
	BaseDelay time.Duration
	// MaxDelay caps the exponential growth.
	MaxDelay time.Duration
	// Jitter is the upper bound of the random component added to each delay.
	Jitter time.Duration
}

// DefaultRetryPolicy matches the busy behavior of an interactively used
// AutoCAD instance: frequent short rejections while a human or another
// automation client holds the command line.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 15,
		BaseDelay:   50 * time.Millisecond,
		MaxDelay:    800 * time.Millisecond,
		Jitter:      25 * time.Millisecond,
	}
}

func (p RetryPolicy) delay(attempt int) time.Duration {
	d := p.BaseDelay << (attempt - 1)
	if d > p.MaxDelay || d <= 0 {
		d = p.MaxDelay
	}
	if p.Jitter > 0 {
		d += rand.N(p.Jitter)
	}
	return d
}

// Retry invokes op, retrying up to policy.MaxAttempts times while op keeps
// failing with the transient-busy signature. Any other error, and the last
// busy error once attempts are exhausted, propagate unchanged.
func Retry[T any](ctx context.Context, policy RetryPolicy, op func() (T, error)) (T, error) {
	var zero T
	var last error
	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	for attempt := 1; attempt <= attempts; attempt++ {
		result, err := op()
		if err == nil {
			return result, nil
		}
		if !IsBusy(err) {
			return zero, err
		}
		last = err
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(policy.delay(attempt)):
		}
	}
	return zero, last
}

// RetryCall is Retry for operations without a result.
func RetryCall(ctx context.Context, policy RetryPolicy, op func() error) error {
	_, err := Retry(ctx, policy, func() (struct{}, error) {
		return struct{}{}, op()
	})
	return err
}
