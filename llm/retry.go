package llm

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// RetryPolicy configures retry behavior with exponential backoff.
type RetryPolicy struct {
	MaxAttempts       int           // total attempts including the first
	BaseDelay         time.Duration // delay before the first retry
	MaxDelay          time.Duration // ceiling on any single delay
	BackoffMultiplier float64
	Jitter            bool // +/- 25% uniform jitter
	OnRetry           func(attempt int, delay time.Duration, err error)
}

// DefaultRetryPolicy returns the default policy: three attempts with
// delays of roughly 1s and 2s between them.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:       3,
		BaseDelay:         time.Second,
		MaxDelay:          30 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            true,
	}
}

// Delay calculates the delay after failed attempt n (1-indexed).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	d := float64(p.BaseDelay) * math.Pow(p.BackoffMultiplier, float64(attempt-1))
	d = math.Min(d, float64(p.MaxDelay))
	if p.Jitter {
		// rand in [0,1) -> factor in [0.75, 1.25)
		d = d * (0.75 + rand.Float64()*0.5)
	}
	return time.Duration(d)
}

// Retry executes fn under the policy. Only errors whose classified
// kind is retryable are retried; everything else returns immediately.
// Cancelling ctx aborts an in-progress backoff wait.
func Retry[T any](ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	result, err := fn(ctx)
	if err == nil {
		return result, nil
	}

	for attempt := 1; attempt < policy.MaxAttempts; attempt++ {
		if !IsRetryable(err) {
			return zero, err
		}

		delay := policy.Delay(attempt)
		if pe, ok := err.(*ProviderError); ok && pe.RetryAfter != nil {
			serverDelay := time.Duration(*pe.RetryAfter * float64(time.Second))
			if serverDelay > policy.MaxDelay {
				return zero, err
			}
			delay = serverDelay
		}

		if policy.OnRetry != nil {
			policy.OnRetry(attempt, delay, err)
		}

		select {
		case <-ctx.Done():
			// Surface the provider failure that put us in the wait,
			// not the cancellation itself.
			return zero, fmt.Errorf("cancelled during retry wait: %w", err)
		case <-time.After(delay):
		}

		result, err = fn(ctx)
		if err == nil {
			return result, nil
		}
	}

	return zero, err
}
