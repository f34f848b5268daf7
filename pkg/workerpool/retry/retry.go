// Package retry wraps idempotent calls with exponential backoff
package retry

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Policy defines retry behavior
type Policy struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Jitter       bool
	// ShouldRetry filters retryable errors; nil retries every error
	ShouldRetry func(error) bool
}

// DefaultPolicy returns 3 retries from 100ms doubling up to 5s, with jitter
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:   3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// Do executes fn until it succeeds, the policy gives up or ctx ends
func Do(ctx context.Context, policy Policy, fn func(ctx context.Context) error) error {
	_, err := DoWithResult(ctx, policy, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoWithResult is Do for functions returning a value
func DoWithResult[T any](ctx context.Context, policy Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	var lastErr error

	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		res, err := fn(ctx)
		if err == nil {
			return res, nil
		}
		result, lastErr = res, err

		if policy.ShouldRetry != nil && !policy.ShouldRetry(err) {
			return result, err
		}
		if attempt >= policy.MaxRetries {
			break
		}

		timer := time.NewTimer(Backoff(policy, attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return result, ctx.Err()
		case <-timer.C:
		}
	}

	return result, lastErr
}

// Backoff returns the delay before retry number attempt (0-based)
func Backoff(policy Policy, attempt int) time.Duration {
	multiplier := policy.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}
	delay := float64(policy.InitialDelay) * math.Pow(multiplier, float64(attempt))

	if policy.MaxDelay > 0 && delay > float64(policy.MaxDelay) {
		delay = float64(policy.MaxDelay)
	}

	if policy.Jitter {
		// ±25%
		delay += delay * 0.25 * (rand.Float64()*2 - 1)
	}

	return time.Duration(delay)
}
