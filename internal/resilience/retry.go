// Package resilience provides bounded retry with exponential backoff for
// provider calls, plus transient-error classification.
package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// RetryConfig controls retry behavior for a provider call site.
type RetryConfig struct {
	// Attempts is the total number of attempts including the first try.
	// A value of 1 means no retries. Default: 3.
	Attempts int

	// Delay is the backoff floor before the first retry. Default: 2s.
	Delay time.Duration

	// MaxDelay caps the backoff. Default: 30s.
	MaxDelay time.Duration

	// Timeout is a hard per-attempt deadline. A timed-out attempt counts
	// against the retry budget. Zero disables the per-attempt deadline.
	Timeout time.Duration

	// ShouldRetry optionally overrides the default transient-error check.
	ShouldRetry func(err error) bool
}

const jitterFraction = 0.25

// DefaultRetryConfig returns the retry settings used for provider calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		Attempts: 3,
		Delay:    2 * time.Second,
		MaxDelay: 30 * time.Second,
		Timeout:  60 * time.Second,
	}
}

// Do executes fn with retry semantics, preserving the value from the first
// successful attempt. Only transient errors (per ShouldRetry or IsTransient)
// are retried. Cancellation of ctx stops retries immediately; a per-attempt
// Timeout only fails that attempt.
func Do[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	if cfg.Attempts <= 0 {
		cfg.Attempts = 3
	}
	if cfg.Delay <= 0 {
		cfg.Delay = 2 * time.Second
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 30 * time.Second
	}
	shouldRetry := cfg.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = IsTransient
	}

	var zero T
	var lastErr error
	for attempt := 0; attempt < cfg.Attempts; attempt++ {
		val, err := runAttempt(ctx, cfg.Timeout, fn)
		if err == nil {
			return val, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return zero, lastErr
		}
		if !shouldRetry(lastErr) {
			return zero, lastErr
		}
		if attempt >= cfg.Attempts-1 {
			break
		}

		timer := time.NewTimer(backoff(attempt, cfg))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, lastErr
		case <-timer.C:
		}
	}

	return zero, lastErr
}

func runAttempt[T any](ctx context.Context, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(attemptCtx)
}

func backoff(attempt int, cfg RetryConfig) time.Duration {
	delay := float64(cfg.Delay) * math.Pow(2, float64(attempt))
	if delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}

	// ±25% jitter.
	delay += (rand.Float64()*2 - 1) * delay * jitterFraction
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

// LogRetries wraps a ShouldRetry check so each retried error is logged with
// the service and operation it belongs to.
func LogRetries(service, operation string, inner func(error) bool) func(error) bool {
	if inner == nil {
		inner = IsTransient
	}
	return func(err error) bool {
		retry := inner(err)
		if retry {
			zap.L().Warn("retrying operation",
				zap.String("service", service),
				zap.String("operation", operation),
				zap.Error(err),
			)
		}
		return retry
	}
}
