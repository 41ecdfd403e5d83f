// Package resilience holds the retry policy used for optimistic-concurrency
// writes and the circuit breaker guarding networked store backends.
package resilience

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/L-Mariam/Grocery-Guessr/core"
)

// RetryConfig configures retry behavior
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	JitterEnabled bool
	// ShouldRetry decides whether an error is worth another attempt.
	// Nil means core.IsRetryable.
	ShouldRetry func(error) bool
	Logger      core.Logger
}

// DefaultRetryConfig provides sensible defaults
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:   5,
		InitialDelay:  5 * time.Millisecond,
		MaxDelay:      200 * time.Millisecond,
		BackoffFactor: 2.0,
		JitterEnabled: true,
	}
}

// Retry runs fn until it succeeds, returns a non-retryable error, the
// context ends, or MaxAttempts is reached. Non-retryable errors are returned
// unchanged so callers can still match them with errors.Is.
func Retry(ctx context.Context, config *RetryConfig, fn func(attempt int) error) error {
	if config == nil {
		config = DefaultRetryConfig()
	}
	shouldRetry := config.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = core.IsRetryable
	}
	logger := config.Logger
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	maxAttempts := config.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	delay := config.InitialDelay

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(attempt)
		if lastErr == nil {
			return nil
		}
		if !shouldRetry(lastErr) {
			return lastErr
		}
		if attempt == maxAttempts {
			break
		}

		if attempt > 1 {
			delay = time.Duration(float64(delay) * config.BackoffFactor)
			if delay > config.MaxDelay {
				delay = config.MaxDelay
			}
		}
		wait := delay
		if config.JitterEnabled && wait > 0 {
			// up to +25% so colliding writers spread out
			wait += time.Duration(rand.Int63n(int64(wait)/4 + 1))
		}

		logger.DebugWithContext(ctx, "Retrying after retryable error", map[string]interface{}{
			"operation": "retry",
			"attempt":   attempt,
			"delay_ms":  wait.Milliseconds(),
			"error":     lastErr,
		})

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return fmt.Errorf("max retry attempts (%d) exceeded for %v: %w", maxAttempts, lastErr, core.ErrMaxRetriesExceeded)
}
