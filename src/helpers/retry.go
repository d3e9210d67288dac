package helpers

import (
	"context"
	"fmt"
	"time"

	"market-analytics/src/logger"
)

// -----------------------------------------------------------------------------
// Retry Logic
// -----------------------------------------------------------------------------

// Retrier runs an operation up to Attempts times with a fixed Delay between
// attempts. Each attempt gets its own Timeout; zero means no per-attempt limit.
type Retrier struct {
	Attempts int
	Delay    time.Duration
	Timeout  time.Duration
	Logger   *logger.Logger
}

// -----------------------------------------------------------------------------

// NewRetrier builds a Retrier, clamping attempts to at least one
func NewRetrier(attempts int, delay, timeout time.Duration, log *logger.Logger) *Retrier {
	if attempts < 1 {
		attempts = 1
	}
	if log == nil {
		log = logger.NewSilentLogger()
	}
	return &Retrier{Attempts: attempts, Delay: delay, Timeout: timeout, Logger: log}
}

// -----------------------------------------------------------------------------

// Retry executes fn under r. The delay only blocks the calling goroutine and
// is interrupted by ctx.
func Retry[T any](ctx context.Context, r *Retrier, operation string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 1; attempt <= r.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		res, err := runAttempt(ctx, r.Timeout, fn)
		if err == nil {
			return res, nil
		}
		lastErr = err

		if attempt == r.Attempts {
			break
		}

		r.Logger.Warning("%s failed (attempt %d/%d): %v. Retrying in %v", operation, attempt, r.Attempts, err, r.Delay)

		select {
		case <-time.After(r.Delay):
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}

	r.Logger.Error("%s failed after %d attempts: %v", operation, r.Attempts, lastErr)
	return zero, fmt.Errorf("%s: %w: %w", operation, ErrRetriesExhausted, lastErr)
}

// -----------------------------------------------------------------------------

func runAttempt[T any](ctx context.Context, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(attemptCtx)
}
