package reconcile

import (
	"context"
	"log/slog"
	"math/rand"
	"time"
)

// RetryPolicy bounds transient-failure retries with exponential backoff.
// Attempts are always finite: a date the exchange never publishes must
// eventually be given up on within a pass, not spun on forever.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// DefaultRetryPolicy matches the driver's config defaults
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: 2 * time.Second,
		MaxDelay:     30 * time.Second,
	}
}

// Do runs fn until it succeeds, attempts are exhausted, or the context
// ends. The last error is returned on exhaustion.
func (p RetryPolicy) Do(ctx context.Context, logger *slog.Logger, op string, fn func() error) error {
	var lastErr error
	delay := p.InitialDelay

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if attempt == p.MaxAttempts {
			break
		}

		wait := jitter(delay)
		logger.WarnContext(ctx, "operation failed, retrying",
			slog.String("operation", op),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", p.MaxAttempts),
			slog.Duration("backoff", wait),
			slog.String("error", lastErr.Error()))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}

		delay *= 2
		if delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
	return lastErr
}

// jitter spreads concurrent retries over +/-25% of the base delay
func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	spread := int64(d) / 2
	return time.Duration(int64(d)*3/4 + rand.Int63n(spread+1))
}
