package remote

import (
	"context"
	"time"
)

// backoff maps a zero-based attempt number to the wait before the next try.
type backoff func(attempt int) time.Duration

// defaultBackoff doubles from half a second: 500ms, 1s, 2s, 4s, capped at
// 8s. The remote API rate-limits aggressively under load, so short waits
// only convert one 429 into another.
func defaultBackoff(attempt int) time.Duration {
	d := 500 * time.Millisecond << attempt
	if d > 8*time.Second {
		d = 8 * time.Second
	}
	return d
}

// withRetry runs call up to the retry ceiling, backing off between
// attempts. Only transient failures are retried; a rejection or a context
// cancellation returns immediately.
func (c *Client) withRetry(ctx context.Context, op string, call func() error) error {
	var lastErr error
	for attempt := 0; attempt < c.retryCeiling; attempt++ {
		if attempt > 0 {
			c.logger.Warn("retrying remote call",
				"op", op, "attempt", attempt+1, "error", lastErr)
			select {
			case <-time.After(c.backoff(attempt - 1)):
			case <-ctx.Done():
				return transportError(op, ctx.Err())
			}
		}

		lastErr = call()
		if lastErr == nil {
			return nil
		}
		if !Retryable(lastErr) {
			return lastErr
		}
		if ctx.Err() != nil {
			return lastErr
		}
	}
	return lastErr
}
