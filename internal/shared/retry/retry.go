package retry

import (
	"context"
	"math/rand"
	"time"

	"ticketly/internal/shared/apperrors"
	"ticketly/pkg/logger"
)

// Policy controls the optimistic-concurrency retry loop. Delays grow
// exponentially from BaseDelay and are multiplied by a random factor in
// [0.5, 1.0] to spread colliding writers apart.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultPolicy matches the engine configuration defaults: three attempts
// with 100 ms, 200 ms, 400 ms backoff capped at one second.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    time.Second,
	}
}

// randFactor is swappable in tests to make delays deterministic.
var randFactor = func() float64 {
	return 0.5 + rand.Float64()*0.5
}

// Delay returns the backoff before the attempt following the given one
// (1-based). The exponential step is computed before jitter so the cap
// applies to the deterministic part.
func (p Policy) Delay(attempt int) time.Duration {
	d := p.BaseDelay << uint(attempt-1)
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return time.Duration(float64(d) * randFactor())
}

// Do runs fn under the policy. Only errors marked retryable (concurrency
// conflicts, transient infrastructure failures) are retried; business and
// validation failures surface immediately. Cancellation is observed between
// attempts.
func Do(ctx context.Context, p Policy, operation string, fn func(ctx context.Context) error) error {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !apperrors.IsRetryable(lastErr) {
			return lastErr
		}
		if attempt == p.MaxAttempts {
			break
		}

		logger.GetDefault().DebugWithContext(ctx, "retrying operation", map[string]interface{}{
			"operation": operation,
			"attempt":   attempt,
			"error":     lastErr.Error(),
		})

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.Delay(attempt)):
		}
	}

	logger.GetDefault().LogRetryExhausted(ctx, operation, p.MaxAttempts, lastErr)
	return lastErr
}
