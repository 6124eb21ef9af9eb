package adapter

import (
	"context"
	"fmt"
	"time"
)

// BaseBackoff is the delay before the first retry; it doubles per retry.
const BaseBackoff = 500 * time.Millisecond

// Attempt performs one publish attempt.
type Attempt func(ctx context.Context) error

// Retry runs attempt once plus up to retries more times with exponential
// backoff. It stops early when permanent reports the error as non-retriable.
// name prefixes returned errors.
func Retry(ctx context.Context, name string, retries int, attempt Attempt, permanent func(error) bool) error {
	attempts := 1 + retries

	var lastErr error
	for i := range attempts {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: context canceled: %w", name, err)
		}
		if i > 0 {
			timer := time.NewTimer(BaseBackoff << (i - 1))
			select {
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("%s: context canceled during backoff: %w", name, ctx.Err())
			case <-timer.C:
			}
		}

		lastErr = attempt(ctx)
		if lastErr == nil {
			return nil
		}
		if permanent != nil && permanent(lastErr) {
			return fmt.Errorf("%s: non-retriable error: %w", name, lastErr)
		}
	}
	return fmt.Errorf("%s: failed after %d attempts: %w", name, attempts, lastErr)
}
