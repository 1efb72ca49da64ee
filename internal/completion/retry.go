package completion

import (
	"context"
	"log"
	"time"
)

const (
	maxAttempts = 3
	baseDelay   = time.Second
)

// withRetry runs call up to maxAttempts times, sleeping with exponential
// backoff (base, 2*base, ...) between attempts. Only rate-limit and timeout
// failures are retried; anything else surfaces immediately.
func withRetry(ctx context.Context, base time.Duration, call func() (*Result, error)) (*Result, error) {
	var last *Error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			delay := base << (attempt - 1)
			log.Printf("completion: retrying in %s (attempt %d/%d): %v", delay, attempt+1, maxAttempts, last)
			if err := sleepCtx(ctx, delay); err != nil {
				return nil, &Error{Kind: KindUnexpected, Err: err}
			}
		}

		res, err := call()
		if err == nil {
			return res, nil
		}
		cerr := classify(err)
		if !cerr.Retryable() {
			return nil, cerr
		}
		last = cerr
	}
	return nil, last
}

// sleepCtx sleeps for d, returning early if ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
