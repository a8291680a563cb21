package resilience

import (
	"context"
	"time"
)

// RetryPolicy defines retry behavior for transient failures in bookkeeping
// writes. Provider calls are never retried with backoff.
type RetryPolicy struct {
	MaxRetries int
	Backoff    time.Duration
	// Retryable limits retries to matching errors; nil retries every error.
	Retryable func(error) bool
}

func (r RetryPolicy) Do(ctx context.Context, fn func() error) error {
	var err error
	for i := 0; i <= r.MaxRetries; i++ {
		err = fn()
		if err == nil {
			return nil
		}
		if i == r.MaxRetries || (r.Retryable != nil && !r.Retryable(err)) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.Backoff * time.Duration(i+1)):
		}
	}
	return err
}
