package resilience

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter paces outbound provider calls. Implementations must be safe for
// concurrent use.
type Limiter interface {
	Wait(ctx context.Context) error
}

// TokenBucket is a Limiter backed by a token bucket.
type TokenBucket struct {
	lim *rate.Limiter
}

// NewTokenBucket allows perSecond calls on average with bursts up to burst.
// A non-positive perSecond returns nil, which callers treat as unlimited.
func NewTokenBucket(perSecond float64, burst int) *TokenBucket {
	if perSecond <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &TokenBucket{lim: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

func (t *TokenBucket) Wait(ctx context.Context) error {
	if t == nil {
		return nil
	}
	return t.lim.Wait(ctx)
}

var _ Limiter = (*TokenBucket)(nil)
