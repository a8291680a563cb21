package resilience

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned while a breaker is refusing calls.
var ErrCircuitOpen = errors.New("circuit open")

// RateLimitError represents a provider rate limit response.
type RateLimitError struct {
	Provider string
	Message  string
}

func (e RateLimitError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "rate limit"
}

// IsRateLimit returns true when the error is a RateLimitError.
func IsRateLimit(err error) bool {
	var rl RateLimitError
	return errors.As(err, &rl)
}

// BreakerState is the externally visible breaker position.
type BreakerState string

const (
	BreakerClosed   BreakerState = "closed"
	BreakerOpen     BreakerState = "open"
	BreakerHalfOpen BreakerState = "half_open"
)

type BreakerOption func(*CircuitBreaker)

// WithTrip replaces the classifier that decides which errors count toward
// the threshold. The default counts rate limits only.
func WithTrip(fn func(error) bool) BreakerOption {
	return func(c *CircuitBreaker) {
		if fn != nil {
			c.trips = fn
		}
	}
}

// CircuitBreaker refuses calls for a cooldown after threshold consecutive
// tripping failures. Once the cooldown passes a single trial call is let
// through: success closes the breaker, a tripping failure reopens it.
type CircuitBreaker struct {
	mu        sync.Mutex
	failures  int
	threshold int
	openUntil time.Time
	trialing  bool
	cooldown  time.Duration
	trips     func(error) bool
	now       func() time.Time
}

func NewCircuitBreaker(threshold int, cooldown time.Duration, opts ...BreakerOption) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 3
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	c := &CircuitBreaker{threshold: threshold, cooldown: cooldown, trips: IsRateLimit, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *CircuitBreaker) Allow() bool {
	if c == nil {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.openUntil.IsZero() {
		return true
	}
	if c.trialing || c.now().Before(c.openUntil) {
		return false
	}
	c.trialing = true
	return true
}

func (c *CircuitBreaker) OnSuccess() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.failures = 0
	c.openUntil = time.Time{}
	c.trialing = false
	c.mu.Unlock()
}

func (c *CircuitBreaker) OnError(err error) {
	if c == nil || err == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	trial := c.trialing
	c.trialing = false
	if !c.trips(err) {
		return
	}
	c.failures++
	if trial || c.failures >= c.threshold {
		c.openUntil = c.now().Add(c.cooldown)
	}
}

func (c *CircuitBreaker) State() BreakerState {
	if c == nil {
		return BreakerClosed
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.openUntil.IsZero():
		return BreakerClosed
	case c.trialing || !c.now().Before(c.openUntil):
		return BreakerHalfOpen
	}
	return BreakerOpen
}
