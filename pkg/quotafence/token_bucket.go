package quotafence

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// TokenBucket enforces a single quota dimension. Tokens accumulate at a
// fixed rate up to the bucket size and are consumed by operations; refill
// is lazy, computed from elapsed clock time at the start of every
// state-touching call, so no background timer is needed.
//
// The refill-check-consume sequence runs as one critical section, so
// concurrent callers never jointly consume more tokens than exist.
type TokenBucket struct {
	capacity   float64       // Maximum tokens (burst size)
	refillRate float64       // Tokens added per second
	maxWait    time.Duration // Wait budget per Acquire call, 0 = unbounded
	clock      clockwork.Clock

	mu         sync.Mutex // Protects tokens and lastRefill
	tokens     float64    // Current available tokens, always in [0, capacity]
	lastRefill time.Time  // Last time tokens were credited
}

var _ Limiter = (*TokenBucket)(nil)

// NewTokenBucket creates a token bucket from a validated Config.
//
// Example: NewTokenBucket(Config{TokensPerSecond: 10, BucketSize: 100})
// creates a bucket that allows bursts of up to 100 calls and sustains
// 10 calls/second, starting full.
func NewTokenBucket(cfg Config, opts ...Option) (*TokenBucket, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	b := &TokenBucket{
		capacity:   cfg.BucketSize,
		refillRate: cfg.TokensPerSecond,
		maxWait:    cfg.MaxWaitTime,
		clock:      clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	b.tokens = cfg.startingTokens()
	b.lastRefill = b.clock.Now()
	return b, nil
}

// refill credits tokens for the time elapsed since the last update.
// MUST be called with b.mu held.
func (b *TokenBucket) refill(now time.Time) {
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens = math.Min(b.capacity, b.tokens+elapsed*b.refillRate)
	b.lastRefill = now
}

// TryAcquire attempts to consume tokens without blocking. Returns true if
// the tokens were available and consumed, false otherwise.
func (b *TokenBucket) TryAcquire(tokens float64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill(b.clock.Now())

	if b.tokens >= tokens {
		b.tokens -= tokens
		return true
	}
	return false
}

// Acquire consumes tokens, suspending the caller until enough have
// accumulated. A request larger than the bucket size fails immediately
// with *ExceedsBucketSizeError since no amount of waiting can satisfy it.
// When a wait budget is configured and elapses first, Acquire fails with
// *WaitTimeoutError carrying the total time waited.
//
// Waiting is a sleep-and-retry loop, not a FIFO queue: when several
// callers wait on the same bucket there is no fairness guarantee, and a
// later caller may be served first if it retries at a moment of supply.
func (b *TokenBucket) Acquire(ctx context.Context, tokens float64) error {
	if tokens > b.capacity {
		return &ExceedsBucketSizeError{Requested: tokens, BucketSize: b.capacity}
	}

	var waited time.Duration
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		b.mu.Lock()
		b.refill(b.clock.Now())
		if b.tokens >= tokens {
			b.tokens -= tokens
			b.mu.Unlock()
			return nil
		}
		shortfall := tokens - b.tokens
		b.mu.Unlock()

		wait := time.Duration(shortfall / b.refillRate * float64(time.Second))
		if wait < time.Millisecond {
			// Floor tiny sleeps so float truncation cannot degrade the
			// loop into a busy spin.
			wait = time.Millisecond
		}
		if b.maxWait > 0 {
			remaining := b.maxWait - waited
			if remaining <= 0 {
				return &WaitTimeoutError{Waited: waited, Requested: tokens}
			}
			if wait > remaining {
				wait = remaining
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-b.clock.After(wait):
			waited += wait
		}
	}
}

// Reset refills the bucket to full capacity.
func (b *TokenBucket) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.tokens = b.capacity
	b.lastRefill = b.clock.Now()
}

// Drain removes every token from the bucket.
func (b *TokenBucket) Drain() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.tokens = 0
	b.lastRefill = b.clock.Now()
}

// AvailableTokens refreshes and returns the current token level. The value
// is a snapshot and may change immediately under concurrent access.
func (b *TokenBucket) AvailableTokens() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill(b.clock.Now())
	return b.tokens
}

// FillRatio returns the current level as a fraction of capacity, in [0, 1].
func (b *TokenBucket) FillRatio() float64 {
	return b.AvailableTokens() / b.capacity
}

// Capacity returns the maximum capacity of the bucket.
func (b *TokenBucket) Capacity() float64 {
	return b.capacity
}

// RefillRate returns the refill rate (tokens per second).
func (b *TokenBucket) RefillRate() float64 {
	return b.refillRate
}

// MaxWaitTime returns the per-call wait budget, zero when unbounded.
func (b *TokenBucket) MaxWaitTime() time.Duration {
	return b.maxWait
}
