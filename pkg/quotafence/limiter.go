package quotafence

import "context"

// Limiter is the throttling surface shared by TokenBucket and
// CompositeLimiter. All implementations are safe for concurrent use.
type Limiter interface {
	// TryAcquire attempts to consume tokens without blocking.
	// Returns true if the tokens were available and consumed, false
	// otherwise. On false, no state changes beyond the refill.
	TryAcquire(tokens float64) bool

	// Acquire consumes tokens, blocking until enough are available.
	// It fails with *ExceedsBucketSizeError when the request can never be
	// satisfied, with *WaitTimeoutError when the configured wait budget
	// elapses first, or with ctx.Err() when the caller's context ends.
	// Tokens are only consumed on success, never speculatively.
	Acquire(ctx context.Context, tokens float64) error

	// Reset refills to full capacity. Never blocks.
	Reset()

	// Drain empties the bucket. Never blocks.
	Drain()

	// AvailableTokens refreshes and returns the current token level, so
	// observers never see stale, under-credited state.
	AvailableTokens() float64

	// FillRatio returns AvailableTokens as a fraction of capacity, in [0, 1].
	FillRatio() float64
}
