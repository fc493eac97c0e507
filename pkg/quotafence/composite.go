package quotafence

import "context"

// CompositeLimiter enforces several independent quotas at once by applying
// every operation to an ordered list of sub-limiters. It holds no state of
// its own beyond the list; each sub-limiter keeps its own tokens and its
// own lock.
//
// Known limitation: acquisition is sequential with no rollback. When a
// later sub-limiter denies or fails, tokens already consumed from earlier
// sub-limiters stay consumed. Callers that need all-or-nothing semantics
// across quota dimensions must layer reserve/commit on top.
type CompositeLimiter struct {
	limiters []Limiter
}

var _ Limiter = (*CompositeLimiter)(nil)

// NewCompositeLimiter builds a composite over the given sub-limiters,
// checked in argument order. A composite with no sub-limiters never
// throttles.
func NewCompositeLimiter(limiters ...Limiter) *CompositeLimiter {
	return &CompositeLimiter{
		limiters: append([]Limiter(nil), limiters...),
	}
}

// TryAcquire consumes tokens from every sub-limiter in order, returning
// false on the first denial. Earlier sub-limiters keep their consumed
// tokens (see the non-rollback note on the type).
func (c *CompositeLimiter) TryAcquire(tokens float64) bool {
	for _, l := range c.limiters {
		if !l.TryAcquire(tokens) {
			return false
		}
	}
	return true
}

// Acquire consumes tokens from every sub-limiter in order, returning the
// first sub-limiter's error. Earlier sub-limiters keep their consumed
// tokens (see the non-rollback note on the type).
func (c *CompositeLimiter) Acquire(ctx context.Context, tokens float64) error {
	for _, l := range c.limiters {
		if err := l.Acquire(ctx, tokens); err != nil {
			return err
		}
	}
	return nil
}

// Reset refills every sub-limiter to full capacity.
func (c *CompositeLimiter) Reset() {
	for _, l := range c.limiters {
		l.Reset()
	}
}

// Drain empties every sub-limiter.
func (c *CompositeLimiter) Drain() {
	for _, l := range c.limiters {
		l.Drain()
	}
}

// AvailableTokens returns the smallest level across sub-limiters: the most
// constrained dimension bounds what the composite can grant right now.
// Zero for an empty composite.
func (c *CompositeLimiter) AvailableTokens() float64 {
	if len(c.limiters) == 0 {
		return 0
	}
	min := c.limiters[0].AvailableTokens()
	for _, l := range c.limiters[1:] {
		if v := l.AvailableTokens(); v < min {
			min = v
		}
	}
	return min
}

// FillRatio returns the smallest fill ratio across sub-limiters.
// 1 for an empty composite, which never throttles.
func (c *CompositeLimiter) FillRatio() float64 {
	if len(c.limiters) == 0 {
		return 1
	}
	min := c.limiters[0].FillRatio()
	for _, l := range c.limiters[1:] {
		if v := l.FillRatio(); v < min {
			min = v
		}
	}
	return min
}

// Len returns the number of sub-limiters.
func (c *CompositeLimiter) Len() int {
	return len(c.limiters)
}
