package quotafence

import (
	"fmt"

	"github.com/jonboulle/clockwork"
)

// Option is a functional option for configuring a TokenBucket.
type Option func(*TokenBucket) error

// WithClock replaces the bucket's wall clock. Intended for deterministic
// tests with clockwork.NewFakeClock; production code should leave the
// default real clock in place.
func WithClock(clock clockwork.Clock) Option {
	return func(b *TokenBucket) error {
		if clock == nil {
			return fmt.Errorf("%w: clock cannot be nil", ErrInvalidConfig)
		}
		b.clock = clock
		return nil
	}
}
