package quotafence

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrNonPositiveBucketSize is returned when the bucket size is zero or negative
	ErrNonPositiveBucketSize = errors.New("bucket size must be positive")

	// ErrNonPositiveRefillRate is returned when the refill rate is zero or negative
	ErrNonPositiveRefillRate = errors.New("tokens per second must be positive")

	// ErrInitialTokensOutOfRange is returned when the initial token count does
	// not fit inside the bucket
	ErrInitialTokensOutOfRange = errors.New("initial tokens must be between zero and the bucket size")

	// ErrNegativeMaxWait is returned when the configured wait budget is negative
	ErrNegativeMaxWait = errors.New("max wait time cannot be negative")

	// ErrUnknownPreset is returned when a quota file references a preset that
	// does not exist
	ErrUnknownPreset = errors.New("unknown quota preset")

	// ErrInvalidResource is returned when the resource type is empty
	ErrInvalidResource = errors.New("resource type cannot be empty")
)

// Classification sentinels for the two acquisition failure kinds. Callers
// match them with errors.Is when they do not need the structured detail:
//
//	if errors.Is(err, quotafence.ErrWaitTimeout) {
//	    // transient, retry later
//	}
var (
	// ErrExceedsBucketSize marks permanent failures: the request can never be
	// satisfied by this bucket, no matter how long the caller waits.
	ErrExceedsBucketSize = errors.New("requested tokens exceed bucket size")

	// ErrWaitTimeout marks transient failures: the wait budget elapsed before
	// enough tokens accumulated.
	ErrWaitTimeout = errors.New("timed out waiting for tokens")
)

// ExceedsBucketSizeError is returned by Acquire when the requested token
// count is larger than the bucket capacity. It is permanent: retrying the
// same request against the same bucket will always fail.
type ExceedsBucketSizeError struct {
	Requested  float64
	BucketSize float64
}

func (e *ExceedsBucketSizeError) Error() string {
	return fmt.Sprintf("requested %g tokens but the bucket holds at most %g; request fewer tokens per call or configure a larger bucket",
		e.Requested, e.BucketSize)
}

// Is matches ErrExceedsBucketSize so callers can classify without the type.
func (e *ExceedsBucketSizeError) Is(target error) bool {
	return target == ErrExceedsBucketSize
}

// WaitTimeoutError is returned by Acquire when the wait budget elapsed
// before enough tokens accumulated. It is transient: the same request may
// succeed later once the bucket has refilled.
type WaitTimeoutError struct {
	Waited    time.Duration
	Requested float64
}

func (e *WaitTimeoutError) Error() string {
	return fmt.Sprintf("timed out after %.2fs waiting for %g tokens; retry once the bucket has refilled",
		e.Waited.Seconds(), e.Requested)
}

// Is matches ErrWaitTimeout so callers can classify without the type.
func (e *WaitTimeoutError) Is(target error) bool {
	return target == ErrWaitTimeout
}
