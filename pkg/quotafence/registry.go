package quotafence

import (
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// Registry hands out one limiter per cloud resource type, created lazily on
// first use. Every limiter it returns is a CompositeLimiter that checks the
// resource's own quota first and a single global bucket shared by all
// resource types second, so both dimensions are enforced on every call.
//
// Entries idle longer than the cleanup age can be removed to keep the map
// bounded when resource types come and go.
type Registry struct {
	cfg        *QuotaConfig
	global     *TokenBucket
	clock      clockwork.Clock
	logger     *zap.Logger
	cleanupAge time.Duration // Entries idle longer than this are removed, 0 = keep forever

	mu      sync.RWMutex
	entries map[string]*registryEntry
}

// registryEntry wraps a per-resource limiter with metadata for cleanup.
type registryEntry struct {
	limiter *CompositeLimiter
	bucket  *TokenBucket // the per-resource stage, kept for observability

	mu           sync.Mutex // Protects lastAccessed
	lastAccessed time.Time
}

// RegistryOption is a functional option for configuring a Registry.
type RegistryOption func(*Registry) error

// WithLogger sets the logger used for limiter lifecycle events.
// Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) RegistryOption {
	return func(r *Registry) error {
		if logger == nil {
			return fmt.Errorf("%w: logger cannot be nil", ErrInvalidConfig)
		}
		r.logger = logger
		return nil
	}
}

// WithRegistryClock replaces the clock used by the registry and every
// bucket it creates. Intended for tests.
func WithRegistryClock(clock clockwork.Clock) RegistryOption {
	return func(r *Registry) error {
		if clock == nil {
			return fmt.Errorf("%w: clock cannot be nil", ErrInvalidConfig)
		}
		r.clock = clock
		return nil
	}
}

// WithCleanupAge sets how long idle entries are kept before Cleanup removes
// them. Zero disables cleanup. Default: 1 hour.
func WithCleanupAge(age time.Duration) RegistryOption {
	return func(r *Registry) error {
		if age < 0 {
			return fmt.Errorf("%w: cleanup age cannot be negative", ErrInvalidConfig)
		}
		r.cleanupAge = age
		return nil
	}
}

// NewRegistry creates a Registry from a quota configuration. A nil cfg uses
// NewQuotaConfig defaults.
func NewRegistry(cfg *QuotaConfig, opts ...RegistryOption) (*Registry, error) {
	if cfg == nil {
		cfg = NewQuotaConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r := &Registry{
		cfg:        cfg,
		clock:      clockwork.NewRealClock(),
		logger:     zap.NewNop(),
		cleanupAge: time.Hour,
		entries:    make(map[string]*registryEntry),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	global, err := NewTokenBucket(cfg.Global, WithClock(r.clock))
	if err != nil {
		return nil, fmt.Errorf("failed to create global bucket: %w", err)
	}
	r.global = global

	return r, nil
}

// For returns the limiter for a resource type, creating it on first use.
func (r *Registry) For(resource string) (Limiter, error) {
	if resource == "" {
		return nil, ErrInvalidResource
	}

	// Fast path: the entry already exists.
	r.mu.RLock()
	entry, exists := r.entries[resource]
	r.mu.RUnlock()

	if exists {
		entry.touch(r.clock.Now())
		return entry.limiter, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check: another goroutine might have created it.
	if entry, exists = r.entries[resource]; exists {
		entry.touch(r.clock.Now())
		return entry.limiter, nil
	}

	cfg := r.cfg.ConfigFor(resource)
	bucket, err := NewTokenBucket(cfg, WithClock(r.clock))
	if err != nil {
		return nil, fmt.Errorf("failed to create bucket for resource %s: %w", resource, err)
	}

	entry = &registryEntry{
		limiter:      NewCompositeLimiter(bucket, r.global),
		bucket:       bucket,
		lastAccessed: r.clock.Now(),
	}
	r.entries[resource] = entry

	r.logger.Debug("created resource limiter",
		zap.String("resource", resource),
		zap.Float64("tokens_per_second", bucket.RefillRate()),
		zap.Float64("bucket_size", bucket.Capacity()),
	)

	return entry.limiter, nil
}

func (e *registryEntry) touch(now time.Time) {
	e.mu.Lock()
	e.lastAccessed = now
	e.mu.Unlock()
}

// Global returns the bucket shared by every resource type.
func (r *Registry) Global() *TokenBucket {
	return r.global
}

// ResetAll refills the global bucket and every per-resource bucket to full.
func (r *Registry) ResetAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()

	r.global.Reset()
	for _, entry := range r.entries {
		entry.bucket.Reset()
	}
}

// Len returns the number of per-resource limiters currently tracked.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// FillRatios returns the fill ratio of every per-resource bucket, keyed by
// resource type. The shared global bucket is reported via Global().
func (r *Registry) FillRatios() map[string]float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ratios := make(map[string]float64, len(r.entries))
	for resource, entry := range r.entries {
		ratios[resource] = entry.bucket.FillRatio()
	}
	return ratios
}

// Cleanup removes entries that have not been used recently and returns how
// many were removed. Removing an entry does not return its consumed tokens
// to the global bucket.
func (r *Registry) Cleanup() int {
	if r.cleanupAge == 0 {
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.clock.Now().Add(-r.cleanupAge)
	removed := 0
	for resource, entry := range r.entries {
		entry.mu.Lock()
		lastAccessed := entry.lastAccessed
		entry.mu.Unlock()

		if lastAccessed.Before(cutoff) {
			delete(r.entries, resource)
			removed++
		}
	}

	if removed > 0 {
		r.logger.Debug("cleaned up idle resource limiters", zap.Int("removed", removed))
	}
	return removed
}

// StartBackgroundCleanup runs Cleanup on the given interval until the
// returned stop function is called.
func (r *Registry) StartBackgroundCleanup(interval time.Duration) func() {
	if r.cleanupAge == 0 || interval <= 0 {
		return func() {}
	}

	ticker := r.clock.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.Chan():
				r.Cleanup()
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()

	return func() {
		close(done)
	}
}
