package quotafence

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestRegistry(t *testing.T, clock clockwork.Clock) *Registry {
	t.Helper()

	cfg := NewQuotaConfig()
	cfg.Global = Config{TokensPerSecond: 100, BucketSize: 100}
	require.NoError(t, cfg.SetResource("compute.instances", Config{TokensPerSecond: 15, BucketSize: 30}))

	registry, err := NewRegistry(cfg,
		WithRegistryClock(clock),
		WithLogger(zaptest.NewLogger(t)),
	)
	require.NoError(t, err)
	return registry
}

func TestRegistry_ForCreatesOnFirstUse(t *testing.T) {
	clock := clockwork.NewFakeClock()
	registry := newTestRegistry(t, clock)
	assert.Equal(t, 0, registry.Len())

	limiter, err := registry.For("compute.instances")
	require.NoError(t, err)
	require.NotNil(t, limiter)
	assert.Equal(t, 1, registry.Len())

	// Same instance on further calls.
	again, err := registry.For("compute.instances")
	require.NoError(t, err)
	assert.Same(t, limiter, again)
	assert.Equal(t, 1, registry.Len())
}

func TestRegistry_EmptyResource(t *testing.T) {
	registry := newTestRegistry(t, clockwork.NewFakeClock())
	_, err := registry.For("")
	assert.ErrorIs(t, err, ErrInvalidResource)
}

func TestRegistry_PerResourceQuotaApplies(t *testing.T) {
	clock := clockwork.NewFakeClock()
	registry := newTestRegistry(t, clock)

	limiter, err := registry.For("compute.instances")
	require.NoError(t, err)

	// The per-resource stage caps at 30 even though the global allows 100.
	assert.Equal(t, 30.0, limiter.AvailableTokens())
	assert.True(t, limiter.TryAcquire(30))
	assert.False(t, limiter.TryAcquire(1))
}

func TestRegistry_GlobalBucketShared(t *testing.T) {
	clock := clockwork.NewFakeClock()
	registry := newTestRegistry(t, clock)

	dns, err := registry.For("dns.records")
	require.NoError(t, err)
	storage, err := registry.For("storage.buckets")
	require.NoError(t, err)

	// Both resources draw from the same global bucket.
	require.True(t, dns.TryAcquire(60))
	assert.Equal(t, 40.0, registry.Global().AvailableTokens())
	assert.False(t, storage.TryAcquire(60))
	assert.True(t, storage.TryAcquire(40))
}

func TestRegistry_FallbackToGlobalParameters(t *testing.T) {
	clock := clockwork.NewFakeClock()
	registry := newTestRegistry(t, clock)

	limiter, err := registry.For("dns.records")
	require.NoError(t, err)

	// No entry for dns.records, so its own stage mirrors the global config.
	assert.Equal(t, 100.0, limiter.AvailableTokens())
}

func TestRegistry_ResetAll(t *testing.T) {
	clock := clockwork.NewFakeClock()
	registry := newTestRegistry(t, clock)

	limiter, err := registry.For("compute.instances")
	require.NoError(t, err)
	require.True(t, limiter.TryAcquire(20))

	registry.ResetAll()
	assert.Equal(t, 30.0, limiter.AvailableTokens())
	assert.Equal(t, 100.0, registry.Global().AvailableTokens())
}

func TestRegistry_FillRatios(t *testing.T) {
	clock := clockwork.NewFakeClock()
	registry := newTestRegistry(t, clock)

	limiter, err := registry.For("compute.instances")
	require.NoError(t, err)
	require.True(t, limiter.TryAcquire(15))

	ratios := registry.FillRatios()
	require.Len(t, ratios, 1)
	assert.InDelta(t, 0.5, ratios["compute.instances"], 1e-9)
}

func TestRegistry_Cleanup(t *testing.T) {
	clock := clockwork.NewFakeClock()

	cfg := NewQuotaConfig()
	registry, err := NewRegistry(cfg,
		WithRegistryClock(clock),
		WithCleanupAge(time.Hour),
	)
	require.NoError(t, err)

	_, err = registry.For("compute.instances")
	require.NoError(t, err)
	clock.Advance(30 * time.Minute)
	_, err = registry.For("dns.records")
	require.NoError(t, err)

	// Only the entry idle for more than an hour goes away.
	clock.Advance(45 * time.Minute)
	assert.Equal(t, 1, registry.Cleanup())
	assert.Equal(t, 1, registry.Len())

	clock.Advance(time.Hour)
	assert.Equal(t, 1, registry.Cleanup())
	assert.Equal(t, 0, registry.Len())
}

func TestRegistry_CleanupDisabled(t *testing.T) {
	clock := clockwork.NewFakeClock()
	registry, err := NewRegistry(nil, WithRegistryClock(clock), WithCleanupAge(0))
	require.NoError(t, err)

	_, err = registry.For("compute.instances")
	require.NoError(t, err)
	clock.Advance(24 * time.Hour)

	assert.Equal(t, 0, registry.Cleanup())
	assert.Equal(t, 1, registry.Len())
}

func TestRegistry_StartBackgroundCleanup(t *testing.T) {
	clock := clockwork.NewFakeClock()
	registry, err := NewRegistry(nil,
		WithRegistryClock(clock),
		WithCleanupAge(time.Minute),
	)
	require.NoError(t, err)

	_, err = registry.For("compute.instances")
	require.NoError(t, err)

	stop := registry.StartBackgroundCleanup(time.Minute)
	defer stop()

	// Keep advancing fake time until the cleanup goroutine has consumed a
	// tick and emptied the registry.
	assert.Eventually(t, func() bool {
		clock.Advance(2 * time.Minute)
		return registry.Len() == 0
	}, 5*time.Second, 10*time.Millisecond)
}

func TestRegistry_InvalidConfig(t *testing.T) {
	cfg := NewQuotaConfig()
	cfg.Global = Config{TokensPerSecond: -1, BucketSize: 10}

	_, err := NewRegistry(cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestRegistry_NilOptions(t *testing.T) {
	_, err := NewRegistry(nil, WithLogger(nil))
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewRegistry(nil, WithRegistryClock(nil))
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewRegistry(nil, WithCleanupAge(-time.Second))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
