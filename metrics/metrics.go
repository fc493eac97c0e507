// Package metrics exposes Prometheus instrumentation for quotafence
// limiters. Wrap any Limiter with Instrument to record acquisition
// outcomes, wait durations, and fill ratios per resource type.
package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/yourusername/quotafence/pkg/quotafence"
)

// Acquisition outcome label values.
const (
	resultGranted       = "granted"
	resultDenied        = "denied"
	resultTimeout       = "timeout"
	resultExceedsBucket = "exceeds_bucket"
	resultCanceled      = "canceled"
)

// Metrics contains the Prometheus collectors for quota throttling.
type Metrics struct {
	acquires    *prometheus.CounterVec
	waitSeconds *prometheus.HistogramVec
	fillRatio   *prometheus.GaugeVec
}

// New creates the collectors and registers them with reg. Pass a dedicated
// registry in tests to avoid cross-test pollution.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		acquires: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quotafence_acquire_total",
				Help: "Total number of token acquisitions by outcome",
			},
			[]string{"resource", "result"},
		),
		waitSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "quotafence_acquire_wait_seconds",
				Help:    "Time spent suspended in Acquire waiting for tokens",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
			},
			[]string{"resource"},
		),
		fillRatio: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "quotafence_fill_ratio",
				Help: "Current bucket level as a fraction of capacity (0.0-1.0)",
			},
			[]string{"resource"},
		),
	}
}

// InstrumentedLimiter wraps a quotafence.Limiter and records every
// acquisition outcome against a resource label. It satisfies
// quotafence.Limiter, so it drops in anywhere a plain limiter does.
type InstrumentedLimiter struct {
	resource string
	limiter  quotafence.Limiter
	metrics  *Metrics
}

var _ quotafence.Limiter = (*InstrumentedLimiter)(nil)

// Instrument wraps limiter so its outcomes are recorded under the given
// resource label.
func Instrument(resource string, limiter quotafence.Limiter, m *Metrics) *InstrumentedLimiter {
	return &InstrumentedLimiter{
		resource: resource,
		limiter:  limiter,
		metrics:  m,
	}
}

// TryAcquire records granted or denied.
func (il *InstrumentedLimiter) TryAcquire(tokens float64) bool {
	allowed := il.limiter.TryAcquire(tokens)
	if allowed {
		il.metrics.acquires.WithLabelValues(il.resource, resultGranted).Inc()
	} else {
		il.metrics.acquires.WithLabelValues(il.resource, resultDenied).Inc()
	}
	return allowed
}

// Acquire records the outcome and how long the caller was suspended.
func (il *InstrumentedLimiter) Acquire(ctx context.Context, tokens float64) error {
	start := time.Now()
	err := il.limiter.Acquire(ctx, tokens)
	il.metrics.waitSeconds.WithLabelValues(il.resource).Observe(time.Since(start).Seconds())
	il.metrics.acquires.WithLabelValues(il.resource, acquireResult(err)).Inc()
	return err
}

func acquireResult(err error) string {
	switch {
	case err == nil:
		return resultGranted
	case errors.Is(err, quotafence.ErrWaitTimeout):
		return resultTimeout
	case errors.Is(err, quotafence.ErrExceedsBucketSize):
		return resultExceedsBucket
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return resultCanceled
	default:
		return resultDenied
	}
}

// Reset delegates to the wrapped limiter.
func (il *InstrumentedLimiter) Reset() {
	il.limiter.Reset()
}

// Drain delegates to the wrapped limiter.
func (il *InstrumentedLimiter) Drain() {
	il.limiter.Drain()
}

// AvailableTokens delegates to the wrapped limiter.
func (il *InstrumentedLimiter) AvailableTokens() float64 {
	return il.limiter.AvailableTokens()
}

// FillRatio updates the fill-ratio gauge as a side effect of observing.
func (il *InstrumentedLimiter) FillRatio() float64 {
	ratio := il.limiter.FillRatio()
	il.metrics.fillRatio.WithLabelValues(il.resource).Set(ratio)
	return ratio
}
