// Package transport throttles outbound HTTP requests against a quotafence
// limiter. Wrap a client's transport with a Throttle and every request
// acquires its quota cost before leaving the process, so a burst of
// concurrent callers never exceeds the remote API's published limits.
package transport

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/yourusername/quotafence/pkg/quotafence"
)

// CostFunc returns how many tokens a request costs. Mutating APIs often
// cost more quota than reads, so the cost may depend on the request.
type CostFunc func(*http.Request) float64

// Throttle is an http.RoundTripper that acquires tokens from a limiter
// before delegating to the base transport. Waiting is bounded by the
// limiter's wait budget and the request's own context.
type Throttle struct {
	base    http.RoundTripper
	limiter quotafence.Limiter
	cost    CostFunc
	logger  *zap.Logger
}

var _ http.RoundTripper = (*Throttle)(nil)

// Option is a functional option for configuring a Throttle.
type Option func(*Throttle)

// WithBase sets the underlying transport. Defaults to
// http.DefaultTransport.
func WithBase(rt http.RoundTripper) Option {
	return func(t *Throttle) {
		t.base = rt
	}
}

// WithCost sets the per-request cost function. Defaults to a flat cost of
// one token per request.
func WithCost(fn CostFunc) Option {
	return func(t *Throttle) {
		t.cost = fn
	}
}

// WithLogger sets the logger for throttling events. Defaults to a no-op
// logger.
func WithLogger(logger *zap.Logger) Option {
	return func(t *Throttle) {
		t.logger = logger
	}
}

// NewThrottle creates a throttling RoundTripper backed by limiter.
func NewThrottle(limiter quotafence.Limiter, opts ...Option) *Throttle {
	t := &Throttle{
		base:    http.DefaultTransport,
		limiter: limiter,
		cost:    func(*http.Request) float64 { return 1 },
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// RoundTrip acquires the request's quota cost, then forwards the request.
// When acquisition fails the request is never sent and the limiter error
// is returned, wrapped so callers can still classify it with errors.Is.
func (t *Throttle) RoundTrip(req *http.Request) (*http.Response, error) {
	cost := t.cost(req)
	if err := t.limiter.Acquire(req.Context(), cost); err != nil {
		t.logger.Warn("outbound request throttled",
			zap.String("method", req.Method),
			zap.String("url", req.URL.String()),
			zap.Float64("cost", cost),
			zap.Error(err),
		)
		return nil, fmt.Errorf("quota acquisition failed: %w", err)
	}
	return t.base.RoundTrip(req)
}

// NewClient returns an http.Client whose requests are throttled by limiter.
func NewClient(limiter quotafence.Limiter, opts ...Option) *http.Client {
	return &http.Client{Transport: NewThrottle(limiter, opts...)}
}
