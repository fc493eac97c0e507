// Package quotafence throttles outbound calls against quota-limited cloud
// provider APIs using the token bucket algorithm.
//
// # Quick Start
//
// Create a bucket and request permits before each remote call:
//
//	bucket, err := quotafence.NewTokenBucket(quotafence.ComputeEngineConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if bucket.TryAcquire(1) {
//	    // issue the call
//	}
//
// Callers that prefer to wait for quota instead of being denied use Acquire,
// which suspends until enough tokens have refilled, bounded by the
// configured wait budget and the caller's context:
//
//	if err := bucket.Acquire(ctx, 3); err != nil {
//	    if errors.Is(err, quotafence.ErrWaitTimeout) {
//	        // transient: retry later
//	    }
//	    if errors.Is(err, quotafence.ErrExceedsBucketSize) {
//	        // permanent: shrink the request or grow the bucket
//	    }
//	}
//
// # Multiple Quotas
//
// Providers usually impose several independent quotas at once, for example a
// global per-second limit plus a per-resource-type limit. CompositeLimiter
// enforces an ordered list of limiters together:
//
//	perCall, _ := quotafence.NewTokenBucket(quotafence.DefaultConfig())
//	perType, _ := quotafence.NewTokenBucket(quotafence.ComputeEngineConfig())
//	limiter := quotafence.NewCompositeLimiter(perType, perCall)
//
// Acquisition across sub-limiters is sequential without rollback: tokens
// taken from earlier limiters are not returned when a later one denies.
//
// # Per-Resource Limiters
//
// Registry builds composite limiters per resource type from a YAML quota
// file, sharing one global bucket across all types:
//
//	cfg, err := quotafence.LoadQuotaFile("quotas.yaml")
//	registry, err := quotafence.NewRegistry(cfg)
//	limiter, err := registry.For("compute.instances")
//
// Example quota file:
//
//	global:
//	  tokens_per_second: 100
//	  bucket_size: 100
//
//	resources:
//	  compute.instances:
//	    preset: computeEngine
//	    max_wait: 5s
//	  storage.buckets:
//	    tokens_per_second: 10
//	    bucket_size: 20
//
// # Concurrency
//
// All operations are safe for concurrent use. Each bucket serializes its
// refill-check-consume sequence behind a mutex; only Acquire ever suspends
// the caller, and waiting is a retry loop with no fairness guarantee.
package quotafence
