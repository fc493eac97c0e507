package quotafence

import (
	qf "github.com/yourusername/quotafence/pkg/quotafence"
)

// Re-export main types for convenience
type (
	Config           = qf.Config
	QuotaConfig      = qf.QuotaConfig
	Limiter          = qf.Limiter
	TokenBucket      = qf.TokenBucket
	CompositeLimiter = qf.CompositeLimiter
	Registry         = qf.Registry
)

var (
	NewTokenBucket      = qf.NewTokenBucket
	NewCompositeLimiter = qf.NewCompositeLimiter
	NewRegistry         = qf.NewRegistry
	LoadQuotaFile       = qf.LoadQuotaFile
)
