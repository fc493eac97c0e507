package quotafence

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the parameters for a single token bucket. It is a plain
// value object: construct it, validate it, hand it to NewTokenBucket.
type Config struct {
	// TokensPerSecond is the steady refill rate.
	TokensPerSecond float64

	// BucketSize is the maximum number of tokens the bucket can hold
	// (the burst allowance).
	BucketSize float64

	// InitialTokens is the token count the bucket starts with.
	// nil means start full.
	InitialTokens *float64

	// MaxWaitTime bounds how long a single Acquire call may block waiting
	// for tokens. Zero means Acquire waits indefinitely (bounded only by
	// the caller's context).
	MaxWaitTime time.Duration
}

// DefaultConfig suits most provider APIs: 100 tokens/second with a burst
// of 100.
func DefaultConfig() Config {
	return Config{TokensPerSecond: 100, BucketSize: 100}
}

// ConservativeConfig suits low free-tier quotas: 10 tokens/second with a
// burst of 20.
func ConservativeConfig() Config {
	return Config{TokensPerSecond: 10, BucketSize: 20}
}

// ComputeEngineConfig matches the default Compute Engine API quota tier:
// 15 tokens/second with a burst of 30.
func ComputeEngineConfig() Config {
	return Config{TokensPerSecond: 15, BucketSize: 30}
}

// PresetByName resolves a preset reference from a quota file.
func PresetByName(name string) (Config, error) {
	switch name {
	case "default":
		return DefaultConfig(), nil
	case "conservative":
		return ConservativeConfig(), nil
	case "computeEngine":
		return ComputeEngineConfig(), nil
	}
	return Config{}, fmt.Errorf("%w: %q", ErrUnknownPreset, name)
}

// Validate checks if the configuration is valid.
func (c Config) Validate() error {
	if c.BucketSize <= 0 {
		return ErrNonPositiveBucketSize
	}
	if c.TokensPerSecond <= 0 {
		return ErrNonPositiveRefillRate
	}
	if c.InitialTokens != nil && (*c.InitialTokens < 0 || *c.InitialTokens > c.BucketSize) {
		return ErrInitialTokensOutOfRange
	}
	if c.MaxWaitTime < 0 {
		return ErrNegativeMaxWait
	}
	return nil
}

// startingTokens resolves the initial level, defaulting to a full bucket.
func (c Config) startingTokens() float64 {
	if c.InitialTokens != nil {
		return *c.InitialTokens
	}
	return c.BucketSize
}

// UnmarshalYAML decodes a Config from a quota file entry. An entry may name
// a preset and override individual fields on top of it:
//
//	compute.instances:
//	  preset: computeEngine
//	  max_wait: 5s
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Preset          string   `yaml:"preset"`
		TokensPerSecond *float64 `yaml:"tokens_per_second"`
		BucketSize      *float64 `yaml:"bucket_size"`
		InitialTokens   *float64 `yaml:"initial_tokens"`
		MaxWait         string   `yaml:"max_wait"`
	}
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("%w: failed to parse quota entry: %v", ErrInvalidConfig, err)
	}

	var cfg Config
	if raw.Preset != "" {
		preset, err := PresetByName(raw.Preset)
		if err != nil {
			return err
		}
		cfg = preset
	}
	if raw.TokensPerSecond != nil {
		cfg.TokensPerSecond = *raw.TokensPerSecond
	}
	if raw.BucketSize != nil {
		cfg.BucketSize = *raw.BucketSize
	}
	if raw.InitialTokens != nil {
		cfg.InitialTokens = raw.InitialTokens
	}
	if raw.MaxWait != "" {
		d, err := time.ParseDuration(raw.MaxWait)
		if err != nil {
			return fmt.Errorf("%w: invalid max_wait %q: %v", ErrInvalidConfig, raw.MaxWait, err)
		}
		cfg.MaxWaitTime = d
	}

	*c = cfg
	return nil
}

// QuotaConfig describes every quota a process is subject to: one global
// quota shared by all outbound calls, plus per-resource-type overrides.
type QuotaConfig struct {
	// Global is the quota shared by all resource types.
	Global Config `yaml:"global"`

	// Resources maps a resource type (e.g. "compute.instances") to its own
	// quota. Resource types without an entry fall back to Global parameters.
	Resources map[string]Config `yaml:"resources,omitempty"`
}

// NewQuotaConfig creates a QuotaConfig with sensible defaults.
func NewQuotaConfig() *QuotaConfig {
	return &QuotaConfig{
		Global:    DefaultConfig(),
		Resources: make(map[string]Config),
	}
}

// LoadQuotaFile loads a QuotaConfig from a YAML file.
func LoadQuotaFile(path string) (*QuotaConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read quota file: %v", ErrInvalidConfig, err)
	}

	var cfg QuotaConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to parse YAML: %v", ErrInvalidConfig, err)
	}

	// Apply defaults if not set
	if cfg.Global == (Config{}) {
		cfg.Global = DefaultConfig()
	}
	if cfg.Resources == nil {
		cfg.Resources = make(map[string]Config)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks if the configuration is valid.
func (qc *QuotaConfig) Validate() error {
	if err := qc.Global.Validate(); err != nil {
		return fmt.Errorf("%w: invalid global quota: %v", ErrInvalidConfig, err)
	}
	for resource, cfg := range qc.Resources {
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("%w: invalid quota for resource %s: %v", ErrInvalidConfig, resource, err)
		}
	}
	return nil
}

// ConfigFor returns the quota for a resource type, falling back to the
// global parameters when no specific entry exists.
func (qc *QuotaConfig) ConfigFor(resource string) Config {
	if cfg, ok := qc.Resources[resource]; ok {
		return cfg
	}
	return qc.Global
}

// SetResource sets the quota for a specific resource type.
func (qc *QuotaConfig) SetResource(resource string, cfg Config) error {
	if resource == "" {
		return ErrInvalidResource
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if qc.Resources == nil {
		qc.Resources = make(map[string]Config)
	}
	qc.Resources[resource] = cfg
	return nil
}
