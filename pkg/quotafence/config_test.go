package quotafence

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeQuotaFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "quotas.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestPresets(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		rate float64
		size float64
	}{
		{"default", DefaultConfig(), 100, 100},
		{"conservative", ConservativeConfig(), 10, 20},
		{"computeEngine", ComputeEngineConfig(), 15, 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.rate, tt.cfg.TokensPerSecond)
			assert.Equal(t, tt.size, tt.cfg.BucketSize)
			assert.Nil(t, tt.cfg.InitialTokens)
			assert.Zero(t, tt.cfg.MaxWaitTime)
			assert.NoError(t, tt.cfg.Validate())

			byName, err := PresetByName(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.cfg, byName)
		})
	}
}

func TestPresetByName_Unknown(t *testing.T) {
	_, err := PresetByName("aggressive")
	assert.ErrorIs(t, err, ErrUnknownPreset)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{"valid", Config{TokensPerSecond: 1, BucketSize: 1}, nil},
		{"zero size", Config{TokensPerSecond: 1}, ErrNonPositiveBucketSize},
		{"zero rate", Config{BucketSize: 1}, ErrNonPositiveRefillRate},
		{"initial too high", Config{TokensPerSecond: 1, BucketSize: 1, InitialTokens: floatPtr(2)}, ErrInitialTokensOutOfRange},
		{"negative initial", Config{TokensPerSecond: 1, BucketSize: 1, InitialTokens: floatPtr(-0.5)}, ErrInitialTokensOutOfRange},
		{"negative max wait", Config{TokensPerSecond: 1, BucketSize: 1, MaxWaitTime: -1}, ErrNegativeMaxWait},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestLoadQuotaFile(t *testing.T) {
	path := writeQuotaFile(t, `
global:
  tokens_per_second: 100
  bucket_size: 200

resources:
  compute.instances:
    preset: computeEngine
    max_wait: 5s
  storage.buckets:
    tokens_per_second: 10
    bucket_size: 20
    initial_tokens: 5
`)

	cfg, err := LoadQuotaFile(path)
	require.NoError(t, err)

	assert.Equal(t, 100.0, cfg.Global.TokensPerSecond)
	assert.Equal(t, 200.0, cfg.Global.BucketSize)

	compute := cfg.ConfigFor("compute.instances")
	assert.Equal(t, 15.0, compute.TokensPerSecond)
	assert.Equal(t, 30.0, compute.BucketSize)
	assert.Equal(t, 5*time.Second, compute.MaxWaitTime)

	storage := cfg.ConfigFor("storage.buckets")
	assert.Equal(t, 10.0, storage.TokensPerSecond)
	assert.Equal(t, 20.0, storage.BucketSize)
	require.NotNil(t, storage.InitialTokens)
	assert.Equal(t, 5.0, *storage.InitialTokens)

	// Unknown resources fall back to the global parameters.
	assert.Equal(t, cfg.Global, cfg.ConfigFor("dns.records"))
}

func TestLoadQuotaFile_PresetOverride(t *testing.T) {
	path := writeQuotaFile(t, `
resources:
  compute.instances:
    preset: conservative
    bucket_size: 40
`)

	cfg, err := LoadQuotaFile(path)
	require.NoError(t, err)

	// Global was absent from the file, so defaults apply.
	assert.Equal(t, DefaultConfig(), cfg.Global)

	compute := cfg.ConfigFor("compute.instances")
	assert.Equal(t, 10.0, compute.TokensPerSecond) // from preset
	assert.Equal(t, 40.0, compute.BucketSize)      // overridden
}

func TestLoadQuotaFile_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "unparseable",
			content: "global: [not a mapping",
		},
		{
			name: "unknown preset",
			content: `
resources:
  compute.instances:
    preset: warpSpeed
`,
		},
		{
			name: "bad max_wait",
			content: `
global:
  tokens_per_second: 10
  bucket_size: 10
  max_wait: eleven
`,
		},
		{
			name: "invalid resource quota",
			content: `
resources:
  compute.instances:
    tokens_per_second: -1
    bucket_size: 10
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeQuotaFile(t, tt.content)
			_, err := LoadQuotaFile(path)
			require.Error(t, err)
		})
	}
}

func TestLoadQuotaFile_Missing(t *testing.T) {
	_, err := LoadQuotaFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestQuotaConfig_SetResource(t *testing.T) {
	cfg := NewQuotaConfig()

	require.NoError(t, cfg.SetResource("compute.instances", ComputeEngineConfig()))
	assert.Equal(t, ComputeEngineConfig(), cfg.ConfigFor("compute.instances"))

	assert.ErrorIs(t, cfg.SetResource("", DefaultConfig()), ErrInvalidResource)
	assert.ErrorIs(t, cfg.SetResource("x", Config{}), ErrInvalidConfig)
}
