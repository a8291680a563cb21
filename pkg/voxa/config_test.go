package voxa

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harunnryd/voxa/pkg/errorsx"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "voxa.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "mock", cfg.Providers.Default)
	assert.Equal(t, 120, cfg.Segmentation.MaxWords)
	assert.Equal(t, "memory", cfg.Cache.Driver)
	assert.Contains(t, cfg.Cost.Pricing, "elevenlabs")
}

func TestValidateCacheWithinAudioRetention(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AudioStore.RetentionDays = 7
	cfg.Cache.TTLHours = 7 * 24
	require.NoError(t, cfg.Validate())

	cfg.Cache.TTLHours++
	require.Error(t, cfg.Validate())

	cfg.Cache.Driver = "none"
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigFromFile(t *testing.T) {
	t.Setenv("ELEVEN_KEY", "xi-secret")
	path := writeConfig(t, `
log_level: debug
segmentation:
  max_words: 60
  enable_ssml: false
dispatch:
  concurrency: 2
providers:
  default: ElevenLabs
  default_voice: rachel
  vendors:
    elevenlabs:
      settings:
        api_key: ${ELEVEN_KEY}
        voice_id: rachel
    backup:
      provider: openai
      settings:
        api_key: sk-test
cost:
  pricing:
    backup:
      price_per_character: 0.00002
      model: tts-1-hd
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 60, cfg.Segmentation.MaxWords)
	assert.False(t, cfg.Segmentation.EnableSSML)
	assert.Equal(t, 5, cfg.Segmentation.MaxSegments, "unset keys keep defaults")
	assert.Equal(t, 2, cfg.Dispatch.Concurrency)
	assert.Equal(t, "elevenlabs", cfg.Providers.Default)

	eleven := cfg.VendorFor("elevenlabs")
	assert.Equal(t, "elevenlabs", eleven.Provider)
	assert.Equal(t, "xi-secret", eleven.Settings["api_key"])
	assert.Equal(t, "openai", cfg.VendorFor("Backup").Provider)
	assert.Equal(t, VendorConfig{Provider: "mock"}, cfg.VendorFor("mock"))

	assert.InDelta(t, 0.00002, cfg.Cost.Pricing["backup"].PricePerCharacter, 1e-12)
	assert.InDelta(t, 0.000015, cfg.Cost.Pricing["openai"].PricePerCharacter, 1e-12)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("VOXA_DISPATCH_CONCURRENCY", "9")
	t.Setenv("VOXA_CACHE_DRIVER", "none")
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Dispatch.Concurrency)
	assert.Equal(t, "none", cfg.Cache.Driver)
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"concurrency", "dispatch:\n  concurrency: 0\n", "dispatch.concurrency"},
		{"cache driver", "cache:\n  driver: memcached\n", "cache.driver"},
		{"genlog driver", "genlog:\n  driver: postgres\n", "genlog.driver"},
		{"sample rate", "observability:\n  sample_rate: 2\n", "observability.sample_rate"},
		{"segmentation", "segmentation:\n  max_words: -1\n", "segmentation"},
		{"assumptions", "cost:\n  assumptions:\n    batching_discount_factor: 1.5\n", "cost.assumptions"},
		{"negative price", "cost:\n  pricing:\n    mock:\n      price_per_character: -1\n", "cost.pricing.mock"},
		{"audio dir", "audio_store:\n  dir: \"\"\n", "missing: audio_store.dir"},
		{"cache outlives audio", "cache:\n  driver: memory\n  ttl_hours: 200\naudio_store:\n  retention_days: 7\n", "cache.ttl_hours 200 outlives audio_store.retention_days 7"},
		{"unbounded cache with retention", "cache:\n  driver: memory\n  ttl_hours: 0\naudio_store:\n  retention_days: 7\n", "cache.ttl_hours 0 outlives"},
		{"negative ttl", "cache:\n  ttl_hours: -1\n", "cache.ttl_hours must not be negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.True(t, errorsx.HasReason(err, errorsx.ReasonConfigInvalid))
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}
