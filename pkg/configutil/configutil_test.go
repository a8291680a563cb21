package configutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateSettings(t *testing.T) {
	schema := Schema{Required: []string{"api_key"}, Optional: []string{"model_id"}}

	tests := []struct {
		name    string
		input   map[string]any
		wantErr string
	}{
		{name: "ok", input: map[string]any{"api_key": "k", "model_id": "m"}},
		{name: "key normalization", input: map[string]any{"API-Key": "k", "modelId": "m"}},
		{name: "missing", input: map[string]any{"model_id": "m"}, wantErr: "missing: api_key"},
		{name: "blank counts as missing", input: map[string]any{"api_key": "  "}, wantErr: "missing: api_key"},
		{name: "unknown", input: map[string]any{"api_key": "k", "voice": "x"}, wantErr: "unknown: voice"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSettings(tt.input, schema)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrInvalidSettings)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	err := ValidateSettings(map[string]any{"voice": "x", "lang": "en"}, schema)
	var serr *SettingsError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, []string{"api_key"}, serr.Missing)
	assert.Equal(t, []string{"lang", "voice"}, serr.Unknown)
	assert.EqualError(t, err, "missing: api_key; unknown: lang, voice")

	require.NoError(t, ValidateSettings(map[string]any{"api_key": "k", "extra": 1}, Schema{Required: []string{"api_key"}, AllowUnknown: true}))
}

func TestDecodeSettings(t *testing.T) {
	var out struct {
		APIKey    string  `mapstructure:"api_key"`
		LatencyMS int     `mapstructure:"latency_ms"`
		Speed     float64 `mapstructure:"speed"`
	}
	err := DecodeSettings(map[string]any{"API_KEY": "secret", "latency-ms": "250", "speed": 1.25}, &out)
	require.NoError(t, err)
	assert.Equal(t, "secret", out.APIKey)
	assert.Equal(t, 250, out.LatencyMS)
	assert.InDelta(t, 1.25, out.Speed, 1e-9)

	require.NoError(t, DecodeSettings(nil, &out))

	require.NoError(t, DecodeSettings(map[string]any{"api_key": "  rotated\n"}, &out))
	assert.Equal(t, "rotated", out.APIKey)

	err = DecodeSettings(map[string]any{"speed": "fast"}, &out)
	assert.ErrorIs(t, err, ErrInvalidSettings)
}

func TestSchemaDecode(t *testing.T) {
	schema := Schema{Required: []string{"endpoint"}, Optional: []string{"timeout_ms"}}
	var out struct {
		Endpoint  string `mapstructure:"endpoint"`
		TimeoutMS int    `mapstructure:"timeout_ms"`
	}
	require.NoError(t, schema.Decode(map[string]any{"Endpoint": "http://tts.local", "timeout-ms": 900}, &out))
	assert.Equal(t, "http://tts.local", out.Endpoint)
	assert.Equal(t, 900, out.TimeoutMS)

	out.Endpoint = ""
	require.ErrorIs(t, schema.Decode(map[string]any{"timeout_ms": 1}, &out), ErrInvalidSettings)
	assert.Empty(t, out.Endpoint, "nothing decoded on validation failure")
}

func TestHelpers(t *testing.T) {
	err := RequireString(" ", "providers.default")
	assert.EqualError(t, err, "missing: providers.default")
	assert.ErrorIs(t, err, ErrInvalidSettings)
	assert.NoError(t, RequireString("mock", "providers.default"))

	yes := true
	assert.True(t, BoolValue(&yes, false))
	assert.False(t, BoolValue(nil, false))
}
