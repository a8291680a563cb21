package voxa

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harunnryd/voxa/pkg/adapters/tts"
	"github.com/harunnryd/voxa/pkg/audiostore"
)

func testDeps(t *testing.T) Deps {
	t.Helper()
	store, err := audiostore.NewFileStore(t.TempDir(), "")
	require.NoError(t, err)
	return Deps{Store: store}
}

func TestDefaultProviderRegistryNames(t *testing.T) {
	assert.Equal(t, []string{"deepgram", "elevenlabs", "gateway", "mock", "openai"}, DefaultProviderRegistry().Names())
}

func TestBuildTTSValidatesSettings(t *testing.T) {
	r := DefaultProviderRegistry()
	deps := testDeps(t)

	tests := []struct {
		name    string
		vc      VendorConfig
		wantErr string
	}{
		{name: "mock", vc: VendorConfig{Provider: "mock", Settings: map[string]any{"latency_ms": 5}}},
		{name: "openai", vc: VendorConfig{Provider: "openai", Settings: map[string]any{"api_key": "sk", "speed": 1.1}}},
		{name: "deepgram", vc: VendorConfig{Provider: "deepgram", Settings: map[string]any{"api_key": "dg"}}},
		{name: "elevenlabs", vc: VendorConfig{Provider: "elevenlabs", Settings: map[string]any{"api_key": "xi", "voice_id": "v"}}},
		{name: "gateway", vc: VendorConfig{Provider: "gateway", Settings: map[string]any{"endpoint": "http://localhost:9000/tts"}}},
		{name: "openai missing key", vc: VendorConfig{Provider: "openai"}, wantErr: "missing: api_key"},
		{name: "mock unknown key", vc: VendorConfig{Provider: "mock", Settings: map[string]any{"voice": "x"}}, wantErr: "unknown: voice"},
		{name: "unregistered", vc: VendorConfig{Provider: "polly"}, wantErr: "not registered"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := r.BuildTTS(tt.vc, deps)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.vc.Provider, p.Name())
		})
	}
}

func TestRouterRoutesByName(t *testing.T) {
	called := map[string]int{}
	fake := func(name string) tts.Provider {
		return tts.ProviderFunc{ProviderName: name, Fn: func(context.Context, tts.Request) (tts.Result, error) {
			called[name]++
			return tts.Result{AudioURL: "https://audio/" + name}, nil
		}}
	}
	r := NewRouter("Primary", map[string]tts.Provider{"primary": fake("primary"), "Backup": fake("backup")})
	assert.Equal(t, "primary", r.Name())
	assert.Equal(t, []string{"backup", "primary"}, r.Providers())

	res, err := r.Generate(context.Background(), tts.Request{Text: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "primary", res.Provider)

	res, err = r.Generate(context.Background(), tts.Request{Text: "hi", Provider: "BACKUP"})
	require.NoError(t, err)
	assert.Equal(t, "https://audio/backup", res.AudioURL)
	assert.Equal(t, map[string]int{"primary": 1, "backup": 1}, called)

	_, err = r.Generate(context.Background(), tts.Request{Text: "hi", Provider: "polly"})
	pe, ok := tts.AsProviderError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, pe.Status)
}

func TestBuildRouterIncludesDefault(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Providers.Vendors = map[string]VendorConfig{
		"fast": {Provider: "mock", Settings: map[string]any{"base_url": "https://fast.local"}},
	}
	router, err := DefaultProviderRegistry().BuildRouter(cfg, testDeps(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"fast", "mock"}, router.Providers())

	res, err := router.Generate(context.Background(), tts.Request{Text: "hello", Provider: "fast"})
	require.NoError(t, err)
	assert.Contains(t, res.AudioURL, "https://fast.local/")

	cfg.Providers.Vendors["broken"] = VendorConfig{Provider: "openai"}
	_, err = DefaultProviderRegistry().BuildRouter(cfg, testDeps(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider broken")
}
