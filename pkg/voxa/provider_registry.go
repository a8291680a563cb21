package voxa

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/harunnryd/voxa/pkg/adapters/tts"
	"github.com/harunnryd/voxa/pkg/audiostore"
	"github.com/harunnryd/voxa/pkg/configutil"
	"github.com/harunnryd/voxa/pkg/providers/deepgram"
	"github.com/harunnryd/voxa/pkg/providers/elevenlabs"
	"github.com/harunnryd/voxa/pkg/providers/gateway"
	"github.com/harunnryd/voxa/pkg/providers/mock"
	"github.com/harunnryd/voxa/pkg/providers/openai"
)

// Deps are the shared resources a provider factory may need.
type Deps struct {
	Store  audiostore.Store
	Logger *slog.Logger
}

type TTSFactory func(vc VendorConfig, deps Deps) (tts.Provider, error)

type ProviderRegistry struct {
	tts map[string]TTSFactory
}

func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{tts: make(map[string]TTSFactory)}
}

// DefaultProviderRegistry knows every built-in provider.
func DefaultProviderRegistry() *ProviderRegistry {
	r := NewProviderRegistry()
	r.RegisterTTS("mock", buildMock)
	r.RegisterTTS("gateway", buildGateway)
	r.RegisterTTS("openai", buildOpenAI)
	r.RegisterTTS("deepgram", buildDeepgram)
	r.RegisterTTS("elevenlabs", buildElevenLabs)
	return r
}

func (r *ProviderRegistry) RegisterTTS(name string, factory TTSFactory) {
	r.tts[strings.ToLower(strings.TrimSpace(name))] = factory
}

func (r *ProviderRegistry) BuildTTS(vc VendorConfig, deps Deps) (tts.Provider, error) {
	fn := r.tts[strings.ToLower(strings.TrimSpace(vc.Provider))]
	if fn == nil {
		return nil, fmt.Errorf("tts provider not registered: %s", vc.Provider)
	}
	return fn(vc, deps)
}

func (r *ProviderRegistry) Names() []string {
	out := make([]string, 0, len(r.tts))
	for name := range r.tts {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// BuildRouter builds every configured vendor plus the default one.
func (r *ProviderRegistry) BuildRouter(cfg Config, deps Deps) (*Router, error) {
	names := make(map[string]struct{}, len(cfg.Providers.Vendors)+1)
	for name := range cfg.Providers.Vendors {
		names[name] = struct{}{}
	}
	names[cfg.Providers.Default] = struct{}{}

	providers := make(map[string]tts.Provider, len(names))
	for name := range names {
		p, err := r.BuildTTS(cfg.VendorFor(name), deps)
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", name, err)
		}
		providers[name] = p
	}
	return NewRouter(cfg.Providers.Default, providers), nil
}

// Router sends each request to the provider named by Request.Provider, or to
// the default provider when the request names none.
type Router struct {
	def       string
	providers map[string]tts.Provider
}

func NewRouter(def string, providers map[string]tts.Provider) *Router {
	norm := make(map[string]tts.Provider, len(providers))
	for name, p := range providers {
		norm[strings.ToLower(strings.TrimSpace(name))] = p
	}
	return &Router{def: strings.ToLower(strings.TrimSpace(def)), providers: norm}
}

func (r *Router) Name() string { return r.def }

func (r *Router) Generate(ctx context.Context, req tts.Request) (tts.Result, error) {
	name := strings.ToLower(strings.TrimSpace(req.Provider))
	if name == "" {
		name = r.def
	}
	p := r.providers[name]
	if p == nil {
		return tts.Result{}, &tts.ProviderError{Provider: name, Status: http.StatusBadRequest, Description: "provider not configured"}
	}
	res, err := p.Generate(ctx, req)
	if err != nil {
		return tts.Result{}, err
	}
	if res.Provider == "" {
		res.Provider = name
	}
	return res, nil
}

func (r *Router) Providers() []string {
	out := make([]string, 0, len(r.providers))
	for name := range r.providers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

var _ tts.Provider = (*Router)(nil)

var (
	mockSchema       = configutil.Schema{Optional: []string{"base_url", "ttl_hours", "latency_ms"}}
	gatewaySchema    = configutil.Schema{Required: []string{"endpoint"}, Optional: []string{"api_key", "provider", "timeout_ms"}}
	openaiSchema     = configutil.Schema{Required: []string{"api_key"}, Optional: []string{"model", "base_url", "format", "speed"}}
	deepgramSchema   = configutil.Schema{Required: []string{"api_key"}, Optional: []string{"model"}}
	elevenlabsSchema = configutil.Schema{Required: []string{"api_key"}, Optional: []string{"voice_id", "model_id", "output_format", "base_url"}}
)

type mockSettings struct {
	BaseURL   string `mapstructure:"base_url"`
	TTLHours  int    `mapstructure:"ttl_hours"`
	LatencyMS int    `mapstructure:"latency_ms"`
}

func buildMock(vc VendorConfig, _ Deps) (tts.Provider, error) {
	var s mockSettings
	if err := mockSchema.Decode(vc.Settings, &s); err != nil {
		return nil, fmt.Errorf("mock settings: %w", err)
	}
	return mock.NewTTS(mock.TTSConfig{
		BaseURL: s.BaseURL,
		TTL:     time.Duration(s.TTLHours) * time.Hour,
		Latency: time.Duration(s.LatencyMS) * time.Millisecond,
	}), nil
}

func buildGateway(vc VendorConfig, _ Deps) (tts.Provider, error) {
	var cfg gateway.Config
	if err := gatewaySchema.Decode(vc.Settings, &cfg); err != nil {
		return nil, fmt.Errorf("gateway settings: %w", err)
	}
	return gateway.New(cfg)
}

type openaiSettings struct {
	APIKey  string  `mapstructure:"api_key"`
	Model   string  `mapstructure:"model"`
	BaseURL string  `mapstructure:"base_url"`
	Format  string  `mapstructure:"format"`
	Speed   float64 `mapstructure:"speed"`
}

func buildOpenAI(vc VendorConfig, deps Deps) (tts.Provider, error) {
	var s openaiSettings
	if err := openaiSchema.Decode(vc.Settings, &s); err != nil {
		return nil, fmt.Errorf("openai settings: %w", err)
	}
	a := openai.NewAdapter(s.APIKey, s.Model, deps.Store)
	if s.BaseURL != "" {
		a.BaseURL = s.BaseURL
	}
	if s.Format != "" {
		a.Format = s.Format
	}
	a.Speed = s.Speed
	return a, nil
}

func buildDeepgram(vc VendorConfig, deps Deps) (tts.Provider, error) {
	var cfg deepgram.Config
	if err := deepgramSchema.Decode(vc.Settings, &cfg); err != nil {
		return nil, fmt.Errorf("deepgram settings: %w", err)
	}
	return deepgram.NewSpeak(cfg, deps.Store, deps.Logger)
}

func buildElevenLabs(vc VendorConfig, deps Deps) (tts.Provider, error) {
	var cfg elevenlabs.Config
	if err := elevenlabsSchema.Decode(vc.Settings, &cfg); err != nil {
		return nil, fmt.Errorf("elevenlabs settings: %w", err)
	}
	return elevenlabs.New(cfg, deps.Store, deps.Logger)
}
