// Package gateway calls a remote generate-tts function that synthesizes,
// uploads and caches audio server-side, returning a hosted URL.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/harunnryd/voxa/pkg/adapters/tts"
)

const defaultTimeout = 30 * time.Second

type Config struct {
	Endpoint string `mapstructure:"endpoint"`
	APIKey   string `mapstructure:"api_key"`
	// Provider is forwarded when the request names none.
	Provider  string       `mapstructure:"provider"`
	TimeoutMS int          `mapstructure:"timeout_ms"`
	Client    *http.Client `mapstructure:"-"`
}

type Provider struct {
	cfg    Config
	client *http.Client
}

func New(cfg Config) (*Provider, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, fmt.Errorf("gateway: endpoint is required")
	}
	timeout := defaultTimeout
	if cfg.TimeoutMS > 0 {
		timeout = time.Duration(cfg.TimeoutMS) * time.Millisecond
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &Provider{cfg: cfg, client: client}, nil
}

func (p *Provider) Name() string { return "gateway" }

type generateRequest struct {
	Text      string `json:"text"`
	VoiceName string `json:"voice_name"`
	Provider  string `json:"provider,omitempty"`
	Hash      string `json:"hash,omitempty"`
}

type generateResponse struct {
	AudioURL  string    `json:"audio_url"`
	Cached    bool      `json:"cached"`
	Provider  string    `json:"provider"`
	ExpiresAt time.Time `json:"expires_at"`
	Error     string    `json:"error"`
}

func (p *Provider) Generate(ctx context.Context, req tts.Request) (tts.Result, error) {
	provider := req.Provider
	if provider == "" {
		provider = p.cfg.Provider
	}
	body, err := json.Marshal(generateRequest{
		Text:      req.Text,
		VoiceName: req.Voice,
		Provider:  provider,
		Hash:      req.Hash,
	})
	if err != nil {
		return tts.Result{}, fmt.Errorf("failed to marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return tts.Result{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return tts.Result{}, fmt.Errorf("gateway request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return tts.Result{}, tts.ErrorFromResponse(p.Name(), resp)
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return tts.Result{}, &tts.ProviderError{Provider: p.Name(), Status: resp.StatusCode, Description: "malformed response", Cause: err}
	}
	if out.Error != "" || out.AudioURL == "" {
		desc := out.Error
		if desc == "" {
			desc = "response missing audio_url"
		}
		return tts.Result{}, &tts.ProviderError{Provider: p.Name(), Status: resp.StatusCode, Description: desc}
	}
	if out.Provider == "" {
		out.Provider = provider
	}
	return tts.Result{
		AudioURL:  out.AudioURL,
		Cached:    out.Cached,
		Provider:  out.Provider,
		ExpiresAt: out.ExpiresAt,
	}, nil
}

var _ tts.Provider = (*Provider)(nil)
