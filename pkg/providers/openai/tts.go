package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/harunnryd/voxa/pkg/adapters/tts"
	"github.com/harunnryd/voxa/pkg/audiostore"
	"github.com/harunnryd/voxa/pkg/canonical"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	speechEndpoint = "/audio/speech"
	defaultModel   = "tts-1"
	defaultVoice   = "alloy"
)

// The speech endpoint reads markup aloud, so break tags become plain pauses.
var markupRe = regexp.MustCompile(`\s*<[^<>]*>\s*`)

type Adapter struct {
	APIKey  string
	Model   string
	BaseURL string
	Format  string
	Speed   float64
	TTL     time.Duration
	Client  *http.Client
	Store   audiostore.Store
}

func NewAdapter(apiKey, model string, store audiostore.Store) *Adapter {
	if model == "" {
		model = defaultModel
	}
	return &Adapter{
		APIKey:  apiKey,
		Model:   model,
		BaseURL: defaultBaseURL,
		Format:  "mp3",
		Client:  &http.Client{Timeout: 60 * time.Second},
		Store:   store,
	}
}

func (a *Adapter) Name() string { return "openai" }

type speechRequest struct {
	Model          string  `json:"model"`
	Input          string  `json:"input"`
	Voice          string  `json:"voice"`
	ResponseFormat string  `json:"response_format,omitempty"`
	Speed          float64 `json:"speed,omitempty"`
}

func (a *Adapter) Generate(ctx context.Context, req tts.Request) (tts.Result, error) {
	if a.Store == nil {
		return tts.Result{}, errors.New("openai: audio store is required")
	}
	input := strings.TrimSpace(markupRe.ReplaceAllString(req.Text, " "))
	if input == "" {
		return tts.Result{}, &tts.ProviderError{Provider: a.Name(), Status: http.StatusBadRequest, Description: "empty input"}
	}
	voice := req.Voice
	if voice == "" {
		voice = defaultVoice
	}
	body, err := json.Marshal(speechRequest{
		Model:          a.Model,
		Input:          input,
		Voice:          voice,
		ResponseFormat: a.Format,
		Speed:          a.Speed,
	})
	if err != nil {
		return tts.Result{}, fmt.Errorf("failed to marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(a.BaseURL, "/")+speechEndpoint, bytes.NewReader(body))
	if err != nil {
		return tts.Result{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+a.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.Client.Do(httpReq)
	if err != nil {
		return tts.Result{}, fmt.Errorf("openai request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return tts.Result{}, tts.ErrorFromResponse(a.Name(), resp)
	}

	key := canonical.Hash(a.Name() + "|" + a.Model + "|" + voice + "|" + input)[:32] + "." + a.Format
	url, err := a.Store.Save(ctx, key, resp.Body)
	if err != nil {
		return tts.Result{}, fmt.Errorf("storing openai audio: %w", err)
	}
	res := tts.Result{AudioURL: url, Provider: a.Name()}
	if a.TTL > 0 {
		res.ExpiresAt = time.Now().Add(a.TTL)
	}
	return res, nil
}

var _ tts.Provider = (*Adapter)(nil)
