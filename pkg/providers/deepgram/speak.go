package deepgram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/harunnryd/voxa/pkg/adapters/tts"
	"github.com/harunnryd/voxa/pkg/audiostore"
	"github.com/harunnryd/voxa/pkg/canonical"
	"github.com/harunnryd/voxa/pkg/logging"

	api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/speak/v1/rest"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	client "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/speak"
)

const defaultModel = "aura-asteria-en"

var markupRe = regexp.MustCompile(`\s*<[^<>]*>\s*`)

type Config struct {
	APIKey string `mapstructure:"api_key"`
	// Model is used when the request voice is empty; Aura models double as voices.
	Model string        `mapstructure:"model"`
	TTL   time.Duration `mapstructure:"-"`
}

// synthesizeFunc returns encoded audio for text spoken by model.
type synthesizeFunc func(ctx context.Context, text, model string) ([]byte, error)

type Speak struct {
	cfg   Config
	store audiostore.Store
	synth synthesizeFunc
	log   *slog.Logger
}

func NewSpeak(cfg Config, store audiostore.Store, log *slog.Logger) (*Speak, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("missing deepgram api key")
	}
	if store == nil {
		return nil, errors.New("deepgram: audio store is required")
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	c := client.NewREST(cfg.APIKey, &interfaces.ClientOptions{})
	dg := api.New(c)
	synth := func(ctx context.Context, text, model string) ([]byte, error) {
		var buf interfaces.RawResponse
		if _, err := dg.ToStream(ctx, text, &interfaces.SpeakOptions{Model: model}, &buf); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	return newSpeak(cfg, store, synth, log), nil
}

func newSpeak(cfg Config, store audiostore.Store, synth synthesizeFunc, log *slog.Logger) *Speak {
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	return &Speak{
		cfg:   cfg,
		store: store,
		synth: synth,
		log:   logging.NewComponentLogger(log, "deepgram_speak"),
	}
}

func (s *Speak) Name() string { return "deepgram" }

// Generate synthesizes via the Aura speak endpoint, which takes plain text only.
func (s *Speak) Generate(ctx context.Context, req tts.Request) (tts.Result, error) {
	text := strings.TrimSpace(markupRe.ReplaceAllString(req.Text, " "))
	if text == "" {
		return tts.Result{}, &tts.ProviderError{Provider: s.Name(), Status: http.StatusBadRequest, Description: "empty input"}
	}
	model := req.Voice
	if model == "" {
		model = s.cfg.Model
	}
	started := time.Now()
	audio, err := s.synth(ctx, text, model)
	if err != nil {
		if ctx.Err() != nil {
			return tts.Result{}, ctx.Err()
		}
		s.log.Warn("deepgram_speak_failed", "model", model, "error", err)
		return tts.Result{}, &tts.ProviderError{Provider: s.Name(), Description: err.Error(), Cause: err}
	}
	if len(audio) == 0 {
		return tts.Result{}, &tts.ProviderError{Provider: s.Name(), Description: "empty audio"}
	}
	key := canonical.Hash(s.Name() + "|" + model + "|" + text)[:32] + ".mp3"
	url, err := s.store.Save(ctx, key, bytes.NewReader(audio))
	if err != nil {
		return tts.Result{}, fmt.Errorf("storing deepgram audio: %w", err)
	}
	s.log.Debug("deepgram_speak_done", "model", model, "bytes", len(audio), "duration_ms", time.Since(started).Milliseconds())
	res := tts.Result{AudioURL: url, Provider: s.Name()}
	if s.cfg.TTL > 0 {
		res.ExpiresAt = time.Now().Add(s.cfg.TTL)
	}
	return res, nil
}

var _ tts.Provider = (*Speak)(nil)
