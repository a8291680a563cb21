package elevenlabs

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/harunnryd/voxa/pkg/adapters/tts"
	"github.com/harunnryd/voxa/pkg/audiostore"
	"github.com/harunnryd/voxa/pkg/canonical"
	"github.com/harunnryd/voxa/pkg/logging"
	"github.com/harunnryd/voxa/pkg/resilience"
)

const defaultBaseURL = "wss://api.elevenlabs.io/v1"

type Config struct {
	APIKey       string        `mapstructure:"api_key"`
	VoiceID      string        `mapstructure:"voice_id"`
	ModelID      string        `mapstructure:"model_id"`
	OutputFormat string        `mapstructure:"output_format"`
	BaseURL      string        `mapstructure:"base_url"`
	TTL          time.Duration `mapstructure:"-"`
}

// ElevenLabsTTS synthesizes one request per websocket session and collects the
// streamed chunks into a single stored object.
type ElevenLabsTTS struct {
	cfg    Config
	store  audiostore.Store
	dialer websocket.Dialer
	log    *slog.Logger
}

type streamMessage struct {
	Audio       string `json:"audio"`
	AudioBase64 string `json:"audio_base_64"`
	IsFinal     bool   `json:"isFinal"`
	Error       string `json:"error"`
	Message     string `json:"message"`
}

func New(cfg Config, store audiostore.Store, log *slog.Logger) (*ElevenLabsTTS, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("missing elevenlabs config")
	}
	if store == nil {
		return nil, errors.New("elevenlabs: audio store is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.OutputFormat == "" {
		cfg.OutputFormat = "mp3_44100_128"
	}
	return &ElevenLabsTTS{
		cfg:    cfg,
		store:  store,
		dialer: websocket.Dialer{Proxy: http.ProxyFromEnvironment, HandshakeTimeout: 10 * time.Second},
		log:    logging.NewComponentLogger(log, "elevenlabs_tts"),
	}, nil
}

func (s *ElevenLabsTTS) Name() string { return "elevenlabs" }

func (s *ElevenLabsTTS) Generate(ctx context.Context, req tts.Request) (tts.Result, error) {
	voice := req.Voice
	if voice == "" {
		voice = s.cfg.VoiceID
	}
	if voice == "" {
		return tts.Result{}, &tts.ProviderError{Provider: s.Name(), Status: http.StatusBadRequest, Description: "voice is required"}
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return tts.Result{}, &tts.ProviderError{Provider: s.Name(), Status: http.StatusBadRequest, Description: "empty input"}
	}

	conn, resp, err := s.dialer.DialContext(ctx, s.buildURL(voice), http.Header{
		"xi-api-key": []string{s.cfg.APIKey},
	})
	if err != nil {
		if resp != nil {
			defer func() { _ = resp.Body.Close() }()
			if resp.StatusCode == http.StatusTooManyRequests {
				s.log.Error("ElevenLabs rate limit exceeded", slog.String("status", resp.Status))
			}
			return tts.Result{}, tts.ErrorFromResponse(s.Name(), resp)
		}
		if ctx.Err() != nil {
			return tts.Result{}, ctx.Err()
		}
		return tts.Result{}, fmt.Errorf("connecting to elevenlabs: %w", err)
	}
	defer func() { _ = conn.Close() }()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	audio, err := s.stream(conn, text)
	if err != nil {
		if ctx.Err() != nil {
			return tts.Result{}, ctx.Err()
		}
		return tts.Result{}, err
	}
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))

	key := canonical.Hash(s.Name() + "|" + s.cfg.ModelID + "|" + voice + "|" + text)[:32] + "." + s.extension()
	u, err := s.store.Save(ctx, key, bytes.NewReader(audio))
	if err != nil {
		return tts.Result{}, fmt.Errorf("storing elevenlabs audio: %w", err)
	}
	res := tts.Result{AudioURL: u, Provider: s.Name()}
	if s.cfg.TTL > 0 {
		res.ExpiresAt = time.Now().Add(s.cfg.TTL)
	}
	return res, nil
}

func (s *ElevenLabsTTS) stream(conn *websocket.Conn, text string) ([]byte, error) {
	messages := []map[string]any{
		{
			"text": " ",
			"voice_settings": map[string]any{
				"stability":        0.5,
				"similarity_boost": 0.8,
			},
		},
		{"text": text + " ", "try_trigger_generation": true},
		{"text": ""},
	}
	for _, m := range messages {
		if err := conn.WriteJSON(m); err != nil {
			return nil, fmt.Errorf("sending to elevenlabs: %w", err)
		}
	}

	var audio bytes.Buffer
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) && audio.Len() > 0 {
				break
			}
			return nil, &tts.ProviderError{Provider: s.Name(), Description: "stream closed before final chunk", Cause: err}
		}
		var msg streamMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.log.Warn("tts websocket raw data", "data", string(data))
			continue
		}
		if msg.Error != "" {
			desc := msg.Error
			if msg.Message != "" {
				desc = msg.Error + ": " + msg.Message
			}
			var cause error
			if strings.Contains(msg.Error, "rate") || strings.Contains(msg.Error, "quota") {
				cause = resilience.RateLimitError{Provider: s.Name(), Message: desc}
			}
			return nil, &tts.ProviderError{Provider: s.Name(), Description: desc, Cause: cause}
		}
		chunk := msg.Audio
		if chunk == "" {
			chunk = msg.AudioBase64
		}
		if chunk != "" {
			raw, err := base64.StdEncoding.DecodeString(chunk)
			if err != nil {
				return nil, &tts.ProviderError{Provider: s.Name(), Description: "audio decode error", Cause: err}
			}
			audio.Write(raw)
		}
		if msg.IsFinal {
			break
		}
	}
	if audio.Len() == 0 {
		return nil, &tts.ProviderError{Provider: s.Name(), Description: "no audio received"}
	}
	return audio.Bytes(), nil
}

func (s *ElevenLabsTTS) buildURL(voice string) string {
	q := url.Values{}
	if s.cfg.ModelID != "" {
		q.Set("model_id", s.cfg.ModelID)
	}
	q.Set("output_format", s.cfg.OutputFormat)
	q.Set("enable_ssml_parsing", "true")
	return strings.TrimRight(s.cfg.BaseURL, "/") + "/text-to-speech/" + url.PathEscape(voice) + "/stream-input?" + q.Encode()
}

func (s *ElevenLabsTTS) extension() string {
	switch {
	case strings.HasPrefix(s.cfg.OutputFormat, "pcm"):
		return "pcm"
	case strings.HasPrefix(s.cfg.OutputFormat, "ulaw"):
		return "ulaw"
	}
	return "mp3"
}

var _ tts.Provider = (*ElevenLabsTTS)(nil)
