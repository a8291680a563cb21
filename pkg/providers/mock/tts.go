package mock

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/harunnryd/voxa/pkg/adapters/tts"
	"github.com/harunnryd/voxa/pkg/canonical"
)

type TTSConfig struct {
	BaseURL string
	TTL     time.Duration
	// Latency delays every call; the call still honors context cancellation.
	Latency time.Duration
	// FailWhen returns a non-nil error to fail a call.
	FailWhen func(req tts.Request) error
}

// TTS is a deterministic in-process provider. The same voice and text always
// map to the same URL.
type TTS struct {
	cfg   TTSConfig
	mu    sync.Mutex
	calls []tts.Request
	now   func() time.Time
}

func NewTTS(cfg TTSConfig) *TTS {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://audio.mock.local"
	}
	if cfg.TTL == 0 {
		cfg.TTL = 24 * time.Hour
	}
	return &TTS{cfg: cfg, now: time.Now}
}

func (s *TTS) Name() string { return "mock" }

func (s *TTS) Generate(ctx context.Context, req tts.Request) (tts.Result, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	s.mu.Unlock()

	if s.cfg.Latency > 0 {
		timer := time.NewTimer(s.cfg.Latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return tts.Result{}, ctx.Err()
		case <-timer.C:
		}
	}
	if s.cfg.FailWhen != nil {
		if err := s.cfg.FailWhen(req); err != nil {
			return tts.Result{}, err
		}
	}
	key := canonical.Hash(req.Voice + "\x00" + req.Text)[:16]
	return tts.Result{
		AudioURL:  strings.TrimRight(s.cfg.BaseURL, "/") + "/" + key + ".mp3",
		Provider:  s.Name(),
		ExpiresAt: s.now().Add(s.cfg.TTL),
	}, nil
}

// Calls returns every request received, in arrival order.
func (s *TTS) Calls() []tts.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]tts.Request, len(s.calls))
	copy(out, s.calls)
	return out
}

// RejectSSML fails any request carrying markup, like vendors without SSML support.
func RejectSSML(req tts.Request) error {
	if strings.Contains(req.Text, "<") {
		return &tts.ProviderError{Provider: "mock", Status: http.StatusBadRequest, Description: "ssml not supported"}
	}
	return nil
}

// FailContaining fails requests whose text contains substr.
func FailContaining(substr string, status int) func(tts.Request) error {
	return func(req tts.Request) error {
		if strings.Contains(req.Text, substr) {
			return &tts.ProviderError{Provider: "mock", Status: status, Description: "synthesis failed"}
		}
		return nil
	}
}

var _ tts.Provider = (*TTS)(nil)
