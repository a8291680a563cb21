package elevenlabs

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harunnryd/voxa/pkg/adapters/tts"
	"github.com/harunnryd/voxa/pkg/audiostore"
	"github.com/harunnryd/voxa/pkg/resilience"
)

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func newTestTTS(t *testing.T, srv *httptest.Server) (*ElevenLabsTTS, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := audiostore.NewFileStore(dir, "")
	require.NoError(t, err)
	s, err := New(Config{APIKey: "xi-test", BaseURL: wsURL(srv), ModelID: "eleven_turbo_v2"}, store, nil)
	require.NoError(t, err)
	return s, dir
}

func TestGenerateCollectsChunks(t *testing.T) {
	var received []map[string]any
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/text-to-speech/voice-1/stream-input", r.URL.Path)
		assert.Equal(t, "xi-test", r.Header.Get("xi-api-key"))
		assert.Equal(t, "true", r.URL.Query().Get("enable_ssml_parsing"))
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		for i := 0; i < 3; i++ {
			var m map[string]any
			require.NoError(t, conn.ReadJSON(&m))
			received = append(received, m)
		}
		_ = conn.WriteJSON(map[string]any{"audio": base64.StdEncoding.EncodeToString([]byte("chunk1-"))})
		_ = conn.WriteJSON(map[string]any{"alignment": map[string]any{}})
		_ = conn.WriteJSON(map[string]any{"audio": base64.StdEncoding.EncodeToString([]byte("chunk2"))})
		_ = conn.WriteJSON(map[string]any{"isFinal": true})
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	s, dir := newTestTTS(t, srv)
	res, err := s.Generate(context.Background(), tts.Request{Text: `Hi. <break time="300ms"/> Bye.`, Voice: "voice-1"})
	require.NoError(t, err)
	assert.Equal(t, "elevenlabs", res.Provider)

	b, err := os.ReadFile(filepath.Join(dir, filepath.Base(res.AudioURL)))
	require.NoError(t, err)
	assert.Equal(t, "chunk1-chunk2", string(b))

	require.Len(t, received, 3)
	assert.Equal(t, `Hi. <break time="300ms"/> Bye. `, received[1]["text"])
	assert.Equal(t, "", received[2]["text"])
}

func TestGenerateStreamError(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		var m map[string]any
		_ = conn.ReadJSON(&m)
		_ = conn.WriteJSON(map[string]any{"error": "invalid_ssml", "message": "unsupported tag"})
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	s, _ := newTestTTS(t, srv)
	_, err := s.Generate(context.Background(), tts.Request{Text: "<bad/>", Voice: "voice-1"})
	pe, ok := tts.AsProviderError(err)
	require.True(t, ok)
	assert.Equal(t, "invalid_ssml: unsupported tag", pe.Description)
}

func TestGenerateHandshakeRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"detail":{"message":"too many concurrent requests"}}`))
	}))
	defer srv.Close()

	s, _ := newTestTTS(t, srv)
	_, err := s.Generate(context.Background(), tts.Request{Text: "hi", Voice: "voice-1"})
	require.Error(t, err)
	assert.True(t, resilience.IsRateLimit(err))
	pe, ok := tts.AsProviderError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusTooManyRequests, pe.Status)
}

func TestGenerateRequiresVoice(t *testing.T) {
	store, err := audiostore.NewFileStore(t.TempDir(), "")
	require.NoError(t, err)
	s, err := New(Config{APIKey: "xi-test"}, store, nil)
	require.NoError(t, err)
	_, err = s.Generate(context.Background(), tts.Request{Text: "hi"})
	_, ok := tts.AsProviderError(err)
	assert.True(t, ok)
}
