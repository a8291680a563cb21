package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harunnryd/voxa/pkg/adapters/tts"
	"github.com/harunnryd/voxa/pkg/audiostore"
)

func newStore(t *testing.T) (*audiostore.FileStore, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := audiostore.NewFileStore(dir, "https://cdn.example.com")
	require.NoError(t, err)
	return s, dir
}

func TestGenerateStoresAudio(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/audio/speech", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		var body speechRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "tts-1", body.Model)
		assert.Equal(t, "nova", body.Voice)
		assert.Equal(t, "First. Second.", body.Input)
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3 mp3 bytes"))
	}))
	defer srv.Close()

	store, dir := newStore(t)
	a := NewAdapter("sk-test", "", store)
	a.BaseURL = srv.URL + "/v1"

	res, err := a.Generate(context.Background(), tts.Request{Text: `First. <break time="300ms"/> Second.`, Voice: "nova"})
	require.NoError(t, err)
	assert.Equal(t, "openai", res.Provider)
	require.True(t, strings.HasPrefix(res.AudioURL, "https://cdn.example.com/"))

	b, err := os.ReadFile(filepath.Join(dir, strings.TrimPrefix(res.AudioURL, "https://cdn.example.com/")))
	require.NoError(t, err)
	assert.Equal(t, "ID3 mp3 bytes", string(b))

	again, err := a.Generate(context.Background(), tts.Request{Text: "First. Second.", Voice: "nova"})
	require.NoError(t, err)
	assert.Equal(t, res.AudioURL, again.AudioURL, "same input maps to the same object")
}

func TestGenerateProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"Invalid voice","code":"invalid_voice"}}`))
	}))
	defer srv.Close()

	store, _ := newStore(t)
	a := NewAdapter("sk-test", "tts-1-hd", store)
	a.BaseURL = srv.URL
	_, err := a.Generate(context.Background(), tts.Request{Text: "hi", Voice: "robot"})
	pe, ok := tts.AsProviderError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, pe.Status)
	assert.Equal(t, "Invalid voice", pe.Description)
}

func TestGenerateRejectsEmptyInput(t *testing.T) {
	store, _ := newStore(t)
	a := NewAdapter("sk-test", "", store)
	_, err := a.Generate(context.Background(), tts.Request{Text: `<break time="1s"/>`})
	_, ok := tts.AsProviderError(err)
	assert.True(t, ok)
}
