package cache

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harunnryd/voxa/pkg/adapters/tts"
	"github.com/harunnryd/voxa/pkg/providers/mock"
)

func setupRedisCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisCache(client, WithPrefix("test")), mr
}

func setupSQLiteCache(t *testing.T) *SQLiteCache {
	t.Helper()
	c, err := OpenSQLite(filepath.Join(t.TempDir(), "cache", "audio.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func sampleEntry(expires time.Time) Entry {
	return Entry{
		Hash:        "abc123",
		Text:        "see you at {{TIME}}",
		VoiceName:   "aria",
		AudioURL:    "https://cdn/abc123.mp3",
		ContentType: "audio/mpeg",
		Bitrate:     128,
		ExpiresAt:   expires,
	}
}

func TestStoresRoundTrip(t *testing.T) {
	ctx := context.Background()
	redisCache, _ := setupRedisCache(t)
	stores := map[string]AudioCache{
		"memory": NewMemoryCache(),
		"redis":  redisCache,
		"sqlite": setupSQLiteCache(t),
	}
	expires := time.Now().Add(time.Hour).UTC().Truncate(time.Millisecond)
	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			_, ok, err := store.Get(ctx, "abc123")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, store.Put(ctx, sampleEntry(expires)))
			require.NoError(t, store.Put(ctx, sampleEntry(expires)), "redundant write is harmless")

			got, ok, err := store.Get(ctx, "abc123")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "https://cdn/abc123.mp3", got.AudioURL)
			assert.Equal(t, "aria", got.VoiceName)
			assert.Equal(t, 128, got.Bitrate)
			assert.True(t, expires.Equal(got.ExpiresAt))

			assert.ErrorIs(t, store.Put(ctx, Entry{Hash: "x"}), ErrInvalidEntry)
		})
	}
}

func TestRedisCacheTTLFollowsExpiry(t *testing.T) {
	ctx := context.Background()
	c, mr := setupRedisCache(t)
	require.NoError(t, c.Put(ctx, sampleEntry(time.Now().Add(time.Minute))))
	assert.True(t, mr.Exists("test:abc123"))

	mr.FastForward(2 * time.Minute)
	_, ok, err := c.Get(ctx, "abc123")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Put(ctx, sampleEntry(time.Now().Add(-time.Minute))))
	assert.False(t, mr.Exists("test:abc123"), "expired entries are not written")
}

func TestRedisCacheReportsBackendErrors(t *testing.T) {
	c, mr := setupRedisCache(t)
	mr.SetError("ERR backend unavailable")
	_, _, err := c.Get(context.Background(), "abc123")
	assert.Error(t, err)
	assert.Error(t, c.Put(context.Background(), sampleEntry(time.Now().Add(time.Hour))))
}

func TestSQLiteDeleteExpired(t *testing.T) {
	ctx := context.Background()
	c := setupSQLiteCache(t)
	now := time.Now()

	old := sampleEntry(now.Add(-time.Hour))
	old.Hash = "old"
	live := sampleEntry(now.Add(time.Hour))
	live.Hash = "live"
	forever := sampleEntry(time.Time{})
	forever.Hash = "forever"
	for _, e := range []Entry{old, live, forever} {
		require.NoError(t, c.Put(ctx, e))
	}

	n, err := c.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	_, ok, _ := c.Get(ctx, "live")
	assert.True(t, ok)
	_, ok, _ = c.Get(ctx, "forever")
	assert.True(t, ok)
}

func TestCachingProviderHitAndMiss(t *testing.T) {
	ctx := context.Background()
	inner := mock.NewTTS(mock.TTSConfig{TTL: time.Hour})
	store := NewMemoryCache()
	p := NewCachingProvider(inner, store)

	req := tts.Request{Text: "Hello there.", Voice: "aria", Hash: "h1"}
	first, err := p.Generate(ctx, req)
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := p.Generate(ctx, req)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.AudioURL, second.AudioURL)
	assert.Len(t, inner.Calls(), 1)

	other := req
	other.Voice = "brian"
	third, err := p.Generate(ctx, other)
	require.NoError(t, err)
	assert.False(t, third.Cached, "voice mismatch is a miss")
	assert.Len(t, inner.Calls(), 2)
}

func TestCachingProviderTreatsExpiredAsMiss(t *testing.T) {
	ctx := context.Background()
	inner := mock.NewTTS(mock.TTSConfig{})
	store := NewMemoryCache()
	expired := sampleEntry(time.Now().Add(-time.Second))
	require.NoError(t, store.Put(ctx, expired))

	p := NewCachingProvider(inner, store)
	res, err := p.Generate(ctx, tts.Request{Text: "see you", Voice: "aria", Hash: expired.Hash})
	require.NoError(t, err)
	assert.False(t, res.Cached)
	assert.Len(t, inner.Calls(), 1)

	refreshed, ok, err := store.Get(ctx, expired.Hash)
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, refreshed.Expired(time.Now()))
}

type brokenCache struct{}

func (brokenCache) Get(context.Context, string) (Entry, bool, error) {
	return Entry{}, false, errors.New("down")
}
func (brokenCache) Put(context.Context, Entry) error { return errors.New("down") }

func TestCachingProviderSurvivesCacheFailure(t *testing.T) {
	inner := mock.NewTTS(mock.TTSConfig{})
	p := NewCachingProvider(inner, brokenCache{})
	res, err := p.Generate(context.Background(), tts.Request{Text: "hi", Voice: "aria", Hash: "h"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AudioURL)
}

func TestCachingProviderPassesProviderErrors(t *testing.T) {
	inner := mock.NewTTS(mock.TTSConfig{FailWhen: mock.FailContaining("hi", 500)})
	store := NewMemoryCache()
	p := NewCachingProvider(inner, store)
	_, err := p.Generate(context.Background(), tts.Request{Text: "hi", Voice: "aria", Hash: "h"})
	_, ok := tts.AsProviderError(err)
	assert.True(t, ok)
	assert.Zero(t, store.Len())
}
