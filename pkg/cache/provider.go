package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/harunnryd/voxa/pkg/adapters/tts"
	"github.com/harunnryd/voxa/pkg/logging"
)

// CachingProvider serves repeated renditions from an AudioCache and writes
// fresh provider results back.
type CachingProvider struct {
	inner       tts.Provider
	cache       AudioCache
	ttl         time.Duration
	contentType string
	bitrate     int
	now         func() time.Time
	log         *slog.Logger
}

type ProviderOption func(*CachingProvider)

// WithTTL sets the lifetime of entries whose provider result carries no expiry.
func WithTTL(ttl time.Duration) ProviderOption {
	return func(p *CachingProvider) { p.ttl = ttl }
}

// WithFormat records the audio format stored alongside each entry.
func WithFormat(contentType string, bitrate int) ProviderOption {
	return func(p *CachingProvider) {
		p.contentType = contentType
		p.bitrate = bitrate
	}
}

func WithLogger(log *slog.Logger) ProviderOption {
	return func(p *CachingProvider) { p.log = logging.NewComponentLogger(log, "audio_cache") }
}

func NewCachingProvider(inner tts.Provider, cache AudioCache, opts ...ProviderOption) *CachingProvider {
	p := &CachingProvider{
		inner:       inner,
		cache:       cache,
		ttl:         24 * time.Hour,
		contentType: "audio/mpeg",
		bitrate:     128,
		now:         time.Now,
		log:         logging.NewComponentLogger(nil, "audio_cache"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *CachingProvider) Name() string { return p.inner.Name() }

// Generate returns a cached URL when a live entry for the same hash and voice
// exists. Cache failures degrade to a provider call.
func (p *CachingProvider) Generate(ctx context.Context, req tts.Request) (tts.Result, error) {
	if req.Hash == "" {
		return p.inner.Generate(ctx, req)
	}
	entry, ok, err := p.cache.Get(ctx, req.Hash)
	if err != nil {
		p.log.Warn("cache_get_failed", "hash", req.Hash, "error", err)
	}
	if ok && p.hit(entry, req) {
		return tts.Result{
			AudioURL:  entry.AudioURL,
			Cached:    true,
			Provider:  p.providerName(req),
			ExpiresAt: entry.ExpiresAt,
		}, nil
	}

	res, err := p.inner.Generate(ctx, req)
	if err != nil {
		return tts.Result{}, err
	}
	expires := res.ExpiresAt
	if expires.IsZero() && p.ttl > 0 {
		expires = p.now().Add(p.ttl)
		res.ExpiresAt = expires
	}
	put := Entry{
		Hash:        req.Hash,
		Text:        req.Text,
		VoiceName:   req.Voice,
		AudioURL:    res.AudioURL,
		ContentType: p.contentType,
		Bitrate:     p.bitrate,
		ExpiresAt:   expires,
	}
	if err := p.cache.Put(ctx, put); err != nil {
		p.log.Warn("cache_put_failed", "hash", req.Hash, "error", err)
	}
	return res, nil
}

func (p *CachingProvider) hit(e Entry, req tts.Request) bool {
	return e.VoiceName == req.Voice && e.AudioURL != "" && !e.Expired(p.now())
}

func (p *CachingProvider) providerName(req tts.Request) string {
	if req.Provider != "" {
		return req.Provider
	}
	return p.inner.Name()
}

var _ tts.Provider = (*CachingProvider)(nil)
