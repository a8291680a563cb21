package dispatch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/harunnryd/voxa/pkg/adapters/tts"
	"github.com/harunnryd/voxa/pkg/errorsx"
	"github.com/harunnryd/voxa/pkg/metrics"
	"github.com/harunnryd/voxa/pkg/providers/mock"
	"github.com/harunnryd/voxa/pkg/resilience"
	"github.com/harunnryd/voxa/pkg/segment"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func longText(sentences int) string {
	parts := make([]string, sentences)
	for i := range parts {
		parts[i] = fmt.Sprintf("Part %d of the guided hike briefing covers the trail.", i)
	}
	return strings.Join(parts, " ")
}

func segmentsFor(t *testing.T, text string, cfg segment.Config) []segment.AudioSegment {
	t.Helper()
	res, err := segment.ProcessLongAudio(text, segment.ModeFull, cfg)
	require.NoError(t, err)
	return res.Segments
}

func smallConfig() segment.Config {
	cfg := segment.DefaultConfig()
	cfg.MaxWords = 20
	return cfg
}

func TestGenerateSegmentAudioPreservesOrder(t *testing.T) {
	// Later segments finish first.
	var calls atomic.Int32
	provider := tts.ProviderFunc{ProviderName: "slowfirst", Fn: func(ctx context.Context, req tts.Request) (tts.Result, error) {
		n := calls.Add(1)
		time.Sleep(time.Duration(10-n) * 3 * time.Millisecond)
		return tts.Result{AudioURL: "https://cdn/" + req.Hash}, nil
	}}
	segs := segmentsFor(t, longText(10), smallConfig())
	require.Greater(t, len(segs), 2)

	d := New(provider, Options{Concurrency: 8})
	out, err := d.GenerateSegmentAudio(context.Background(), segs, "aria", GenerateOptions{})
	require.NoError(t, err)
	require.Len(t, out, len(segs))
	for i := range segs {
		assert.Equal(t, segs[i], out[i].Segment)
		assert.Equal(t, "https://cdn/"+segs[i].Hash, out[i].AudioURL)
		assert.Equal(t, "slowfirst", out[i].Provider)
	}
}

func TestGenerateSegmentAudioSSMLFallback(t *testing.T) {
	provider := mock.NewTTS(mock.TTSConfig{FailWhen: mock.RejectSSML})
	segs := segmentsFor(t, longText(4), smallConfig())
	require.True(t, segs[0].HasSSML())

	obs := metrics.NewMemoryObserver()
	d := New(provider, Options{Concurrency: 1, Observer: obs})
	out, err := d.GenerateSegmentAudio(context.Background(), segs, "aria", GenerateOptions{SSMLFallback: true, SessionID: "s-1"})
	require.NoError(t, err)
	require.Len(t, out, len(segs))

	calls := provider.Calls()
	assert.Len(t, calls, 2*len(segs))
	for _, c := range calls {
		assert.Equal(t, "aria", c.Voice)
	}
	assert.Len(t, obs.Named(metrics.EventSSMLFallback), len(segs))
	generated := obs.Named(metrics.EventSegmentGenerated)
	require.Len(t, generated, len(segs))
	assert.Equal(t, "s-1", generated[0].Tags[metrics.TagSessionID])
	assert.Equal(t, true, generated[0].Fields["plain"])
	assert.Len(t, obs.Named(metrics.EventBatchDone), 1)
}

func TestGenerateSegmentAudioNoFallbackFailsBatch(t *testing.T) {
	provider := mock.NewTTS(mock.TTSConfig{FailWhen: mock.RejectSSML})
	segs := segmentsFor(t, longText(4), smallConfig())

	d := New(provider, Options{Concurrency: 1})
	_, err := d.GenerateSegmentAudio(context.Background(), segs, "aria", GenerateOptions{})
	require.Error(t, err)

	var segErr *SegmentError
	require.ErrorAs(t, err, &segErr)
	assert.Equal(t, 0, segErr.Index)
	assert.Contains(t, err.Error(), "segment 0")
	assert.Contains(t, err.Error(), "ssml not supported")
	assert.Equal(t, errorsx.ReasonTTSGenerate, errorsx.Reason(err))

	pe, ok := tts.AsProviderError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, pe.Status)
}

func TestGenerateSegmentAudioFallbackFailureNamesSegment(t *testing.T) {
	segs := segmentsFor(t, longText(6), smallConfig())
	target := segs[2]
	provider := mock.NewTTS(mock.TTSConfig{FailWhen: mock.FailContaining(strings.Fields(target.PlainText)[1]+" of", http.StatusBadGateway)})

	d := New(provider, Options{Concurrency: 2})
	_, err := d.GenerateSegmentAudio(context.Background(), segs, "aria", GenerateOptions{SSMLFallback: true})
	var segErr *SegmentError
	require.ErrorAs(t, err, &segErr)
	assert.Equal(t, target.Index, segErr.Index)
	assert.Contains(t, err.Error(), "status 502")
}

func TestGenerateSegmentAudioTimeout(t *testing.T) {
	provider := mock.NewTTS(mock.TTSConfig{Latency: time.Second})
	segs := segmentsFor(t, "Short reply.", segment.DefaultConfig())

	d := New(provider, Options{Timeout: 20 * time.Millisecond})
	_, err := d.GenerateSegmentAudio(context.Background(), segs, "aria", GenerateOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, errorsx.ReasonTTSTimeout, errorsx.Reason(err))
}

func TestGenerateSegmentAudioCircuitOpen(t *testing.T) {
	var calls atomic.Int32
	provider := tts.ProviderFunc{ProviderName: "limited", Fn: func(ctx context.Context, req tts.Request) (tts.Result, error) {
		calls.Add(1)
		return tts.Result{}, resilience.RateLimitError{Provider: "limited", Message: "429 too many requests"}
	}}
	breaker := resilience.NewCircuitBreaker(1, time.Minute)
	segs := segmentsFor(t, "Short reply.", segment.DefaultConfig())
	d := New(provider, Options{Breaker: breaker})

	_, err := d.GenerateSegmentAudio(context.Background(), segs, "aria", GenerateOptions{})
	assert.Equal(t, errorsx.ReasonTTSRateLimit, errorsx.Reason(err))

	_, err = d.GenerateSegmentAudio(context.Background(), segs, "aria", GenerateOptions{SSMLFallback: true})
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, errorsx.ReasonTTSCircuitOpen, errorsx.Reason(err))
	assert.Equal(t, int32(1), calls.Load())
}

type countingLimiter struct{ n atomic.Int32 }

func (c *countingLimiter) Wait(ctx context.Context) error {
	c.n.Add(1)
	return ctx.Err()
}

func TestGenerateSegmentAudioUsesLimiter(t *testing.T) {
	lim := &countingLimiter{}
	segs := segmentsFor(t, longText(6), smallConfig())
	d := New(mock.NewTTS(mock.TTSConfig{}), Options{Limiter: lim})
	_, err := d.GenerateSegmentAudio(context.Background(), segs, "aria", GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, int32(len(segs)), lim.n.Load())
}

func TestGenerateSegmentAudioCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	segs := segmentsFor(t, "Short reply.", segment.DefaultConfig())
	d := New(mock.NewTTS(mock.TTSConfig{}), Options{})
	_, err := d.GenerateSegmentAudio(ctx, segs, "aria", GenerateOptions{})
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestProcessAndGenerateLongAudio(t *testing.T) {
	provider := mock.NewTTS(mock.TTSConfig{})
	cfg := segment.DefaultConfig()
	cfg.MaxWords = 30
	d := New(provider, Options{})

	out, err := d.ProcessAndGenerateLongAudio(context.Background(), longText(8), segment.ModeFull, "aria", &cfg)
	require.NoError(t, err)
	assert.True(t, out.Metadata.WasSegmented)
	assert.False(t, out.Metadata.WasTruncated)
	assert.Equal(t, 80, out.Metadata.TotalWords)
	require.Len(t, out.AudioURLs, len(out.Segments))
	for i, url := range out.AudioURLs {
		assert.Equal(t, out.Results[i].AudioURL, url)
		assert.Equal(t, i, out.Segments[i].Index)
	}
}

func TestProcessAndGenerateLongAudioBrief(t *testing.T) {
	cfg := segment.DefaultConfig()
	cfg.MaxWords = 30
	d := New(mock.NewTTS(mock.TTSConfig{}), Options{Segment: cfg})

	out, err := d.ProcessAndGenerateLongAudio(context.Background(), longText(8), segment.ModeBrief, "aria", nil)
	require.NoError(t, err)
	assert.True(t, out.Metadata.WasTruncated)
	assert.Len(t, out.AudioURLs, 1)
	assert.LessOrEqual(t, out.Metadata.TotalWords, 30)
}

func TestProcessAndGenerateLongAudioRejectsInput(t *testing.T) {
	d := New(mock.NewTTS(mock.TTSConfig{}), Options{})
	_, err := d.ProcessAndGenerateLongAudio(context.Background(), "  ", segment.ModeFull, "aria", nil)
	assert.ErrorIs(t, err, segment.ErrEmptyText)
	assert.Equal(t, errorsx.ReasonSegmentInput, errorsx.Reason(err))

	bad := segment.Config{}
	_, err = d.ProcessAndGenerateLongAudio(context.Background(), "hello", segment.ModeFull, "aria", &bad)
	assert.ErrorIs(t, err, segment.ErrInvalidConfig)
	assert.Equal(t, errorsx.ReasonSegmentConfig, errorsx.Reason(err))
}
