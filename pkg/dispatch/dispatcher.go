// Package dispatch generates audio for ordered segments, one provider call per
// segment, and reassembles the results by index.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/harunnryd/voxa/pkg/adapters/tts"
	"github.com/harunnryd/voxa/pkg/errorsx"
	"github.com/harunnryd/voxa/pkg/logging"
	"github.com/harunnryd/voxa/pkg/metrics"
	"github.com/harunnryd/voxa/pkg/redact"
	"github.com/harunnryd/voxa/pkg/resilience"
	"github.com/harunnryd/voxa/pkg/segment"
)

var ErrTimeout = errors.New("tts timeout")

// Options configures a Dispatcher. Zero values fall back to sane defaults.
type Options struct {
	Concurrency int
	// Timeout bounds each provider call, fallback attempts included separately.
	Timeout  time.Duration
	Limiter  resilience.Limiter
	Breaker  *resilience.CircuitBreaker
	Observer metrics.Observer
	// Segment is used by ProcessAndGenerateLongAudio when the caller passes no config.
	Segment      segment.Config
	SSMLFallback bool
	Logger       *slog.Logger
}

// GenerateOptions tunes a single batch.
type GenerateOptions struct {
	Provider     string
	SSMLFallback bool
	Mode         segment.Mode
	SessionID    string
}

// SegmentAudio pairs a segment with its generated audio.
type SegmentAudio struct {
	Segment segment.AudioSegment `json:"segment"`
	tts.Result
}

// SegmentError names the segment whose generation failed the batch.
type SegmentError struct {
	Index int
	Err   error
}

func (e *SegmentError) Error() string {
	return fmt.Sprintf("segment %d: %v", e.Index, e.Err)
}

func (e *SegmentError) Unwrap() error { return e.Err }

type Dispatcher struct {
	provider tts.Provider
	opts     Options
	log      *slog.Logger
}

func New(provider tts.Provider, opts Options) *Dispatcher {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.Observer == nil {
		opts.Observer = metrics.NoopObserver{}
	}
	if opts.Segment.MaxWords == 0 {
		opts.Segment = segment.DefaultConfig()
	}
	return &Dispatcher{
		provider: provider,
		opts:     opts,
		log:      logging.NewComponentLogger(opts.Logger, "dispatch"),
	}
}

// GenerateSegmentAudio issues one provider call per segment. The result is
// index-aligned with segments. Any segment failure fails the whole batch and
// cancels calls still in flight.
func (d *Dispatcher) GenerateSegmentAudio(ctx context.Context, segments []segment.AudioSegment, voice string, opts GenerateOptions) ([]SegmentAudio, error) {
	batchID := uuid.NewString()
	started := time.Now()
	d.emit(metrics.EventBatchStart, started, 0, batchID, opts, map[string]any{"segments": len(segments)})

	results := make([]SegmentAudio, len(segments))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.opts.Concurrency)
	for i := range segments {
		g.Go(func() error {
			res, err := d.generateOne(gctx, segments[i], voice, opts, batchID)
			if err != nil {
				return errorsx.Wrap(&SegmentError{Index: segments[i].Index, Err: err}, errorsx.ReasonTTSGenerate)
			}
			results[i] = SegmentAudio{Segment: segments[i], Result: res}
			return nil
		})
	}
	err := g.Wait()

	status := "success"
	if err != nil {
		status = "error"
	}
	d.emit(metrics.EventBatchDone, time.Now(), time.Since(started).Seconds(), batchID, opts, map[string]any{
		"segments": len(segments),
		"status":   status,
	})
	if err != nil {
		d.log.Error("tts_batch_failed", "batch_id", batchID, "segments", len(segments), "reason", errorsx.Reason(err), "error", err)
		return nil, err
	}
	d.log.Info("tts_batch_done", "batch_id", batchID, "segments", len(segments), "duration_ms", time.Since(started).Milliseconds())
	return results, nil
}

func (d *Dispatcher) generateOne(ctx context.Context, seg segment.AudioSegment, voice string, opts GenerateOptions, batchID string) (tts.Result, error) {
	if err := ctx.Err(); err != nil {
		return tts.Result{}, err
	}
	d.log.Debug("tts_segment_request",
		"batch_id", batchID,
		"index", seg.Index,
		"words", seg.WordCount,
		"preview", redact.Preview(seg.PlainText, 80),
	)
	req := tts.Request{Text: seg.Text, Voice: voice, Provider: opts.Provider, Hash: seg.Hash}
	started := time.Now()
	res, err := d.call(ctx, req)
	if err != nil && opts.SSMLFallback && seg.HasSSML() && fallbackAllowed(ctx, err) {
		d.log.Warn("tts_ssml_fallback", "batch_id", batchID, "index", seg.Index, "error", err)
		d.emitSegment(metrics.EventSSMLFallback, seg, req, tts.Result{}, 0, batchID, opts)
		req.Text = seg.PlainText
		res, err = d.call(ctx, req)
	}
	if err != nil {
		d.emitSegment(metrics.EventSegmentFailed, seg, req, tts.Result{Provider: d.providerName(req)}, time.Since(started), batchID, opts)
		return tts.Result{}, err
	}
	d.emitSegment(metrics.EventSegmentGenerated, seg, req, res, time.Since(started), batchID, opts)
	return res, nil
}

func fallbackAllowed(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	return !errors.Is(err, resilience.ErrCircuitOpen)
}

func (d *Dispatcher) call(ctx context.Context, req tts.Request) (tts.Result, error) {
	if d.opts.Limiter != nil {
		if err := d.opts.Limiter.Wait(ctx); err != nil {
			return tts.Result{}, errorsx.Wrap(fmt.Errorf("rate limiter: %w", err), errorsx.ReasonTTSRateLimit)
		}
	}
	// Allow may admit the half-open trial, so nothing may return between it
	// and OnSuccess/OnError.
	if !d.opts.Breaker.Allow() {
		return tts.Result{}, errorsx.Wrap(resilience.ErrCircuitOpen, errorsx.ReasonTTSCircuitOpen)
	}
	res, err := d.callWithTimeout(ctx, req)
	if err != nil {
		d.opts.Breaker.OnError(err)
		switch {
		case errors.Is(err, ErrTimeout):
			return tts.Result{}, errorsx.Wrap(err, errorsx.ReasonTTSTimeout)
		case resilience.IsRateLimit(err):
			return tts.Result{}, errorsx.Wrap(err, errorsx.ReasonTTSRateLimit)
		}
		return tts.Result{}, err
	}
	d.opts.Breaker.OnSuccess()
	if res.Provider == "" {
		res.Provider = d.providerName(req)
	}
	return res, nil
}

func (d *Dispatcher) callWithTimeout(ctx context.Context, req tts.Request) (tts.Result, error) {
	if d.opts.Timeout <= 0 {
		return d.provider.Generate(ctx, req)
	}
	callCtx, cancel := context.WithTimeout(ctx, d.opts.Timeout)
	defer cancel()
	type result struct {
		res tts.Result
		err error
	}
	ch := make(chan result, 1)
	go func() {
		res, err := d.provider.Generate(callCtx, req)
		ch <- result{res: res, err: err}
	}()
	select {
	case out := <-ch:
		if out.err != nil && errors.Is(out.err, context.DeadlineExceeded) && ctx.Err() == nil {
			return tts.Result{}, fmt.Errorf("%w after %s", ErrTimeout, d.opts.Timeout)
		}
		return out.res, out.err
	case <-callCtx.Done():
		if ctx.Err() != nil {
			return tts.Result{}, ctx.Err()
		}
		return tts.Result{}, fmt.Errorf("%w after %s", ErrTimeout, d.opts.Timeout)
	}
}

func (d *Dispatcher) providerName(req tts.Request) string {
	if req.Provider != "" {
		return req.Provider
	}
	return d.provider.Name()
}

func (d *Dispatcher) emitSegment(name string, seg segment.AudioSegment, req tts.Request, res tts.Result, latency time.Duration, batchID string, opts GenerateOptions) {
	tags := map[string]string{
		metrics.TagProvider: res.Provider,
		metrics.TagVoice:    req.Voice,
		metrics.TagHash:     seg.Hash,
		metrics.TagCached:   strconv.FormatBool(res.Cached),
	}
	fields := map[string]any{
		"index":      seg.Index,
		"chars":      utf8.RuneCountInString(req.Text),
		"words":      seg.WordCount,
		"plain":      req.Text == seg.PlainText,
		"latency_ms": latency.Milliseconds(),
	}
	if name == metrics.EventSSMLFallback {
		tags[metrics.TagProvider] = d.providerName(req)
	}
	d.emitTags(name, time.Now(), latency.Seconds(), batchID, opts, tags, fields)
}

func (d *Dispatcher) emit(name string, at time.Time, value float64, batchID string, opts GenerateOptions, fields map[string]any) {
	tags := map[string]string{metrics.TagProvider: d.providerName(tts.Request{Provider: opts.Provider})}
	if s, ok := fields["status"].(string); ok {
		tags[metrics.TagStatus] = s
	}
	d.emitTags(name, at, value, batchID, opts, tags, fields)
}

func (d *Dispatcher) emitTags(name string, at time.Time, value float64, batchID string, opts GenerateOptions, tags map[string]string, fields map[string]any) {
	tags[metrics.TagBatchID] = batchID
	if opts.Mode != "" {
		tags[metrics.TagMode] = string(opts.Mode)
	}
	if opts.SessionID != "" {
		tags[metrics.TagSessionID] = opts.SessionID
	}
	d.opts.Observer.RecordEvent(metrics.MetricsEvent{
		Name:   name,
		Time:   at,
		Value:  value,
		Tags:   tags,
		Fields: fields,
	})
}
