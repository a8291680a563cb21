package observers

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/harunnryd/voxa/pkg/cost"
	"github.com/harunnryd/voxa/pkg/errorsx"
	"github.com/harunnryd/voxa/pkg/genlog"
	"github.com/harunnryd/voxa/pkg/logging"
	"github.com/harunnryd/voxa/pkg/metrics"
	"github.com/harunnryd/voxa/pkg/resilience"
)

// GenerationLogObserver appends one generation record per generated segment.
// Writes are synchronous; wrap it in metrics.AsyncObserver to keep them off the
// dispatch path.
type GenerationLogObserver struct {
	w       genlog.Writer
	pricing cost.ProviderPricing
	retry   resilience.RetryPolicy
	timeout time.Duration
	log     *slog.Logger
}

type GenerationLogOption func(*GenerationLogObserver)

func WithPricing(p cost.ProviderPricing) GenerationLogOption {
	return func(o *GenerationLogObserver) { o.pricing = p }
}

func WithRetry(p resilience.RetryPolicy) GenerationLogOption {
	return func(o *GenerationLogObserver) { o.retry = p }
}

func WithWriteTimeout(d time.Duration) GenerationLogOption {
	return func(o *GenerationLogObserver) { o.timeout = d }
}

func NewGenerationLogObserver(w genlog.Writer, log *slog.Logger, opts ...GenerationLogOption) *GenerationLogObserver {
	o := &GenerationLogObserver{
		w:       w,
		pricing: cost.DefaultPricing,
		retry:   resilience.RetryPolicy{MaxRetries: 2, Backoff: 100 * time.Millisecond, Retryable: genlog.Transient},
		timeout: 5 * time.Second,
		log:     logging.NewComponentLogger(log, "genlog_observer"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *GenerationLogObserver) RecordEvent(ev metrics.MetricsEvent) {
	if o.w == nil || ev.Name != metrics.EventSegmentGenerated {
		return
	}
	rec := o.record(ev)
	ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
	defer cancel()
	err := o.retry.Do(ctx, func() error { return o.w.Append(ctx, rec) })
	if err != nil {
		err = errorsx.Wrap(err, errorsx.ReasonLogAppend)
		o.log.Error("generation_log_append_failed", "provider", rec.Provider, "session_id", rec.SessionID, "reason", errorsx.Reason(err), "error", err)
	}
}

func (o *GenerationLogObserver) record(ev metrics.MetricsEvent) genlog.Record {
	cached, _ := strconv.ParseBool(ev.Tags[metrics.TagCached])
	rec := genlog.Record{
		Provider:   ev.Tags[metrics.TagProvider],
		TextLength: metrics.IntField(ev.Fields, "chars"),
		Cached:     cached,
		Mode:       ev.Tags[metrics.TagMode],
		CreatedAt:  ev.Time,
		SessionID:  ev.Tags[metrics.TagSessionID],
		Voice:      ev.Tags[metrics.TagVoice],
		Hash:       ev.Tags[metrics.TagHash],
	}
	if !cached {
		if price, ok := o.pricing[rec.Provider]; ok {
			rec.EstimatedCost = float64(rec.TextLength) * price.PricePerCharacter
		}
	}
	return rec
}

var _ metrics.Observer = (*GenerationLogObserver)(nil)
