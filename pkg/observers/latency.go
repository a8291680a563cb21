package observers

import (
	"log/slog"
	"sync"
	"time"

	"github.com/harunnryd/voxa/pkg/metrics"
)

// LatencyObserver follows each dispatch batch from start to done and logs how
// long the first segment and the whole batch took.
type LatencyObserver struct {
	mu      sync.Mutex
	batches map[string]*batchTrace
	stats   LatencyStats
	log     *slog.Logger
}

type batchTrace struct {
	start     time.Time
	firstDone time.Time
	segments  int
	fallbacks int
	sessionID string
}

// LatencyStats accumulates completed batches.
type LatencyStats struct {
	Batches int
	Failed  int
	Total   time.Duration
	Max     time.Duration
}

func (s LatencyStats) Mean() time.Duration {
	if s.Batches == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Batches)
}

func NewLatencyObserver(log *slog.Logger) *LatencyObserver {
	if log == nil {
		log = slog.Default()
	}
	return &LatencyObserver{
		batches: make(map[string]*batchTrace),
		log:     log,
	}
}

func (o *LatencyObserver) RecordEvent(ev metrics.MetricsEvent) {
	batchID := ev.Tags[metrics.TagBatchID]
	if batchID == "" {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	t := o.batches[batchID]
	if t == nil {
		t = &batchTrace{sessionID: ev.Tags[metrics.TagSessionID]}
		o.batches[batchID] = t
	}
	switch ev.Name {
	case metrics.EventBatchStart:
		if t.start.IsZero() {
			t.start = ev.Time
		}
		t.segments = metrics.IntField(ev.Fields, "segments")
	case metrics.EventSegmentGenerated:
		if t.firstDone.IsZero() {
			t.firstDone = ev.Time
		}
	case metrics.EventSSMLFallback:
		t.fallbacks++
	case metrics.EventBatchDone:
		o.finishLocked(batchID, t, ev)
		delete(o.batches, batchID)
	}
}

func (o *LatencyObserver) finishLocked(batchID string, t *batchTrace, ev metrics.MetricsEvent) {
	total := durationMs(t.start, ev.Time)
	failed := ev.Tags[metrics.TagStatus] == "error"
	if total >= 0 {
		d := time.Duration(total) * time.Millisecond
		o.stats.Batches++
		o.stats.Total += d
		if d > o.stats.Max {
			o.stats.Max = d
		}
	}
	if failed {
		o.stats.Failed++
	}
	o.log.Info("latency",
		"batch_id", batchID,
		"session_id", t.sessionID,
		"segments", t.segments,
		"fallbacks", t.fallbacks,
		"first_segment_ms", durationMs(t.start, t.firstDone),
		"batch_ms", total,
		"failed", failed,
	)
}

func (o *LatencyObserver) Stats() LatencyStats {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stats
}

func durationMs(a, b time.Time) int64 {
	if a.IsZero() || b.IsZero() {
		return -1
	}
	return b.Sub(a).Milliseconds()
}

var _ metrics.Observer = (*LatencyObserver)(nil)
