package observers

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/harunnryd/voxa/pkg/metrics"
	"github.com/harunnryd/voxa/pkg/redact"
)

// TimelineObserver appends every pipeline event to a JSONL file named after
// the session, or after the batch when the request carried no session. Each
// line records its offset from the first event of that timeline, so a reader
// can see when each segment landed relative to the start of the response.
type TimelineObserver struct {
	dir string

	mu    sync.Mutex
	lines map[string]*timelineFile
}

type timelineFile struct {
	f       *os.File
	started time.Time
	// byBatch timelines end with their batch; session timelines span batches.
	byBatch bool
}

type timelineEntry struct {
	Time     time.Time         `json:"time"`
	OffsetMS int64             `json:"offset_ms"`
	Event    string            `json:"event"`
	BatchID  string            `json:"batch_id,omitempty"`
	Segment  *int              `json:"segment,omitempty"`
	Provider string            `json:"provider,omitempty"`
	Cached   bool              `json:"cached,omitempty"`
	Tags     map[string]string `json:"tags,omitempty"`
	Fields   map[string]any    `json:"fields,omitempty"`
}

func NewTimelineObserver(dir string) *TimelineObserver {
	return &TimelineObserver{dir: strings.TrimSpace(dir), lines: make(map[string]*timelineFile)}
}

func (o *TimelineObserver) RecordEvent(ev metrics.MetricsEvent) {
	if o.dir == "" {
		return
	}
	key, byBatch := timelineKey(ev.Tags)
	if key == "" {
		return
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	tf := o.openLocked(key, byBatch, ev.Time)
	if tf == nil {
		return
	}
	line, err := json.Marshal(newTimelineEntry(ev, tf.started))
	if err != nil {
		return
	}
	_, _ = tf.f.Write(append(line, '\n'))

	if tf.byBatch && ev.Name == metrics.EventBatchDone {
		_ = tf.f.Close()
		delete(o.lines, key)
	}
}

// Close closes every open timeline.
func (o *TimelineObserver) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	var err error
	for key, tf := range o.lines {
		err = errors.Join(err, tf.f.Close())
		delete(o.lines, key)
	}
	return err
}

func (o *TimelineObserver) openLocked(key string, byBatch bool, at time.Time) *timelineFile {
	if tf := o.lines[key]; tf != nil {
		return tf
	}
	if err := os.MkdirAll(o.dir, 0o755); err != nil {
		return nil
	}
	f, err := os.OpenFile(filepath.Join(o.dir, key+".jsonl"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil
	}
	if at.IsZero() {
		at = time.Now()
	}
	tf := &timelineFile{f: f, started: at, byBatch: byBatch}
	o.lines[key] = tf
	return tf
}

// timelineKey picks the file name for an event and reports whether it is
// keyed by batch.
func timelineKey(tags map[string]string) (string, bool) {
	if id := fileSafe(tags[metrics.TagSessionID]); id != "" {
		return id, false
	}
	return fileSafe(tags[metrics.TagBatchID]), true
}

func newTimelineEntry(ev metrics.MetricsEvent, started time.Time) timelineEntry {
	at := ev.Time
	if at.IsZero() {
		at = time.Now()
	}
	entry := timelineEntry{
		Time:     at.UTC(),
		OffsetMS: at.Sub(started).Milliseconds(),
		Event:    ev.Name,
		BatchID:  ev.Tags[metrics.TagBatchID],
		Provider: ev.Tags[metrics.TagProvider],
		Cached:   ev.Tags[metrics.TagCached] == "true",
	}
	if _, ok := ev.Fields["index"]; ok {
		idx := metrics.IntField(ev.Fields, "index")
		entry.Segment = &idx
	}

	for k, v := range ev.Tags {
		switch k {
		case metrics.TagSessionID, metrics.TagBatchID, metrics.TagProvider, metrics.TagCached:
			continue
		}
		if entry.Tags == nil {
			entry.Tags = make(map[string]string, len(ev.Tags))
		}
		entry.Tags[k] = v
	}
	for k, v := range ev.Fields {
		if k == "index" {
			continue
		}
		if entry.Fields == nil {
			entry.Fields = make(map[string]any, len(ev.Fields))
		}
		// Text previews may carry contact details.
		if s, ok := v.(string); ok {
			v = redact.Text(s)
		}
		entry.Fields[k] = v
	}
	return entry
}

func fileSafe(id string) string {
	id = strings.TrimSpace(id)
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, id)
}

var _ metrics.Observer = (*TimelineObserver)(nil)
