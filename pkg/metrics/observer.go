package metrics

import "time"

// Event names emitted by the audio pipeline.
const (
	EventBatchStart       = "tts_batch_start"
	EventBatchDone        = "tts_batch_done"
	EventSegmentGenerated = "tts_segment_generated"
	EventSegmentFailed    = "tts_segment_failed"
	EventSSMLFallback     = "tts_ssml_fallback"
)

// Tag keys shared by emitters and observers.
const (
	TagBatchID   = "batch_id"
	TagProvider  = "provider"
	TagVoice     = "voice"
	TagMode      = "mode"
	TagSessionID = "session_id"
	TagHash      = "hash"
	TagCached    = "cached"
	TagStatus    = "status"
)

type MetricsEvent struct {
	Name   string
	Time   time.Time
	Value  float64
	Tags   map[string]string
	Fields map[string]any
}

type Observer interface {
	RecordEvent(ev MetricsEvent)
}

type Flusher interface {
	Flush() error
}

type NoopObserver struct{}

func (NoopObserver) RecordEvent(MetricsEvent) {}

// IntField reads an integer field regardless of whether it was decoded as int
// or float64.
func IntField(fields map[string]any, key string) int {
	switch v := fields[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}
