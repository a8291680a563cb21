package metrics

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsyncObserverDeliversBeforeClose(t *testing.T) {
	mem := NewMemoryObserver()
	async := NewAsyncObserver(mem, 16)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			async.RecordEvent(MetricsEvent{Name: EventSegmentGenerated})
		}()
	}
	wg.Wait()
	async.Close()
	async.Close()
	async.RecordEvent(MetricsEvent{Name: EventSegmentGenerated})

	assert.Len(t, mem.Named(EventSegmentGenerated), 8)
	assert.Zero(t, async.Dropped())
}

func TestSamplingObserverKeepsListedEvents(t *testing.T) {
	mem := NewMemoryObserver()
	s := NewSamplingObserver(mem, 0.25, EventBatchDone)
	for i := 0; i < 8; i++ {
		s.RecordEvent(MetricsEvent{Name: EventSegmentGenerated})
	}
	s.RecordEvent(MetricsEvent{Name: EventBatchDone})

	assert.Len(t, mem.Named(EventSegmentGenerated), 2)
	assert.Len(t, mem.Named(EventBatchDone), 1)

	none := NewSamplingObserver(mem, 0)
	none.RecordEvent(MetricsEvent{Name: "dropped"})
	assert.Empty(t, mem.Named("dropped"))
}

func TestSamplingObserverSamplesWholeBatches(t *testing.T) {
	mem := NewMemoryObserver()
	s := NewSamplingObserver(mem, 0.5, EventBatchDone)
	for b := 0; b < 4; b++ {
		tags := map[string]string{TagBatchID: fmt.Sprintf("batch-%d", b)}
		s.RecordEvent(MetricsEvent{Name: EventBatchStart, Tags: tags})
		for i := 0; i < 3; i++ {
			s.RecordEvent(MetricsEvent{Name: EventSegmentGenerated, Tags: tags})
		}
		s.RecordEvent(MetricsEvent{Name: EventBatchDone, Tags: tags})
	}

	assert.Len(t, mem.Named(EventBatchStart), 2)
	assert.Len(t, mem.Named(EventSegmentGenerated), 6, "sampled batches keep all their segments")
	assert.Len(t, mem.Named(EventBatchDone), 4)
	assert.Empty(t, s.batches, "finished batches are forgotten")
}

func TestJSONLObserver(t *testing.T) {
	var buf bytes.Buffer
	o := NewJSONLObserver(&buf)
	o.RecordEvent(MetricsEvent{
		Name:   EventSegmentGenerated,
		Time:   time.Unix(0, 0).UTC(),
		Value:  0.2,
		Tags:   map[string]string{TagProvider: "mock"},
		Fields: map[string]any{"chars": 42},
	})
	line := buf.String()
	assert.True(t, strings.HasSuffix(line, "\n"))
	assert.Contains(t, line, `"name":"tts_segment_generated"`)
	assert.Contains(t, line, `"provider":"mock"`)
	assert.Contains(t, line, `"chars":42`)
}

func TestPrometheusObserver(t *testing.T) {
	reg := prometheus.NewRegistry()
	o, err := NewPrometheusObserver(reg)
	require.NoError(t, err)

	o.RecordEvent(MetricsEvent{
		Name:   EventSegmentGenerated,
		Value:  0.3,
		Tags:   map[string]string{TagProvider: "openai", TagCached: "false"},
		Fields: map[string]any{"chars": 120},
	})
	o.RecordEvent(MetricsEvent{Name: EventSegmentFailed, Tags: map[string]string{TagProvider: "openai"}})
	o.RecordEvent(MetricsEvent{Name: EventSSMLFallback, Tags: map[string]string{TagProvider: "openai"}})

	assert.Equal(t, 1.0, testutil.ToFloat64(o.segmentsTotal.WithLabelValues("openai", "success", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(o.segmentsTotal.WithLabelValues("openai", "error", "false")))
	assert.Equal(t, 120.0, testutil.ToFloat64(o.charsTotal.WithLabelValues("openai", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(o.fallbacksTotal.WithLabelValues("openai")))

	_, err = NewPrometheusObserver(reg)
	assert.Error(t, err, "duplicate registration must fail")
}

func TestIntField(t *testing.T) {
	f := map[string]any{"a": 3, "b": float64(4), "c": int64(5), "d": "x"}
	assert.Equal(t, 3, IntField(f, "a"))
	assert.Equal(t, 4, IntField(f, "b"))
	assert.Equal(t, 5, IntField(f, "c"))
	assert.Equal(t, 0, IntField(f, "d"))
	assert.Equal(t, 0, IntField(nil, "a"))
}
