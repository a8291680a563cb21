package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "voxa"

// PrometheusObserver exports segment generation counters and latencies.
type PrometheusObserver struct {
	segmentsTotal   *prometheus.CounterVec
	segmentDuration *prometheus.HistogramVec
	charsTotal      *prometheus.CounterVec
	fallbacksTotal  *prometheus.CounterVec
	batchDuration   *prometheus.HistogramVec
}

// NewPrometheusObserver registers its collectors on reg.
func NewPrometheusObserver(reg prometheus.Registerer) (*PrometheusObserver, error) {
	o := &PrometheusObserver{
		segmentsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tts_segments_total",
				Help:      "Total number of audio segments by provider and outcome",
			},
			[]string{"provider", "status", "cached"}, // status: success, error
		),
		segmentDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "tts_segment_duration_seconds",
				Help:      "Duration of provider calls per segment in seconds",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"provider"},
		),
		charsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tts_characters_total",
				Help:      "Characters sent for synthesis",
			},
			[]string{"provider", "cached"},
		),
		fallbacksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tts_ssml_fallbacks_total",
				Help:      "SSML attempts retried as plain text",
			},
			[]string{"provider"},
		),
		batchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "tts_batch_duration_seconds",
				Help:      "Wall time to generate all segments of a response",
				Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"status"},
		),
	}
	for _, c := range []prometheus.Collector{o.segmentsTotal, o.segmentDuration, o.charsTotal, o.fallbacksTotal, o.batchDuration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return o, nil
}

func (o *PrometheusObserver) RecordEvent(ev MetricsEvent) {
	provider := ev.Tags[TagProvider]
	cached := ev.Tags[TagCached]
	if cached == "" {
		cached = strconv.FormatBool(false)
	}
	switch ev.Name {
	case EventSegmentGenerated:
		o.segmentsTotal.WithLabelValues(provider, "success", cached).Inc()
		o.segmentDuration.WithLabelValues(provider).Observe(ev.Value)
		o.charsTotal.WithLabelValues(provider, cached).Add(float64(IntField(ev.Fields, "chars")))
	case EventSegmentFailed:
		o.segmentsTotal.WithLabelValues(provider, "error", cached).Inc()
	case EventSSMLFallback:
		o.fallbacksTotal.WithLabelValues(provider).Inc()
	case EventBatchDone:
		o.batchDuration.WithLabelValues(ev.Tags[TagStatus]).Observe(ev.Value)
	}
}
