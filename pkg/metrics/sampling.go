package metrics

import (
	"math"
	"sync"
	"sync/atomic"
)

// SamplingObserver forwards roughly rate of the traffic it sees. Events that
// belong to a batch are sampled per batch, so a sampled response keeps every
// one of its segment events and a timeline is never left with holes. Events
// without a batch are sampled one by one. Names listed in keep always pass.
type SamplingObserver struct {
	inner Observer
	every uint64
	keep  map[string]struct{}

	counter atomic.Uint64

	mu      sync.Mutex
	batches map[string]bool
}

func NewSamplingObserver(inner Observer, rate float64, keep ...string) *SamplingObserver {
	rate = math.Max(0, math.Min(1, rate))
	var every uint64
	if rate > 0 {
		every = max(1, uint64(math.Round(1/rate)))
	}
	s := &SamplingObserver{
		inner:   inner,
		every:   every,
		keep:    make(map[string]struct{}, len(keep)),
		batches: make(map[string]bool),
	}
	for _, name := range keep {
		s.keep[name] = struct{}{}
	}
	return s
}

func (s *SamplingObserver) RecordEvent(ev MetricsEvent) {
	sampled := s.sampled(ev)
	if _, ok := s.keep[ev.Name]; ok || sampled {
		s.inner.RecordEvent(ev)
	}
}

func (s *SamplingObserver) sampled(ev MetricsEvent) bool {
	batch := ev.Tags[TagBatchID]
	if batch == "" {
		return s.next()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	keep, seen := s.batches[batch]
	if !seen {
		keep = s.next()
	}
	if ev.Name == EventBatchDone {
		delete(s.batches, batch)
	} else {
		s.batches[batch] = keep
	}
	return keep
}

func (s *SamplingObserver) next() bool {
	switch s.every {
	case 0:
		return false
	case 1:
		return true
	}
	return s.counter.Add(1)%s.every == 0
}
