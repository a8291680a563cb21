// Package genlog is the append-only record of completed audio generations.
package genlog

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidRange = errors.New("genlog: end must not be before start")

// Record describes one completed provider generation or cache hit.
type Record struct {
	ID            string    `json:"id"`
	Provider      string    `json:"provider"`
	TextLength    int       `json:"text_length"`
	Cached        bool      `json:"cached"`
	ActualCost    float64   `json:"actual_cost"`
	EstimatedCost float64   `json:"estimated_cost"`
	Mode          string    `json:"mode"`
	CreatedAt     time.Time `json:"created_at"`
	SessionID     string    `json:"session_id"`
	Voice         string    `json:"voice,omitempty"`
	Hash          string    `json:"hash,omitempty"`
}

// Writer appends records. Append fills ID and CreatedAt when empty.
type Writer interface {
	Append(ctx context.Context, r Record) error
}

// Reader returns records with start <= CreatedAt < end, oldest first.
type Reader interface {
	Range(ctx context.Context, start, end time.Time) ([]Record, error)
}

type Log interface {
	Writer
	Reader
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

func prepare(r Record, now time.Time) Record {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.CreatedAt = r.CreatedAt.UTC()
	return r
}

// MemoryLog keeps records in process memory.
type MemoryLog struct {
	mu      sync.RWMutex
	records []Record
	now     func() time.Time
}

func NewMemoryLog() *MemoryLog {
	return &MemoryLog{now: time.Now}
}

func (m *MemoryLog) Append(_ context.Context, r Record) error {
	r = prepare(r, m.now())
	m.mu.Lock()
	m.records = append(m.records, r)
	m.mu.Unlock()
	return nil
}

func (m *MemoryLog) Range(_ context.Context, start, end time.Time) ([]Record, error) {
	if end.Before(start) {
		return nil, ErrInvalidRange
	}
	m.mu.RLock()
	var out []Record
	for _, r := range m.records {
		if !r.CreatedAt.Before(start) && r.CreatedAt.Before(end) {
			out = append(out, r)
		}
	}
	m.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryLog) PurgeBefore(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.records[:0]
	var removed int64
	for _, r := range m.records {
		if r.CreatedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	m.records = kept
	return removed, nil
}

var _ Log = (*MemoryLog)(nil)
