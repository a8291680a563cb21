package cost

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/harunnryd/voxa/pkg/genlog"
)

// LongResponseChars is the text length above which a logged generation counts
// as a long response when inferring the segmentation rate.
const LongResponseChars = 600

type ProviderUsage struct {
	Requests   int     `json:"requests"`
	Cached     int     `json:"cached"`
	Characters int     `json:"characters"`
	Cost       float64 `json:"cost"`
}

type ModeUsage struct {
	Requests int     `json:"requests"`
	Cost     float64 `json:"cost"`
}

// HistoricalSummary aggregates logged generations over a date range.
type HistoricalSummary struct {
	Start             time.Time                `json:"start"`
	End               time.Time                `json:"end"`
	Days              float64                  `json:"days"`
	TotalRequests     int                      `json:"total_requests"`
	CachedRequests    int                      `json:"cached_requests"`
	CacheHitRate      float64                  `json:"cache_hit_rate"`
	TotalCharacters   int                      `json:"total_characters"`
	TotalCost         float64                  `json:"total_cost"`
	AvgCostPerRequest float64                  `json:"avg_cost_per_request"`
	Sessions          int                      `json:"sessions"`
	DailyAverage      float64                  `json:"daily_average"`
	MonthlyProjection float64                  `json:"monthly_projection"`
	ByProvider        map[string]ProviderUsage `json:"by_provider"`
	ByMode            map[string]ModeUsage     `json:"by_mode"`
	Unpriced          []string                 `json:"unpriced,omitempty"`
}

// RecordCost is what one record cost: the measured amount when known, else the
// logged estimate, else the character price. Cache hits with no recorded cost
// are free.
func RecordCost(r genlog.Record, pricing ProviderPricing) (float64, bool) {
	switch {
	case r.ActualCost > 0:
		return r.ActualCost, true
	case r.EstimatedCost > 0:
		return r.EstimatedCost, true
	case r.Cached:
		return 0, true
	}
	if pricing == nil {
		pricing = DefaultPricing
	}
	price, ok := pricing[r.Provider]
	if !ok {
		return 0, false
	}
	return float64(r.TextLength) * price.PricePerCharacter, true
}

func readRange(ctx context.Context, log genlog.Reader, start, end time.Time) ([]genlog.Record, error) {
	records, err := log.Range(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("reading generation log: %w", err)
	}
	if len(records) == 0 {
		return nil, ErrNoRecords
	}
	return records, nil
}

// AnalyzeHistoricalCosts summarizes records with start <= created_at < end. The
// monthly projection is the daily average over the range times 30.
func AnalyzeHistoricalCosts(ctx context.Context, log genlog.Reader, start, end time.Time, pricing ProviderPricing) (HistoricalSummary, error) {
	records, err := readRange(ctx, log, start, end)
	if err != nil {
		return HistoricalSummary{}, err
	}

	s := HistoricalSummary{
		Start:      start,
		End:        end,
		ByProvider: make(map[string]ProviderUsage),
		ByMode:     make(map[string]ModeUsage),
	}
	sessions := make(map[string]struct{})
	unpriced := make(map[string]struct{})
	for _, r := range records {
		c, ok := RecordCost(r, pricing)
		if !ok {
			unpriced[r.Provider] = struct{}{}
		}
		s.TotalRequests++
		s.TotalCharacters += r.TextLength
		s.TotalCost += c
		if r.Cached {
			s.CachedRequests++
		}
		if r.SessionID != "" {
			sessions[r.SessionID] = struct{}{}
		}

		pu := s.ByProvider[r.Provider]
		pu.Requests++
		pu.Characters += r.TextLength
		pu.Cost += c
		if r.Cached {
			pu.Cached++
		}
		s.ByProvider[r.Provider] = pu

		if r.Mode != "" {
			mu := s.ByMode[r.Mode]
			mu.Requests++
			mu.Cost += c
			s.ByMode[r.Mode] = mu
		}
	}
	s.Unpriced = sortedKeys(unpriced)
	s.Sessions = len(sessions)
	s.CacheHitRate = float64(s.CachedRequests) / float64(s.TotalRequests)
	s.AvgCostPerRequest = s.TotalCost / float64(s.TotalRequests)
	s.Days = math.Max(end.Sub(start).Hours()/24, 1)
	s.DailyAverage = s.TotalCost / s.Days
	s.MonthlyProjection = s.DailyAverage * 30
	return s, nil
}

// GenerateUsageProfile infers a profile from records with start <= created_at <
// end. The log does not say whether calls were batched, so BatchingRate is 0.
func GenerateUsageProfile(ctx context.Context, log genlog.Reader, start, end time.Time) (UsageProfile, error) {
	records, err := readRange(ctx, log, start, end)
	if err != nil {
		return UsageProfile{}, err
	}

	n := float64(len(records))
	var chars, cached, long, longSegments float64
	providers := make(map[string]float64)
	modes := make(map[string]float64)
	moded := 0.0
	sessionReqs := make(map[string]int)
	anonymous := 0
	for _, r := range records {
		chars += float64(r.TextLength)
		if r.Cached {
			cached++
		}
		if r.TextLength > LongResponseChars {
			long++
			longSegments += math.Ceil(float64(r.TextLength) / LongResponseChars)
		}
		providers[r.Provider]++
		if r.Mode != "" {
			modes[r.Mode]++
			moded++
		}
		if r.SessionID == "" {
			anonymous++
		} else {
			sessionReqs[r.SessionID]++
		}
	}

	p := UsageProfile{
		AvgTextLengthChars:   chars / n,
		RequestsPerSession:   n / float64(len(sessionReqs)+anonymous),
		CacheHitRate:         cached / n,
		ProviderDistribution: make(map[string]float64, len(providers)),
	}
	p.AvgTextLengthWords = p.AvgTextLengthChars / CharsPerWord
	for name, count := range providers {
		p.ProviderDistribution[name] = count / n
	}
	if moded > 0 {
		p.ModeDistribution = make(map[string]float64, len(modes))
		for mode, count := range modes {
			p.ModeDistribution[mode] = count / moded
		}
	}
	if long > 0 {
		p.SegmentationRate = long / n
		p.AvgSegmentsPerLongResponse = longSegments / long
	}
	return p, nil
}
