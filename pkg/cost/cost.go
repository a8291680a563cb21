// Package cost models what serving synthesized audio costs under caching,
// batching and segmentation, and summarizes what it actually cost from the
// generation log.
package cost

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

var (
	ErrInvalidProfile = errors.New("cost: invalid usage profile")
	ErrNoRecords      = errors.New("cost: no generation records in range")
)

const (
	// DefaultBatchingDiscountFactor is the share of per-request cost saved when a
	// request rides in a batched call. Amortized connection and request overhead;
	// characters are billed the same either way.
	DefaultBatchingDiscountFactor = 0.1

	// DefaultSegmentCallOverheadUSD is the fixed cost attributed to each extra
	// provider call a segmented response needs.
	DefaultSegmentCallOverheadUSD = 0.0002

	// DefaultMode is the mode unattributed traffic is billed to.
	DefaultMode = "full"

	// CharsPerWord converts between word and character averages, space included.
	CharsPerWord = 6.0

	distributionTolerance = 0.01
)

// Assumptions holds the heuristic multipliers. They are observations from one
// provider mix and should be re-measured before trusting them for another.
type Assumptions struct {
	BatchingDiscountFactor float64 `mapstructure:"batching_discount_factor" json:"batching_discount_factor"`
	SegmentCallOverheadUSD float64 `mapstructure:"segment_call_overhead_usd" json:"segment_call_overhead_usd"`
}

func DefaultAssumptions() Assumptions {
	return Assumptions{
		BatchingDiscountFactor: DefaultBatchingDiscountFactor,
		SegmentCallOverheadUSD: DefaultSegmentCallOverheadUSD,
	}
}

func (a Assumptions) Validate() error {
	if a.BatchingDiscountFactor < 0 || a.BatchingDiscountFactor > 1 {
		return fmt.Errorf("%w: batching_discount_factor %v outside [0,1]", ErrInvalidProfile, a.BatchingDiscountFactor)
	}
	if a.SegmentCallOverheadUSD < 0 {
		return fmt.Errorf("%w: segment_call_overhead_usd must not be negative", ErrInvalidProfile)
	}
	return nil
}

type Price struct {
	PricePerCharacter float64 `mapstructure:"price_per_character" json:"price_per_character"`
	ModelName         string  `mapstructure:"model" json:"model"`
}

// ProviderPricing maps provider name to its character price.
type ProviderPricing map[string]Price

// DefaultPricing lists published per-character list prices.
//
//	elevenlabs  eleven_multilingual_v2  $0.30 / 1K chars
//	openai      tts-1                   $15 / 1M chars
//	deepgram    aura                    $0.015 / 1K chars
//	mock        -                       free
var DefaultPricing = ProviderPricing{
	"elevenlabs": {PricePerCharacter: 0.00003, ModelName: "eleven_multilingual_v2"},
	"openai":     {PricePerCharacter: 0.000015, ModelName: "tts-1"},
	"deepgram":   {PricePerCharacter: 0.000015, ModelName: "aura-asteria-en"},
	"mock":       {PricePerCharacter: 0, ModelName: "mock"},
}

// UsageProfile describes average traffic. Rates are fractions in [0,1];
// distributions map a name to its share of requests and sum to 1.
type UsageProfile struct {
	AvgTextLengthWords         float64            `mapstructure:"avg_text_length_words" json:"avg_text_length_words"`
	AvgTextLengthChars         float64            `mapstructure:"avg_text_length_chars" json:"avg_text_length_chars"`
	RequestsPerSession         float64            `mapstructure:"requests_per_session" json:"requests_per_session"`
	CacheHitRate               float64            `mapstructure:"cache_hit_rate" json:"cache_hit_rate"`
	BatchingRate               float64            `mapstructure:"batching_rate" json:"batching_rate"`
	SegmentationRate           float64            `mapstructure:"segmentation_rate" json:"segmentation_rate"`
	AvgSegmentsPerLongResponse float64            `mapstructure:"avg_segments_per_long_response" json:"avg_segments_per_long_response"`
	ProviderDistribution       map[string]float64 `mapstructure:"provider_distribution" json:"provider_distribution"`
	ModeDistribution           map[string]float64 `mapstructure:"mode_distribution" json:"mode_distribution,omitempty"`
}

// Validate rejects out-of-range values instead of correcting them.
func (p UsageProfile) Validate() error {
	if p.AvgTextLengthWords < 0 || p.AvgTextLengthChars < 0 {
		return fmt.Errorf("%w: text lengths must not be negative", ErrInvalidProfile)
	}
	if p.RequestsPerSession < 0 {
		return fmt.Errorf("%w: requests_per_session must not be negative", ErrInvalidProfile)
	}
	for name, v := range map[string]float64{
		"cache_hit_rate":    p.CacheHitRate,
		"batching_rate":     p.BatchingRate,
		"segmentation_rate": p.SegmentationRate,
	} {
		if v < 0 || v > 1 || math.IsNaN(v) {
			return fmt.Errorf("%w: %s %v outside [0,1]", ErrInvalidProfile, name, v)
		}
	}
	if p.AvgSegmentsPerLongResponse != 0 && p.AvgSegmentsPerLongResponse < 1 {
		return fmt.Errorf("%w: avg_segments_per_long_response must be at least 1", ErrInvalidProfile)
	}
	if len(p.ProviderDistribution) == 0 {
		return fmt.Errorf("%w: provider_distribution is required", ErrInvalidProfile)
	}
	if err := validateDistribution("provider_distribution", p.ProviderDistribution); err != nil {
		return err
	}
	if len(p.ModeDistribution) > 0 {
		if err := validateDistribution("mode_distribution", p.ModeDistribution); err != nil {
			return err
		}
	}
	return nil
}

func validateDistribution(field string, dist map[string]float64) error {
	sum := 0.0
	for k, v := range dist {
		if v < 0 || math.IsNaN(v) {
			return fmt.Errorf("%w: %s[%s] is negative", ErrInvalidProfile, field, k)
		}
		sum += v
	}
	if math.Abs(sum-1) > distributionTolerance {
		return fmt.Errorf("%w: %s sums to %.4f, want 1", ErrInvalidProfile, field, sum)
	}
	return nil
}

func (p UsageProfile) chars() float64 {
	if p.AvgTextLengthChars > 0 {
		return p.AvgTextLengthChars
	}
	return p.AvgTextLengthWords * CharsPerWord
}

func (p UsageProfile) segments() float64 {
	if p.AvgSegmentsPerLongResponse == 0 {
		return 1
	}
	return p.AvgSegmentsPerLongResponse
}

// shares splits total by the distribution's weights, normalized so the parts
// add back up to total.
func shares(total float64, dist map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(dist))
	sum := 0.0
	for _, v := range dist {
		sum += v
	}
	for k, v := range dist {
		if sum == 0 {
			out[k] = 0
			continue
		}
		out[k] = total * v / sum
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
