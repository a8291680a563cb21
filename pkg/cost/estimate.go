package cost

import (
	"fmt"
)

type Breakdown struct {
	ByProvider map[string]float64 `json:"by_provider"`
	ByMode     map[string]float64 `json:"by_mode"`
	Cached     float64            `json:"cached"`
	Uncached   float64            `json:"uncached"`
	// Batched is the monthly amount saved by batching.
	Batched float64 `json:"batched"`
	// Segmented is the monthly overhead added by extra segment calls.
	Segmented float64 `json:"segmented"`
}

type Estimate struct {
	CostPerRequest float64   `json:"cost_per_request"`
	CostPerSession float64   `json:"cost_per_session"`
	CostPerUser    float64   `json:"cost_per_user"`
	MonthlyUsers   int       `json:"monthly_users"`
	MonthlyCost    float64   `json:"monthly_cost"`
	Breakdown      Breakdown `json:"breakdown"`
}

type Savings struct {
	Caching              float64 `json:"caching"`
	Batching             float64 `json:"batching"`
	Combined             float64 `json:"combined"`
	SegmentationOverhead float64 `json:"segmentation_overhead"`
}

type Comparison struct {
	Baseline     Estimate `json:"baseline"`
	WithCaching  Estimate `json:"with_caching"`
	WithBatching Estimate `json:"with_batching"`
	WithAll      Estimate `json:"with_all"`
	Savings      Savings  `json:"savings"`
}

// Estimator prices usage profiles. The zero value uses DefaultPricing with no
// batching discount and no segment overhead; use NewEstimator for defaults.
type Estimator struct {
	Pricing     ProviderPricing
	Assumptions Assumptions
	// DefaultMode receives the whole monthly cost in Breakdown.ByMode when a
	// profile carries no mode distribution. Empty means DefaultMode.
	DefaultMode string
}

func NewEstimator(pricing ProviderPricing) *Estimator {
	if pricing == nil {
		pricing = DefaultPricing
	}
	return &Estimator{Pricing: pricing, Assumptions: DefaultAssumptions(), DefaultMode: DefaultMode}
}

// EstimateCosts prices profile for monthlyUsers with default assumptions.
// A nil pricing table means DefaultPricing.
func EstimateCosts(profile UsageProfile, monthlyUsers int, pricing ProviderPricing) (Estimate, error) {
	return NewEstimator(pricing).Estimate(profile, monthlyUsers)
}

// CompareScenarios prices profile with and without each optimization.
func CompareScenarios(profile UsageProfile, monthlyUsers int, pricing ProviderPricing) (Comparison, error) {
	return NewEstimator(pricing).Compare(profile, monthlyUsers)
}

func (e *Estimator) modeShares(dist map[string]float64) map[string]float64 {
	if len(dist) > 0 {
		return dist
	}
	if e.DefaultMode != "" {
		return map[string]float64{e.DefaultMode: 1}
	}
	return map[string]float64{DefaultMode: 1}
}

func (e *Estimator) pricing() ProviderPricing {
	if e.Pricing == nil {
		return DefaultPricing
	}
	return e.Pricing
}

// weightedPrice is the per-character price averaged over the provider mix.
func (e *Estimator) weightedPrice(dist map[string]float64) (float64, error) {
	pricing := e.pricing()
	total := 0.0
	for _, name := range sortedKeys(dist) {
		price, ok := pricing[name]
		if !ok {
			return 0, fmt.Errorf("%w: no pricing for provider %q", ErrInvalidProfile, name)
		}
		total += dist[name] * price.PricePerCharacter
	}
	return total, nil
}

// Estimate computes per-request, per-session and monthly cost.
//
// A cache hit costs nothing. The remaining cost is discounted for the batched
// share, then the extra calls of segmented responses are added on top.
func (e *Estimator) Estimate(profile UsageProfile, monthlyUsers int) (Estimate, error) {
	if err := profile.Validate(); err != nil {
		return Estimate{}, err
	}
	if err := e.Assumptions.Validate(); err != nil {
		return Estimate{}, err
	}
	if monthlyUsers < 0 {
		return Estimate{}, fmt.Errorf("%w: monthly users must not be negative", ErrInvalidProfile)
	}
	price, err := e.weightedPrice(profile.ProviderDistribution)
	if err != nil {
		return Estimate{}, err
	}

	base := profile.chars() * price
	uncached := base * (1 - profile.CacheHitRate)
	batchSavings := uncached * profile.BatchingRate * e.Assumptions.BatchingDiscountFactor
	// Cached responses replay stored audio and make no segment calls either.
	overhead := (1 - profile.CacheHitRate) * profile.SegmentationRate *
		(profile.segments() - 1) * e.Assumptions.SegmentCallOverheadUSD

	perRequest := uncached - batchSavings + overhead
	perSession := perRequest * profile.RequestsPerSession
	users := float64(monthlyUsers)
	monthly := perSession * users

	est := Estimate{
		CostPerRequest: perRequest,
		CostPerSession: perSession,
		CostPerUser:    perSession,
		MonthlyUsers:   monthlyUsers,
		MonthlyCost:    monthly,
		Breakdown: Breakdown{
			ByProvider: shares(monthly, profile.ProviderDistribution),
			ByMode:     shares(monthly, e.modeShares(profile.ModeDistribution)),
			Cached:     monthly * profile.CacheHitRate,
			Uncached:   monthly * (1 - profile.CacheHitRate),
			Batched:    batchSavings * profile.RequestsPerSession * users,
			Segmented:  overhead * profile.RequestsPerSession * users,
		},
	}
	return est, nil
}

// Compare prices the baseline (no caching, no batching), each optimization on
// its own, and both together. All four scenarios keep the profile's
// segmentation, so the savings isolate caching and batching on the same
// workload and SegmentationOverhead is reported next to them.
func (e *Estimator) Compare(profile UsageProfile, monthlyUsers int) (Comparison, error) {
	baseProfile := profile
	baseProfile.CacheHitRate = 0
	baseProfile.BatchingRate = 0

	cachingProfile := profile
	cachingProfile.BatchingRate = 0

	batchingProfile := profile
	batchingProfile.CacheHitRate = 0

	var cmp Comparison
	var err error
	if cmp.Baseline, err = e.Estimate(baseProfile, monthlyUsers); err != nil {
		return Comparison{}, err
	}
	if cmp.WithCaching, err = e.Estimate(cachingProfile, monthlyUsers); err != nil {
		return Comparison{}, err
	}
	if cmp.WithBatching, err = e.Estimate(batchingProfile, monthlyUsers); err != nil {
		return Comparison{}, err
	}
	if cmp.WithAll, err = e.Estimate(profile, monthlyUsers); err != nil {
		return Comparison{}, err
	}
	base := cmp.Baseline.MonthlyCost
	cmp.Savings = Savings{
		Caching:              base - cmp.WithCaching.MonthlyCost,
		Batching:             base - cmp.WithBatching.MonthlyCost,
		Combined:             base - cmp.WithAll.MonthlyCost,
		SegmentationOverhead: cmp.WithAll.Breakdown.Segmented,
	}
	return cmp, nil
}
