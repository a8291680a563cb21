package errorsx

// ReasonCode is a short machine-readable error reason.
type ReasonCode string

const (
	ReasonUnknown ReasonCode = "unknown"

	ReasonTTSGenerate    ReasonCode = "tts_generate"
	ReasonTTSTimeout     ReasonCode = "tts_timeout"
	ReasonTTSRateLimit   ReasonCode = "tts_rate_limit"
	ReasonTTSCircuitOpen ReasonCode = "tts_circuit_open"
	ReasonTTSConnect     ReasonCode = "tts_connect"

	ReasonSegmentConfig ReasonCode = "segment_config"
	ReasonSegmentInput  ReasonCode = "segment_input"

	ReasonCacheRead  ReasonCode = "cache_read"
	ReasonCacheWrite ReasonCode = "cache_write"

	ReasonLogAppend ReasonCode = "genlog_append"
	ReasonLogRead   ReasonCode = "genlog_read"

	ReasonCostProfile ReasonCode = "cost_profile"
	ReasonCostPricing ReasonCode = "cost_pricing"

	ReasonConfigInvalid ReasonCode = "config_invalid"
)

// Retryable reports whether failures with this reason are about capacity or
// reachability rather than about the request itself.
func (r ReasonCode) Retryable() bool {
	switch r {
	case ReasonTTSTimeout, ReasonTTSRateLimit, ReasonTTSCircuitOpen, ReasonTTSConnect:
		return true
	}
	return false
}
