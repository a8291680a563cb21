package segment

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	ErrInvalidConfig = errors.New("segment: invalid config")
	ErrInvalidMode   = errors.New("segment: invalid mode")
	ErrEmptyText     = errors.New("segment: text cannot be empty")
)

// Mode is the response verbosity tier.
type Mode string

const (
	ModeBrief Mode = "brief"
	ModeFull  Mode = "full"
)

// ParseMode accepts "brief" or "full", case-insensitive.
func ParseMode(v string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(v))) {
	case ModeBrief:
		return ModeBrief, nil
	case ModeFull:
		return ModeFull, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMode, v)
}

func (m Mode) valid() bool { return m == ModeBrief || m == ModeFull }

// Config bounds how much audio a single response may produce.
type Config struct {
	MaxWords          int     `mapstructure:"max_words" json:"max_words"`
	MaxSegments       int     `mapstructure:"max_segments" json:"max_segments"`
	MaxSeconds        float64 `mapstructure:"max_seconds" json:"max_seconds"`
	WordsPerSecond    float64 `mapstructure:"words_per_second" json:"words_per_second"`
	EnableSSML        bool    `mapstructure:"enable_ssml" json:"enable_ssml"`
	TruncateBriefMode bool    `mapstructure:"truncate_brief_mode" json:"truncate_brief_mode"`
	// BreakMS is the pause inserted between sentences when SSML is enabled.
	BreakMS int `mapstructure:"break_ms" json:"break_ms"`
}

// DefaultConfig returns the limits used when the caller supplies none.
func DefaultConfig() Config {
	return Config{
		MaxWords:          120,
		MaxSegments:       5,
		MaxSeconds:        45,
		WordsPerSecond:    2.5,
		EnableSSML:        true,
		TruncateBriefMode: true,
		BreakMS:           300,
	}
}

// Validate rejects limits that would make segmentation meaningless.
func (c Config) Validate() error {
	switch {
	case c.MaxWords <= 0:
		return fmt.Errorf("%w: max_words must be positive, got %d", ErrInvalidConfig, c.MaxWords)
	case c.MaxSegments <= 0:
		return fmt.Errorf("%w: max_segments must be positive, got %d", ErrInvalidConfig, c.MaxSegments)
	case c.MaxSeconds <= 0 || math.IsNaN(c.MaxSeconds):
		return fmt.Errorf("%w: max_seconds must be positive, got %v", ErrInvalidConfig, c.MaxSeconds)
	case c.WordsPerSecond <= 0 || math.IsNaN(c.WordsPerSecond):
		return fmt.Errorf("%w: words_per_second must be positive, got %v", ErrInvalidConfig, c.WordsPerSecond)
	case c.BreakMS < 0:
		return fmt.Errorf("%w: break_ms must not be negative, got %d", ErrInvalidConfig, c.BreakMS)
	}
	return nil
}

// wordLimit is the per-segment word budget: MaxWords, tightened by MaxSeconds.
func (c Config) wordLimit() int {
	limit := c.MaxWords
	if byDuration := int(math.Floor(c.MaxSeconds * c.WordsPerSecond)); byDuration < limit {
		limit = byDuration
	}
	if limit < 1 {
		limit = 1
	}
	return limit
}
