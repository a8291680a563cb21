// Package segment decides whether a spoken response must be truncated or split
// into ordered audio segments, and produces per-segment metadata.
package segment

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/harunnryd/voxa/pkg/canonical"
)

// AudioSegment is one independently generated unit of speech. Segments replay in
// Index order.
type AudioSegment struct {
	Index            int     `json:"index"`
	Text             string  `json:"text"`
	PlainText        string  `json:"plain_text"`
	WordCount        int     `json:"word_count"`
	EstimatedSeconds float64 `json:"estimated_seconds"`
	Hash             string  `json:"hash"`
}

// HasSSML reports whether Text carries markup that PlainText does not.
func (s AudioSegment) HasSSML() bool {
	return s.Text != s.PlainText
}

// Result is the outcome of ProcessLongAudio.
type Result struct {
	Segments              []AudioSegment `json:"segments"`
	WasSegmented          bool           `json:"was_segmented"`
	WasTruncated          bool           `json:"was_truncated"`
	TotalEstimatedSeconds float64        `json:"total_estimated_seconds"`
	// DroppedWords counts words cut from the tail once MaxSegments filled up.
	DroppedWords int `json:"dropped_words,omitempty"`
}

// TotalWords sums WordCount across segments.
func (r Result) TotalWords() int {
	total := 0
	for _, s := range r.Segments {
		total += s.WordCount
	}
	return total
}

// NeedsSegmentation reports whether text exceeds the word or duration threshold.
func NeedsSegmentation(text string, mode Mode, cfg Config) (bool, error) {
	if err := cfg.Validate(); err != nil {
		return false, err
	}
	if !mode.valid() {
		return false, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
	return overThreshold(CountWords(plainText(text)), cfg), nil
}

func overThreshold(words int, cfg Config) bool {
	return words > cfg.MaxWords || EstimateSeconds(words, cfg) > cfg.MaxSeconds
}

// ProcessLongAudio turns a response into ordered segments according to mode:
// short text stays whole, brief mode truncates, full mode splits at sentence
// boundaries.
func ProcessLongAudio(text string, mode Mode, cfg Config) (Result, error) {
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}
	if !mode.valid() {
		return Result{}, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
	if !utf8.ValidString(text) {
		return Result{}, canonical.ErrInvalidText
	}
	plain := plainText(text)
	if plain == "" {
		return Result{}, ErrEmptyText
	}

	if !overThreshold(CountWords(plain), cfg) {
		seg, err := buildSegment(0, SplitSentences(plain), cfg)
		if err != nil {
			return Result{}, err
		}
		return finish([]AudioSegment{seg}, false, false), nil
	}

	if mode == ModeBrief && cfg.TruncateBriefMode {
		primary := stripAsides(plain)
		if primary == "" {
			primary = plain
		}
		short := truncateWords(primary, cfg.wordLimit())
		seg, err := buildSegment(0, SplitSentences(short), cfg)
		if err != nil {
			return Result{}, err
		}
		return finish([]AudioSegment{seg}, false, true), nil
	}

	groups, dropped := packSentences(SplitSentences(plain), cfg.wordLimit(), cfg.MaxSegments)
	segments := make([]AudioSegment, 0, len(groups))
	for i, g := range groups {
		seg, err := buildSegment(i, g, cfg)
		if err != nil {
			return Result{}, err
		}
		segments = append(segments, seg)
	}
	res := finish(segments, true, dropped > 0)
	res.DroppedWords = dropped
	return res, nil
}

// packSentences fills segments in textual order. A sentence longer than limit
// gets a segment of its own; sentences past maxSegments are dropped and their
// words counted.
func packSentences(sentences []string, limit, maxSegments int) ([][]string, int) {
	var groups [][]string
	var cur []string
	curWords := 0
	for i, s := range sentences {
		w := CountWords(s)
		if len(cur) > 0 && curWords+w > limit {
			groups = append(groups, cur)
			cur, curWords = nil, 0
			if len(groups) == maxSegments {
				return groups, countWords(sentences[i:])
			}
		}
		cur = append(cur, s)
		curWords += w
	}
	if len(cur) > 0 {
		groups = append(groups, cur)
	}
	return groups, 0
}

func countWords(sentences []string) int {
	n := 0
	for _, s := range sentences {
		n += CountWords(s)
	}
	return n
}

func buildSegment(index int, sentences []string, cfg Config) (AudioSegment, error) {
	plain := strings.Join(sentences, " ")
	ct, err := canonical.Canonicalize(plain)
	if err != nil {
		return AudioSegment{}, err
	}
	text := plain
	if cfg.EnableSSML {
		text = withBreaks(sentences, cfg.BreakMS)
	}
	words := CountWords(plain)
	return AudioSegment{
		Index:            index,
		Text:             text,
		PlainText:        plain,
		WordCount:        words,
		EstimatedSeconds: EstimateSeconds(words, cfg),
		Hash:             ct.Hash,
	}, nil
}

func finish(segments []AudioSegment, segmented, truncated bool) Result {
	total := 0.0
	for _, s := range segments {
		total += s.EstimatedSeconds
	}
	return Result{
		Segments:              segments,
		WasSegmented:          segmented,
		WasTruncated:          truncated,
		TotalEstimatedSeconds: total,
	}
}
