package segment

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

var (
	// markupRe matches SSML and XML tags only; a bare "<" or ">" in prose stays.
	markupRe     = regexp.MustCompile(`(?i)<\?xml[^<>]*\?>|</?(?:speak|break|prosody|emphasis|say-as|sub|p|s|phoneme|audio|mark|lang|voice|w)\b[^<>]*>`)
	parenRe      = regexp.MustCompile(`\s*\([^()]*\)`)
	dashAsideRe  = regexp.MustCompile(`\s+[—–]\s+[^—–]*?\s+[—–]\s+`)
	spaceRunRe   = regexp.MustCompile(`\s+`)
	spaceBeforeP = regexp.MustCompile(`\s+([.,!?;:])`)
)

// CountWords counts whitespace-separated words.
func CountWords(text string) int {
	return len(strings.Fields(text))
}

// EstimateSeconds is the spoken duration of words at cfg.WordsPerSecond.
func EstimateSeconds(words int, cfg Config) float64 {
	if cfg.WordsPerSecond <= 0 {
		return 0
	}
	return float64(words) / cfg.WordsPerSecond
}

// SplitSentences splits text at sentence-ending punctuation followed by whitespace.
// Text without terminal punctuation comes back as a single sentence.
func SplitSentences(text string) []string {
	runes := []rune(strings.TrimSpace(text))
	var out []string
	start := 0
	for i := 0; i < len(runes); i++ {
		if !isTerminal(runes[i]) {
			continue
		}
		end := i + 1
		for end < len(runes) && (isTerminal(runes[end]) || isCloser(runes[end])) {
			end++
		}
		if end < len(runes) && !unicode.IsSpace(runes[end]) {
			i = end - 1
			continue
		}
		if s := strings.TrimSpace(string(runes[start:end])); s != "" {
			out = append(out, s)
		}
		start = end
		i = end - 1
	}
	if start < len(runes) {
		if s := strings.TrimSpace(string(runes[start:])); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?' || r == '…'
}

func isCloser(r rune) bool {
	switch r {
	case '"', '\'', ')', ']', '»', '”', '’':
		return true
	}
	return false
}

func endsSentence(s string) bool {
	s = strings.TrimRightFunc(s, isCloser)
	if s == "" {
		return false
	}
	r := []rune(s)
	return isTerminal(r[len(r)-1])
}

// plainText drops markup and normalizes spacing.
func plainText(text string) string {
	text = markupRe.ReplaceAllString(text, " ")
	text = spaceRunRe.ReplaceAllString(text, " ")
	text = spaceBeforeP.ReplaceAllString(text, "$1")
	return strings.TrimSpace(text)
}

// stripAsides removes parenthetical and dash-delimited asides.
func stripAsides(text string) string {
	prev := ""
	for prev != text {
		prev = text
		text = parenRe.ReplaceAllString(text, "")
	}
	text = dashAsideRe.ReplaceAllString(text, " ")
	return plainText(text)
}

// truncateWords keeps at most limit words and closes the cut with a period.
func truncateWords(text string, limit int) string {
	words := strings.Fields(text)
	if len(words) <= limit {
		return text
	}
	out := strings.Join(words[:limit], " ")
	out = strings.TrimRight(out, ",;:—–- ")
	if !endsSentence(out) {
		out += "."
	}
	return out
}

var ssmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// withBreaks joins sentences with SSML break markers. A single sentence, or a
// zero-length break, stays plain.
func withBreaks(sentences []string, breakMS int) string {
	if len(sentences) < 2 || breakMS <= 0 {
		return strings.Join(sentences, " ")
	}
	marker := ` <break time="` + strconv.Itoa(breakMS) + `ms"/> `
	escaped := make([]string, len(sentences))
	for i, s := range sentences {
		escaped[i] = ssmlEscaper.Replace(s)
	}
	return strings.Join(escaped, marker)
}
