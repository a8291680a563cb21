// Package canonical turns spoken-response text into a stable cache key.
//
// Two responses that differ only in how a date or time is written, in casing, or in
// repeated whitespace and punctuation canonicalize to the same string and therefore
// share one audio cache entry.
package canonical

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

const (
	DatePlaceholder = "{{DATE}}"
	TimePlaceholder = "{{TIME}}"
)

// Lowercase-invariant markers that stand in for placeholders while the text is lowercased.
const (
	dateMarker = "\x00\x01\x00"
	timeMarker = "\x00\x02\x00"
)

// ErrInvalidText is returned for input that is not valid UTF-8 text.
var ErrInvalidText = errors.New("canonical: text must be valid utf-8")

// CanonicalText is a raw response plus its canonical form and content hash.
type CanonicalText struct {
	Raw       string `json:"raw"`
	Canonical string `json:"canonical"`
	Hash      string `json:"hash"`
}

var monthNames = []string{
	// en
	"january", "february", "march", "april", "may", "june", "july", "august",
	"september", "october", "november", "december",
	"jan", "feb", "mar", "apr", "jun", "jul", "aug", "sep", "sept", "oct", "nov", "dec",
	// es
	"enero", "febrero", "marzo", "abril", "mayo", "junio", "julio", "agosto",
	"septiembre", "setiembre", "octubre", "noviembre", "diciembre", "ene", "abr", "dic",
	// fr
	"janvier", "février", "fevrier", "mars", "avril", "mai", "juin", "juillet", "août", "aout",
	"septembre", "octobre", "novembre", "décembre", "decembre", "janv", "févr", "fevr", "avr", "juil", "déc",
	// de
	"januar", "februar", "märz", "maerz", "juni", "juli", "oktober", "dezember", "okt", "dez",
	// pt
	"janeiro", "fevereiro", "março", "marco", "maio", "junho", "julho", "setembro", "outubro",
	"dezembro", "fev",
	// it
	"gennaio", "febbraio", "aprile", "maggio", "giugno", "luglio", "settembre", "ottobre",
	"dicembre", "giu", "lug", "ott",
}

var (
	monthPattern = buildMonthPattern(monthNames)
	ordinal      = `(?:st|nd|rd|th)?`

	datePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b\d{4}-\d{1,2}-\d{1,2}\b`),
		regexp.MustCompile(`\b\d{1,2}(?:/|\.+)\d{1,2}(?:/|\.+)\d{2,4}\b`),
		regexp.MustCompile(`(?i)\b` + monthPattern + `\.*\s+\d{1,2}` + ordinal + `\b(?:,?\s+\d{4}\b)?`),
		regexp.MustCompile(`(?i)\b\d{1,2}` + ordinal + `\.*\s+(?:de\s+|of\s+)?` + monthPattern + `(?:\.*,?\s+(?:de\s+)?\d{4}\b)?`),
	}
	timePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b\d{1,2}:\d{2}(?::\d{2})?(?:\s*[ap]\.*\s*m\b)?`),
		regexp.MustCompile(`(?i)\b\d{1,2}h\d{2}\b`),
		regexp.MustCompile(`(?i)\b\d{1,2}\s*[ap]\.*\s*m\b`),
	}

	whitespaceRe = regexp.MustCompile(`\s+`)
	bangRunRe    = regexp.MustCompile(`!{2,}`)
	queryRunRe   = regexp.MustCompile(`\?{2,}`)
	dotRunRe     = regexp.MustCompile(`\.{2,}`)

	surfaceReplacer = strings.NewReplacer(
		"‘", "'", "’", "'", "‚", "'", "‛", "'", "′", "'", "`", "'",
		"“", `"`, "”", `"`, "„", `"`, "‟", `"`, "″", `"`, "«", `"`, "»", `"`,
		"\u00a0", " ", "\u202f", " ", "\u2009", " ", "\u2007", " ",
		"…", "...",
	)
	protectReplacer = strings.NewReplacer(DatePlaceholder, dateMarker, TimePlaceholder, timeMarker)
	restoreReplacer = strings.NewReplacer(dateMarker, DatePlaceholder, timeMarker, TimePlaceholder)
)

// buildMonthPattern orders alternatives longest first so "sept" wins over "sep".
func buildMonthPattern(names []string) string {
	sorted := append([]string(nil), names...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return utf8.RuneCountInString(sorted[i]) > utf8.RuneCountInString(sorted[j])
	})
	quoted := make([]string, len(sorted))
	for i, n := range sorted {
		quoted[i] = regexp.QuoteMeta(n)
	}
	return `(?:` + strings.Join(quoted, "|") + `)\b`
}

// Canonicalize normalizes raw response text and hashes the result.
func Canonicalize(raw string) (CanonicalText, error) {
	if !utf8.ValidString(raw) {
		return CanonicalText{}, ErrInvalidText
	}
	text := strings.TrimSpace(raw)
	text = surfaceReplacer.Replace(text)
	for _, re := range datePatterns {
		text = re.ReplaceAllLiteralString(text, DatePlaceholder)
	}
	for _, re := range timePatterns {
		text = re.ReplaceAllLiteralString(text, TimePlaceholder)
	}
	text = whitespaceRe.ReplaceAllLiteralString(text, " ")
	text = bangRunRe.ReplaceAllLiteralString(text, "!")
	text = queryRunRe.ReplaceAllLiteralString(text, "?")
	text = dotRunRe.ReplaceAllLiteralString(text, ".")
	text = protectReplacer.Replace(text)
	text = strings.ToLower(text)
	text = restoreReplacer.Replace(text)
	text = strings.TrimSpace(text)

	return CanonicalText{Raw: raw, Canonical: text, Hash: Hash(text)}, nil
}

// MustCanonicalize is Canonicalize for inputs known to be valid UTF-8.
func MustCanonicalize(raw string) CanonicalText {
	ct, err := Canonicalize(raw)
	if err != nil {
		panic(err)
	}
	return ct
}

// Hash returns the hex-encoded SHA-256 digest of s.
func Hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
