// Package redact masks contact and payment details in text that reaches logs,
// JSONL events and timelines. Synthesized text often reads back bookings, so
// it carries phone numbers and card digits more often than ordinary logs do.
package redact

import (
	"regexp"
	"strings"
	"sync/atomic"
	"unicode/utf8"
)

var enabled atomic.Bool

const (
	emailMask = "[REDACTED_EMAIL]"
	phoneMask = "[REDACTED_PHONE]"
	cardMask  = "[REDACTED_CARD]"
)

var (
	emailRe = regexp.MustCompile(`(?i)[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}`)
	// Digit runs joined by spaces, dots, dashes or parentheses. Whether a run
	// is a phone, a card or something harmless like a date is decided by
	// classifyDigits.
	digitRunRe = regexp.MustCompile(`\+?\(?\d[\d\s.\-()]{6,}\d`)
)

// SetEnabled toggles redaction process-wide.
func SetEnabled(v bool) {
	enabled.Store(v)
}

func Enabled() bool {
	return enabled.Load()
}

// Text masks emails, phone numbers and card numbers when enabled.
func Text(in string) string {
	if !enabled.Load() || strings.TrimSpace(in) == "" {
		return in
	}
	out := emailRe.ReplaceAllString(in, emailMask)
	return digitRunRe.ReplaceAllStringFunc(out, func(run string) string {
		switch classifyDigits(run) {
		case "card":
			return cardMask
		case "phone":
			return phoneMask
		}
		return run
	})
}

// Preview redacts s and then cuts it to at most n runes, so a truncated
// number is never left half visible.
func Preview(s string, n int) string {
	s = Text(s)
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}

// classifyDigits treats 13 to 19 digits passing the Luhn check as a card and
// 9 to 15 digits as a phone. Shorter runs such as 2025-11-20 or 6.30 are left
// alone.
func classifyDigits(run string) string {
	digits := make([]byte, 0, len(run))
	for i := 0; i < len(run); i++ {
		if c := run[i]; c >= '0' && c <= '9' {
			digits = append(digits, c)
		}
	}
	switch n := len(digits); {
	case n >= 13 && n <= 19 && luhn(digits):
		return "card"
	case n >= 9 && n <= 15:
		return "phone"
	}
	return ""
}

func luhn(digits []byte) bool {
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}
