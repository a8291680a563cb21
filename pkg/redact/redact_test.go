package redact

import (
	"strings"
	"testing"
)

func TestRedactDisabled(t *testing.T) {
	SetEnabled(false)
	in := "email a@b.com and phone +62 812 3456 7890"
	if got := Text(in); got != in {
		t.Fatalf("expected no redaction, got %q", got)
	}
}

func TestRedactEnabled(t *testing.T) {
	SetEnabled(true)
	t.Cleanup(func() { SetEnabled(false) })

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"email", "Confirmation sent to dana.lee@example.org.", "Confirmation sent to [REDACTED_EMAIL]."},
		{"phone", "Call us on +62 812 3456 7890 if you are late.", "Call us on [REDACTED_PHONE] if you are late."},
		{"phone with parentheses", "The front desk is (555) 123-4567.", "The front desk is [REDACTED_PHONE]."},
		{"card", "Charged to 4111 1111 1111 1111 today.", "Charged to [REDACTED_CARD] today."},
		{"non luhn long run", "Booking 4111 1111 1111 1112 is ready.", "Booking 4111 1111 1111 1112 is ready."},
		{"iso date kept", "Your class is on 2025-11-20 at 6.30 pm.", "Your class is on 2025-11-20 at 6.30 pm."},
		{"short numbers kept", "Room 12, floor 3, 45 minutes.", "Room 12, floor 3, 45 minutes."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Text(tc.in); got != tc.want {
				t.Fatalf("Text(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestPreviewRedactsBeforeCutting(t *testing.T) {
	SetEnabled(true)
	t.Cleanup(func() { SetEnabled(false) })

	got := Preview("Reach me at 0812 3456 7890 after lunch", 20)
	if strings.Contains(got, "0812") {
		t.Fatalf("partial number leaked: %q", got)
	}
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("expected truncation marker, got %q", got)
	}
	if got := Preview("short", 20); got != "short" {
		t.Fatalf("unexpected preview %q", got)
	}
}
