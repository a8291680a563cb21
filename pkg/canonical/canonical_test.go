package canonical

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalizeIdempotent(t *testing.T) {
	inputs := []string{
		"Your Yoga class is on 2025-11-20 at 6pm!!",
		"  Meet us   on Nov 20, 2025 at 6:30 pm...  ",
		"Réservé pour le 20 novembre à 18h30 ??",
		"It’s on “Friday” at 10:00 AM…",
		"Confirmed for 20..11..2025, see you at 7 p.m.",
		"Meet at 6 p  m today",
		"Doors open 6:30 p   m sharp",
		"Pick-up at 9 a..m.. on 12 .. 03",
		"no dates here, just text",
		"",
	}
	for _, in := range inputs {
		first := MustCanonicalize(in)
		second := MustCanonicalize(first.Canonical)
		assert.Equal(t, first.Canonical, second.Canonical, "input %q", in)
		assert.Equal(t, first.Hash, second.Hash, "input %q", in)
	}
}

func TestCanonicalizeDateFormatsShareHash(t *testing.T) {
	iso := MustCanonicalize("Your pottery workshop is on 2025-11-20. See you there!")
	spoken := MustCanonicalize("Your pottery workshop is on 20 November. See you there!")
	slashed := MustCanonicalize("Your pottery workshop is on 20/11/2025. See you there!")
	monthFirst := MustCanonicalize("Your pottery workshop is on Nov 20. See you there!")

	assert.Contains(t, iso.Canonical, DatePlaceholder)
	assert.Equal(t, iso.Canonical, spoken.Canonical)
	assert.Equal(t, iso.Hash, spoken.Hash)
	assert.Equal(t, iso.Hash, slashed.Hash)
	assert.Equal(t, iso.Hash, monthFirst.Hash)
}

func TestCanonicalizeLocalizedMonths(t *testing.T) {
	cases := []string{
		"el 20 de noviembre",
		"le 20 novembre",
		"am 20 März",
		"em 20 de março de 2025",
		"il 20 settembre",
	}
	for _, in := range cases {
		ct := MustCanonicalize(in)
		assert.Contains(t, ct.Canonical, DatePlaceholder, "input %q", in)
	}
}

func TestCanonicalizeTimes(t *testing.T) {
	a := MustCanonicalize("Doors open at 6pm")
	b := MustCanonicalize("Doors open at 18:00")
	c := MustCanonicalize("Doors open at 6:30 PM")
	d := MustCanonicalize("Doors open at 6 p.m")
	e := MustCanonicalize("Doors open at 6 p  m")
	f := MustCanonicalize("Doors open at 6:30 p   m")

	assert.Equal(t, "doors open at {{TIME}}", a.Canonical)
	assert.Equal(t, a.Hash, b.Hash)
	assert.Equal(t, a.Hash, c.Hash)
	assert.Equal(t, a.Hash, d.Hash)
	assert.Equal(t, a.Hash, e.Hash)
	assert.Equal(t, a.Hash, f.Hash)
}

func TestCanonicalizeCasingWhitespacePunctuation(t *testing.T) {
	a := MustCanonicalize("Great   choice!!!   Want to BOOK it???")
	b := MustCanonicalize("great choice! want to book it?")
	assert.Equal(t, b.Canonical, a.Canonical)
	assert.Equal(t, b.Hash, a.Hash)
}

func TestCanonicalizeKeepsPlaceholdersUppercase(t *testing.T) {
	ct := MustCanonicalize("BOOKED FOR 2025-01-02 AT 09:15")
	assert.Equal(t, "booked for {{DATE}} at {{TIME}}", ct.Canonical)
}

func TestCanonicalizeQuotes(t *testing.T) {
	ct := MustCanonicalize("It’s “great”")
	assert.Equal(t, `it's "great"`, ct.Canonical)
}

func TestCanonicalizeDoesNotEatCounts(t *testing.T) {
	ct := MustCanonicalize("20 out of 30 spots are left")
	assert.False(t, strings.Contains(ct.Canonical, DatePlaceholder))
}

func TestCanonicalizeHash(t *testing.T) {
	ct := MustCanonicalize("Hello")
	require.Len(t, ct.Hash, 64)
	assert.Equal(t, Hash("hello"), ct.Hash)
	assert.Equal(t, "Hello", ct.Raw)
}

func TestCanonicalizeRejectsInvalidUTF8(t *testing.T) {
	_, err := Canonicalize("bad \xff byte")
	require.ErrorIs(t, err, ErrInvalidText)
}
