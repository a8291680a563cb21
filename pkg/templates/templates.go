// Package templates renders spoken-response variants. Variant choice is random
// so repeated responses do not sound canned.
package templates

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"regexp"
	"sort"
	"sync"
)

var (
	ErrUnknownTemplate = errors.New("templates: unknown template")
	ErrMissingVar      = errors.New("templates: missing variable")
)

// Source picks an index in [0, n).
type Source interface {
	IntN(n int) int
}

type globalSource struct{}

func (globalSource) IntN(n int) int { return rand.IntN(n) }

// lockedSource serializes a *rand.Rand, which is not safe for concurrent use.
type lockedSource struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (s *lockedSource) IntN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.IntN(n)
}

// NewSeededSource returns a deterministic Source.
func NewSeededSource(seed uint64) Source {
	return &lockedSource{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Catalog maps a template key to its variants.
type Catalog map[string][]string

// DefaultCatalog holds the stock activity-platform responses. Placeholders are
// written {name}.
var DefaultCatalog = Catalog{
	"greeting": {
		"Hi {name}! What would you like to do today?",
		"Hey {name}, good to hear from you. Looking for something to join?",
		"Hello {name}! Want me to find an activity near you?",
	},
	"booking_confirmed": {
		"You're in! {activity} is booked for {date}.",
		"Done. I've saved your spot for {activity} on {date}.",
		"Great choice. {activity} on {date} is confirmed.",
	},
	"booking_cancelled": {
		"Your spot for {activity} has been cancelled.",
		"Okay, I've cancelled {activity} for you.",
	},
	"waitlist": {
		"{activity} is full right now, so I've added you to the waitlist.",
		"No spots left for {activity}, but you're on the waitlist.",
	},
	"reminder": {
		"Quick reminder: {activity} starts at {time}.",
		"Heads up, {activity} begins at {time}.",
	},
	"no_results": {
		"I couldn't find anything matching that. Want to try a different day?",
		"Nothing came up for that search. Should I widen the area?",
	},
	"error": {
		"Sorry, something went wrong on my side. Could you try again?",
		"Hmm, that didn't work. Let's give it another go.",
	},
}

var placeholderRe = regexp.MustCompile(`\{([a-z_]+)\}`)

// Picker chooses and fills template variants.
type Picker struct {
	catalog Catalog
	src     Source
}

// NewPicker uses DefaultCatalog when catalog is nil and the shared random
// generator when src is nil.
func NewPicker(catalog Catalog, src Source) *Picker {
	if catalog == nil {
		catalog = DefaultCatalog
	}
	if src == nil {
		src = globalSource{}
	}
	return &Picker{catalog: catalog, src: src}
}

// Pick returns one raw variant for key.
func (p *Picker) Pick(key string) (string, error) {
	variants := p.catalog[key]
	if len(variants) == 0 {
		return "", fmt.Errorf("%w: %q", ErrUnknownTemplate, key)
	}
	return variants[p.src.IntN(len(variants))], nil
}

// Render picks a variant for key and substitutes vars into it.
func (p *Picker) Render(key string, vars map[string]string) (string, error) {
	tmpl, err := p.Pick(key)
	if err != nil {
		return "", err
	}
	var missing string
	out := placeholderRe.ReplaceAllStringFunc(tmpl, func(m string) string {
		name := m[1 : len(m)-1]
		v, ok := vars[name]
		if !ok && missing == "" {
			missing = name
		}
		return v
	})
	if missing != "" {
		return "", fmt.Errorf("%w: %q in %q", ErrMissingVar, missing, key)
	}
	return out, nil
}

func (p *Picker) Keys() []string {
	keys := make([]string, 0, len(p.catalog))
	for k := range p.catalog {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
