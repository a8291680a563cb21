package templates

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderVaries(t *testing.T) {
	p := NewPicker(nil, nil)
	seen := make(map[string]bool)
	for range 20 {
		out, err := p.Render("booking_confirmed", map[string]string{"activity": "Pottery night", "date": "Friday"})
		require.NoError(t, err)
		assert.Contains(t, out, "Pottery night")
		assert.NotContains(t, out, "{")
		seen[out] = true
	}
	assert.GreaterOrEqual(t, len(seen), 2)
}

func TestSeededSourceIsDeterministic(t *testing.T) {
	a := NewPicker(nil, NewSeededSource(42))
	b := NewPicker(nil, NewSeededSource(42))
	for range 10 {
		x, err := a.Render("greeting", map[string]string{"name": "Sam"})
		require.NoError(t, err)
		y, err := b.Render("greeting", map[string]string{"name": "Sam"})
		require.NoError(t, err)
		assert.Equal(t, x, y)
	}
}

type fixedSource int

func (f fixedSource) IntN(n int) int { return int(f) % n }

func TestRenderErrors(t *testing.T) {
	p := NewPicker(Catalog{"reminder": {"{activity} at {time}"}}, fixedSource(0))

	out, err := p.Render("reminder", map[string]string{"activity": "Yoga", "time": "{{TIME}}"})
	require.NoError(t, err)
	assert.Equal(t, "Yoga at {{TIME}}", out)

	_, err = p.Render("reminder", map[string]string{"activity": "Yoga"})
	assert.ErrorIs(t, err, ErrMissingVar)

	_, err = p.Render("farewell", nil)
	assert.ErrorIs(t, err, ErrUnknownTemplate)
	assert.Equal(t, []string{"reminder"}, p.Keys())
}
