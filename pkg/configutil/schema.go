package configutil

import (
	"errors"
	"slices"
	"strings"
)

// ErrInvalidSettings is matched by every SettingsError.
var ErrInvalidSettings = errors.New("invalid settings")

// Schema lists the keys a vendor settings map may carry. Key matching ignores
// case, underscores and hyphens, so "api_key", "API-Key" and "apiKey" agree.
type Schema struct {
	Required     []string
	Optional     []string
	AllowUnknown bool
}

// SettingsError reports every problem found in one settings map.
type SettingsError struct {
	Missing []string
	Unknown []string
}

func (e *SettingsError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Unknown) > 0 {
		parts = append(parts, "unknown: "+strings.Join(e.Unknown, ", "))
	}
	return strings.Join(parts, "; ")
}

func (e *SettingsError) Is(target error) bool { return target == ErrInvalidSettings }

// ValidateSettings checks input against schema. A required key holding nil or
// a blank string counts as missing.
func ValidateSettings(input map[string]any, schema Schema) error {
	known := make(map[string]bool, len(schema.Required)+len(schema.Optional))
	for _, k := range schema.Optional {
		known[normalizeKey(k)] = true
	}
	present := make(map[string]bool, len(input))
	var serr SettingsError
	for k, v := range input {
		nk := normalizeKey(k)
		if !isEmptyValue(v) {
			present[nk] = true
		}
		if !known[nk] && !slices.ContainsFunc(schema.Required, func(r string) bool { return normalizeKey(r) == nk }) && !schema.AllowUnknown {
			serr.Unknown = append(serr.Unknown, k)
		}
	}
	for _, k := range schema.Required {
		if !present[normalizeKey(k)] {
			serr.Missing = append(serr.Missing, k)
		}
	}
	if len(serr.Missing) == 0 && len(serr.Unknown) == 0 {
		return nil
	}
	slices.Sort(serr.Missing)
	slices.Sort(serr.Unknown)
	return &serr
}

// Decode validates input and decodes it into out.
func (s Schema) Decode(input map[string]any, out any) error {
	if err := ValidateSettings(input, s); err != nil {
		return err
	}
	return DecodeSettings(input, out)
}

func isEmptyValue(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(val) == ""
	}
	return false
}
