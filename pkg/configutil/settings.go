package configutil

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// DecodeSettings decodes a vendor's free-form `settings` block into the
// provider's typed settings. Keys match the mapstructure tag loosely, numbers
// may arrive as strings from env overrides, and string values are trimmed so
// a key read from a file does not carry its trailing newline.
func DecodeSettings(input map[string]any, out any) error {
	if len(input) == 0 {
		return nil
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "mapstructure",
		Result:           out,
		WeaklyTypedInput: true,
		DecodeHook:       trimStrings,
		MatchName: func(mapKey, fieldName string) bool {
			return normalizeKey(mapKey) == normalizeKey(fieldName)
		},
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(input); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	return nil
}

func trimStrings(from, _ reflect.Kind, data any) (any, error) {
	if from != reflect.String {
		return data, nil
	}
	return strings.TrimSpace(data.(string)), nil
}

// RequireString reports path as missing when value is blank. The error is a
// *SettingsError, so config validation and vendor settings fail the same way.
func RequireString(value, path string) error {
	if strings.TrimSpace(value) == "" {
		return &SettingsError{Missing: []string{path}}
	}
	return nil
}

// BoolValue resolves a per-request override against the configured default.
func BoolValue(override *bool, configured bool) bool {
	if override == nil {
		return configured
	}
	return *override
}

// normalizeKey folds "api_key", "API-Key" and "apiKey" to one form.
func normalizeKey(value string) string {
	value = strings.ToLower(value)
	value = strings.ReplaceAll(value, "_", "")
	value = strings.ReplaceAll(value, "-", "")
	return value
}
