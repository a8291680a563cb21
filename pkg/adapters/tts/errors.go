package tts

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/harunnryd/voxa/pkg/resilience"
)

const maxErrorBody = 4 << 10

// ErrorFromResponse turns a non-2xx vendor response into a ProviderError. A
// 429 also satisfies resilience.IsRateLimit.
func ErrorFromResponse(provider string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	pe := &ProviderError{
		Provider:    provider,
		Status:      resp.StatusCode,
		Description: describeBody(body, resp.Status),
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		pe.Cause = resilience.RateLimitError{Provider: provider, Message: pe.Description}
	}
	return pe
}

// IsTransient reports whether err says something about the vendor's health:
// rate limits, 5xx responses and transport failures. Rejected input and
// caller cancellation do not.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if resilience.IsRateLimit(err) {
		return true
	}
	if pe, ok := AsProviderError(err); ok {
		return pe.Status == 0 || pe.Status >= http.StatusInternalServerError
	}
	return true
}

// describeBody extracts the message from the JSON error shapes vendors use.
func describeBody(body []byte, fallback string) string {
	var shape struct {
		Error   json.RawMessage `json:"error"`
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
		ErrMsg  string          `json:"err_msg"`
	}
	if err := json.Unmarshal(body, &shape); err == nil {
		for _, raw := range []json.RawMessage{shape.Error, shape.Detail} {
			if msg := messageFrom(raw); msg != "" {
				return msg
			}
		}
		if shape.Message != "" {
			return shape.Message
		}
		if shape.ErrMsg != "" {
			return shape.ErrMsg
		}
	}
	if text := strings.TrimSpace(string(body)); text != "" && !strings.HasPrefix(text, "{") {
		return text
	}
	return fallback
}

func messageFrom(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var obj struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &obj) == nil {
		return obj.Message
	}
	return ""
}
