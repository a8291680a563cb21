package tts

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Provider defines the contract for any TTS vendor implementation.
type Provider interface {
	// Name returns adapter name for logging/metrics.
	Name() string
	// Generate synthesizes text (plain or SSML) and returns a playable URL.
	Generate(ctx context.Context, req Request) (Result, error)
}

// Request is one synthesis call.
type Request struct {
	// Text may contain SSML break markers.
	Text  string
	Voice string
	// Provider optionally routes the call to a named vendor.
	Provider string
	// Hash is the canonical content hash of the spoken text, used as cache key.
	Hash string
}

// Result is the vendor-agnostic outcome of a synthesis call.
type Result struct {
	AudioURL  string    `json:"audio_url"`
	Cached    bool      `json:"cached"`
	Provider  string    `json:"provider"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// ProviderError is a non-success response from a vendor.
type ProviderError struct {
	Provider    string
	Status      int
	Description string
	Cause       error
}

func (e *ProviderError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: status %d: %s", e.Provider, e.Status, e.Description)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Description)
}

func (e *ProviderError) Unwrap() error { return e.Cause }

// AsProviderError returns the ProviderError wrapped in err, if any.
func AsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc struct {
	ProviderName string
	Fn           func(ctx context.Context, req Request) (Result, error)
}

func (p ProviderFunc) Name() string { return p.ProviderName }

func (p ProviderFunc) Generate(ctx context.Context, req Request) (Result, error) {
	return p.Fn(ctx, req)
}
