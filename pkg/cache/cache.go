// Package cache stores generated audio by canonical content hash.
package cache

import (
	"context"
	"errors"
	"time"
)

var ErrInvalidEntry = errors.New("cache: entry requires hash and audio url")

// Entry is one cached rendition of a canonical text.
type Entry struct {
	Hash        string    `json:"hash"`
	Text        string    `json:"text"`
	VoiceName   string    `json:"voice_name"`
	AudioURL    string    `json:"audio_url"`
	ContentType string    `json:"content_type,omitempty"`
	Bitrate     int       `json:"bitrate,omitempty"`
	ExpiresAt   time.Time `json:"expires_at,omitempty"`
}

// Expired reports whether the entry is past ExpiresAt. A zero ExpiresAt never expires.
func (e Entry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && !now.Before(e.ExpiresAt)
}

func (e Entry) validate() error {
	if e.Hash == "" || e.AudioURL == "" {
		return ErrInvalidEntry
	}
	return nil
}

// AudioCache is a content-addressed store. Get returns stored entries as-is,
// expired ones included; callers decide what counts as a hit. Put overwrites,
// so concurrent writers of the same hash need no coordination.
type AudioCache interface {
	Get(ctx context.Context, hash string) (Entry, bool, error)
	Put(ctx context.Context, e Entry) error
}
