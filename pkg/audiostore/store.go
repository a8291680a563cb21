// Package audiostore persists synthesized audio for providers that return raw
// bytes instead of a hosted URL.
package audiostore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var ErrInvalidKey = errors.New("audiostore: invalid key")

// Store saves audio and returns a URL it can be fetched from.
type Store interface {
	Save(ctx context.Context, key string, r io.Reader) (string, error)
}

// FileStore writes audio under Dir and serves it from BaseURL.
type FileStore struct {
	Dir     string
	BaseURL string
}

func NewFileStore(dir, baseURL string) (*FileStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("audiostore: dir is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating audio dir: %w", err)
	}
	return &FileStore{Dir: dir, BaseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Save writes r to key atomically. Saving the same key twice overwrites it.
func (s *FileStore) Save(ctx context.Context, key string, r io.Reader) (string, error) {
	if key == "" || key != filepath.Base(key) || strings.HasPrefix(key, ".") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(s.Dir, "."+key+".*")
	if err != nil {
		return "", err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("writing audio: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.Dir, key)); err != nil {
		return "", err
	}
	return s.URL(key), nil
}

func (s *FileStore) URL(key string) string {
	if s.BaseURL == "" {
		return "file://" + filepath.Join(s.Dir, key)
	}
	return s.BaseURL + "/" + key
}

// Purge removes stored audio older than maxAge. Returns deleted count.
func (s *FileStore) Purge(maxAge time.Duration) (int, error) {
	return PurgeOlderThan(s.Dir, maxAge, time.Now())
}

// PurgeOlderThan removes regular files in dir last modified before now-maxAge.
func PurgeOlderThan(dir string, maxAge time.Duration, now time.Time) (int, error) {
	if dir == "" || maxAge <= 0 {
		return 0, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	var removed int
	var errs error
	cutoff := now.Add(-maxAge)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			errs = errors.Join(errs, err)
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil {
			errs = errors.Join(errs, err)
			continue
		}
		removed++
	}
	return removed, errs
}

var _ Store = (*FileStore)(nil)
