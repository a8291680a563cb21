package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register sqlite driver
)

// timeLayout is fixed-width so stored timestamps compare correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteCache is a single-node AudioCache backed by a local database file.
type SQLiteCache struct {
	db *sql.DB
}

// OpenSQLite opens or creates the cache database at path.
func OpenSQLite(path string) (*SQLiteCache, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("creating cache dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=synchronous(normal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening cache db: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &SQLiteCache{db: db}, nil
}

func (c *SQLiteCache) Close() error {
	return c.db.Close()
}

func (c *SQLiteCache) Get(ctx context.Context, hash string) (Entry, bool, error) {
	var e Entry
	var expires string
	err := c.db.QueryRowContext(ctx, `SELECT hash, text, voice_name, audio_url, content_type, bitrate, expires_at
		FROM audio_cache WHERE hash = ?`, hash).
		Scan(&e.Hash, &e.Text, &e.VoiceName, &e.AudioURL, &e.ContentType, &e.Bitrate, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("sqlite get: %w", err)
	}
	if expires != "" {
		t, err := time.Parse(timeLayout, expires)
		if err != nil {
			return Entry{}, false, fmt.Errorf("parsing expires_at %q: %w", expires, err)
		}
		e.ExpiresAt = t
	}
	return e, true, nil
}

func (c *SQLiteCache) Put(ctx context.Context, e Entry) error {
	if err := e.validate(); err != nil {
		return err
	}
	expires := ""
	if !e.ExpiresAt.IsZero() {
		expires = e.ExpiresAt.UTC().Format(timeLayout)
	}
	_, err := c.db.ExecContext(ctx, `INSERT OR REPLACE INTO audio_cache
		(hash, text, voice_name, audio_url, content_type, bitrate, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.Hash, e.Text, e.VoiceName, e.AudioURL, e.ContentType, e.Bitrate, expires,
	)
	if err != nil {
		return fmt.Errorf("sqlite put: %w", err)
	}
	return nil
}

// DeleteExpired removes entries that expired before now. Returns deleted count.
func (c *SQLiteCache) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM audio_cache WHERE expires_at != '' AND expires_at <= ?`,
		now.UTC().Format(timeLayout))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

var _ AudioCache = (*SQLiteCache)(nil)
