package genlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// timeLayout is fixed-width so created_at sorts and compares as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Transient reports whether err is lock contention that a later attempt may
// get past.
func Transient(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return true
		}
		return false
	}
	return err != nil && strings.Contains(err.Error(), "database is locked")
}

// SQLiteLog persists records in a local database file.
type SQLiteLog struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens or creates the log database at path.
func OpenSQLite(path string) (*SQLiteLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("creating log dir: %w", err)
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=synchronous(normal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening log db: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &SQLiteLog{db: db, now: time.Now}, nil
}

func (l *SQLiteLog) Close() error {
	return l.db.Close()
}

func (l *SQLiteLog) Append(ctx context.Context, r Record) error {
	r = prepare(r, l.now())
	cached := 0
	if r.Cached {
		cached = 1
	}
	_, err := l.db.ExecContext(ctx, `INSERT INTO generations
		(id, provider, text_length, cached, actual_cost, estimated_cost, mode, created_at, session_id, voice, hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Provider, r.TextLength, cached, r.ActualCost, r.EstimatedCost, r.Mode,
		r.CreatedAt.Format(timeLayout), r.SessionID, r.Voice, r.Hash,
	)
	if err != nil {
		return fmt.Errorf("appending generation: %w", err)
	}
	return nil
}

func (l *SQLiteLog) Range(ctx context.Context, start, end time.Time) ([]Record, error) {
	if end.Before(start) {
		return nil, ErrInvalidRange
	}
	rows, err := l.db.QueryContext(ctx, `SELECT id, provider, text_length, cached, actual_cost, estimated_cost,
		mode, created_at, session_id, voice, hash
		FROM generations WHERE created_at >= ? AND created_at < ? ORDER BY created_at`,
		start.UTC().Format(timeLayout), end.UTC().Format(timeLayout))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Record
	for rows.Next() {
		var r Record
		var cached int
		var created string
		if err := rows.Scan(&r.ID, &r.Provider, &r.TextLength, &cached, &r.ActualCost, &r.EstimatedCost,
			&r.Mode, &created, &r.SessionID, &r.Voice, &r.Hash); err != nil {
			return nil, err
		}
		r.Cached = cached == 1
		if r.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
			return nil, fmt.Errorf("parsing created_at %q: %w", created, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (l *SQLiteLog) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := l.db.ExecContext(ctx, "DELETE FROM generations WHERE created_at < ?", cutoff.UTC().Format(timeLayout))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

var _ Log = (*SQLiteLog)(nil)
