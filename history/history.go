// Package history persists answered questions in a SQLite database.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver (pure Go)

	"github.com/spektr-org/asktable/engine"
)

// ErrNotFound is returned by Get for an unknown id.
var ErrNotFound = errors.New("history entry not found")

// Entry is one recorded question and its outcome.
type Entry struct {
	ID        string            `json:"id"`
	Question  string            `json:"question"`
	Dataset   string            `json:"dataset"`
	Backend   string            `json:"backend"`
	Intent    string            `json:"intent"`
	Reply     string            `json:"reply"`
	QuerySpec *engine.QuerySpec `json:"querySpec,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Duration  time.Duration     `json:"duration"`
	CreatedAt time.Time         `json:"createdAt"`
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS history (
	id          TEXT PRIMARY KEY,
	question    TEXT NOT NULL,
	dataset     TEXT NOT NULL DEFAULT '',
	backend     TEXT NOT NULL DEFAULT '',
	intent      TEXT NOT NULL DEFAULT '',
	reply       TEXT NOT NULL DEFAULT '',
	query_spec  TEXT,
	success     INTEGER NOT NULL,
	error       TEXT NOT NULL DEFAULT '',
	duration_ms INTEGER NOT NULL,
	created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_history_created ON history(created_at);
`

const selectColumns = `id, question, dataset, backend, intent, reply, query_spec, success, error, duration_ms, created_at`

// Store is a SQLite-backed history log.
type Store struct {
	db *sql.DB
}

// Open opens or creates the store at path, creating parent directories.
// ":memory:" gives a private in-memory store.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create history directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	// one connection keeps :memory: alive and serializes writers
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize history schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores e. A missing ID or timestamp is filled in; the stored
// entry is returned.
func (s *Store) Record(ctx context.Context, e Entry) (Entry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	var spec sql.NullString
	if e.QuerySpec != nil {
		data, err := json.Marshal(e.QuerySpec)
		if err != nil {
			return e, fmt.Errorf("failed to encode query spec: %w", err)
		}
		spec = sql.NullString{String: string(data), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `INSERT INTO history (`+selectColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Question, e.Dataset, e.Backend, e.Intent, e.Reply, spec,
		e.Success, e.Error, e.Duration.Milliseconds(), e.CreatedAt.UnixNano())
	if err != nil {
		return e, fmt.Errorf("failed to record history: %w", err)
	}
	return e, nil
}

// List returns up to limit entries, newest first. limit <= 0 means all.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	q := `SELECT ` + selectColumns + ` FROM history ORDER BY created_at DESC, rowid DESC`
	var args []any
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Get returns the entry with id, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (Entry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM history WHERE id = ?`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e, err
}

// Clear deletes every entry and reports how many were removed.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM history`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear history: %w", err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(sc scanner) (Entry, error) {
	var (
		e          Entry
		spec       sql.NullString
		durationMS int64
		created    int64
	)
	if err := sc.Scan(&e.ID, &e.Question, &e.Dataset, &e.Backend, &e.Intent, &e.Reply,
		&spec, &e.Success, &e.Error, &durationMS, &created); err != nil {
		return Entry{}, err
	}
	if spec.Valid {
		var qs engine.QuerySpec
		if err := json.Unmarshal([]byte(spec.String), &qs); err != nil {
			return Entry{}, fmt.Errorf("history %s: bad query spec: %w", e.ID, err)
		}
		e.QuerySpec = &qs
	}
	e.Duration = time.Duration(durationMS) * time.Millisecond
	e.CreatedAt = time.Unix(0, created)
	return e, nil
}
