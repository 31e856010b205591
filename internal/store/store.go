// Package store persists build history using SQLite.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// BuildRecord is one pipeline run as seen by the daemon.
type BuildRecord struct {
	ID         string
	Board      string
	Type       string // nightly|tag|custom
	Ref        string
	Version    string
	Status     string // running|success|failed
	ExitCode   int
	StartedAt  time.Time
	FinishedAt time.Time
}

// Store is a SQLite-backed build history.
// Use ":memory:" for an in-memory database, or a file path for
// persistent storage.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens the database and ensures the schema exists.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	s := &Store{db: db}
	if err := s.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS builds (
		id TEXT PRIMARY KEY,
		board TEXT NOT NULL,
		type TEXT NOT NULL,
		ref TEXT,
		version TEXT,
		status TEXT NOT NULL,
		exit_code INTEGER NOT NULL DEFAULT 0,
		started_at INTEGER NOT NULL,
		finished_at INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_builds_board ON builds(board);
	CREATE INDEX IF NOT EXISTS idx_builds_started_at ON builds(started_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// RecordStart inserts a new running build.
func (s *Store) RecordStart(ctx context.Context, rec BuildRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO builds (id, board, type, ref, version, status, started_at) VALUES (?, ?, ?, ?, ?, 'running', ?)",
		rec.ID, rec.Board, rec.Type, rec.Ref, rec.Version, rec.StartedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert build: %w", err)
	}
	return nil
}

// RecordFinish marks a build finished with its final status.
func (s *Store) RecordFinish(ctx context.Context, id, status, version string, exitCode int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"UPDATE builds SET status = ?, version = ?, exit_code = ?, finished_at = ? WHERE id = ?",
		status, version, exitCode, time.Now().Unix(), id,
	)
	if err != nil {
		return fmt.Errorf("update build: %w", err)
	}
	return nil
}

// RecentByBoard returns the most recent builds for a board, newest
// first.
func (s *Store) RecentByBoard(ctx context.Context, board string, limit int) ([]BuildRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, board, type, ref, version, status, exit_code, started_at, finished_at FROM builds WHERE board = ? ORDER BY started_at DESC LIMIT ?",
		board, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query builds: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]BuildRecord, error) {
	var records []BuildRecord
	for rows.Next() {
		var r BuildRecord
		var ref, version sql.NullString
		var started int64
		var finished sql.NullInt64

		if err := rows.Scan(&r.ID, &r.Board, &r.Type, &ref, &version, &r.Status, &r.ExitCode, &started, &finished); err != nil {
			return nil, fmt.Errorf("scan build: %w", err)
		}
		r.Ref = ref.String
		r.Version = version.String
		r.StartedAt = time.Unix(started, 0)
		if finished.Valid {
			r.FinishedAt = time.Unix(finished.Int64, 0)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return records, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
