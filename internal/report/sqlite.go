package report

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteSink keeps a local history of reports.
type SQLiteSink struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the history database at path.
func OpenSQLite(path string) (*SQLiteSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &SQLiteSink{db: db}
	if err := s.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteSink) init() error {
	stmts := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		`CREATE TABLE IF NOT EXISTS reports (
			cycle_id   TEXT PRIMARY KEY,
			created_at INTEGER NOT NULL,
			summary    TEXT NOT NULL,
			facts      TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reports_created_at ON reports(created_at)`,
	}
	for _, q := range stmts {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("sqlite init %q: %w", q, err)
		}
	}
	return nil
}

func (s *SQLiteSink) Name() string { return "sqlite" }

func (s *SQLiteSink) Write(ctx context.Context, r Report) error {
	factsJSON, err := json.Marshal(r.Facts)
	if err != nil {
		return fmt.Errorf("marshal facts: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO reports (cycle_id, created_at, summary, facts) VALUES (?, ?, ?, ?)`,
		r.CycleID, r.Timestamp.UnixNano(), r.Summary, string(factsJSON))
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

// Recent returns up to limit reports, newest first.
func (s *SQLiteSink) Recent(ctx context.Context, limit int) ([]Report, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT cycle_id, created_at, summary, facts FROM reports ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	defer rows.Close()

	out := []Report{}
	for rows.Next() {
		var (
			r         Report
			createdAt int64
			factsJSON string
		)
		if err := rows.Scan(&r.CycleID, &createdAt, &r.Summary, &factsJSON); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		r.Timestamp = time.Unix(0, createdAt).UTC()
		if err := json.Unmarshal([]byte(factsJSON), &r.Facts); err != nil {
			return nil, fmt.Errorf("decode facts of %s: %w", r.CycleID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteSink) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
