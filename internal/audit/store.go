// Package audit is the durable log of disallowed resolver attempts. Every
// policy violation appends exactly one entry here so front ends can audit
// what a workflow tried to reach.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS disallowed_attempts (
	id          TEXT PRIMARY KEY,
	resolver    TEXT NOT NULL,
	action      TEXT NOT NULL,
	occurred_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_disallowed_resolver ON disallowed_attempts(resolver);
`

// Attempt is one refused dispatch.
type Attempt struct {
	ID         string
	Resolver   string
	Action     string
	OccurredAt time.Time
}

// Store is the SQLite-backed attempt log.
type Store struct {
	db *sql.DB
}

// Open opens the audit database at dataDir/audit.db, creating dataDir if
// needed. WAL mode keeps appends cheap. Caller must Close.
func Open(dataDir string) (*Store, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("audit store: data dir is required")
	}
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("audit store: %w", err)
	}
	dbPath := filepath.Join(dataDir, "audit.db")
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("audit store: open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("audit store: WAL: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("audit store: schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// RecordDisallowed appends one attempt. Implements resolver.AuditLog.
func (s *Store) RecordDisallowed(ctx context.Context, resolver, action string, at time.Time) error {
	id := "att_" + uuid.New().String()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO disallowed_attempts (id, resolver, action, occurred_at) VALUES (?, ?, ?, ?)`,
		id, resolver, action, at.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("audit record: %w", err)
	}
	return nil
}

// List returns all attempts, most recent first.
func (s *Store) List(ctx context.Context) ([]Attempt, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, resolver, action, occurred_at FROM disallowed_attempts ORDER BY occurred_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("audit list: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Attempt
	for rows.Next() {
		var a Attempt
		var ts string
		if err := rows.Scan(&a.ID, &a.Resolver, &a.Action, &ts); err != nil {
			return nil, fmt.Errorf("audit scan: %w", err)
		}
		a.OccurredAt, _ = time.Parse(time.RFC3339Nano, ts)
		out = append(out, a)
	}
	return out, rows.Err()
}

// CountForResolver returns how many attempts were logged for one resolver.
func (s *Store) CountForResolver(ctx context.Context, resolver string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM disallowed_attempts WHERE resolver = ?`, resolver).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("audit count: %w", err)
	}
	return n, nil
}
