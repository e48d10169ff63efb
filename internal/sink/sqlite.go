package sink

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const recordsSchema = `
CREATE TABLE IF NOT EXISTS records (
	id         TEXT PRIMARY KEY,
	collection TEXT NOT NULL,
	payload    TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_records_collection ON records(collection);
`

// SQLiteSink appends records into per-collection rows of a local SQLite
// database. Payloads are stored as JSON.
type SQLiteSink struct {
	db *sql.DB
}

// NewSQLiteSink opens (or creates) dataDir/records.db. Caller must Close.
func NewSQLiteSink(dataDir string) (*SQLiteSink, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("sqlite sink: data dir is required")
	}
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("sqlite sink: %w", err)
	}
	db, err := sql.Open("sqlite", filepath.Join(dataDir, "records.db")+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("sqlite sink: open db: %w", err)
	}
	if _, err := db.Exec(recordsSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite sink: schema: %w", err)
	}
	return &SQLiteSink{db: db}, nil
}

func (s *SQLiteSink) Name() string { return "sqlite" }

func (s *SQLiteSink) Close() error { return s.db.Close() }

func (s *SQLiteSink) Write(ctx context.Context, collection string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("sqlite sink: marshal: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO records (id, collection, payload, created_at) VALUES (?, ?, ?, ?)`,
		"rec_"+uuid.New().String(), collection, string(payload),
		time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("sqlite sink: insert: %w", err)
	}
	return nil
}

// Count returns the number of records in a collection.
func (s *SQLiteSink) Count(ctx context.Context, collection string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM records WHERE collection = ?`, collection).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlite sink: count: %w", err)
	}
	return n, nil
}
