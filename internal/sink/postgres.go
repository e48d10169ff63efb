package sink

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

const pgRecordsSchema = `
CREATE TABLE IF NOT EXISTS proseflow_records (
	id         TEXT PRIMARY KEY,
	collection TEXT NOT NULL,
	payload    JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
)`

// PostgresSink appends records into a shared table keyed by collection.
type PostgresSink struct {
	db *sql.DB
}

// NewPostgresSink connects with the given DSN and ensures the records
// table exists. Caller must Close.
func NewPostgresSink(dsn string) (*PostgresSink, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres sink: dsn is required")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres sink: open: %w", err)
	}
	if _, err := db.Exec(pgRecordsSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres sink: schema: %w", err)
	}
	return &PostgresSink{db: db}, nil
}

func (p *PostgresSink) Name() string { return "postgres" }

func (p *PostgresSink) Close() error { return p.db.Close() }

func (p *PostgresSink) Write(ctx context.Context, collection string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("postgres sink: marshal: %w", err)
	}
	_, err = p.db.ExecContext(ctx,
		`INSERT INTO proseflow_records (id, collection, payload, created_at) VALUES ($1, $2, $3, $4)`,
		"rec_"+uuid.New().String(), collection, payload, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("postgres sink: insert: %w", err)
	}
	return nil
}
