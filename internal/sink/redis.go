package sink

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisSink appends records to per-collection Redis lists. Payloads are
// stored as JSON under the key "proseflow:<collection>".
type RedisSink struct {
	client *redis.Client
}

func NewRedisSink(addr string, db int) *RedisSink {
	return &RedisSink{client: redis.NewClient(&redis.Options{Addr: addr, DB: db})}
}

// NewRedisSinkFromClient wraps an existing client (tests use miniredis).
func NewRedisSinkFromClient(client *redis.Client) *RedisSink {
	return &RedisSink{client: client}
}

func (r *RedisSink) Name() string { return "redis" }

func (r *RedisSink) Close() error { return r.client.Close() }

func (r *RedisSink) Write(ctx context.Context, collection string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("redis sink: marshal: %w", err)
	}
	if err := r.client.RPush(ctx, r.key(collection), payload).Err(); err != nil {
		return fmt.Errorf("redis sink: rpush: %w", err)
	}
	return nil
}

// Len returns the length of a collection list.
func (r *RedisSink) Len(ctx context.Context, collection string) (int64, error) {
	n, err := r.client.LLen(ctx, r.key(collection)).Result()
	if err != nil {
		return 0, fmt.Errorf("redis sink: llen: %w", err)
	}
	return n, nil
}

func (r *RedisSink) key(collection string) string {
	return "proseflow:" + collection
}
