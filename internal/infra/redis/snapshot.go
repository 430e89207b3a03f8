package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/rrol/internal/core/domain"
)

// SnapshotCache stores product snapshots as JSON.
type SnapshotCache struct {
	client *Client
	ttl    time.Duration
}

// NewSnapshotCache creates a cache whose entries expire after ttl. A zero
// ttl keeps entries until evicted by Redis.
func NewSnapshotCache(client *Client, ttl time.Duration) *SnapshotCache {
	return &SnapshotCache{client: client, ttl: ttl}
}

// GetSnapshot returns domain.ErrCacheMiss when the handle is not cached.
func (c *SnapshotCache) GetSnapshot(ctx context.Context, handle string) (domain.Product, error) {
	raw, err := c.client.rdb.Get(ctx, c.client.snapshotKey(handle)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Product{}, domain.ErrCacheMiss
	}
	if err != nil {
		return domain.Product{}, fmt.Errorf("get failed: %w", err)
	}

	var p domain.Product
	if err := json.Unmarshal(raw, &p); err != nil {
		return domain.Product{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return p, nil
}

// PutSnapshot stores p under its handle.
func (c *SnapshotCache) PutSnapshot(ctx context.Context, p domain.Product) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := c.client.rdb.Set(ctx, c.client.snapshotKey(p.Handle), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("set failed: %w", err)
	}
	return nil
}
