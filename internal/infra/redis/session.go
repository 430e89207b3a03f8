package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SessionStore keeps one telemetry session id per named instance, shared
// across restarts until it expires.
type SessionStore struct {
	client *Client
	name   string
	ttl    time.Duration
}

// NewSessionStore creates a store for the named instance.
func NewSessionStore(client *Client, name string, ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SessionStore{client: client, name: name, ttl: ttl}
}

// SessionID returns the stored id, creating it on first use.
func (s *SessionStore) SessionID(ctx context.Context) (string, error) {
	key := s.client.sessionKey(s.name)

	id := "session_" + uuid.NewString()
	ok, err := s.client.rdb.SetNX(ctx, key, id, s.ttl).Result()
	if err != nil {
		return "", fmt.Errorf("setnx failed: %w", err)
	}
	if ok {
		return id, nil
	}

	existing, err := s.client.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		// Expired between SETNX and GET.
		if err := s.client.rdb.Set(ctx, key, id, s.ttl).Err(); err != nil {
			return "", fmt.Errorf("set failed: %w", err)
		}
		return id, nil
	}
	if err != nil {
		return "", fmt.Errorf("get failed: %w", err)
	}
	if err := s.client.rdb.Expire(ctx, key, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("expire failed: %w", err)
	}
	return existing, nil
}
