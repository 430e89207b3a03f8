package redis

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/rrol/internal/core/domain"
)

func TestKeys(t *testing.T) {
	c := NewFromClient(redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}), "")
	defer c.Close()

	tests := []struct {
		got, want string
	}{
		{c.sessionKey("web-1"), "rrol:session:web-1"},
		{c.snapshotKey("blue-shirt"), "rrol:product:blue-shirt"},
		{c.rateKey("10.0.0.1", 42), "rrol:ratelimit:10.0.0.1:42"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("key = %q, want %q", tt.got, tt.want)
		}
	}
}

func TestNewRateLimiter_Defaults(t *testing.T) {
	tests := []struct {
		name       string
		limit      int
		window     time.Duration
		wantLimit  int
		wantWindow time.Duration
	}{
		{"zero", 0, 0, 10, time.Minute},
		{"negative window", 5, -time.Second, 5, time.Minute},
		{"explicit", 3, 10 * time.Second, 3, 10 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewRateLimiter(nil, tt.limit, tt.window)
			if l.limit != tt.wantLimit || l.window != tt.wantWindow {
				t.Errorf("limit, window = %d, %s; want %d, %s", l.limit, l.window, tt.wantLimit, tt.wantWindow)
			}
		})
	}
}

// =============================================================================
// Live Redis Tests
// =============================================================================

func liveClient(t *testing.T) *Client {
	t.Helper()
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("Skipping live redis test. Set REDIS_URL to run.")
	}
	c, err := NewClient(Config{URL: url, Prefix: "rrol_test_" + time.Now().Format("150405.000")})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestSessionStore_Live(t *testing.T) {
	c := liveClient(t)
	ctx := context.Background()

	a := NewSessionStore(c, "node", time.Minute)
	b := NewSessionStore(c, "node", time.Minute)

	first, err := a.SessionID(ctx)
	if err != nil {
		t.Fatalf("SessionID: %v", err)
	}
	second, err := b.SessionID(ctx)
	if err != nil {
		t.Fatalf("SessionID: %v", err)
	}
	if first != second {
		t.Errorf("session ids differ: %q vs %q", first, second)
	}
}

func TestSnapshotCache_Live(t *testing.T) {
	c := liveClient(t)
	ctx := context.Background()
	cache := NewSnapshotCache(c, time.Minute)

	if _, err := cache.GetSnapshot(ctx, "missing"); !errors.Is(err, domain.ErrCacheMiss) {
		t.Fatalf("expected cache miss, got %v", err)
	}

	p := domain.Product{ID: "gid://shopify/Product/1", Handle: "shirt", Title: "Shirt"}
	if err := cache.PutSnapshot(ctx, p); err != nil {
		t.Fatalf("PutSnapshot: %v", err)
	}
	got, err := cache.GetSnapshot(ctx, "shirt")
	if err != nil {
		t.Fatalf("GetSnapshot: %v", err)
	}
	if got.Title != "Shirt" || got.ID != p.ID {
		t.Errorf("unexpected snapshot %+v", got)
	}
}

func TestRateLimiter_Live(t *testing.T) {
	c := liveClient(t)
	ctx := context.Background()

	l := NewRateLimiter(c, 2, time.Minute)
	fixed := time.Now()
	l.now = func() time.Time { return fixed }

	for i, want := range []bool{true, true, false} {
		ok, err := l.Allow(ctx, "10.0.0.1")
		if err != nil {
			t.Fatalf("Allow: %v", err)
		}
		if ok != want {
			t.Errorf("hit %d: allowed = %v, want %v", i+1, ok, want)
		}
	}
}
