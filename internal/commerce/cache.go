package commerce

import (
	"context"
	"sync"
	"time"

	"github.com/vietddude/rrol/internal/core/domain"
)

// SnapshotCache stores the last good copy of each product. Get returns
// domain.ErrCacheMiss when nothing is stored.
type SnapshotCache interface {
	GetSnapshot(ctx context.Context, handle string) (domain.Product, error)
	PutSnapshot(ctx context.Context, p domain.Product) error
}

type cachedProduct struct {
	product   domain.Product
	expiresAt time.Time
}

// MemoryCache is an in-process SnapshotCache.
type MemoryCache struct {
	mu    sync.RWMutex
	items map[string]cachedProduct
	ttl   time.Duration
	now   func() time.Time
}

// NewMemoryCache creates a cache whose entries expire after ttl. A zero ttl
// keeps entries forever.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		items: make(map[string]cachedProduct),
		ttl:   ttl,
		now:   time.Now,
	}
}

func (c *MemoryCache) GetSnapshot(_ context.Context, handle string) (domain.Product, error) {
	c.mu.RLock()
	item, ok := c.items[handle]
	c.mu.RUnlock()

	if !ok || (!item.expiresAt.IsZero() && c.now().After(item.expiresAt)) {
		return domain.Product{}, domain.ErrCacheMiss
	}
	return item.product, nil
}

func (c *MemoryCache) PutSnapshot(_ context.Context, p domain.Product) error {
	item := cachedProduct{product: p}
	if c.ttl > 0 {
		item.expiresAt = c.now().Add(c.ttl)
	}

	c.mu.Lock()
	c.items[p.Handle] = item
	c.mu.Unlock()
	return nil
}
