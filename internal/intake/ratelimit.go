package intake

import (
	"context"
	"sync"
	"time"
)

// Default intake limits.
const (
	DefaultRateLimit  = 10
	DefaultRateWindow = time.Minute
)

// Limiter decides whether a client may submit another report.
type Limiter interface {
	Allow(ctx context.Context, client string) (bool, error)
}

const sweepThreshold = 1024

type window struct {
	count   int
	resetAt time.Time
}

// MemoryLimiter is a fixed-window limiter local to the process.
type MemoryLimiter struct {
	limit  int
	period time.Duration
	now    func() time.Time

	mu      sync.Mutex
	windows map[string]*window
}

// NewMemoryLimiter allows limit reports per client per period.
func NewMemoryLimiter(limit int, period time.Duration) *MemoryLimiter {
	if limit <= 0 {
		limit = DefaultRateLimit
	}
	if period <= 0 {
		period = DefaultRateWindow
	}
	return &MemoryLimiter{
		limit:   limit,
		period:  period,
		now:     time.Now,
		windows: make(map[string]*window),
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, client string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[client]
	if !ok || now.After(w.resetAt) {
		if len(l.windows) >= sweepThreshold {
			l.sweep(now)
		}
		l.windows[client] = &window{count: 1, resetAt: now.Add(l.period)}
		return true, nil
	}
	if w.count >= l.limit {
		return false, nil
	}
	w.count++
	return true, nil
}

// sweep drops expired windows so idle clients do not accumulate.
func (l *MemoryLimiter) sweep(now time.Time) {
	for k, w := range l.windows {
		if now.After(w.resetAt) {
			delete(l.windows, k)
		}
	}
}
