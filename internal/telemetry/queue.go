package telemetry

import (
	"sync"

	"github.com/vietddude/rrol/internal/core/domain"
	"github.com/vietddude/rrol/internal/metrics"
)

// DefaultQueueSize bounds the pending report queue.
const DefaultQueueSize = 100

// Queue is a bounded FIFO of pending reports. When full, the oldest report
// is evicted to make room.
type Queue struct {
	mu    sync.Mutex
	items []domain.FailureReport
	limit int
}

// NewQueue creates a queue holding at most limit reports.
func NewQueue(limit int) *Queue {
	if limit <= 0 {
		limit = DefaultQueueSize
	}
	return &Queue{limit: limit, items: make([]domain.FailureReport, 0, limit)}
}

// Push appends r and returns the number of evicted reports.
func (q *Queue) Push(r domain.FailureReport) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.items = append(q.items, r)
	evicted := 0
	if over := len(q.items) - q.limit; over > 0 {
		clear(q.items[:over])
		q.items = q.items[over:]
		evicted = over
		metrics.TelemetryEvicted.Add(float64(over))
	}
	metrics.TelemetryQueueDepth.Set(float64(len(q.items)))
	return evicted
}

// Drain removes and returns every pending report, oldest first.
func (q *Queue) Drain() []domain.FailureReport {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := q.items
	q.items = make([]domain.FailureReport, 0, q.limit)
	metrics.TelemetryQueueDepth.Set(0)
	return out
}

// Len returns the number of pending reports.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Snapshot returns a copy of the pending reports, oldest first.
func (q *Queue) Snapshot() []domain.FailureReport {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]domain.FailureReport(nil), q.items...)
}

// PushFront puts reports back at the head of the queue, preserving their
// order. Reports beyond the limit are evicted oldest first.
func (q *Queue) PushFront(rs []domain.FailureReport) {
	if len(rs) == 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	items := make([]domain.FailureReport, 0, len(rs)+len(q.items))
	items = append(items, rs...)
	items = append(items, q.items...)
	if over := len(items) - q.limit; over > 0 {
		items = items[over:]
		metrics.TelemetryEvicted.Add(float64(over))
	}
	q.items = items
	metrics.TelemetryQueueDepth.Set(float64(len(q.items)))
}
