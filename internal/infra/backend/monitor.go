package backend

import (
	"sync"
	"time"

	"github.com/vietddude/rrol/internal/metrics"
)

// Status summarises a caller's recent behaviour.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusThrottled Status = "throttled"
)

// Stats is a point-in-time health view of a caller.
type Stats struct {
	Transport      string        `json:"transport"`
	Status         Status        `json:"status"`
	AverageLatency time.Duration `json:"averageLatency"`
	ErrorRate      float64       `json:"errorRate"`
	Requests       int           `json:"requests"`
	Throttles      int           `json:"throttles"`
	LastSuccessAt  time.Time     `json:"lastSuccessAt"`
	LastFailureAt  time.Time     `json:"lastFailureAt"`
}

// Monitor tracks request outcomes for one caller.
type Monitor struct {
	transport string

	mu               sync.RWMutex
	latencies        []time.Duration
	maxLatencyWindow int
	successCount     int
	failureCount     int
	throttleCount    int
	lastSuccessAt    time.Time
	lastFailureAt    time.Time
	lastThrottleAt   time.Time

	slowThreshold    time.Duration
	throttleCooldown time.Duration
}

// NewMonitor creates a monitor for the named transport.
func NewMonitor(transport string) *Monitor {
	return &Monitor{
		transport:        transport,
		latencies:        make([]time.Duration, 0, 100),
		maxLatencyWindow: 100,
		slowThreshold:    3 * time.Second,
		throttleCooldown: time.Minute,
	}
}

// RecordSuccess records a successful request.
func (m *Monitor) RecordSuccess(op string, latency time.Duration) {
	metrics.BackendLatency.WithLabelValues(m.transport, op).Observe(latency.Seconds())

	m.mu.Lock()
	defer m.mu.Unlock()

	m.successCount++
	m.lastSuccessAt = time.Now()
	m.latencies = append(m.latencies, latency)
	if len(m.latencies) > m.maxLatencyWindow {
		m.latencies = m.latencies[1:]
	}
}

// RecordFailure records a failed request.
func (m *Monitor) RecordFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.failureCount++
	m.lastFailureAt = time.Now()
}

// RecordThrottle records a rate-limit response.
func (m *Monitor) RecordThrottle() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.failureCount++
	m.throttleCount++
	m.lastFailureAt = time.Now()
	m.lastThrottleAt = m.lastFailureAt
}

// Stats returns the current view.
func (m *Monitor) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := Stats{
		Transport:     m.transport,
		Status:        StatusHealthy,
		Requests:      m.successCount + m.failureCount,
		Throttles:     m.throttleCount,
		LastSuccessAt: m.lastSuccessAt,
		LastFailureAt: m.lastFailureAt,
	}
	if s.Requests > 0 {
		s.ErrorRate = float64(m.failureCount) / float64(s.Requests)
	}
	if len(m.latencies) > 0 {
		var total time.Duration
		for _, l := range m.latencies {
			total += l
		}
		s.AverageLatency = total / time.Duration(len(m.latencies))
	}

	switch {
	case !m.lastThrottleAt.IsZero() && time.Since(m.lastThrottleAt) < m.throttleCooldown:
		s.Status = StatusThrottled
	case s.ErrorRate > 0.3 || (len(m.latencies) > 10 && s.AverageLatency > m.slowThreshold):
		s.Status = StatusDegraded
	}
	return s
}
