package intake

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/vietddude/rrol/internal/infra/backend"
	"github.com/vietddude/rrol/internal/telemetry"
)

// SystemStatus represents the health state of the system or a component.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

func (s SystemStatus) rank() int {
	switch s {
	case StatusCritical:
		return 2
	case StatusDegraded:
		return 1
	}
	return 0
}

// ComponentHealth is the health of one dependency.
type ComponentHealth struct {
	Status  SystemStatus   `json:"status"`
	Detail  string         `json:"detail,omitempty"`
	Backend *backend.Stats `json:"backend,omitempty"`
}

// HealthReport contains the full system health report.
type HealthReport struct {
	SystemStatus SystemStatus               `json:"system_status"`
	Components   map[string]ComponentHealth `json:"components"`
}

// Check inspects one component.
type Check func(ctx context.Context) ComponentHealth

// Monitor aggregates health status from registered components.
type Monitor struct {
	mu         sync.Mutex
	checks     map[string]Check
	cacheTTL   time.Duration
	lastCheck  time.Time
	lastReport *HealthReport
	now        func() time.Time
}

// NewMonitor creates an empty monitor.
func NewMonitor() *Monitor {
	return &Monitor{
		checks:   make(map[string]Check),
		cacheTTL: 10 * time.Second,
		now:      time.Now,
	}
}

// Register adds a named check.
func (m *Monitor) Register(name string, check Check) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks[name] = check
	m.lastReport = nil
}

// CheckHealth runs every check. Results are cached briefly so frequent
// probes do not hammer dependencies.
func (m *Monitor) CheckHealth(ctx context.Context) HealthReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lastReport != nil && m.now().Sub(m.lastCheck) < m.cacheTTL {
		return *m.lastReport
	}

	names := make([]string, 0, len(m.checks))
	for name := range m.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	report := HealthReport{
		SystemStatus: StatusHealthy,
		Components:   make(map[string]ComponentHealth, len(names)),
	}
	for _, name := range names {
		h := m.checks[name](ctx)
		report.Components[name] = h
		// Worst case wins
		if h.Status.rank() > report.SystemStatus.rank() {
			report.SystemStatus = h.Status
		}
	}

	m.lastCheck = m.now()
	m.lastReport = &report
	return report
}

// PingCheck marks a component critical when ping fails.
func PingCheck(ping func(ctx context.Context) error) Check {
	return func(ctx context.Context) ComponentHealth {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := ping(ctx); err != nil {
			return ComponentHealth{Status: StatusCritical, Detail: err.Error()}
		}
		return ComponentHealth{Status: StatusHealthy}
	}
}

// BackendCheck reports a caller's recent behaviour. Throttling and high
// error rates degrade but never fail the system.
func BackendCheck(stats func() backend.Stats) Check {
	return func(context.Context) ComponentHealth {
		s := stats()
		h := ComponentHealth{Status: StatusHealthy, Backend: &s}
		if s.Status != backend.StatusHealthy {
			h.Status = StatusDegraded
			h.Detail = string(s.Status)
		}
		return h
	}
}

// TelemetryCheck reports connectivity and the delivery backlog.
func TelemetryCheck(svc *telemetry.Service) Check {
	return func(context.Context) ComponentHealth {
		pending := svc.Pending()
		if !svc.Connectivity().Online() {
			return ComponentHealth{
				Status: StatusDegraded,
				Detail: fmt.Sprintf("offline, %d reports pending", pending),
			}
		}
		return ComponentHealth{Status: StatusHealthy, Detail: fmt.Sprintf("%d reports pending", pending)}
	}
}
