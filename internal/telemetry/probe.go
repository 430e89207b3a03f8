package telemetry

import (
	"context"
	"log/slog"
	"time"

	"github.com/vietddude/rrol/internal/core/domain"
	"github.com/vietddude/rrol/internal/resilience/classifier"
)

// Pinger checks whether the remote backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Probe periodically pings the backend and feeds the connectivity flag.
type Probe struct {
	pinger   Pinger
	conn     *Connectivity
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger
}

// NewProbe creates a probe. A zero interval disables it.
func NewProbe(pinger Pinger, conn *Connectivity, interval time.Duration) *Probe {
	return &Probe{
		pinger:   pinger,
		conn:     conn,
		interval: interval,
		timeout:  DefaultDeliveryTimeout,
		logger:   slog.Default(),
	}
}

// Start runs the probe loop until ctx is done.
func (p *Probe) Start(ctx context.Context) {
	if p.interval <= 0 || p.pinger == nil {
		return
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.check(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.check(ctx)
		}
	}
}

// check only treats network failures as offline; a backend that answers
// with an error is still reachable.
func (p *Probe) check(ctx context.Context) {
	pctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.pinger.Ping(pctx)
	if ctx.Err() != nil {
		return
	}
	online := err == nil || classifier.Classify(err).Category != domain.CategoryNetwork
	if p.conn.Set(online) {
		p.logger.Info("Connectivity changed", "online", online, "error", err)
	}
}
