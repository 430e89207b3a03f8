package telemetry

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/vietddude/rrol/internal/metrics"
)

// Connectivity is the process-wide online/offline flag. Reads are lock
// free; listeners are notified on transitions only.
type Connectivity struct {
	online atomic.Bool

	mu        sync.Mutex
	nextID    int
	listeners map[int]func(online bool)
}

// NewConnectivity creates a flag with the given initial state.
func NewConnectivity(online bool) *Connectivity {
	c := &Connectivity{listeners: make(map[int]func(bool))}
	c.online.Store(online)
	metrics.Online.Set(metrics.BoolGauge(online))
	return c
}

// Online reports the current reading.
func (c *Connectivity) Online() bool {
	return c.online.Load()
}

// Set records a new reading and notifies listeners when it changed.
// It returns true on a transition.
func (c *Connectivity) Set(online bool) bool {
	if c.online.Swap(online) == online {
		return false
	}
	metrics.Online.Set(metrics.BoolGauge(online))

	c.mu.Lock()
	fns := make([]func(bool), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		notify(fn, online)
	}
	return true
}

// Subscribe registers fn for transitions and returns a function that
// removes it.
func (c *Connectivity) Subscribe(fn func(online bool)) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

func notify(fn func(bool), online bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("Connectivity listener panicked", "panic", r)
		}
	}()
	fn(online)
}
