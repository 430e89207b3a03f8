// Package telemetry captures failure reports and ships them to the
// telemetry endpoint. Reports are queued in a bounded FIFO and delivered by
// a background worker while the process is online; going back online
// flushes whatever accumulated while offline.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/rrol/internal/core/domain"
	"github.com/vietddude/rrol/internal/metrics"
	"github.com/vietddude/rrol/internal/resilience/classifier"
	"github.com/vietddude/rrol/internal/resilience/retry"
)

// ReportingFailed is returned by Report when the report could not be built.
const ReportingFailed = "reporting_failed"

// ErrQueueClosed is returned by Flush after Shutdown.
var ErrQueueClosed = errors.New("telemetry queue closed")

// Config holds the static report context and queue tuning.
type Config struct {
	QueueSize       int
	DeliveryTimeout time.Duration
	Route           string
	UserAgent       string
	BuildVersion    string
}

func (c Config) withDefaults() Config {
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}
	if c.DeliveryTimeout <= 0 {
		c.DeliveryTimeout = DefaultDeliveryTimeout
	}
	if c.Route == "" {
		c.Route = "server"
	}
	if c.UserAgent == "" {
		c.UserAgent = "rrol"
	}
	if c.BuildVersion == "" {
		c.BuildVersion = "dev"
	}
	return c
}

// Service queues and delivers failure reports.
type Service struct {
	cfg      Config
	queue    *Queue
	sender   Sender
	conn     *Connectivity
	sessions SessionStore
	session  string
	logger   *slog.Logger
	now      func() time.Time

	kick        chan struct{}
	sendMu      sync.Mutex
	closed      atomic.Bool
	stop        chan struct{}
	done        chan struct{}
	unsubscribe func()
}

// Option configures a Service.
type Option func(*Service)

// WithSender sets the delivery target. Default: LogSender.
func WithSender(s Sender) Option {
	return func(svc *Service) { svc.sender = s }
}

// WithConnectivity shares a connectivity flag with the service.
func WithConnectivity(c *Connectivity) Option {
	return func(svc *Service) { svc.conn = c }
}

// WithSessionStore sets where the session id comes from.
func WithSessionStore(s SessionStore) Option {
	return func(svc *Service) { svc.sessions = s }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(svc *Service) { svc.logger = l }
}

// WithClock sets the time source for report timestamps.
func WithClock(now func() time.Time) Option {
	return func(svc *Service) { svc.now = now }
}

// New creates a service and starts its delivery worker.
func New(cfg Config, opts ...Option) *Service {
	cfg = cfg.withDefaults()
	s := &Service{
		cfg:    cfg,
		queue:  NewQueue(cfg.QueueSize),
		logger: slog.Default(),
		now:    time.Now,
		kick:   make(chan struct{}, 1),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.sender == nil {
		s.sender = LogSender{Logger: s.logger}
	}
	if s.conn == nil {
		s.conn = NewConnectivity(true)
	}
	if s.sessions == nil {
		s.sessions = &MemorySessionStore{}
	}
	s.session = s.resolveSession()

	s.unsubscribe = s.conn.Subscribe(func(online bool) {
		if online {
			s.logger.Debug("Back online, flushing telemetry queue", "pending", s.queue.Len())
			s.signal()
		}
	})

	go s.run()
	return s
}

// Connectivity returns the flag the service listens to.
func (s *Service) Connectivity() *Connectivity {
	return s.conn
}

// Pending returns the number of undelivered reports.
func (s *Service) Pending() int {
	return s.queue.Len()
}

// Report enqueues r and returns its error id. It never blocks on delivery
// and never panics.
func (s *Service) Report(r domain.FailureReport) (id string) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Warn("Failure reporting panicked", "panic", rec)
			id = ReportingFailed
		}
	}()

	r = s.complete(r)
	s.queue.Push(r)
	if s.conn.Online() && !s.closed.Load() {
		s.signal()
	}
	s.logger.Debug("Failure captured",
		"error_id", r.ErrorID,
		"category", r.Category,
		"severity", r.Severity,
		"message", r.Message,
	)
	return r.ErrorID
}

// Capture builds a report for err and enqueues it.
func (s *Service) Capture(err error, class domain.Classification, meta map[string]any) string {
	if err == nil {
		return ""
	}
	r := domain.FailureReport{
		Message:  err.Error(),
		Category: class.Category,
		Severity: class.Severity,
		Context:  domain.ReportContext{Metadata: meta},
	}
	var st classifier.StackTracer
	if errors.As(err, &st) {
		r.StackTrace = st.StackTrace()
	}
	if route, ok := meta["route"].(string); ok {
		r.Context.Route = route
	}
	return s.Report(r)
}

// ReportFailure records a failed retry attempt.
func (s *Service) ReportFailure(f retry.Failure) string {
	meta := map[string]any{
		"attempt":  f.Attempt,
		"terminal": f.Terminal,
		"action":   string(f.Decision.Action),
	}
	if f.Call.Operation != "" {
		meta["operation"] = f.Call.Operation
	}
	if f.Call.Checkout {
		meta["checkout"] = true
	}
	for k, v := range f.Call.Metadata {
		if _, taken := meta[k]; !taken {
			meta[k] = v
		}
	}
	for k, v := range f.Decision.Metadata {
		if _, taken := meta[k]; !taken {
			meta[k] = v
		}
	}
	return s.Capture(f.Err, f.Classification, meta)
}

// Flush delivers every pending report while online. Reports that fail to
// deliver are dropped.
func (s *Service) Flush(ctx context.Context) error {
	if s.closed.Load() {
		return ErrQueueClosed
	}
	s.deliverPending(ctx, nil)
	return ctx.Err()
}

// Shutdown stops the worker and makes a final delivery attempt bounded by
// ctx. A delivery already in flight finishes first. Reports still queued
// afterwards are discarded.
func (s *Service) Shutdown(ctx context.Context) error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.unsubscribe()
	close(s.stop)

	select {
	case <-s.done:
	case <-ctx.Done():
		return fmt.Errorf("wait for telemetry worker: %w", ctx.Err())
	}

	s.deliverPending(ctx, nil)
	if n := s.queue.Len(); n > 0 {
		s.logger.Debug("Discarding undelivered reports", "count", n)
	}
	return ctx.Err()
}

func (s *Service) run() {
	defer close(s.done)
	for {
		select {
		case <-s.stop:
			return
		case <-s.kick:
			s.deliverPending(context.Background(), s.stop)
		}
	}
}

func (s *Service) signal() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// deliverPending sends queued reports while online. When ctx ends or stop
// is closed it puts the unsent rest back at the front of the queue.
func (s *Service) deliverPending(ctx context.Context, stop <-chan struct{}) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	if !s.conn.Online() {
		return
	}
	batch := s.queue.Drain()
	for i, r := range batch {
		if ctx.Err() != nil || stopped(stop) || !s.conn.Online() {
			s.queue.PushFront(batch[i:])
			return
		}
		s.deliver(ctx, r)
	}
}

func stopped(stop <-chan struct{}) bool {
	select {
	case <-stop:
		return true
	default:
		return false
	}
}

func (s *Service) deliver(ctx context.Context, r domain.FailureReport) {
	dctx, cancel := context.WithTimeout(ctx, s.cfg.DeliveryTimeout)
	defer cancel()

	if err := s.send(dctx, r); err != nil {
		metrics.TelemetryDelivered.WithLabelValues(metrics.OutcomeDropped).Inc()
		s.logger.Debug("Dropping failure report", "error_id", r.ErrorID, "error", err)
		return
	}
	metrics.TelemetryDelivered.WithLabelValues(metrics.OutcomeSuccess).Inc()
}

func (s *Service) send(ctx context.Context, r domain.FailureReport) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &domain.PanicError{Value: rec, Stack: string(debug.Stack())}
		}
	}()
	return s.sender.Send(ctx, r)
}

// resolveSession looks the session id up once so Report never touches the
// session store.
func (s *Service) resolveSession() string {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	id, err := s.sessions.SessionID(ctx)
	if err != nil || id == "" {
		s.logger.Warn("Session lookup failed, using ephemeral session", "error", err)
		return NewSessionID()
	}
	return id
}

// SessionID returns the session attached to reports.
func (s *Service) SessionID() string {
	return s.session
}

// complete fills the identifier and context defaults and applies the
// checkout escalation.
func (s *Service) complete(r domain.FailureReport) domain.FailureReport {
	if r.ErrorID == "" {
		r.ErrorID = "err_" + uuid.NewString()
	}
	if r.Message == "" {
		r.Message = "unknown error"
	}
	if !r.Category.Valid() {
		r.Category = domain.CategoryRuntime
	}
	if !r.Severity.Valid() {
		r.Severity = domain.SeverityMedium
	}

	c := &r.Context
	if c.SessionID == "" {
		c.SessionID = s.session
	}
	if c.Route == "" {
		c.Route = s.cfg.Route
	}
	if c.UserAgent == "" {
		c.UserAgent = s.cfg.UserAgent
	}
	if c.BuildVersion == "" {
		c.BuildVersion = s.cfg.BuildVersion
	}
	if c.Timestamp == "" {
		c.Timestamp = s.now().UTC().Format(time.RFC3339Nano)
	}

	texts := []string{c.Route}
	for _, v := range c.Metadata {
		if str, ok := v.(string); ok {
			texts = append(texts, str)
		}
	}
	esc := classifier.Escalate(domain.Classification{Category: r.Category, Severity: r.Severity}, texts...)
	r.Severity = esc.Severity
	return r
}
