// Package commerce wraps the storefront operations the shop front end
// depends on. Each wrapper validates its input, runs the remote call
// through the retry executor with the commerce schedule and, when the
// call still fails, tries one degraded path before giving up.
package commerce

import (
	"log/slog"

	"github.com/vietddude/rrol/internal/core/domain"
	"github.com/vietddude/rrol/internal/infra/backend"
	"github.com/vietddude/rrol/internal/resilience/recovery"
	"github.com/vietddude/rrol/internal/resilience/retry"
)

// Operation names used for metrics, telemetry and the resolver.
const (
	OpFetchProduct       = "fetch_product"
	OpMutateCart         = "mutate_cart"
	OpResolveCheckoutURL = "resolve_checkout_url"
)

// DefaultCheckoutBase is used when no checkout base URL is configured.
const DefaultCheckoutBase = "https://checkout.example.com/cart/"

// Service runs storefront operations.
type Service struct {
	caller       backend.Caller
	exec         *retry.Executor
	cache        SnapshotCache
	reporter     retry.Reporter
	checkoutBase string
	logger       *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithExecutor sets the retry executor.
func WithExecutor(e *retry.Executor) Option {
	return func(s *Service) { s.exec = e }
}

// WithSnapshotCache sets the product snapshot cache.
func WithSnapshotCache(c SnapshotCache) Option {
	return func(s *Service) { s.cache = c }
}

// WithReporter sets where rejected requests are reported.
func WithReporter(r retry.Reporter) Option {
	return func(s *Service) { s.reporter = r }
}

// WithCheckoutBase sets the base of generated checkout permalinks.
func WithCheckoutBase(base string) Option {
	return func(s *Service) { s.checkoutBase = base }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates a service on top of caller.
func NewService(caller backend.Caller, opts ...Option) *Service {
	s := &Service{
		caller:       caller,
		checkoutBase: DefaultCheckoutBase,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.exec == nil {
		s.exec = retry.NewExecutor()
	}
	if s.cache == nil {
		s.cache = NewMemoryCache(0)
	}
	return s
}

// options returns the executor options shared by every wrapper.
func (s *Service) options(cc domain.CallContext) retry.Options {
	schedule := recovery.CommerceSchedule()
	return retry.Options{Schedule: &schedule, Call: cc}
}

// reject builds the result for a request that failed validation before
// any remote call was made.
func reject[T any](s *Service, cc domain.CallContext, err error) domain.OperationResult[T] {
	class := domain.Classification{Category: domain.CategoryValidation, Severity: domain.SeverityLow}
	decision := domain.RecoveryDecision{Action: domain.ActionShowMessage, Message: recovery.MsgValidation}

	if s.reporter != nil {
		s.reporter.ReportFailure(retry.Failure{
			Err:            err,
			Classification: class,
			Decision:       decision,
			Call:           cc,
			Attempt:        1,
			Terminal:       true,
		})
	}

	res := domain.Failed[T](err.Error(), 1, 0)
	res.Action = domain.HintShowMessage
	res.Message = decision.Message
	res.Severity = class.Severity
	return res
}
