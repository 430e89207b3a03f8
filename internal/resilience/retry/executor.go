// Package retry runs remote operations with bounded, jittered exponential
// backoff. Failures are classified, resolved into a recovery decision and
// reported; the executor never panics and never returns a raw error, only
// an OperationResult.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/vietddude/rrol/internal/core/domain"
	"github.com/vietddude/rrol/internal/metrics"
	"github.com/vietddude/rrol/internal/resilience/recovery"
)

// Operation is one invocation of a remote call.
type Operation[T any] func(ctx context.Context) (T, error)

// Failure describes a failed attempt handed to the Reporter.
type Failure struct {
	Err            error
	Classification domain.Classification
	Decision       domain.RecoveryDecision
	Call           domain.CallContext
	Attempt        int
	Terminal       bool
}

// Reporter records failures for observability. Implementations must not
// block and must not panic; the executor guards them anyway.
type Reporter interface {
	ReportFailure(f Failure) string
}

// Attempt is the ephemeral record of a single invocation.
type Attempt struct {
	Number    int
	StartedAt time.Time
	Err       error
}

// Options tune a single ExecuteWithRetry call.
type Options struct {
	// Schedule pins the retry schedule for failures that resolve to retry.
	// When nil the decision's own schedule is used.
	Schedule *domain.RetrySchedule

	// Call describes the call for the resolver and telemetry.
	Call domain.CallContext

	// OnRetry runs before each backoff sleep.
	OnRetry func(attempt int, err error)

	// OnMaxAttemptsReached runs once when the call ends in failure.
	OnMaxAttemptsReached func(err error)

	// OnAttempt observes every finished attempt.
	OnAttempt func(a Attempt)
}

// Executor drives retries.
type Executor struct {
	resolver       *recovery.Resolver
	reporter       Reporter
	logger         *slog.Logger
	sleep          func(ctx context.Context, d time.Duration) error
	jitter         func() float64
	now            func() time.Time
	supportContact string
}

// Option configures an Executor.
type Option func(*Executor)

// WithResolver sets the recovery resolver.
func WithResolver(r *recovery.Resolver) Option {
	return func(e *Executor) { e.resolver = r }
}

// WithReporter sets where failures are reported.
func WithReporter(r Reporter) Option {
	return func(e *Executor) { e.reporter = r }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// WithSleep replaces the backoff sleep, mainly for tests.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Executor) { e.sleep = fn }
}

// WithJitter replaces the jitter source. Values are clamped to [0, MaxJitter).
func WithJitter(fn func() float64) Option {
	return func(e *Executor) { e.jitter = fn }
}

// WithClock replaces the time source used for attempt timestamps and totals.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

// WithSupportContact sets the contact shown on critical notices.
func WithSupportContact(contact string) Option {
	return func(e *Executor) { e.supportContact = contact }
}

// NewExecutor creates an executor.
func NewExecutor(opts ...Option) *Executor {
	e := &Executor{
		logger:         slog.Default(),
		sleep:          Sleep,
		jitter:         Jitter,
		now:            time.Now,
		supportContact: "/contact",
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.resolver == nil {
		e.resolver = recovery.NewResolver()
	}
	return e
}

// Resolver returns the executor's resolver.
func (e *Executor) Resolver() *recovery.Resolver {
	return e.resolver
}

// ExecuteWithRetry runs op until it succeeds, the failure resolves to a
// non-retry action, the schedule's predicate rejects the failure, or the
// schedule's attempts are used up.
func ExecuteWithRetry[T any](
	ctx context.Context,
	e *Executor,
	op Operation[T],
	opts Options,
) domain.OperationResult[T] {
	if e == nil {
		e = NewExecutor()
	}
	if ctx == nil {
		ctx = context.Background()
	}
	start := e.now()
	operation := opts.Call.Operation
	if operation == "" {
		operation = "unnamed"
	}

	if op == nil {
		return domain.Failed[T]("nil operation", 1, 0)
	}

	var (
		lastErr   error
		class     domain.Classification
		decision  domain.RecoveryDecision
		prevDelay time.Duration
		attempt   int
	)

	for attempt = 1; ; attempt++ {
		attemptStart := e.now()
		metrics.AttemptsTotal.WithLabelValues(operation).Inc()

		value, err := invoke(ctx, op)
		e.observe(opts.OnAttempt, Attempt{Number: attempt, StartedAt: attemptStart, Err: err})

		if err == nil {
			elapsed := e.now().Sub(start)
			metrics.OperationsTotal.WithLabelValues(operation, metrics.OutcomeSuccess).Inc()
			metrics.OperationLatency.WithLabelValues(operation).Observe(elapsed.Seconds())
			return domain.Succeeded(value, attempt, elapsed)
		}

		err = stableError(err)
		lastErr = err
		class = e.resolver.Classify(err)
		decision = e.resolve(err, class, opts.Call)

		schedule := decision.Schedule
		if decision.Action == domain.ActionRetry && opts.Schedule != nil {
			schedule = opts.Schedule
		}

		retrying := decision.Action == domain.ActionRetry &&
			schedule != nil &&
			attempt < schedule.MaxAttempts &&
			e.accepts(*schedule, err)

		metrics.FailuresTotal.WithLabelValues(
			string(class.Category), string(class.Severity), string(decision.Action),
		).Inc()
		e.report(Failure{
			Err:            err,
			Classification: class,
			Decision:       decision,
			Call:           opts.Call,
			Attempt:        attempt,
			Terminal:       !retrying,
		})

		if !retrying {
			break
		}

		delay := Backoff(*schedule, attempt, e.drawJitter())
		if hint, ok := recovery.RetryAfter(err); ok && hint > delay {
			delay = min(hint, schedule.MaxDelay)
		}
		delay = max(delay, prevDelay)
		prevDelay = delay

		e.logger.Debug("Retrying operation",
			"operation", operation,
			"attempt", attempt,
			"max_attempts", schedule.MaxAttempts,
			"category", class.Category,
			"delay", delay,
			"error", err,
		)
		metrics.RetriesTotal.WithLabelValues(operation, string(class.Category)).Inc()
		e.guard("on_retry", func() {
			if opts.OnRetry != nil {
				opts.OnRetry(attempt, err)
			}
		})

		if sleepErr := e.sleep(ctx, delay); sleepErr != nil {
			lastErr = fmt.Errorf("%w (retry aborted: %v)", err, sleepErr)
			break
		}
	}

	e.guard("on_max_attempts_reached", func() {
		if opts.OnMaxAttemptsReached != nil {
			opts.OnMaxAttemptsReached(lastErr)
		}
	})

	elapsed := e.now().Sub(start)
	metrics.OperationsTotal.WithLabelValues(operation, metrics.OutcomeFailure).Inc()
	metrics.OperationLatency.WithLabelValues(operation).Observe(elapsed.Seconds())

	res := domain.Failed[T](lastErr.Error(), attempt, elapsed)
	res.Action = domain.HintFor(decision.Action)
	res.Message = decision.Message
	res.Severity = class.Severity
	if class.Severity == domain.SeverityCritical && unrecoverable(decision.Action) {
		res.Notice = &domain.Notice{
			Message:        decision.Message,
			SupportContact: e.supportContact,
			Persistent:     true,
		}
	}
	return res
}

// SafeExecute runs op with the general retry schedule applied to failures
// that resolve to retry.
func SafeExecute[T any](ctx context.Context, e *Executor, op Operation[T]) domain.OperationResult[T] {
	s := recovery.GeneralSchedule()
	return ExecuteWithRetry(ctx, e, op, Options{Schedule: &s})
}

func unrecoverable(a domain.Action) bool {
	switch a {
	case domain.ActionRedirect, domain.ActionFallback, domain.ActionIgnore:
		return false
	}
	return true
}

func invoke[T any](ctx context.Context, op Operation[T]) (value T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &domain.PanicError{Value: r, Stack: string(debug.Stack())}
		}
	}()
	value, err = op(ctx)
	return value, err
}

// stableError returns err unless its Error method panics, in which case a
// plain error naming the type replaces it.
func stableError(err error) (out error) {
	defer func() {
		if r := recover(); r != nil {
			out = fmt.Errorf("%T: Error panicked: %v", err, r)
		}
	}()
	_ = err.Error()
	return err
}

func (e *Executor) resolve(err error, class domain.Classification, cc domain.CallContext) (d domain.RecoveryDecision) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("Recovery resolver panicked", "panic", r)
			d = domain.RecoveryDecision{Action: domain.ActionShowMessage, Message: recovery.MsgUnexpected}
		}
	}()
	return e.resolver.ResolveClassified(err, class, cc)
}

func (e *Executor) accepts(s domain.RetrySchedule, err error) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("Retry predicate panicked", "panic", r)
			ok = false
		}
	}()
	return s.Accepts(err)
}

func (e *Executor) drawJitter() (j float64) {
	defer func() {
		if r := recover(); r != nil {
			j = 0
		}
	}()
	j = e.jitter()
	if j < 0 || j >= MaxJitter {
		return 0
	}
	return j
}

func (e *Executor) report(f Failure) {
	if e.reporter == nil {
		return
	}
	e.guard("reporter", func() {
		e.reporter.ReportFailure(f)
	})
}

func (e *Executor) observe(fn func(Attempt), a Attempt) {
	if fn == nil {
		return
	}
	e.guard("on_attempt", func() { fn(a) })
}

// guard runs fn and swallows any panic it raises.
func (e *Executor) guard(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("Retry callback panicked", "callback", name, "panic", r)
		}
	}()
	fn()
}

// IsPanic reports whether err came from a recovered panic.
func IsPanic(err error) bool {
	var pe *domain.PanicError
	return errors.As(err, &pe)
}
