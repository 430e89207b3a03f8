package retry

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/vietddude/rrol/internal/core/domain"
	"github.com/vietddude/rrol/internal/resilience/recovery"
)

// =============================================================================
// Helpers
// =============================================================================

type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
	err    error
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	return s.err
}

type recordingReporter struct {
	failures []Failure
}

func (r *recordingReporter) ReportFailure(f Failure) string {
	r.failures = append(r.failures, f)
	return "id"
}

type panickyReporter struct{}

func (panickyReporter) ReportFailure(Failure) string { panic("reporter exploded") }

// nilMessageErr panics in Error when msg is nil.
type nilMessageErr struct{ msg *string }

func (e *nilMessageErr) Error() string { return *e.msg }

// brokenHintErr panics when asked for its retry hint.
type brokenHintErr struct{}

func (brokenHintErr) Error() string             { return "network timeout" }
func (brokenHintErr) RetryAfter() time.Duration { panic("no hint") }

func newTestExecutor(s *sleepRecorder, opts ...Option) *Executor {
	base := []Option{
		WithSleep(s.sleep),
		WithJitter(func() float64 { return 0 }),
	}
	return NewExecutor(append(base, opts...)...)
}

// failing returns an operation that fails with err for the first n calls.
func failing(n int, err error) (Operation[string], *int) {
	calls := 0
	return func(ctx context.Context) (string, error) {
		calls++
		if calls <= n {
			return "", err
		}
		return "ok", nil
	}, &calls
}

// =============================================================================
// Backoff Tests
// =============================================================================

func TestBackoff(t *testing.T) {
	s := domain.RetrySchedule{
		MaxAttempts:       5,
		BackoffMultiplier: 2,
		InitialDelay:      time.Second,
		MaxDelay:          10 * time.Second,
	}

	tests := []struct {
		attempt int
		jitter  float64
		want    time.Duration
	}{
		{1, 0, time.Second},
		{2, 0, 2 * time.Second},
		{3, 0, 4 * time.Second},
		{1, 0.05, 1050 * time.Millisecond},
		{4, 0, 8 * time.Second},
		{5, 0, 10 * time.Second},
		{9, 0.09, 10 * time.Second},
	}

	for _, tt := range tests {
		if got := Backoff(s, tt.attempt, tt.jitter); got != tt.want {
			t.Errorf("Backoff(attempt=%d, jitter=%v) = %v, want %v", tt.attempt, tt.jitter, got, tt.want)
		}
	}
}

func TestJitterRange(t *testing.T) {
	for range 1000 {
		j := Jitter()
		if j < 0 || j >= MaxJitter {
			t.Fatalf("jitter %v out of range", j)
		}
	}
}

func TestSleep_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("Sleep() error = %v, want context.Canceled", err)
	}
}

// =============================================================================
// Executor Tests
// =============================================================================

func TestExecute_SuccessFirstAttempt(t *testing.T) {
	s := &sleepRecorder{}
	res := ExecuteWithRetry(context.Background(), newTestExecutor(s), func(ctx context.Context) (int, error) {
		return 42, nil
	}, Options{})

	if !res.Success || res.Data == nil || *res.Data != 42 {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Attempts != 1 || res.Error != "" {
		t.Errorf("attempts=%d error=%q", res.Attempts, res.Error)
	}
	if len(s.delays) != 0 {
		t.Errorf("no sleeps expected, got %v", s.delays)
	}
}

func TestExecute_TransientNetworkRecovers(t *testing.T) {
	s := &sleepRecorder{}
	op, calls := failing(2, errors.New("network request failed"))

	var retried []int
	res := ExecuteWithRetry(context.Background(), newTestExecutor(s), op, Options{
		OnRetry: func(attempt int, err error) { retried = append(retried, attempt) },
	})

	if !res.Success || *res.Data != "ok" {
		t.Fatalf("expected success, got %+v", res)
	}
	if res.Attempts != 3 || *calls != 3 {
		t.Errorf("attempts=%d calls=%d, want 3", res.Attempts, *calls)
	}
	if diff := cmp.Diff([]int{1, 2}, retried); diff != "" {
		t.Errorf("OnRetry attempts mismatch (-want +got):\n%s", diff)
	}
	want := []time.Duration{500 * time.Millisecond, 750 * time.Millisecond}
	if diff := cmp.Diff(want, s.delays); diff != "" {
		t.Errorf("delays mismatch (-want +got):\n%s", diff)
	}
}

func TestExecute_RetryBound(t *testing.T) {
	s := &sleepRecorder{}
	op, calls := failing(100, errors.New("connection refused"))

	var exhausted []error
	res := ExecuteWithRetry(context.Background(), newTestExecutor(s), op, Options{
		OnMaxAttemptsReached: func(err error) { exhausted = append(exhausted, err) },
	})

	if res.Success || res.Data != nil {
		t.Fatalf("expected failure, got %+v", res)
	}
	if res.Attempts != 3 || *calls != 3 {
		t.Errorf("attempts=%d calls=%d, want 3", res.Attempts, *calls)
	}
	if res.Action != domain.HintRetryExhausted {
		t.Errorf("action = %q, want %q", res.Action, domain.HintRetryExhausted)
	}
	if res.Error != "connection refused" {
		t.Errorf("error = %q", res.Error)
	}
	if len(exhausted) != 1 {
		t.Errorf("OnMaxAttemptsReached called %d times, want 1", len(exhausted))
	}
}

func TestExecute_BackoffMonotonicAndCapped(t *testing.T) {
	s := &sleepRecorder{}
	jitters := []float64{0.09, 0, 0.05, 0.01}
	i := 0
	exec := newTestExecutor(s, WithJitter(func() float64 {
		j := jitters[i%len(jitters)]
		i++
		return j
	}))

	schedule := domain.RetrySchedule{
		MaxAttempts:       6,
		BackoffMultiplier: 1.05,
		InitialDelay:      time.Second,
		MaxDelay:          1200 * time.Millisecond,
	}
	op, _ := failing(100, errors.New("storefront: 503 service unavailable"))
	res := ExecuteWithRetry(context.Background(), exec, op, Options{Schedule: &schedule})

	if res.Attempts != 6 {
		t.Fatalf("attempts = %d, want 6", res.Attempts)
	}
	if len(s.delays) != 5 {
		t.Fatalf("sleeps = %d, want 5", len(s.delays))
	}
	for k := 1; k < len(s.delays); k++ {
		if s.delays[k] < s.delays[k-1] {
			t.Errorf("delay %d (%v) < delay %d (%v)", k, s.delays[k], k-1, s.delays[k-1])
		}
	}
	for _, d := range s.delays {
		if d > schedule.MaxDelay {
			t.Errorf("delay %v exceeds cap %v", d, schedule.MaxDelay)
		}
	}
}

func TestExecute_InventoryNotRetried(t *testing.T) {
	s := &sleepRecorder{}
	op, calls := failing(100, errors.New("inventory unavailable for variant 7"))

	res := ExecuteWithRetry(context.Background(), newTestExecutor(s), op, Options{
		Call: domain.CallContext{Operation: "mutate_cart"},
	})

	if res.Success || res.Attempts != 1 || *calls != 1 {
		t.Fatalf("expected single failed attempt, got %+v (calls=%d)", res, *calls)
	}
	if res.Action != domain.HintShowMessage || res.Message != recovery.MsgOutOfStock {
		t.Errorf("action=%q message=%q", res.Action, res.Message)
	}
}

func TestExecute_CheckoutExpiredRedirects(t *testing.T) {
	s := &sleepRecorder{}
	op, _ := failing(100, errors.New("checkout session expired"))

	res := ExecuteWithRetry(context.Background(), newTestExecutor(s), op, Options{
		Call: domain.CallContext{Operation: "resolve_checkout_url", Checkout: true},
	})

	if res.Action != domain.HintRedirect || res.Attempts != 1 {
		t.Fatalf("expected redirect after one attempt, got %+v", res)
	}
	if res.Notice != nil {
		t.Error("redirects must not carry a notice")
	}
}

func TestExecute_OfflineNetworkShowsMessage(t *testing.T) {
	s := &sleepRecorder{}
	resolver := recovery.NewResolver(recovery.WithConnectivity(func() bool { return false }))
	op, calls := failing(100, errors.New("fetch failed"))

	res := ExecuteWithRetry(context.Background(), newTestExecutor(s, WithResolver(resolver)), op, Options{})

	if res.Action != domain.HintShowMessage || res.Message != recovery.MsgOffline {
		t.Fatalf("unexpected result %+v", res)
	}
	if *calls != 1 {
		t.Errorf("calls = %d, want 1", *calls)
	}
}

func TestExecute_PinnedScheduleOverridesDecision(t *testing.T) {
	s := &sleepRecorder{}
	pinned := domain.RetrySchedule{MaxAttempts: 2, BackoffMultiplier: 1, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}
	op, calls := failing(100, errors.New("storefront: 502 bad gateway"))

	res := ExecuteWithRetry(context.Background(), newTestExecutor(s), op, Options{Schedule: &pinned})

	if res.Attempts != 2 || *calls != 2 {
		t.Errorf("attempts=%d calls=%d, want 2", res.Attempts, *calls)
	}
}

func TestExecute_PredicateRejectsRetry(t *testing.T) {
	s := &sleepRecorder{}
	pinned := domain.RetrySchedule{
		MaxAttempts:       5,
		BackoffMultiplier: 2,
		InitialDelay:      time.Millisecond,
		MaxDelay:          time.Second,
		Retryable:         func(error) bool { return false },
	}
	op, calls := failing(100, errors.New("timeout"))

	res := ExecuteWithRetry(context.Background(), newTestExecutor(s), op, Options{Schedule: &pinned})
	if res.Attempts != 1 || *calls != 1 {
		t.Errorf("attempts=%d calls=%d, want 1", res.Attempts, *calls)
	}
}

func TestExecute_RetryAfterHint(t *testing.T) {
	s := &sleepRecorder{}
	op, _ := failing(1, errors.New("storefront: rate limit exceeded, retry after 3"))

	res := ExecuteWithRetry(context.Background(), newTestExecutor(s), op, Options{})
	if !res.Success || res.Attempts != 2 {
		t.Fatalf("unexpected result %+v", res)
	}
	if diff := cmp.Diff([]time.Duration{3 * time.Second}, s.delays); diff != "" {
		t.Errorf("delays mismatch (-want +got):\n%s", diff)
	}
}

func TestExecute_ContextCancelledDuringBackoff(t *testing.T) {
	s := &sleepRecorder{err: context.Canceled}
	op, calls := failing(100, errors.New("network down"))

	res := ExecuteWithRetry(context.Background(), newTestExecutor(s), op, Options{})
	if res.Success || *calls != 1 {
		t.Fatalf("expected to stop after the first attempt, got %+v (calls=%d)", res, *calls)
	}
	if !strings.Contains(res.Error, "network down") {
		t.Errorf("error %q should keep the original failure", res.Error)
	}
}

func TestExecute_NeverPanics(t *testing.T) {
	s := &sleepRecorder{}
	exec := newTestExecutor(s, WithReporter(panickyReporter{}))

	op := func(ctx context.Context) (string, error) { panic("boom") }
	res := ExecuteWithRetry(context.Background(), exec, op, Options{
		OnRetry:              func(int, error) { panic("callback") },
		OnMaxAttemptsReached: func(error) { panic("callback") },
	})

	if res.Success {
		t.Fatal("expected failure")
	}
	if !strings.Contains(res.Error, "boom") {
		t.Errorf("error = %q, want panic value", res.Error)
	}
	if res.Attempts < 1 {
		t.Errorf("attempts = %d", res.Attempts)
	}
}

func TestExecute_PanickingErrorValues(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		wantMessage  string
		wantRetrying bool
	}{
		{name: "Error panics", err: &nilMessageErr{}, wantMessage: "Error panicked"},
		{name: "retry hint panics", err: brokenHintErr{}, wantMessage: "network timeout", wantRetrying: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &sleepRecorder{}
			rep := &recordingReporter{}
			exec := newTestExecutor(s, WithReporter(rep))
			op, _ := failing(100, tt.err)

			var res domain.OperationResult[string]
			func() {
				defer func() {
					if r := recover(); r != nil {
						t.Fatalf("ExecuteWithRetry panicked: %v", r)
					}
				}()
				res = ExecuteWithRetry(context.Background(), exec, op, Options{})
			}()

			if res.Success {
				t.Fatal("expected failure")
			}
			if !strings.Contains(res.Error, tt.wantMessage) {
				t.Errorf("error = %q, want it to contain %q", res.Error, tt.wantMessage)
			}
			if got := res.Attempts > 1; got != tt.wantRetrying {
				t.Errorf("attempts = %d, retrying = %v, want %v", res.Attempts, got, tt.wantRetrying)
			}
			if len(rep.failures) != res.Attempts {
				t.Errorf("reported %d failures, want %d", len(rep.failures), res.Attempts)
			}
		})
	}
}

func TestExecute_ReportsEveryFailure(t *testing.T) {
	s := &sleepRecorder{}
	rep := &recordingReporter{}
	op, _ := failing(100, errors.New("timed out"))

	ExecuteWithRetry(context.Background(), newTestExecutor(s, WithReporter(rep)), op, Options{
		Call: domain.CallContext{Operation: "fetch_product"},
	})

	if len(rep.failures) != 3 {
		t.Fatalf("reported %d failures, want 3", len(rep.failures))
	}
	for i, f := range rep.failures {
		if f.Attempt != i+1 {
			t.Errorf("failure %d attempt = %d", i, f.Attempt)
		}
		if f.Terminal != (i == 2) {
			t.Errorf("failure %d terminal = %v", i, f.Terminal)
		}
		if f.Call.Operation != "fetch_product" {
			t.Errorf("operation = %q", f.Call.Operation)
		}
	}
}

func TestExecute_CriticalNotice(t *testing.T) {
	s := &sleepRecorder{}
	op, _ := failing(100, errors.New("storefront checkout: 401 unauthorized"))

	res := ExecuteWithRetry(context.Background(), newTestExecutor(s, WithSupportContact("support@example.com")), op, Options{})

	if res.Severity != domain.SeverityCritical || res.Action != domain.HintManual {
		t.Fatalf("unexpected result %+v", res)
	}
	want := &domain.Notice{
		Message:        recovery.MsgUnauthorized,
		SupportContact: "support@example.com",
		Persistent:     true,
	}
	if diff := cmp.Diff(want, res.Notice); diff != "" {
		t.Errorf("notice mismatch (-want +got):\n%s", diff)
	}
}

func TestSafeExecute_UsesGeneralSchedule(t *testing.T) {
	s := &sleepRecorder{}
	op, calls := failing(100, errors.New("storefront: 503 unavailable"))

	res := SafeExecute(context.Background(), newTestExecutor(s), op)
	if res.Attempts != 2 || *calls != 2 {
		t.Errorf("attempts=%d calls=%d, want 2", res.Attempts, *calls)
	}
	if diff := cmp.Diff([]time.Duration{300 * time.Millisecond}, s.delays); diff != "" {
		t.Errorf("delays mismatch (-want +got):\n%s", diff)
	}
}

func TestIsPanic(t *testing.T) {
	_, err := invoke(context.Background(), func(ctx context.Context) (int, error) { panic("x") })
	if !IsPanic(err) {
		t.Errorf("IsPanic(%v) = false", err)
	}
	if IsPanic(errors.New("plain")) {
		t.Error("plain errors are not panics")
	}
}
