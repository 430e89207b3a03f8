package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/vietddude/rrol/internal/core/domain"
	"github.com/vietddude/rrol/internal/resilience/classifier"
)

var (
	hookOnce   sync.Once
	hookTarget atomic.Pointer[Service]
)

// InstallHook makes error-level log records that carry an error attribute
// show up as failure reports on svc. The handler that was the default
// before is kept and still receives every record. The handler is installed
// once per process; later calls only retarget it. It reports whether this
// call installed the handler.
func InstallHook(svc *Service) (installed bool) {
	hookTarget.Store(svc)
	hookOnce.Do(func() {
		slog.SetDefault(slog.New(&hookHandler{next: baseHandler()}))
		installed = true
	})
	return installed
}

// baseHandler returns the handler the hook forwards to. slog's built-in
// handler writes through the log package, which SetDefault redirects back
// into the new default, so it is replaced by a text handler on the log
// package's current writer.
func baseHandler() slog.Handler {
	prev := slog.Default().Handler()
	if fmt.Sprintf("%T", prev) != "*slog.defaultHandler" {
		return prev
	}
	return slog.NewTextHandler(log.Writer(), nil)
}

// hookHandler forwards to next after capturing error-level records.
type hookHandler struct {
	next  slog.Handler
	attrs []slog.Attr
}

func (h *hookHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= slog.LevelError || h.next.Enabled(ctx, level)
}

func (h *hookHandler) Handle(ctx context.Context, rec slog.Record) error {
	if rec.Level >= slog.LevelError {
		h.capture(rec)
	}
	if !h.next.Enabled(ctx, rec.Level) {
		return nil
	}
	return h.next.Handle(ctx, rec)
}

func (h *hookHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &hookHandler{
		next:  h.next.WithAttrs(attrs),
		attrs: append(append([]slog.Attr(nil), h.attrs...), attrs...),
	}
}

func (h *hookHandler) WithGroup(name string) slog.Handler {
	return &hookHandler{next: h.next.WithGroup(name), attrs: h.attrs}
}

func (h *hookHandler) capture(rec slog.Record) {
	svc := hookTarget.Load()
	if svc == nil || svc.closed.Load() {
		return
	}
	var err error
	find := func(a slog.Attr) bool {
		if e, ok := a.Value.Any().(error); ok {
			err = e
			return false
		}
		return true
	}
	for _, a := range h.attrs {
		if !find(a) {
			break
		}
	}
	if err == nil {
		rec.Attrs(find)
	}
	if err == nil {
		return
	}

	svc.Capture(err, classifier.Classify(err), map[string]any{
		"source":      "log",
		"log_message": rec.Message,
	})
}

// Guard runs fn and turns a panic into a reported error.
func (s *Service) Guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			pe := &domain.PanicError{Value: r, Stack: string(debug.Stack())}
			s.Capture(pe, classifier.Classify(pe), map[string]any{"type": "unhandled_panic"})
			err = pe
		}
	}()
	return fn()
}

// Go runs fn on a new goroutine. A panic is reported and logged instead of
// crashing the process.
func (s *Service) Go(name string, fn func()) {
	go func() {
		err := s.Guard(func() error {
			fn()
			return nil
		})
		var pe *domain.PanicError
		if errors.As(err, &pe) {
			s.logger.Warn("Goroutine panicked", "name", name, "error", fmt.Sprint(pe.Value))
		}
	}()
}
