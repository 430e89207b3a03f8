package telemetry

import (
	"context"
	"sync"

	"github.com/vietddude/rrol/internal/core/domain"
)

var (
	globalMu sync.Mutex
	global   *Service
)

// Init creates the process-wide service and installs the log hook. Later
// calls return the existing service until Shutdown.
func Init(cfg Config, opts ...Option) *Service {
	globalMu.Lock()
	defer globalMu.Unlock()

	if global == nil {
		global = New(cfg, opts...)
		InstallHook(global)
	}
	return global
}

// Default returns the process-wide service, or nil before Init.
func Default() *Service {
	globalMu.Lock()
	defer globalMu.Unlock()
	return global
}

// Shutdown stops the process-wide service.
func Shutdown(ctx context.Context) error {
	globalMu.Lock()
	svc := global
	global = nil
	globalMu.Unlock()

	if svc == nil {
		return nil
	}
	hookTarget.CompareAndSwap(svc, nil)
	return svc.Shutdown(ctx)
}

// Report enqueues r on the process-wide service.
func Report(r domain.FailureReport) string {
	if svc := Default(); svc != nil {
		return svc.Report(r)
	}
	return ReportingFailed
}

// Flush delivers pending reports of the process-wide service.
func Flush(ctx context.Context) error {
	if svc := Default(); svc != nil {
		return svc.Flush(ctx)
	}
	return nil
}

// SetOnline updates the process-wide connectivity flag.
func SetOnline(online bool) {
	if svc := Default(); svc != nil {
		svc.Connectivity().Set(online)
	}
}
