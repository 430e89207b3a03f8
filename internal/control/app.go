// Package control wires configuration into running components and manages
// their lifecycle.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/vietddude/rrol/internal/commerce"
	"github.com/vietddude/rrol/internal/core/config"
	"github.com/vietddude/rrol/internal/core/worker"
	"github.com/vietddude/rrol/internal/infra/backend"
	redisclient "github.com/vietddude/rrol/internal/infra/redis"
	"github.com/vietddude/rrol/internal/infra/storage"
	"github.com/vietddude/rrol/internal/infra/storage/memory"
	"github.com/vietddude/rrol/internal/infra/storage/postgres"
	"github.com/vietddude/rrol/internal/intake"
	"github.com/vietddude/rrol/internal/resilience/recovery"
	"github.com/vietddude/rrol/internal/resilience/retry"
	"github.com/vietddude/rrol/internal/telemetry"
)

// App is the main application struct that manages component lifecycle.
type App struct {
	cfg         *config.AppConfig
	caller      backend.Caller
	telemetry   *telemetry.Service
	commerce    *commerce.Service
	probe       *telemetry.Probe
	redisClient *redisclient.Client

	// Intake side, only set up by EnableIntake.
	db        *postgres.DB
	reports   storage.ReportRepository
	pruner    *worker.Pruner
	healthMon *intake.Monitor
	server    *intake.Server

	log      *slog.Logger
	cancel   context.CancelFunc
	stopOnce sync.Once
}

// New creates an App with the storefront client side initialised.
func New(cfg *config.AppConfig) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	a := &App{cfg: cfg, log: slog.Default()}

	// 1. Backend caller
	caller, err := newCaller(cfg.Backend)
	if err != nil {
		return nil, err
	}
	a.caller = caller

	// 2. Redis (optional)
	if cfg.Redis.URL != "" {
		a.redisClient, err = redisclient.NewClient(cfg.Redis)
		if err != nil {
			a.log.Warn("Failed to connect to Redis, using in-memory state", "error", err)
			a.redisClient = nil
		}
	}

	// 3. Telemetry
	conn := telemetry.NewConnectivity(true)
	opts := []telemetry.Option{
		telemetry.WithConnectivity(conn),
		telemetry.WithSender(newSender(cfg.Telemetry.Endpoint, cfg.Telemetry.DeliveryTimeout, a.log)),
	}
	if a.redisClient != nil {
		opts = append(opts, telemetry.WithSessionStore(
			redisclient.NewSessionStore(a.redisClient, cfg.Telemetry.SessionName, cfg.Telemetry.SessionTTL),
		))
	}
	a.telemetry = telemetry.Init(telemetry.Config{
		QueueSize:       cfg.Telemetry.QueueSize,
		DeliveryTimeout: cfg.Telemetry.DeliveryTimeout,
		Route:           cfg.Telemetry.Route,
		BuildVersion:    cfg.Telemetry.BuildVersion,
	}, opts...)
	a.probe = telemetry.NewProbe(caller, a.telemetry.Connectivity(), cfg.Telemetry.ProbeInterval)

	// 4. Executor and commerce wrappers
	resolver := recovery.NewResolver(recovery.WithConnectivity(a.telemetry.Connectivity().Online))
	executor := retry.NewExecutor(
		retry.WithResolver(resolver),
		retry.WithReporter(a.telemetry),
		retry.WithSupportContact(cfg.Checkout.SupportContact),
	)

	var cache commerce.SnapshotCache = commerce.NewMemoryCache(cfg.Cache.SnapshotTTL)
	if a.redisClient != nil {
		cache = redisclient.NewSnapshotCache(a.redisClient, cfg.Cache.SnapshotTTL)
	}

	commerceOpts := []commerce.Option{
		commerce.WithExecutor(executor),
		commerce.WithSnapshotCache(cache),
		commerce.WithReporter(a.telemetry),
	}
	if cfg.Checkout.BaseURL != "" {
		commerceOpts = append(commerceOpts, commerce.WithCheckoutBase(cfg.Checkout.BaseURL))
	}
	a.commerce = commerce.NewService(caller, commerceOpts...)

	return a, nil
}

// EnableIntake sets up report storage and the HTTP server.
func (a *App) EnableIntake(ctx context.Context) error {
	cfg := a.cfg

	// 1. Storage
	if cfg.Database.URL != "" {
		db, err := postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to init db: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			_ = db.Close()
			return fmt.Errorf("failed to migrate db: %w", err)
		}
		a.db = db
		a.reports = postgres.NewReportRepo(db)
		a.log.Info("Using PostgreSQL storage", "driver", cfg.Database.Driver)
	} else {
		a.reports = memory.NewReportRepo()
		a.log.Info("Using Memory storage")
	}

	// 2. Handler
	var limiter intake.Limiter = intake.NewMemoryLimiter(cfg.Intake.RateLimit, cfg.Intake.RateWindow)
	if a.redisClient != nil {
		limiter = redisclient.NewRateLimiter(a.redisClient, cfg.Intake.RateLimit, cfg.Intake.RateWindow)
	}
	handlerOpts := []intake.HandlerOption{intake.WithLimiter(limiter)}
	if cfg.Intake.ForwardURL != "" {
		handlerOpts = append(handlerOpts, intake.WithForwarder(
			telemetry.NewHTTPSender(cfg.Intake.ForwardURL, &http.Client{Timeout: cfg.Telemetry.DeliveryTimeout}),
			cfg.Telemetry.DeliveryTimeout,
		))
	}
	handler := intake.NewHandler(a.reports, handlerOpts...)

	// 3. Health
	a.healthMon = intake.NewMonitor()
	a.healthMon.Register("backend", intake.BackendCheck(a.caller.Stats))
	a.healthMon.Register("telemetry", intake.TelemetryCheck(a.telemetry))
	if a.db != nil {
		a.healthMon.Register("database", intake.PingCheck(a.db.Health))
	}
	if a.redisClient != nil {
		a.healthMon.Register("redis", intake.PingCheck(a.redisClient.Ping))
	}

	a.server = intake.NewServer(fmt.Sprintf(":%d", cfg.Server.Port), handler, a.healthMon)
	a.pruner = worker.NewPruner(cfg.Intake.Retention, a.reports, a.log)
	return nil
}

// Commerce returns the domain operation wrappers.
func (a *App) Commerce() *commerce.Service {
	return a.commerce
}

// Telemetry returns the failure reporting service.
func (a *App) Telemetry() *telemetry.Service {
	return a.telemetry
}

// Start starts background components.
func (a *App) Start(ctx context.Context) error {
	ctx, a.cancel = context.WithCancel(ctx)

	// Connectivity probe
	a.telemetry.Go("connectivity_probe", func() { a.probe.Start(ctx) })

	if a.server == nil {
		return nil
	}

	// Intake server
	go func() {
		if err := a.server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("Intake server failed", "error", err)
		}
	}()

	// DB Metrics Collector
	if a.db != nil {
		a.db.StartMetricsCollector(ctx)
	}

	// Pruner
	a.telemetry.Go("report_pruner", func() { a.pruner.Start(ctx) })

	a.log.Info("Intake server started", "port", a.cfg.Server.Port)
	return nil
}

// Stop stops every component and flushes pending failure reports.
func (a *App) Stop(ctx context.Context) error {
	var errs []error
	a.stopOnce.Do(func() {
		a.log.Info("Stopping...")
		if a.cancel != nil {
			a.cancel()
		}

		if a.server != nil {
			if err := a.server.Stop(ctx); err != nil {
				errs = append(errs, fmt.Errorf("stop intake server: %w", err))
			}
		}

		if err := telemetry.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown telemetry: %w", err))
		}

		if err := a.caller.Close(); err != nil {
			a.log.Warn("Failed to close backend caller", "error", err)
		}
		if a.redisClient != nil {
			if err := a.redisClient.Close(); err != nil {
				a.log.Warn("Failed to close Redis", "error", err)
			}
		}
		if a.db != nil {
			if err := a.db.Close(); err != nil {
				a.log.Warn("Failed to close database", "error", err)
			}
		}
	})
	return errors.Join(errs...)
}

func newCaller(cfg config.BackendConfig) (backend.Caller, error) {
	switch cfg.Transport {
	case config.TransportGRPC:
		caller, err := backend.NewGRPCCaller(cfg.Endpoint, cfg.Method, cfg.Token)
		if err != nil {
			return nil, fmt.Errorf("failed to create grpc caller: %w", err)
		}
		return caller, nil
	default:
		return backend.NewHTTPCaller(cfg.Endpoint, cfg.Token, cfg.Timeout), nil
	}
}

func newSender(endpoint string, timeout time.Duration, logger *slog.Logger) telemetry.Sender {
	if endpoint == "" {
		return telemetry.LogSender{Logger: logger}
	}
	return telemetry.NewHTTPSender(endpoint, &http.Client{Timeout: timeout})
}
