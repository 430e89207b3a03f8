package config

import (
	"time"

	redisclient "github.com/vietddude/rrol/internal/infra/redis"
	"github.com/vietddude/rrol/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server    ServerConfig       `yaml:"server"`
	Logging   LoggingConfig      `yaml:"logging"`
	Backend   BackendConfig      `yaml:"backend"`
	Telemetry TelemetryConfig    `yaml:"telemetry"`
	Checkout  CheckoutConfig     `yaml:"checkout"`
	Cache     CacheConfig        `yaml:"cache"`
	Intake    IntakeConfig       `yaml:"intake"`
	Redis     redisclient.Config `yaml:"redis"`    // empty url = in-memory session, cache and limiter
	Database  postgres.Config    `yaml:"database"` // empty url = in-memory report storage
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// Backend transports.
const (
	TransportHTTP = "http"
	TransportGRPC = "grpc"
)

// BackendConfig selects and configures the storefront caller.
type BackendConfig struct {
	Transport string        `yaml:"transport"` // http, grpc
	Endpoint  string        `yaml:"endpoint"`
	Token     string        `yaml:"token"`
	Timeout   time.Duration `yaml:"timeout"`
	Method    string        `yaml:"method"` // grpc only
}

// TelemetryConfig configures failure reporting.
type TelemetryConfig struct {
	Endpoint        string        `yaml:"endpoint"` // empty = log reports locally
	QueueSize       int           `yaml:"queue_size"`
	DeliveryTimeout time.Duration `yaml:"delivery_timeout"`
	ProbeInterval   time.Duration `yaml:"probe_interval"` // 0 = no connectivity probe
	BuildVersion    string        `yaml:"build_version"`
	Route           string        `yaml:"route"`
	SessionName     string        `yaml:"session_name"`
	SessionTTL      time.Duration `yaml:"session_ttl"`
}

// CheckoutConfig configures checkout fallbacks and notices.
type CheckoutConfig struct {
	BaseURL        string `yaml:"base_url"`
	SupportContact string `yaml:"support_contact"`
}

// CacheConfig configures the product snapshot cache.
type CacheConfig struct {
	SnapshotTTL time.Duration `yaml:"snapshot_ttl"`
}

// IntakeConfig configures the report intake endpoint.
type IntakeConfig struct {
	RateLimit  int           `yaml:"rate_limit"`
	RateWindow time.Duration `yaml:"rate_window"`
	Retention  time.Duration `yaml:"retention"`   // 0 = keep forever
	ForwardURL string        `yaml:"forward_url"` // optional analytics webhook
}
