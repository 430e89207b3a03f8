package config

import (
	"fmt"
	"os"
	"os/user"
	"time"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *AppConfig {
	var cfg AppConfig
	cfg.applyDefaults()
	return &cfg
}

func (c *AppConfig) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Backend.Transport == "" {
		c.Backend.Transport = TransportHTTP
	}
	if c.Backend.Timeout == 0 {
		c.Backend.Timeout = 10 * time.Second
	}
	if c.Telemetry.QueueSize == 0 {
		c.Telemetry.QueueSize = 100
	}
	if c.Telemetry.DeliveryTimeout == 0 {
		c.Telemetry.DeliveryTimeout = 5 * time.Second
	}
	if c.Telemetry.SessionName == "" {
		c.Telemetry.SessionName = defaultSessionName()
	}
	if c.Telemetry.SessionTTL == 0 {
		c.Telemetry.SessionTTL = 24 * time.Hour
	}
	if c.Checkout.SupportContact == "" {
		c.Checkout.SupportContact = "/contact"
	}
	if c.Cache.SnapshotTTL == 0 {
		c.Cache.SnapshotTTL = time.Hour
	}
	if c.Intake.RateLimit == 0 {
		c.Intake.RateLimit = 10
	}
	if c.Intake.RateWindow == 0 {
		c.Intake.RateWindow = time.Minute
	}
}

// Validate rejects settings the binary cannot act on.
func (c *AppConfig) Validate() error {
	switch c.Backend.Transport {
	case TransportHTTP, TransportGRPC:
	default:
		return fmt.Errorf("invalid backend transport %q (want http or grpc)", c.Backend.Transport)
	}
	switch c.Database.Driver {
	case "", "pgx", "postgres":
	default:
		return fmt.Errorf("invalid database driver %q (want pgx or postgres)", c.Database.Driver)
	}
	if c.Telemetry.QueueSize < 0 {
		return fmt.Errorf("invalid telemetry queue size %d", c.Telemetry.QueueSize)
	}
	if c.Intake.RateLimit < 0 {
		return fmt.Errorf("invalid intake rate limit %d", c.Intake.RateLimit)
	}
	if c.Intake.RateWindow < 0 {
		return fmt.Errorf("invalid intake rate window %s", c.Intake.RateWindow)
	}
	return nil
}

func defaultSessionName() string {
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return "rrol"
}
