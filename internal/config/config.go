// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Static errors for configuration validation.
var (
	// ErrInvalidPort is returned when PORT is outside 1-65535.
	ErrInvalidPort = errors.New("config: PORT must be between 1 and 65535")
	// ErrInvalidWorkerIDBits is returned when WORKER_ID_BITS is outside 1-13.
	ErrInvalidWorkerIDBits = errors.New("config: WORKER_ID_BITS must be between 1 and 13")
	// ErrInvalidDuration is returned when a timeout or interval is not positive.
	ErrInvalidDuration = errors.New("config: durations must be positive")
	// ErrInvalidRetries is returned when COORDINATOR_MAX_RETRIES is negative.
	ErrInvalidRetries = errors.New("config: COORDINATOR_MAX_RETRIES must not be negative")
)

// maxWorkerIDBits keeps worker ids within the four-digit resource suffix.
const maxWorkerIDBits = 13

// Config holds all configuration for the application.
type Config struct {
	// Coordinator service settings
	Port int `env:"PORT, default=18001" json:"port"`

	// Worker id allocation settings
	Dir          string `env:"IDWORKER_DIR" json:"dir,omitempty"`                   // Defaults to $HOME/.idworkers
	HostAddress  string `env:"IDWORKER_HOST_ADDRESS" json:"host_address,omitempty"` // Defaults to the first non-loopback IPv4
	Principal    string `env:"IDWORKER_PRINCIPAL" json:"principal,omitempty"`       // Defaults to the OS user
	WorkerIDBits uint   `env:"WORKER_ID_BITS, default=10" json:"worker_id_bits"`

	// Coordinator client settings
	CoordinatorURL        string        `env:"COORDINATOR_URL, default=http://id.worker.server:18001" json:"coordinator_url"`
	CoordinatorDisabled   bool          `env:"COORDINATOR_DISABLED, default=false" json:"coordinator_disabled"`
	CoordinatorTimeout    time.Duration `env:"COORDINATOR_TIMEOUT, default=3s" json:"coordinator_timeout"`
	CoordinatorMaxRetries int           `env:"COORDINATOR_MAX_RETRIES, default=1" json:"coordinator_max_retries"`

	// Roster snapshot settings
	StateDir         string        `env:"STATE_DIR, default=/tmp/idworker-coordinator" json:"state_dir"`
	StateKey         string        `env:"STATE_KEY, default=roster.json" json:"state_key"`
	SnapshotInterval time.Duration `env:"SNAPSHOT_INTERVAL, default=10s" json:"snapshot_interval"`

	// Optional S3 settings
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// CoordinatorEnabled reports whether the allocator should consult the coordinator.
func (c *Config) CoordinatorEnabled() bool {
	return !c.CoordinatorDisabled && c.CoordinatorURL != ""
}

// Load reads configuration from environment variables using go-envconfig
// and validates it.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that every value is usable.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return ErrInvalidPort
	}
	if c.WorkerIDBits < 1 || c.WorkerIDBits > maxWorkerIDBits {
		return ErrInvalidWorkerIDBits
	}
	if c.CoordinatorTimeout <= 0 || c.SnapshotInterval <= 0 {
		return ErrInvalidDuration
	}
	if c.CoordinatorMaxRetries < 0 {
		return ErrInvalidRetries
	}
	return nil
}

// NewLogger creates a structured logger writing to stdout.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	return c.NewLoggerTo(os.Stdout)
}

// NewLoggerTo creates a structured logger writing to w.
func (c *Config) NewLoggerTo(w io.Writer) *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, Dir: %s, HostAddress: %s, Principal: %s, WorkerIDBits: %d, CoordinatorURL: %s, CoordinatorDisabled: %t, CoordinatorTimeout: %s, StateDir: %s, StateKey: %s, SnapshotInterval: %s, S3Bucket: %s, S3Region: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.Dir,
		c.HostAddress,
		c.Principal,
		c.WorkerIDBits,
		c.CoordinatorURL,
		c.CoordinatorDisabled,
		c.CoordinatorTimeout,
		c.StateDir,
		c.StateKey,
		c.SnapshotInterval,
		c.S3Bucket,
		c.S3Region,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
