// Package config handles YAML configuration loading, environment variable
// expansion, defaults and structural validation for runstash.
package config

import (
	"time"

	"github.com/flemzord/runstash/internal/tracing"
	"github.com/flemzord/runstash/modules/store/redis"
	"github.com/flemzord/runstash/modules/store/sqlite"
)

// Store drivers.
const (
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
	DriverMemory = "memory"
)

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	// Identity scopes the persisted state, typically the user the job
	// runs as.
	Identity string `yaml:"identity"`

	Store   StoreConfig    `yaml:"store"`
	Host    HostConfig     `yaml:"host"`
	Resume  ResumeConfig   `yaml:"resume"`
	Gateway GatewayConfig  `yaml:"gateway"`
	Tracing tracing.Config `yaml:"tracing"`
	Log     LogConfig      `yaml:"log"`
}

// StoreConfig selects and configures the backend holding checkpoints and
// timers.
type StoreConfig struct {
	// Driver is one of "sqlite" (default), "redis" or "memory".
	Driver string        `yaml:"driver"`
	SQLite sqlite.Config `yaml:"sqlite"`
	Redis  redis.Config  `yaml:"redis"`
}

// HostConfig configures the timer host.
type HostConfig struct {
	// Context is the id context-scoped timers are bound to.
	Context string `yaml:"context"`

	// PollInterval is how often the dispatcher checks for due timers.
	PollInterval time.Duration `yaml:"poll_interval"`
}

// ResumeConfig configures the checkpoint/resume cycle.
type ResumeConfig struct {
	// EntryPoint is the registered entry point the timers re-invoke.
	EntryPoint string `yaml:"entry_point"`

	// Delay is the base delay of the first resume timer; the redundant
	// ones follow at 2× and 4×.
	Delay time.Duration `yaml:"delay"`

	// MaxRuntime is the per-invocation work budget.
	MaxRuntime time.Duration `yaml:"max_runtime"`

	// Keys is the full set of state keys restored on resume.
	Keys []string `yaml:"keys"`

	Retry RetryConfig `yaml:"retry"`
}

// RetryConfig bounds retries of checkpoint and schedule writes.
type RetryConfig struct {
	MaxAttempts     uint          `yaml:"max_attempts"`
	InitialInterval time.Duration `yaml:"initial_interval"`
}

// GatewayConfig configures the HTTP status surface.
type GatewayConfig struct {
	// Bind is the listen address. Empty disables the gateway.
	Bind string `yaml:"bind"`

	// BearerToken, when set, is required on /api routes.
	BearerToken string `yaml:"bearer_token"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is one of debug, info, warn or error.
	Level string `yaml:"level"`
}
