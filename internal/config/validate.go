package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/flemzord/runstash/internal/checkpoint"
)

// Validate checks the structural validity of a Config and reports every
// problem at once.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Version == "" {
		errs = append(errs, errors.New("config: version field is required"))
	} else if cfg.Version != "1" {
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: \"1\")", cfg.Version))
	}

	if cfg.Identity == "" {
		errs = append(errs, errors.New("config: identity is required"))
	}

	errs = append(errs, validateStore(cfg.Store)...)
	errs = append(errs, validateResume(cfg.Resume)...)

	if cfg.Host.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("config: host.poll_interval must be positive, got %v", cfg.Host.PollInterval))
	}

	if _, err := ParseLevel(cfg.Log.Level); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func validateStore(s StoreConfig) []error {
	var errs []error
	switch s.Driver {
	case DriverSQLite:
		if s.SQLite.BusyTimeout < 0 {
			errs = append(errs, fmt.Errorf("config: store.sqlite.busy_timeout must be non-negative, got %d", s.SQLite.BusyTimeout))
		}
	case DriverRedis:
		if err := s.Redis.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("config: store.%w", err))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("config: unknown store.driver %q (supported: sqlite, redis, memory)", s.Driver))
	}
	return errs
}

func validateResume(r ResumeConfig) []error {
	var errs []error

	if r.EntryPoint == "" {
		errs = append(errs, errors.New("config: resume.entry_point is required"))
	}
	if r.Delay <= 0 {
		errs = append(errs, fmt.Errorf("config: resume.delay must be positive, got %v", r.Delay))
	}
	if r.MaxRuntime <= 0 {
		errs = append(errs, fmt.Errorf("config: resume.max_runtime must be positive, got %v", r.MaxRuntime))
	}

	if len(r.Keys) == 0 {
		errs = append(errs, errors.New("config: resume.keys must list at least one key"))
	}
	seen := make(map[string]bool, len(r.Keys))
	for i, k := range r.Keys {
		switch {
		case k == "":
			errs = append(errs, fmt.Errorf("config: resume.keys[%d]: empty key", i))
		case strings.HasPrefix(k, checkpoint.ReservedPrefix):
			errs = append(errs, fmt.Errorf("config: resume.keys[%d]: %q uses reserved prefix %q", i, k, checkpoint.ReservedPrefix))
		case seen[k]:
			errs = append(errs, fmt.Errorf("config: resume.keys[%d]: duplicate key %q", i, k))
		}
		seen[k] = true
	}

	if r.Retry.InitialInterval < 0 {
		errs = append(errs, fmt.Errorf("config: resume.retry.initial_interval must be non-negative, got %v", r.Retry.InitialInterval))
	}
	return errs
}

// ParseLevel maps a configured level name to a slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(name)); err != nil {
		return 0, fmt.Errorf("config: unknown log.level %q (supported: debug, info, warn, error)", name)
	}
	return l, nil
}
