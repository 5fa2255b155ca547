// Package app wires configuration into the runstash components: the
// checkpoint store, the trigger scheduler, metrics, tracing, and the
// long-running dispatcher and gateway.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/flemzord/runstash/internal/checkpoint"
	"github.com/flemzord/runstash/internal/config"
	"github.com/flemzord/runstash/internal/metrics"
	"github.com/flemzord/runstash/internal/resume"
	"github.com/flemzord/runstash/internal/security"
	"github.com/flemzord/runstash/internal/tracing"
	"github.com/flemzord/runstash/internal/trigger"
	redisstore "github.com/flemzord/runstash/modules/store/redis"
	"github.com/flemzord/runstash/modules/store/sqlite"
)

// Params configures Open.
type Params struct {
	// ConfigPath is an explicit path to the YAML configuration file.
	// If empty, ResolveConfigPath is called automatically.
	ConfigPath string

	// DataDir overrides the default persistent data directory.
	DataDir string

	// LogLevel overrides log.level from the configuration when non-empty.
	LogLevel string

	// LogOutput defaults to os.Stderr.
	LogOutput io.Writer

	// Force lets controllers built by this App take over a lease another
	// invocation still holds.
	Force bool
}

// contextHost is a timer host that can also create context-scoped timers.
type contextHost interface {
	trigger.Host
	CreateContextTimer(ctx context.Context, target string, after time.Duration) (trigger.Timer, error)
}

// App holds the wired components of one process.
type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	Store     *checkpoint.Store
	Scheduler *trigger.Scheduler
	Host      trigger.Host
	Metrics   *metrics.Metrics
	Registry  *prometheus.Registry

	pinger  interface{ Ping(context.Context) error }
	force   bool
	closers []func(context.Context) error
}

// Open loads and validates the configuration, then builds the App.
func Open(ctx context.Context, p Params) (*App, error) {
	cfgPath := p.ConfigPath
	if cfgPath == "" {
		resolved, err := ResolveConfigPath()
		if err != nil {
			return nil, err
		}
		cfgPath = resolved
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return New(ctx, cfg, p)
}

// New builds an App from an already validated configuration. Close releases
// it.
func New(ctx context.Context, cfg *config.Config, p Params) (_ *App, err error) {
	level := cfg.Log.Level
	if p.LogLevel != "" {
		level = p.LogLevel
	}
	logger, err := NewLogger(level, p.LogOutput, cfg.Gateway.BearerToken, cfg.Store.Redis.Password)
	if err != nil {
		return nil, err
	}

	a := &App{
		Config: cfg,
		Logger: logger,
		force:  p.Force,
	}
	defer func() {
		if err != nil {
			_ = a.Close(ctx)
		}
	}()

	backend, err := a.openStore(ctx, p)
	if err != nil {
		return nil, err
	}

	a.Store, err = checkpoint.NewStore(backend, cfg.Identity, logger)
	if err != nil {
		return nil, err
	}
	a.Scheduler = trigger.NewScheduler(a.Host, logger)

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.Metrics = metrics.New(a.Registry)

	shutdown, err := tracing.Setup(ctx, cfg.Tracing)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, shutdown)

	logger.Debug("app: wired",
		"identity", cfg.Identity,
		"driver", cfg.Store.Driver,
		"entry_point", cfg.Resume.EntryPoint,
	)
	return a, nil
}

func (a *App) openStore(ctx context.Context, p Params) (checkpoint.Backend, error) {
	cfg := a.Config
	switch cfg.Store.Driver {
	case config.DriverSQLite:
		sc := cfg.Store.SQLite
		if sc.Path == "" {
			dataDir := p.DataDir
			if dataDir == "" {
				dataDir = DefaultDataDir()
			}
			sc.Path = filepath.Join(dataDir, sqlite.DefaultDBFile)
		}
		s, err := sqlite.Open(ctx, sc,
			sqlite.WithContextID(cfg.Host.Context),
			sqlite.WithLogger(a.Logger),
		)
		if err != nil {
			return nil, err
		}
		a.Host, a.pinger = s, s
		a.closers = append(a.closers, func(context.Context) error { return s.Close() })
		return s, nil

	case config.DriverRedis:
		s, err := redisstore.Open(cfg.Store.Redis,
			redisstore.WithContextID(cfg.Host.Context),
			redisstore.WithLogger(a.Logger),
		)
		if err != nil {
			return nil, err
		}
		a.Host, a.pinger = s, s
		a.closers = append(a.closers, func(context.Context) error { return s.Close() })
		if err := s.Ping(ctx); err != nil {
			a.Logger.Warn("app: redis not reachable yet", "addr", cfg.Store.Redis.Addr, "error", err)
		}
		return s, nil

	case config.DriverMemory:
		a.Host = trigger.NewMemoryHost(nil)
		return checkpoint.NewMemoryBackend(), nil

	default:
		return nil, fmt.Errorf("app: unknown store driver %q", cfg.Store.Driver)
	}
}

// ContextHost returns the host as a context-scope capable host, if it is one.
func (a *App) ContextHost() (contextHost, bool) {
	h, ok := a.Host.(contextHost)
	return h, ok
}

// Ping checks the backing store. The memory driver always answers.
func (a *App) Ping(ctx context.Context) error {
	if a.pinger == nil {
		return nil
	}
	return a.pinger.Ping(ctx)
}

// Controller builds a resume controller from the configuration.
func (a *App) Controller() (*resume.Controller, error) {
	rc := a.Config.Resume
	return resume.New(a.Store, a.Scheduler, resume.Config{
		EntryPoint: rc.EntryPoint,
		Delay:      rc.Delay,
		MaxRuntime: rc.MaxRuntime,
		Keys:       rc.Keys,
		Force:      a.force,
		Retry: resume.RetryPolicy{
			MaxAttempts:     rc.Retry.MaxAttempts,
			InitialInterval: rc.Retry.InitialInterval,
		},
		Logger:  a.Logger,
		Metrics: a.Metrics,
	})
}

// Close releases every resource in reverse order of acquisition.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i](ctx))
	}
	a.closers = nil
	return errors.Join(errs...)
}

// NewLogger builds the text logger used by every command. The given secrets
// never reach the output.
func NewLogger(level string, w io.Writer, secrets ...string) (*slog.Logger, error) {
	l, err := config.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	if w == nil {
		w = os.Stderr
	}
	inner := slog.NewTextHandler(w, &slog.HandlerOptions{Level: l})
	return slog.New(security.NewRedactingHandler(inner, security.NewRedactor(secrets...))), nil
}

type appKey struct{}

// NewContext returns a context carrying a. Entry points invoked with it
// reuse the App instead of opening their own.
func NewContext(ctx context.Context, a *App) context.Context {
	return context.WithValue(ctx, appKey{}, a)
}

// FromContext returns the App carried by ctx.
func FromContext(ctx context.Context) (*App, bool) {
	a, ok := ctx.Value(appKey{}).(*App)
	return a, ok
}
