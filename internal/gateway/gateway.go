// Package gateway is the read-mostly HTTP status surface: health, persisted
// state, pending resume timers and Prometheus metrics.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/flemzord/runstash/internal/checkpoint"
	"github.com/flemzord/runstash/internal/trigger"
)

// StateSource exposes the persisted checkpoint state.
type StateSource interface {
	Identity() string
	Snapshot(ctx context.Context) (map[string]string, error)
	CurrentLease(ctx context.Context) (checkpoint.Lease, bool, error)
}

// TimerSource lists and clears resume timers.
type TimerSource interface {
	Pending(ctx context.Context) ([]trigger.Timer, error)
	ClearAll(ctx context.Context) (int, error)
}

// Pinger checks that the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the sources the gateway reports on. Pinger and Gatherer are
// optional.
type Deps struct {
	State    StateSource
	Timers   TimerSource
	Pinger   Pinger
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger
}

// Gateway serves the HTTP status surface.
type Gateway struct {
	config    Config
	deps      Deps
	logger    *slog.Logger
	server    *http.Server
	startedAt time.Time
}

// New creates a gateway. Call Start to begin serving.
func New(cfg Config, deps Deps) (*Gateway, error) {
	cfg.defaults()
	if _, err := net.ResolveTCPAddr("tcp", cfg.Bind); err != nil {
		return nil, errors.New("gateway: invalid bind address: " + cfg.Bind)
	}
	if deps.State == nil || deps.Timers == nil {
		return nil, errors.New("gateway: state and timer sources are required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Gateway{
		config:    cfg,
		deps:      deps,
		logger:    deps.Logger,
		startedAt: time.Now(),
	}, nil
}

// Handler returns the routed handler, for tests and embedding.
func (g *Gateway) Handler() http.Handler {
	return g.buildRouter()
}

// Start listens on the configured address and serves in the background.
func (g *Gateway) Start() error {
	g.startedAt = time.Now()

	g.server = &http.Server{
		Addr:         g.config.Bind,
		Handler:      g.buildRouter(),
		ReadTimeout:  g.config.ReadTimeout,
		WriteTimeout: g.config.WriteTimeout,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", g.config.Bind)
	if err != nil {
		return fmt.Errorf("gateway: listen failed: %w", err)
	}

	go func() {
		g.logger.Info("gateway: listening", "addr", ln.Addr().String())
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway: serve error", "error", err)
		}
	}()

	return nil
}

// Stop shuts the server down gracefully within the configured timeout.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, g.config.ShutdownTimeout)
	defer cancel()

	g.logger.Info("gateway: shutting down")
	return g.server.Shutdown(shutdownCtx)
}
