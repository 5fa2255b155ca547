// Package dispatch is the local timer host daemon: it polls a trigger.Host
// for due timers and invokes their target entry points, so that resume
// timers actually fire.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/flemzord/runstash/internal/entry"
	"github.com/flemzord/runstash/internal/metrics"
	"github.com/flemzord/runstash/internal/trigger"
)

const defaultPollInterval = 10 * time.Second

// ErrAlreadyStarted is returned by a second Start.
var ErrAlreadyStarted = errors.New("dispatch: already started")

// Invoker runs the entry point registered under name.
type Invoker func(ctx context.Context, name string) error

// Config configures a Dispatcher.
type Config struct {
	// PollInterval is how often due timers are checked. Defaults to 10s.
	PollInterval time.Duration

	// Invoke defaults to entry.Invoke.
	Invoke Invoker

	// Clock defaults to time.Now.
	Clock func() time.Time

	// Context is the parent of every entry point invocation; values on it
	// reach the entry points. Defaults to context.Background().
	Context context.Context

	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Dispatcher fires due timers. A fired timer is deleted before its target
// runs. Each target runs at most once at a time in this process: a timer
// that comes due while its target is still running is consumed and skipped,
// since it is a redundant sibling of the running invocation.
type Dispatcher struct {
	host    trigger.Host
	cfg     Config
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu     sync.Mutex
	cron   *cron.Cron
	locks  map[string]*sync.Mutex
	tickMu sync.Mutex
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a dispatcher over host.
func New(host trigger.Host, cfg Config) *Dispatcher {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.Invoke == nil {
		cfg.Invoke = entry.Invoke
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	parent := cfg.Context
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	return &Dispatcher{
		host:    host,
		cfg:     cfg,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		locks:   make(map[string]*sync.Mutex),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start begins polling on a cron schedule of "@every <PollInterval>".
func (d *Dispatcher) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cron != nil {
		return ErrAlreadyStarted
	}

	c := cron.New()
	schedule := "@every " + d.cfg.PollInterval.String()
	if _, err := c.AddFunc(schedule, func() { d.Tick(d.ctx) }); err != nil {
		return fmt.Errorf("dispatch: invalid poll interval %v: %w", d.cfg.PollInterval, err)
	}
	d.cron = c
	c.Start()
	d.logger.Info("dispatch: started", "poll_interval", d.cfg.PollInterval)
	return nil
}

// Stop halts polling, cancels running entry points and waits for them to
// return (they checkpoint on cancellation) or for ctx to expire.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	c := d.cron
	d.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
	d.cancel()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		if c != nil {
			d.logger.Info("dispatch: stopped")
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("dispatch: waiting for running entry points: %w", ctx.Err())
	}
}

// Tick fires every timer due now, once per target, and returns the targets
// launched. Targets run in the background; use Wait to block on them. A tick
// that overlaps a still-running tick is skipped.
func (d *Dispatcher) Tick(ctx context.Context) []string {
	if !d.tickMu.TryLock() {
		d.logger.Warn("dispatch: previous tick still running, skipping")
		return nil
	}
	defer d.tickMu.Unlock()

	due := d.collectDue(ctx)
	targets := make([]string, 0, len(due))
	for target := range due {
		targets = append(targets, target)
	}
	slices.Sort(targets)

	var launched []string
	for _, target := range targets {
		if d.consume(ctx, due[target]) == 0 {
			continue
		}
		if d.launch(ctx, target) {
			launched = append(launched, target)
		}
	}
	return launched
}

// Wait blocks until every launched entry point has returned.
func (d *Dispatcher) Wait() { d.wg.Wait() }

func (d *Dispatcher) collectDue(ctx context.Context) map[string][]trigger.Timer {
	now := d.cfg.Clock()
	due := make(map[string][]trigger.Timer)
	for _, scope := range trigger.Scopes {
		timers, err := d.host.ListTimers(ctx, scope)
		if err != nil {
			d.logger.Error("dispatch: list timers failed", "scope", scope, "error", err)
			continue
		}
		for _, t := range timers {
			if !t.FireAt.After(now) {
				due[t.Target] = append(due[t.Target], t)
			}
		}
	}
	return due
}

// consume deletes fired timers and returns how many were deleted. A timer
// someone else already deleted was cleared by a resuming invocation and does
// not count as fired.
func (d *Dispatcher) consume(ctx context.Context, timers []trigger.Timer) int {
	n := 0
	for _, t := range timers {
		if err := d.host.DeleteTimer(ctx, t); err != nil {
			if !errors.Is(err, trigger.ErrNotFound) {
				d.logger.Error("dispatch: delete fired timer failed", "timer", t.ID, "error", err)
			}
			continue
		}
		n++
	}
	return n
}

func (d *Dispatcher) launch(ctx context.Context, target string) bool {
	lock := d.lockFor(target)
	if !lock.TryLock() {
		d.logger.Info("dispatch: target still running, skipping fired timer", "target", target)
		d.metrics.TimerFired(target, "skipped")
		return false
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer lock.Unlock()

		d.logger.Info("dispatch: firing", "target", target)
		err := d.cfg.Invoke(ctx, target)
		switch {
		case errors.Is(err, entry.ErrUnknown):
			d.logger.Error("dispatch: timer targets unknown entry point", "target", target)
			d.metrics.TimerFired(target, "unknown")
		case err != nil:
			d.logger.Error("dispatch: entry point failed", "target", target, "error", err)
			d.metrics.TimerFired(target, "error")
		default:
			d.logger.Debug("dispatch: entry point returned", "target", target)
			d.metrics.TimerFired(target, "ok")
		}
	}()
	return true
}

func (d *Dispatcher) lockFor(target string) *sync.Mutex {
	d.mu.Lock()
	defer d.mu.Unlock()
	lock, ok := d.locks[target]
	if !ok {
		lock = &sync.Mutex{}
		d.locks[target] = lock
	}
	return lock
}
