// Package resume orchestrates the checkpoint/resume cycle: it restores state
// at the start of an invocation, watches the runtime quota inside the job's
// work loop, and checkpoints and schedules a redundant resumption when the
// quota is nearly used up.
package resume

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/flemzord/runstash/internal/checkpoint"
	"github.com/flemzord/runstash/internal/metrics"
	"github.com/flemzord/runstash/internal/quota"
	"github.com/flemzord/runstash/internal/tracing"
	"github.com/flemzord/runstash/internal/trigger"
)

// Sentinel errors for resume operations.
var (
	ErrCheckpointFailed = errors.New("resume: checkpoint could not be saved")
	ErrScheduleFailed   = errors.New("resume: no resume timer could be created")
	ErrRestoreFailed    = errors.New("resume: checkpoint could not be read")
	ErrInvalidPhase     = errors.New("resume: operation not allowed in this phase")
)

// CheckpointStore is the persistence the controller needs.
type CheckpointStore interface {
	Stash(ctx context.Context, entries map[string]string) error
	Pop(ctx context.Context, keys []string) checkpoint.PopResult
	ResetAll(ctx context.Context) error
	AcquireLease(ctx context.Context, force bool) (checkpoint.Lease, error)
	ReleaseLease(ctx context.Context, held checkpoint.Lease) error
	CurrentLease(ctx context.Context) (checkpoint.Lease, bool, error)
}

// TriggerScheduler is the timer facility the controller needs.
type TriggerScheduler interface {
	ClearAll(ctx context.Context) (int, error)
	ScheduleResume(ctx context.Context, target string, delay time.Duration) trigger.ScheduleResult
}

// Compile-time interface checks.
var (
	_ CheckpointStore  = (*checkpoint.Store)(nil)
	_ TriggerScheduler = (*trigger.Scheduler)(nil)
)

// Config configures a Controller.
type Config struct {
	// EntryPoint is the registered name resume timers invoke.
	EntryPoint string

	// Delay is the base resume delay; timers fire after 1×, 2× and 4× it.
	Delay time.Duration

	// MaxRuntime is the per-invocation budget. It should leave headroom below
	// the host's hard limit.
	MaxRuntime time.Duration

	// Keys is the full set of state keys restored on resume.
	Keys []string

	// Force takes over a lease held by another invocation.
	Force bool

	// Retry bounds the retries of stash and schedule steps.
	Retry RetryPolicy

	// Clock defaults to time.Now.
	Clock func() time.Time

	Logger  *slog.Logger
	Metrics *metrics.Metrics
	Tracer  trace.Tracer
}

// Controller drives one job's checkpoint/resume cycle.
type Controller struct {
	store   CheckpointStore
	sched   TriggerScheduler
	cfg     Config
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

// New creates a Controller.
func New(store CheckpointStore, sched TriggerScheduler, cfg Config) (*Controller, error) {
	var errs []error
	if cfg.EntryPoint == "" {
		errs = append(errs, errors.New("resume: entry point is required"))
	}
	if cfg.Delay <= 0 {
		errs = append(errs, fmt.Errorf("resume: delay must be positive, got %v", cfg.Delay))
	}
	if cfg.MaxRuntime <= 0 {
		errs = append(errs, fmt.Errorf("resume: max runtime must be positive, got %v", cfg.MaxRuntime))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = tracing.Tracer()
	}
	cfg.Retry = cfg.Retry.withDefaults()

	return &Controller{
		store:   store,
		sched:   sched,
		cfg:     cfg,
		logger:  cfg.Logger.With("entry_point", cfg.EntryPoint),
		metrics: cfg.Metrics,
		tracer:  cfg.Tracer,
	}, nil
}

// Session is the in-memory view of one invocation.
type Session struct {
	// State is restored on Resume and stashed on Suspend.
	State State

	// Window is this invocation's fresh quota window.
	Window quota.Window

	// Lease is the generation this invocation holds.
	Lease checkpoint.Lease

	// Restored is the raw restore result, for callers that care about
	// missing or unreadable keys.
	Restored checkpoint.PopResult

	phase Phase
}

// Phase returns the session's current lifecycle phase.
func (s *Session) Phase() Phase { return s.phase }

// SuspendReport describes what Suspend managed to do.
type SuspendReport struct {
	Keys     int
	Schedule trigger.ScheduleResult
	LeaseErr error
}

// Resume starts an invocation. It clears every pending timer first so that
// redundant siblings become no-ops, claims the checkpoint lease, restores the
// state and opens a fresh quota window.
//
// A straggler that finds the lease held gets checkpoint.ErrSuperseded and
// must exit without doing any work.
func (c *Controller) Resume(ctx context.Context) (*Session, error) {
	return c.resume(ctx, c.cfg.Keys)
}

func (c *Controller) resume(ctx context.Context, keys []string) (_ *Session, err error) {
	ctx, span := c.tracer.Start(ctx, "resume.Resume", trace.WithAttributes(
		attribute.String("runstash.entry_point", c.cfg.EntryPoint),
		attribute.Int("runstash.keys", len(keys)),
	))
	defer func() { endSpan(span, err) }()

	cleared, clearErr := c.sched.ClearAll(ctx)
	c.metrics.TimersCleared(cleared)
	if clearErr != nil {
		c.logger.Warn("resume: some timers could not be cleared", "error", clearErr)
	}

	lease, err := c.store.AcquireLease(ctx, c.cfg.Force)
	if err != nil {
		if errors.Is(err, checkpoint.ErrSuperseded) {
			c.logger.Info("resume: checkpoint held by another invocation, exiting", "error", err)
			return nil, err
		}
		c.logger.Error("resume: lease unavailable, re-arming resume", "error", err)
		c.rearm(ctx)
		return nil, fmt.Errorf("resume: acquire lease: %w", err)
	}
	span.SetAttributes(attribute.Int64("runstash.generation", int64(lease.Generation)))

	restored := c.store.Pop(ctx, keys)
	c.metrics.Pop(string(restored.Status()))
	if len(keys) > 0 && restored.Status() == checkpoint.PopFailed {
		c.logger.Error("resume: checkpoint unreadable, re-arming resume", "error", restored.Err())
		if err := c.store.ReleaseLease(ctx, lease); err != nil {
			c.logger.Warn("resume: release lease failed", "error", err)
		}
		c.rearm(ctx)
		return nil, fmt.Errorf("%w: %w", ErrRestoreFailed, restored.Err())
	}
	if restored.Status() == checkpoint.PopPartial {
		c.logger.Warn("resume: checkpoint partially restored", "error", restored.Err())
	}

	sess := &Session{
		State:    State(restored.Values),
		Lease:    lease,
		Restored: restored,
	}
	c.transition(sess, PhaseResumed)

	sess.Window = quota.NewWindowWithClock(c.cfg.MaxRuntime, c.cfg.Clock)
	c.transition(sess, PhaseRunning)

	c.logger.Info("resume: invocation started",
		"generation", lease.Generation,
		"restored", len(restored.Values),
		"missing", len(restored.Missing),
		"max_runtime", c.cfg.MaxRuntime,
	)
	return sess, nil
}

// Suspend checkpoints the session state, schedules the redundant resume
// timers and releases the lease. The stash and schedule steps are retried
// per the retry policy.
//
// A stash that keeps failing returns ErrCheckpointFailed and nothing is
// scheduled; the session stays in PhaseCheckpointing, still holding the
// lease, so Suspend may be called again. A caller that gives up instead must
// release the lease itself. A schedule that creates no timer at all returns
// ErrScheduleFailed: the state is safe but nothing will resume the job.
func (c *Controller) Suspend(ctx context.Context, sess *Session) (report SuspendReport, err error) {
	if sess.phase != PhaseRunning && sess.phase != PhaseCheckpointing {
		return report, fmt.Errorf("%w: suspend from %s", ErrInvalidPhase, sess.phase)
	}

	ctx, span := c.tracer.Start(ctx, "resume.Suspend", trace.WithAttributes(
		attribute.Int64("runstash.generation", int64(sess.Lease.Generation)),
		attribute.Int("runstash.keys", len(sess.State)),
	))
	defer func() { endSpan(span, err) }()

	c.transition(sess, PhaseCheckpointing)

	if err := c.checkLease(ctx, sess.Lease); err != nil {
		return report, err
	}

	if err := c.stash(ctx, sess.State); err != nil {
		c.metrics.Stash("error")
		c.logger.Error("resume: checkpoint failed, not scheduling", "error", err)
		return report, fmt.Errorf("%w: %w", ErrCheckpointFailed, err)
	}
	c.metrics.Stash("ok")
	report.Keys = len(sess.State)

	report.Schedule = c.schedule(ctx)

	if err := c.store.ReleaseLease(ctx, sess.Lease); err != nil {
		c.logger.Warn("resume: release lease failed", "error", err)
		report.LeaseErr = err
	}
	c.transition(sess, PhaseSuspended)

	if report.Schedule.Status() == trigger.ScheduleFailed {
		c.logger.Error("resume: job suspended but no resume is scheduled", "error", report.Schedule.Err())
		return report, fmt.Errorf("%w: %w", ErrScheduleFailed, report.Schedule.Err())
	}

	c.logger.Info("resume: invocation suspended",
		"generation", sess.Lease.Generation,
		"keys", report.Keys,
		"timers", len(report.Schedule.Created),
		"delay", c.cfg.Delay,
	)
	return report, nil
}

// Finish tears down a completed job: it deletes the checkpoint (including
// the lease) and every pending timer.
func (c *Controller) Finish(ctx context.Context, sess *Session) (err error) {
	if sess.phase != PhaseRunning {
		return fmt.Errorf("%w: finish from %s", ErrInvalidPhase, sess.phase)
	}

	ctx, span := c.tracer.Start(ctx, "resume.Finish")
	defer func() { endSpan(span, err) }()

	var errs []error
	if err := c.store.ResetAll(ctx); err != nil {
		errs = append(errs, err)
	}
	cleared, err := c.sched.ClearAll(ctx)
	c.metrics.TimersCleared(cleared)
	if err != nil {
		errs = append(errs, err)
	}
	c.transition(sess, PhaseDone)

	if err := errors.Join(errs...); err != nil {
		c.logger.Error("resume: teardown incomplete", "error", err)
		return fmt.Errorf("resume: finish: %w", err)
	}
	c.logger.Info("resume: job done", "generation", sess.Lease.Generation)
	return nil
}

// abandon stashes the state and releases the lease without scheduling
// anything. Used when the job itself fails.
func (c *Controller) abandon(ctx context.Context, sess *Session) error {
	c.transition(sess, PhaseCheckpointing)
	var errs []error
	if err := c.stash(ctx, sess.State); err != nil {
		c.metrics.Stash("error")
		errs = append(errs, fmt.Errorf("%w: %w", ErrCheckpointFailed, err))
	} else {
		c.metrics.Stash("ok")
	}
	if err := c.store.ReleaseLease(ctx, sess.Lease); err != nil {
		errs = append(errs, err)
	}
	c.transition(sess, PhaseSuspended)
	return errors.Join(errs...)
}

func (c *Controller) checkLease(ctx context.Context, held checkpoint.Lease) error {
	current, ok, err := c.store.CurrentLease(ctx)
	if err != nil {
		c.logger.Warn("resume: could not verify lease before checkpoint", "error", err)
		return nil
	}
	if !ok || current != held {
		c.logger.Warn("resume: lease moved on, abandoning checkpoint",
			"held", held.String(),
			"current", current.String(),
		)
		return fmt.Errorf("%w: held %s, found %s", checkpoint.ErrSuperseded, held, current)
	}
	return nil
}

func (c *Controller) stash(ctx context.Context, state State) error {
	return c.cfg.Retry.do(ctx, c.logger, "stash", func() error {
		err := c.store.Stash(ctx, state)
		if errors.Is(err, checkpoint.ErrReservedKey) || errors.Is(err, checkpoint.ErrEmptyKey) {
			return permanent(err)
		}
		return err
	})
}

func (c *Controller) schedule(ctx context.Context) trigger.ScheduleResult {
	var last trigger.ScheduleResult
	_ = c.cfg.Retry.do(ctx, c.logger, "schedule", func() error {
		last = c.sched.ScheduleResume(ctx, c.cfg.EntryPoint, c.cfg.Delay)
		if last.Status() == trigger.ScheduleFailed {
			if errors.Is(last.Err(), trigger.ErrEmptyTarget) || errors.Is(last.Err(), trigger.ErrInvalidDelay) {
				return permanent(last.Err())
			}
			return last.Err()
		}
		return nil
	})
	c.metrics.Schedule(string(last.Status()))
	if last.Status() == trigger.SchedulePartial {
		c.logger.Warn("resume: only some resume timers were created",
			"created", len(last.Created),
			"error", last.Err(),
		)
	}
	return last
}

// rearm schedules a retry of the entry point after a failed start, so a
// transient store outage does not stall the job for good.
func (c *Controller) rearm(ctx context.Context) {
	if res := c.schedule(ctx); res.Status() == trigger.ScheduleFailed {
		c.logger.Error("resume: could not re-arm resume", "error", res.Err())
	}
}

func (c *Controller) transition(sess *Session, to Phase) {
	from := sess.phase
	sess.phase = to
	c.metrics.Transition(string(to))
	c.logger.Debug("resume: phase transition", "from", from, "to", to)
}

// keysFor returns the configured keys plus any the job declares.
func (c *Controller) keysFor(job Job) []string {
	keys := slices.Clone(c.cfg.Keys)
	if k, ok := job.(KeyedJob); ok {
		for _, key := range k.Keys() {
			if !slices.Contains(keys, key) {
				keys = append(keys, key)
			}
		}
	}
	return keys
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
