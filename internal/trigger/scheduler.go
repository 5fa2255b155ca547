package trigger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Scheduler clears and creates resume timers on a Host.
type Scheduler struct {
	host   Host
	logger *slog.Logger
}

// NewScheduler creates a scheduler on host.
func NewScheduler(host Host, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{host: host, logger: logger}
}

// ClearAll deletes every timer in both scopes, one at a time. A failed
// listing or deletion is logged and never stops the remaining ones. It
// returns how many timers were deleted along with the joined failures.
func (s *Scheduler) ClearAll(ctx context.Context) (int, error) {
	var (
		deleted int
		errs    []error
	)
	for _, scope := range Scopes {
		timers, err := s.host.ListTimers(ctx, scope)
		if err != nil {
			s.logger.Error("trigger: list failed", "scope", scope, "error", err)
			errs = append(errs, fmt.Errorf("trigger: list %s timers: %w", scope, err))
			continue
		}
		for _, t := range timers {
			if err := s.host.DeleteTimer(ctx, t); err != nil {
				s.logger.Error("trigger: delete failed", "timer", t.ID, "scope", scope, "error", err)
				errs = append(errs, fmt.Errorf("trigger: delete %s timer %s: %w", scope, t.ID, err))
				continue
			}
			deleted++
			s.logger.Debug("trigger: deleted timer", "timer", t.ID, "scope", scope, "target", t.Target)
		}
	}
	if deleted > 0 || len(errs) > 0 {
		s.logger.Info("trigger: cleared timers", "deleted", deleted, "failed", len(errs))
	}
	return deleted, errors.Join(errs...)
}

// ScheduleResume replaces every pending timer with three timers targeting
// target, firing after delay, 2×delay and 4×delay. Each creation is
// attempted independently; the result reports which succeeded.
func (s *Scheduler) ScheduleResume(ctx context.Context, target string, delay time.Duration) ScheduleResult {
	var res ScheduleResult
	if target == "" {
		res.Failed = append(res.Failed, ErrEmptyTarget)
		return res
	}
	if delay <= 0 {
		res.Failed = append(res.Failed, fmt.Errorf("%w: got %v", ErrInvalidDelay, delay))
		return res
	}

	if _, err := s.ClearAll(ctx); err != nil {
		s.logger.Warn("trigger: scheduling over incomplete clear", "error", err)
		res.ClearErr = err
	}

	for _, m := range Multipliers {
		after := time.Duration(m) * delay
		t, err := s.host.CreateTimer(ctx, target, after)
		if err != nil {
			s.logger.Error("trigger: create failed", "target", target, "after", after, "error", err)
			res.Failed = append(res.Failed, fmt.Errorf("trigger: create timer after %v: %w", after, err))
			continue
		}
		s.logger.Info("trigger: scheduled resume", "target", target, "after", after, "timer", t.ID)
		res.Created = append(res.Created, t)
	}
	return res
}

// Pending lists the timers currently registered in both scopes.
func (s *Scheduler) Pending(ctx context.Context) ([]Timer, error) {
	var (
		all  []Timer
		errs []error
	)
	for _, scope := range Scopes {
		timers, err := s.host.ListTimers(ctx, scope)
		if err != nil {
			errs = append(errs, fmt.Errorf("trigger: list %s timers: %w", scope, err))
			continue
		}
		all = append(all, timers...)
	}
	return all, errors.Join(errs...)
}
