package triggertest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/flemzord/runstash/internal/trigger"
)

// ContextHost is a Host that can also create ScopeContext timers.
type ContextHost interface {
	trigger.Host
	CreateContextTimer(ctx context.Context, target string, after time.Duration) (trigger.Timer, error)
}

// RunHostSuite exercises the behaviour every timer host must share. newHost
// receives the clock the host must use and is called once per subtest.
func RunHostSuite(t *testing.T, newHost func(t *testing.T, clock func() time.Time) ContextHost) {
	t.Helper()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	t.Run("CreateListDelete", func(t *testing.T) {
		ctx := context.Background()
		h := newHost(t, clock)

		late, err := h.CreateTimer(ctx, "continueJob", 4*time.Minute)
		if err != nil {
			t.Fatalf("CreateTimer: %v", err)
		}
		early, err := h.CreateTimer(ctx, "continueJob", time.Minute)
		if err != nil {
			t.Fatalf("CreateTimer: %v", err)
		}
		if !early.FireAt.Equal(now.Add(time.Minute)) {
			t.Errorf("FireAt = %v, want %v", early.FireAt, now.Add(time.Minute))
		}
		if early.Scope != trigger.ScopeProject {
			t.Errorf("Scope = %q, want project", early.Scope)
		}

		timers, err := h.ListTimers(ctx, trigger.ScopeProject)
		if err != nil {
			t.Fatalf("ListTimers: %v", err)
		}
		if len(timers) != 2 || timers[0].ID != early.ID || timers[1].ID != late.ID {
			t.Fatalf("ListTimers = %+v, want [early late]", timers)
		}
		if timers[0].Target != "continueJob" {
			t.Errorf("Target = %q", timers[0].Target)
		}

		if err := h.DeleteTimer(ctx, early); err != nil {
			t.Fatalf("DeleteTimer: %v", err)
		}
		if err := h.DeleteTimer(ctx, early); !errors.Is(err, trigger.ErrNotFound) {
			t.Errorf("second DeleteTimer err = %v, want ErrNotFound", err)
		}
		if timers, _ := h.ListTimers(ctx, trigger.ScopeProject); len(timers) != 1 {
			t.Errorf("ListTimers after delete = %d timers, want 1", len(timers))
		}
	})

	t.Run("ScopesAreSeparate", func(t *testing.T) {
		ctx := context.Background()
		h := newHost(t, clock)

		if _, err := h.CreateTimer(ctx, "continueJob", time.Minute); err != nil {
			t.Fatal(err)
		}
		ct, err := h.CreateContextTimer(ctx, "continueJob", time.Minute)
		if err != nil {
			t.Fatal(err)
		}
		if ct.Scope != trigger.ScopeContext {
			t.Errorf("Scope = %q, want context", ct.Scope)
		}

		for _, scope := range trigger.Scopes {
			timers, err := h.ListTimers(ctx, scope)
			if err != nil {
				t.Fatalf("ListTimers(%s): %v", scope, err)
			}
			if len(timers) != 1 {
				t.Errorf("ListTimers(%s) = %d timers, want 1", scope, len(timers))
			}
		}
	})

	t.Run("SchedulerRoundTrip", func(t *testing.T) {
		ctx := context.Background()
		sched := trigger.NewScheduler(newHost(t, clock), nil)

		for range 2 {
			if res := sched.ScheduleResume(ctx, "continueJob", time.Minute); res.Status() != trigger.Scheduled {
				t.Fatalf("ScheduleResume status = %s, err %v", res.Status(), res.Err())
			}
		}
		pending, err := sched.Pending(ctx)
		if err != nil {
			t.Fatalf("Pending: %v", err)
		}
		if len(pending) != len(trigger.Multipliers) {
			t.Errorf("Pending = %d timers, want %d", len(pending), len(trigger.Multipliers))
		}
	})
}
