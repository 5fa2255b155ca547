package jobs

import (
	"bytes"
	"context"
	"slices"
	"testing"
	"time"

	"github.com/flemzord/runstash/internal/config"
	"github.com/flemzord/runstash/internal/entry"
	"github.com/flemzord/runstash/internal/resume"
	"github.com/flemzord/runstash/pkg/app"
)

func TestCounter_Registered(t *testing.T) {
	t.Parallel()

	if !slices.Contains(entry.Names(), CounterEntryPoint) {
		t.Fatalf("entry points = %v, want %s registered", entry.Names(), CounterEntryPoint)
	}
}

func TestCounter_Step(t *testing.T) {
	t.Parallel()

	c := Counter{Target: 2}
	st := resume.State{}

	done, err := c.Step(context.Background(), st)
	if err != nil || done {
		t.Fatalf("first Step = %v, %v; want false, nil", done, err)
	}
	if _, ok := st.Get(keyStartedAt); !ok {
		t.Error("started_at not recorded")
	}
	done, err = c.Step(context.Background(), st)
	if err != nil || !done {
		t.Fatalf("second Step = %v, %v; want true, nil", done, err)
	}
	if n, _ := st.Int(keyCount, 0); n != 2 {
		t.Errorf("count = %d, want 2", n)
	}
}

func TestCounter_StepRejectsCorruptState(t *testing.T) {
	t.Parallel()

	st := resume.State{keyCount: "many"}
	if _, err := (Counter{Target: 5}).Step(context.Background(), st); err == nil {
		t.Error("expected error for non-numeric count")
	}
}

func TestCounter_CancelledStepKeepsCount(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	st := resume.State{}
	st.SetInt(keyCount, 4)
	done, err := (Counter{Target: 10, StepDelay: time.Hour}).Step(ctx, st)
	if err != nil || done {
		t.Fatalf("Step = %v, %v", done, err)
	}
	if n, _ := st.Int(keyCount, 0); n != 4 {
		t.Errorf("count = %d, want 4", n)
	}
}

func TestRunCounter_SpansInvocations(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		Version: "1",
		Store:   config.StoreConfig{Driver: config.DriverMemory},
		Resume: config.ResumeConfig{
			Keys:       []string{keyCount},
			MaxRuntime: time.Hour,
		},
	}
	cfg.ApplyDefaults()

	ctx := context.Background()
	a, err := app.New(ctx, cfg, app.Params{LogOutput: &bytes.Buffer{}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer func() { _ = a.Close(ctx) }()

	ctrl, err := a.Controller()
	if err != nil {
		t.Fatalf("Controller: %v", err)
	}

	// Cancelling mid-run stands in for the quota tripping.
	runCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	outcome, err := ctrl.Run(runCtx, Counter{Target: 1000, StepDelay: 5 * time.Millisecond})
	if err != nil || outcome != resume.OutcomeSuspended {
		t.Fatalf("first Run = %s, %v; want suspended", outcome, err)
	}
	pending, err := a.Scheduler.Pending(ctx)
	if err != nil || len(pending) != 3 {
		t.Fatalf("pending = %d timers (%v), want 3", len(pending), err)
	}
	for _, timer := range pending {
		if timer.Target != CounterEntryPoint {
			t.Errorf("timer target = %q", timer.Target)
		}
	}

	outcome, err = ctrl.Run(ctx, Counter{Target: 3})
	if err != nil || outcome != resume.OutcomeDone {
		t.Fatalf("second Run = %s, %v; want done", outcome, err)
	}
	if pending, _ := a.Scheduler.Pending(ctx); len(pending) != 0 {
		t.Errorf("timers left after completion: %d", len(pending))
	}
}
