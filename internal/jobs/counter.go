// Package jobs holds the reference job shipped with runstash. Importing it
// registers its entry point.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/flemzord/runstash/internal/entry"
	"github.com/flemzord/runstash/internal/resume"
	"github.com/flemzord/runstash/pkg/app"
)

// CounterEntryPoint is the name the counter job registers under.
const CounterEntryPoint = "continueJob"

// State keys of the counter job.
const (
	keyCount     = "count"
	keyStartedAt = "started_at"
)

const (
	defaultTarget    = 1000
	defaultStepDelay = 100 * time.Millisecond
)

func init() {
	entry.Register(CounterEntryPoint, RunCounter)
}

// Counter counts to Target one step at a time, pausing StepDelay per step
// to stand in for real work. It exercises the whole checkpoint and resume
// cycle: a long enough count spans several invocations.
type Counter struct {
	Target    int
	StepDelay time.Duration
	Clock     func() time.Time
}

// Keys implements resume.KeyedJob.
func (c Counter) Keys() []string { return []string{keyCount, keyStartedAt} }

// Step implements resume.Job.
func (c Counter) Step(ctx context.Context, st resume.State) (bool, error) {
	n, err := st.Int(keyCount, 0)
	if err != nil {
		return false, fmt.Errorf("jobs: counter: %w", err)
	}
	if n >= c.Target {
		return true, nil
	}
	if _, ok := st.Get(keyStartedAt); !ok {
		now := time.Now
		if c.Clock != nil {
			now = c.Clock
		}
		st.SetTime(keyStartedAt, now())
	}

	if c.StepDelay > 0 {
		t := time.NewTimer(c.StepDelay)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			// The step did not happen; the caller checkpoints n.
			return false, nil
		}
	}

	st.SetInt(keyCount, n+1)
	return n+1 >= c.Target, nil
}

// RunCounter is the counter's entry point. It reuses the App carried by ctx,
// or cold-starts one from the default configuration.
func RunCounter(ctx context.Context) error {
	a, ok := app.FromContext(ctx)
	if !ok {
		opened, err := app.Open(ctx, app.Params{})
		if err != nil {
			return err
		}
		defer func() { _ = opened.Close(context.WithoutCancel(ctx)) }()
		a = opened
	}

	ctrl, err := a.Controller()
	if err != nil {
		return err
	}

	outcome, err := ctrl.Run(ctx, Counter{Target: defaultTarget, StepDelay: defaultStepDelay})
	a.Logger.Info("jobs: counter returned", "outcome", outcome, "error", err)
	return err
}
