package resume_test

import (
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/flemzord/runstash/internal/checkpoint"
	"github.com/flemzord/runstash/internal/checkpoint/checkpointtest"
	"github.com/flemzord/runstash/internal/resume"
	"github.com/flemzord/runstash/internal/trigger"
	"github.com/flemzord/runstash/internal/trigger/triggertest"
)

// fakeClock is a manually advanced clock safe for concurrent use.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// rig bundles a controller with the doubles behind it.
type rig struct {
	clock   *fakeClock
	backend *checkpointtest.FaultyBackend
	host    *triggertest.FaultyHost
	store   *checkpoint.Store
	sched   *trigger.Scheduler
	cfg     resume.Config
}

func newRig(t *testing.T) *rig {
	t.Helper()

	clock := newFakeClock()
	backend := checkpointtest.NewFaultyBackend()
	host := triggertest.NewFaultyHost(clock.Now)

	store, err := checkpoint.NewStore(backend, "job@example.com", slog.Default())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	return &rig{
		clock:   clock,
		backend: backend,
		host:    host,
		store:   store,
		sched:   trigger.NewScheduler(host, slog.Default()),
		cfg: resume.Config{
			EntryPoint: "continueJob",
			Delay:      5 * time.Minute,
			MaxRuntime: 4 * time.Minute,
			Keys:       []string{"progress", "cursor"},
			Retry:      resume.RetryPolicy{MaxAttempts: 2, InitialInterval: time.Millisecond},
			Clock:      clock.Now,
			Logger:     slog.Default(),
		},
	}
}

// controller builds a fresh controller, as a new process would.
func (r *rig) controller(t *testing.T) *resume.Controller {
	t.Helper()
	c, err := resume.New(r.store, r.sched, r.cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}
