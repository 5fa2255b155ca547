package gateway

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/flemzord/runstash/internal/checkpoint"
	"github.com/flemzord/runstash/internal/trigger"
)

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

type fixture struct {
	store *checkpoint.Store
	sched *trigger.Scheduler
	host  *trigger.MemoryHost
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	store, err := checkpoint.NewStore(checkpoint.NewMemoryBackend(), "alice", slog.Default())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	host := trigger.NewMemoryHost(nil)
	return fixture{store: store, sched: trigger.NewScheduler(host, nil), host: host}
}

func newTestGateway(t *testing.T, f fixture, cfg Config, pinger Pinger) *Gateway {
	t.Helper()

	g, err := New(cfg, Deps{State: f.store, Timers: f.sched, Pinger: pinger})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return g
}

func seed(t *testing.T, f fixture) {
	t.Helper()
	ctx := context.Background()
	if err := f.store.Stash(ctx, map[string]string{"progress": "7"}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.store.AcquireLease(ctx, false); err != nil {
		t.Fatal(err)
	}
	if res := f.sched.ScheduleResume(ctx, "continueJob", time.Minute); res.Status() != trigger.Scheduled {
		t.Fatalf("ScheduleResume: %v", res.Err())
	}
}
