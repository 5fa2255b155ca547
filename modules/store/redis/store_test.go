package redis

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/flemzord/runstash/internal/checkpoint"
	"github.com/flemzord/runstash/internal/checkpoint/checkpointtest"
	"github.com/flemzord/runstash/internal/trigger"
	"github.com/flemzord/runstash/internal/trigger/triggertest"
)

// newTestStore connects to RUNSTASH_REDIS_ADDR and isolates the test under a
// random prefix, deleting its keys on cleanup.
func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()

	addr := os.Getenv("RUNSTASH_REDIS_ADDR")
	if addr == "" {
		t.Skip("RUNSTASH_REDIS_ADDR not set")
	}

	client := goredis.NewClient(&goredis.Options{Addr: addr})
	prefix := "runstash-test:" + uuid.NewString() + ":"
	s := New(client, append([]Option{WithPrefix(prefix)}, opts...)...)

	ctx := context.Background()
	if err := s.Ping(ctx); err != nil {
		_ = client.Close()
		t.Skipf("redis unavailable: %v", err)
	}

	t.Cleanup(func() {
		iter := client.Scan(ctx, 0, prefix+"*", 100).Iterator()
		for iter.Next(ctx) {
			_ = client.Del(ctx, iter.Val()).Err()
		}
		_ = client.Close()
	})
	return s
}

func TestBackendSuite(t *testing.T) {
	checkpointtest.RunBackendSuite(t, func(t *testing.T) checkpoint.Backend {
		return newTestStore(t)
	})
}

func TestHostSuite(t *testing.T) {
	triggertest.RunHostSuite(t, func(t *testing.T, clock func() time.Time) triggertest.ContextHost {
		return newTestStore(t, WithClock(clock), WithContextID("sheet-42"))
	})
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", Config{Addr: "localhost:6379"}, false},
		{"missing addr", Config{}, true},
		{"negative db", Config{Addr: "localhost:6379", DB: -1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestKeysUsePrefix(t *testing.T) {
	t.Parallel()

	s := New(nil, WithPrefix("x:"), WithContextID("sheet"))
	if got := s.checkpointKey("alice"); got != "x:checkpoint:alice" {
		t.Errorf("checkpointKey = %q", got)
	}
	if got := s.contextTimersKey(); got != "x:timers:context:sheet" {
		t.Errorf("contextTimersKey = %q", got)
	}
	if got := New(nil).projectTimersKey(); got != "runstash:timers:project" {
		t.Errorf("default projectTimersKey = %q", got)
	}
}

func TestListTimers_SkipsMalformedTimer(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	good, err := s.CreateTimer(ctx, "continueJob", time.Minute)
	if err != nil {
		t.Fatalf("CreateTimer: %v", err)
	}
	index := s.projectTimersKey()
	if err := s.client.HSet(ctx, s.timerKey("broken"), "target", "continueJob", "fire_at", "soon").Err(); err != nil {
		t.Fatalf("HSet: %v", err)
	}
	if err := s.client.ZAdd(ctx, index, goredis.Z{Score: 1, Member: "broken"}).Err(); err != nil {
		t.Fatalf("ZAdd: %v", err)
	}

	timers, err := s.ListTimers(ctx, trigger.ScopeProject)
	if err != nil {
		t.Fatalf("ListTimers: %v", err)
	}
	if len(timers) != 1 || timers[0].ID != good.ID {
		t.Errorf("ListTimers = %+v, want only %s", timers, good.ID)
	}
	if n, _ := s.client.Exists(ctx, s.timerKey("broken")).Result(); n != 0 {
		t.Error("malformed timer body should be deleted")
	}

	cleared, err := trigger.NewScheduler(s, slog.Default()).ClearAll(ctx)
	if err != nil || cleared != 1 {
		t.Errorf("ClearAll = (%d, %v), want (1, nil)", cleared, err)
	}
	if n, _ := s.client.ZCard(ctx, index).Result(); n != 0 {
		t.Errorf("index size after clear = %d, want 0", n)
	}
}

func TestTimerFromMap(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		vals    map[string]string
		wantErr bool
	}{
		{"valid", map[string]string{"target": "continueJob", "fire_at": "1000", "created_at": "500"}, false},
		{"bad fire_at", map[string]string{"target": "continueJob", "fire_at": "soon", "created_at": "500"}, true},
		{"missing created_at", map[string]string{"target": "continueJob", "fire_at": "1000"}, true},
		{"missing target", map[string]string{"fire_at": "1000", "created_at": "500"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := timerFromMap("id-1", trigger.ScopeContext, tt.vals)
			if (err != nil) != tt.wantErr {
				t.Fatalf("timerFromMap() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && (got.FireAt.UnixMilli() != 1000 || got.Scope != trigger.ScopeContext) {
				t.Errorf("timerFromMap() = %+v", got)
			}
		})
	}
}
