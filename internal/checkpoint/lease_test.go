package checkpoint_test

import (
	"context"
	"errors"
	"testing"

	"github.com/flemzord/runstash/internal/checkpoint"
	"github.com/flemzord/runstash/internal/checkpoint/checkpointtest"
)

func TestParseLease(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw     string
		want    checkpoint.Lease
		wantErr bool
	}{
		{raw: "1:running", want: checkpoint.Lease{Generation: 1, Phase: checkpoint.LeaseRunning}},
		{raw: "42:suspended", want: checkpoint.Lease{Generation: 42, Phase: checkpoint.LeaseSuspended}},
		{raw: "", wantErr: true},
		{raw: "7", wantErr: true},
		{raw: "x:running", wantErr: true},
		{raw: "3:sleeping", wantErr: true},
	}

	for _, tt := range tests {
		got, err := checkpoint.ParseLease(tt.raw)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLease(%q) err = %v, wantErr %v", tt.raw, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseLease(%q) = %+v, want %+v", tt.raw, got, tt.want)
		}
		if !tt.wantErr && got.String() != tt.raw {
			t.Errorf("String() = %q, want %q", got.String(), tt.raw)
		}
	}
}

func TestLease_Lifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newStore(t, checkpoint.NewMemoryBackend())

	first, err := s.AcquireLease(ctx, false)
	if err != nil {
		t.Fatalf("AcquireLease: %v", err)
	}
	if first.Generation != 1 || first.Phase != checkpoint.LeaseRunning {
		t.Fatalf("first = %+v, want 1:running", first)
	}

	// A straggler arriving while the lease is held is superseded.
	if _, err := s.AcquireLease(ctx, false); !errors.Is(err, checkpoint.ErrSuperseded) {
		t.Fatalf("second acquire err = %v, want ErrSuperseded", err)
	}

	if err := s.ReleaseLease(ctx, first); err != nil {
		t.Fatalf("ReleaseLease: %v", err)
	}
	cur, ok, err := s.CurrentLease(ctx)
	if err != nil || !ok {
		t.Fatalf("CurrentLease: ok=%v err=%v", ok, err)
	}
	if cur.Phase != checkpoint.LeaseSuspended || cur.Generation != 1 {
		t.Errorf("current = %+v, want 1:suspended", cur)
	}

	second, err := s.AcquireLease(ctx, false)
	if err != nil {
		t.Fatalf("AcquireLease after release: %v", err)
	}
	if second.Generation != 2 {
		t.Errorf("generation = %d, want 2", second.Generation)
	}

	// The old holder can no longer release.
	if err := s.ReleaseLease(ctx, first); !errors.Is(err, checkpoint.ErrSuperseded) {
		t.Errorf("stale release err = %v, want ErrSuperseded", err)
	}
}

func TestLease_ForceTakeover(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newStore(t, checkpoint.NewMemoryBackend())

	held, err := s.AcquireLease(ctx, false)
	if err != nil {
		t.Fatalf("AcquireLease: %v", err)
	}

	taken, err := s.AcquireLease(ctx, true)
	if err != nil {
		t.Fatalf("forced AcquireLease: %v", err)
	}
	if taken.Generation != held.Generation+1 {
		t.Errorf("generation = %d, want %d", taken.Generation, held.Generation+1)
	}
	if err := s.ReleaseLease(ctx, held); !errors.Is(err, checkpoint.ErrSuperseded) {
		t.Errorf("release by displaced holder err = %v, want ErrSuperseded", err)
	}
}

func TestLease_ConcurrentWriterWinsRace(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := checkpointtest.NewFaultyBackend()
	s := newStore(t, backend)
	rival, _ := checkpoint.NewStore(backend, "alice", nil)

	// The rival claims the lease between our read and our swap.
	backend.BeforeSwap(func() {
		if _, err := rival.AcquireLease(ctx, false); err != nil {
			t.Errorf("rival AcquireLease: %v", err)
		}
	})

	if _, err := s.AcquireLease(ctx, false); !errors.Is(err, checkpoint.ErrSuperseded) {
		t.Fatalf("err = %v, want ErrSuperseded", err)
	}
}

func TestLease_MalformedValue(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := checkpoint.NewMemoryBackend()
	s := newStore(t, backend)
	if err := backend.Set(ctx, "alice", checkpoint.LeaseKey, "garbage"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	if _, err := s.AcquireLease(ctx, false); err == nil {
		t.Fatal("expected error on malformed lease")
	}
	lease, err := s.AcquireLease(ctx, true)
	if err != nil {
		t.Fatalf("forced AcquireLease: %v", err)
	}
	if lease.Generation != 1 {
		t.Errorf("generation = %d, want 1", lease.Generation)
	}
}

func TestLease_BackendError(t *testing.T) {
	t.Parallel()

	backend := checkpointtest.NewFaultyBackend()
	backend.FailCompareAndSwap(errors.New("conn reset"))
	s := newStore(t, backend)

	if _, err := s.AcquireLease(context.Background(), false); err == nil {
		t.Fatal("expected error")
	}
}
