package checkpoint_test

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"slices"
	"testing"

	"github.com/flemzord/runstash/internal/checkpoint"
	"github.com/flemzord/runstash/internal/checkpoint/checkpointtest"
)

func newStore(t *testing.T, backend checkpoint.Backend) *checkpoint.Store {
	t.Helper()
	s, err := checkpoint.NewStore(backend, "alice", slog.Default())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func TestNewStore_EmptyIdentity(t *testing.T) {
	t.Parallel()

	_, err := checkpoint.NewStore(checkpoint.NewMemoryBackend(), "", nil)
	if !errors.Is(err, checkpoint.ErrEmptyIdentity) {
		t.Fatalf("err = %v, want ErrEmptyIdentity", err)
	}
}

func TestStore_StashPopRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newStore(t, checkpoint.NewMemoryBackend())

	entries := map[string]string{"progress": "42", "cursor": "abc", "empty": ""}
	if err := s.Stash(ctx, entries); err != nil {
		t.Fatalf("Stash: %v", err)
	}

	res := s.Pop(ctx, []string{"progress", "cursor", "empty"})
	if res.Status() != checkpoint.PopComplete {
		t.Errorf("status = %s, want complete", res.Status())
	}
	if !maps.Equal(res.Values, entries) {
		t.Errorf("values = %v, want %v", res.Values, entries)
	}
	if len(res.Missing) != 0 {
		t.Errorf("missing = %v, want none", res.Missing)
	}
	if res.Err() != nil {
		t.Errorf("Err = %v, want nil", res.Err())
	}
}

func TestStore_StashOverwrites(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newStore(t, checkpoint.NewMemoryBackend())

	if err := s.Stash(ctx, map[string]string{"progress": "1"}); err != nil {
		t.Fatalf("Stash: %v", err)
	}
	if err := s.Stash(ctx, map[string]string{"progress": "2"}); err != nil {
		t.Fatalf("Stash: %v", err)
	}

	got, ok := s.Pop(ctx, []string{"progress"}).Get("progress")
	if !ok || got != "2" {
		t.Errorf("progress = %q (ok=%v), want \"2\"", got, ok)
	}
}

func TestStore_PopNeverStashed(t *testing.T) {
	t.Parallel()

	s := newStore(t, checkpoint.NewMemoryBackend())

	res := s.Pop(context.Background(), []string{"ghost"})
	if _, ok := res.Get("ghost"); ok {
		t.Error("never-stashed key should be absent")
	}
	if !slices.Equal(res.Missing, []string{"ghost"}) {
		t.Errorf("missing = %v, want [ghost]", res.Missing)
	}
	if res.Status() != checkpoint.PopComplete {
		t.Errorf("status = %s, want complete", res.Status())
	}
}

func TestStore_PopPartialFailure(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := checkpointtest.NewFaultyBackend()
	s := newStore(t, backend)

	if err := s.Stash(ctx, map[string]string{"a": "1", "b": "2", "c": "3"}); err != nil {
		t.Fatalf("Stash: %v", err)
	}

	boom := errors.New("disk on fire")
	backend.FailGet("b", boom)

	res := s.Pop(ctx, []string{"a", "b", "c"})
	if res.Status() != checkpoint.PopPartial {
		t.Errorf("status = %s, want partial", res.Status())
	}
	if _, ok := res.Get("b"); ok {
		t.Error("failed key should not be in values")
	}
	if res.Values["a"] != "1" || res.Values["c"] != "3" {
		t.Errorf("values = %v, want a and c restored", res.Values)
	}
	if !errors.Is(res.Failed["b"], boom) {
		t.Errorf("Failed[b] = %v, want %v", res.Failed["b"], boom)
	}
	if !errors.Is(res.Err(), boom) {
		t.Errorf("Err = %v, want wrapping %v", res.Err(), boom)
	}
}

func TestStore_PopAllFailed(t *testing.T) {
	t.Parallel()

	backend := checkpointtest.NewFaultyBackend()
	s := newStore(t, backend)
	backend.FailGet("a", errors.New("x"))
	backend.FailGet("b", errors.New("y"))

	res := s.Pop(context.Background(), []string{"a", "b"})
	if res.Status() != checkpoint.PopFailed {
		t.Errorf("status = %s, want failed", res.Status())
	}
	if len(res.Values) != 0 {
		t.Errorf("values = %v, want empty", res.Values)
	}
}

func TestStore_PopDeduplicatesKeys(t *testing.T) {
	t.Parallel()

	backend := checkpointtest.NewFaultyBackend()
	s := newStore(t, backend)

	_ = s.Pop(context.Background(), []string{"a", "a", "a"})
	if backend.GetCalls() != 1 {
		t.Errorf("get calls = %d, want 1", backend.GetCalls())
	}
}

func TestStore_StashFailureAborts(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := checkpointtest.NewFaultyBackend()
	s := newStore(t, backend)

	boom := errors.New("quota exceeded")
	backend.FailSet("b", boom)

	err := s.Stash(ctx, map[string]string{"a": "1", "b": "2", "c": "3"})
	if !errors.Is(err, checkpoint.ErrStashFailed) {
		t.Fatalf("err = %v, want ErrStashFailed", err)
	}
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapping %v", err, boom)
	}

	// Keys are written in sorted order: a was written, c never attempted.
	res := s.Pop(ctx, []string{"a", "c"})
	if res.Values["a"] != "1" {
		t.Errorf("a = %q, want \"1\"", res.Values["a"])
	}
	if _, ok := res.Get("c"); ok {
		t.Error("c should not have been written after the failure")
	}
}

func TestStore_StashRejectsReservedAndEmptyKeys(t *testing.T) {
	t.Parallel()

	s := newStore(t, checkpoint.NewMemoryBackend())

	err := s.Stash(context.Background(), map[string]string{checkpoint.LeaseKey: "9:running"})
	if !errors.Is(err, checkpoint.ErrReservedKey) {
		t.Errorf("err = %v, want ErrReservedKey", err)
	}

	err = s.Stash(context.Background(), map[string]string{"": "x"})
	if !errors.Is(err, checkpoint.ErrEmptyKey) {
		t.Errorf("err = %v, want ErrEmptyKey", err)
	}
}

func TestStore_ResetAll(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newStore(t, checkpoint.NewMemoryBackend())

	if err := s.Stash(ctx, map[string]string{"progress": "42", "cursor": "abc"}); err != nil {
		t.Fatalf("Stash: %v", err)
	}
	if _, err := s.AcquireLease(ctx, false); err != nil {
		t.Fatalf("AcquireLease: %v", err)
	}

	if err := s.ResetAll(ctx); err != nil {
		t.Fatalf("ResetAll: %v", err)
	}

	res := s.Pop(ctx, []string{"progress", "cursor"})
	if len(res.Values) != 0 {
		t.Errorf("values after reset = %v, want empty", res.Values)
	}
	if len(res.Missing) != 2 {
		t.Errorf("missing = %v, want both keys", res.Missing)
	}
	if _, ok, _ := s.CurrentLease(ctx); ok {
		t.Error("lease should be gone after reset")
	}
}

func TestStore_ResetAllError(t *testing.T) {
	t.Parallel()

	backend := checkpointtest.NewFaultyBackend()
	backend.FailDeleteAll(errors.New("read-only"))
	s := newStore(t, backend)

	if err := s.ResetAll(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestStore_IdentityIsolation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := checkpoint.NewMemoryBackend()
	alice, _ := checkpoint.NewStore(backend, "alice", nil)
	bob, _ := checkpoint.NewStore(backend, "bob", nil)

	if err := alice.Stash(ctx, map[string]string{"progress": "1"}); err != nil {
		t.Fatalf("Stash: %v", err)
	}
	if _, ok := bob.Pop(ctx, []string{"progress"}).Get("progress"); ok {
		t.Error("bob should not see alice's checkpoint")
	}

	if err := bob.ResetAll(ctx); err != nil {
		t.Fatalf("ResetAll: %v", err)
	}
	if _, ok := alice.Pop(ctx, []string{"progress"}).Get("progress"); !ok {
		t.Error("bob's reset should not touch alice's checkpoint")
	}
}

func TestStore_KeysAndSnapshotHideReserved(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newStore(t, checkpoint.NewMemoryBackend())

	if err := s.Stash(ctx, map[string]string{"b": "2", "a": "1"}); err != nil {
		t.Fatalf("Stash: %v", err)
	}
	if _, err := s.AcquireLease(ctx, false); err != nil {
		t.Fatalf("AcquireLease: %v", err)
	}

	keys, err := s.Keys(ctx)
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	if !slices.Equal(keys, []string{"a", "b"}) {
		t.Errorf("keys = %v, want [a b]", keys)
	}

	snap, err := s.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if !maps.Equal(snap, map[string]string{"a": "1", "b": "2"}) {
		t.Errorf("snapshot = %v", snap)
	}
}

func TestStore_KeysError(t *testing.T) {
	t.Parallel()

	backend := checkpointtest.NewFaultyBackend()
	backend.FailKeys(errors.New("offline"))
	s := newStore(t, backend)

	if _, err := s.Snapshot(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
