package checkpointtest

import (
	"context"
	"slices"
	"testing"

	"github.com/flemzord/runstash/internal/checkpoint"
)

// RunBackendSuite exercises the behaviour every checkpoint.Backend must
// share. newBackend is called once per subtest and must return an empty
// backend.
func RunBackendSuite(t *testing.T, newBackend func(t *testing.T) checkpoint.Backend) {
	t.Helper()

	t.Run("SetGetOverwrite", func(t *testing.T) {
		ctx := context.Background()
		b := newBackend(t)

		if _, ok, err := b.Get(ctx, "alice", "progress"); err != nil || ok {
			t.Fatalf("Get absent = ok %v, err %v; want false, nil", ok, err)
		}
		for _, v := range []string{"1", "2", ""} {
			if err := b.Set(ctx, "alice", "progress", v); err != nil {
				t.Fatalf("Set(%q): %v", v, err)
			}
			got, ok, err := b.Get(ctx, "alice", "progress")
			if err != nil || !ok || got != v {
				t.Fatalf("Get = %q, %v, %v; want %q, true, nil", got, ok, err, v)
			}
		}
	})

	t.Run("KeysAndDeleteAllAreScoped", func(t *testing.T) {
		ctx := context.Background()
		b := newBackend(t)

		for _, kv := range [][3]string{
			{"alice", "progress", "1"},
			{"alice", "cursor", "x"},
			{"bob", "progress", "9"},
		} {
			if err := b.Set(ctx, kv[0], kv[1], kv[2]); err != nil {
				t.Fatalf("Set: %v", err)
			}
		}

		keys, err := b.Keys(ctx, "alice")
		if err != nil {
			t.Fatalf("Keys: %v", err)
		}
		slices.Sort(keys)
		if !slices.Equal(keys, []string{"cursor", "progress"}) {
			t.Errorf("Keys(alice) = %v", keys)
		}

		if err := b.DeleteAll(ctx, "alice"); err != nil {
			t.Fatalf("DeleteAll: %v", err)
		}
		if keys, _ := b.Keys(ctx, "alice"); len(keys) != 0 {
			t.Errorf("Keys(alice) after DeleteAll = %v", keys)
		}
		if v, ok, _ := b.Get(ctx, "bob", "progress"); !ok || v != "9" {
			t.Errorf("bob lost his state: %q, %v", v, ok)
		}
	})

	t.Run("CompareAndSwap", func(t *testing.T) {
		ctx := context.Background()
		b := newBackend(t)

		swapped, err := b.CompareAndSwap(ctx, "alice", "lease", "", "1:running", false)
		if err != nil || !swapped {
			t.Fatalf("CAS from absent = %v, %v; want true", swapped, err)
		}
		swapped, err = b.CompareAndSwap(ctx, "alice", "lease", "", "1:running", false)
		if err != nil || swapped {
			t.Fatalf("CAS from absent when present = %v, %v; want false", swapped, err)
		}
		swapped, err = b.CompareAndSwap(ctx, "alice", "lease", "0:suspended", "2:running", true)
		if err != nil || swapped {
			t.Fatalf("CAS with stale old value = %v, %v; want false", swapped, err)
		}
		swapped, err = b.CompareAndSwap(ctx, "alice", "lease", "1:running", "1:suspended", true)
		if err != nil || !swapped {
			t.Fatalf("CAS with current old value = %v, %v; want true", swapped, err)
		}
		if v, _, _ := b.Get(ctx, "alice", "lease"); v != "1:suspended" {
			t.Errorf("lease = %q, want 1:suspended", v)
		}
		swapped, err = b.CompareAndSwap(ctx, "bob", "lease", "1:suspended", "2:running", true)
		if err != nil || swapped {
			t.Fatalf("CAS across identities = %v, %v; want false", swapped, err)
		}
	})
}
