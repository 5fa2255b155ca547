package trigger

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryHost is an in-process Host. Timers are lost when the process exits.
type MemoryHost struct {
	mu     sync.Mutex
	timers map[string]Timer
	now    func() time.Time
}

// NewMemoryHost creates an empty in-memory host. A nil clock uses time.Now.
func NewMemoryHost(clock func() time.Time) *MemoryHost {
	if clock == nil {
		clock = time.Now
	}
	return &MemoryHost{
		timers: make(map[string]Timer),
		now:    clock,
	}
}

// Compile-time interface check.
var _ Host = (*MemoryHost)(nil)

// CreateTimer implements Host.
func (h *MemoryHost) CreateTimer(_ context.Context, target string, after time.Duration) (Timer, error) {
	return h.add(target, ScopeProject, after), nil
}

// CreateContextTimer registers a timer in ScopeContext.
func (h *MemoryHost) CreateContextTimer(_ context.Context, target string, after time.Duration) (Timer, error) {
	return h.add(target, ScopeContext, after), nil
}

func (h *MemoryHost) add(target string, scope Scope, after time.Duration) Timer {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.now()
	t := Timer{
		ID:        uuid.NewString(),
		Target:    target,
		Scope:     scope,
		FireAt:    now.Add(after),
		CreatedAt: now,
	}
	h.timers[t.ID] = t
	return t
}

// ListTimers implements Host. Timers are ordered by fire time.
func (h *MemoryHost) ListTimers(_ context.Context, scope Scope) ([]Timer, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var out []Timer
	for _, t := range h.timers {
		if t.Scope == scope {
			out = append(out, t)
		}
	}
	slices.SortFunc(out, func(a, b Timer) int {
		if c := a.FireAt.Compare(b.FireAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

// DeleteTimer implements Host.
func (h *MemoryHost) DeleteTimer(_ context.Context, t Timer) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.timers[t.ID]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, t.ID)
	}
	delete(h.timers, t.ID)
	return nil
}

// Len returns the number of registered timers across both scopes.
func (h *MemoryHost) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.timers)
}
