// Package triggertest provides test doubles for the trigger package.
package triggertest

import (
	"context"
	"sync"
	"time"

	"github.com/flemzord/runstash/internal/trigger"
)

// FaultyHost wraps an in-memory host and lets tests inject failures.
type FaultyHost struct {
	*trigger.MemoryHost

	mu          sync.Mutex
	createErrs  map[int]error // 1-based create call number → error
	createAll   error
	listErrs    map[trigger.Scope]error
	deleteErrs  map[string]error // timer ID → error
	createCalls int
	deleteCalls int
	afters      []time.Duration
}

// NewFaultyHost creates a FaultyHost with no failures configured.
func NewFaultyHost(clock func() time.Time) *FaultyHost {
	return &FaultyHost{
		MemoryHost: trigger.NewMemoryHost(clock),
		createErrs: make(map[int]error),
		listErrs:   make(map[trigger.Scope]error),
		deleteErrs: make(map[string]error),
	}
}

// Compile-time interface check.
var _ trigger.Host = (*FaultyHost)(nil)

// FailCreateCall makes the n-th CreateTimer call (1-based) return err.
func (f *FaultyHost) FailCreateCall(n int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createErrs[n] = err
}

// FailAllCreates makes every CreateTimer call return err. A nil err clears it.
func (f *FaultyHost) FailAllCreates(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createAll = err
}

// FailList makes ListTimers for scope return err.
func (f *FaultyHost) FailList(scope trigger.Scope, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listErrs[scope] = err
}

// FailDelete makes DeleteTimer of the timer with id return err.
func (f *FaultyHost) FailDelete(id string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteErrs[id] = err
}

// CreateTimer implements trigger.Host.
func (f *FaultyHost) CreateTimer(ctx context.Context, target string, after time.Duration) (trigger.Timer, error) {
	f.mu.Lock()
	f.createCalls++
	err := f.createErrs[f.createCalls]
	if f.createAll != nil {
		err = f.createAll
	}
	f.afters = append(f.afters, after)
	f.mu.Unlock()
	if err != nil {
		return trigger.Timer{}, err
	}
	return f.MemoryHost.CreateTimer(ctx, target, after)
}

// ListTimers implements trigger.Host.
func (f *FaultyHost) ListTimers(ctx context.Context, scope trigger.Scope) ([]trigger.Timer, error) {
	f.mu.Lock()
	err := f.listErrs[scope]
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.MemoryHost.ListTimers(ctx, scope)
}

// DeleteTimer implements trigger.Host.
func (f *FaultyHost) DeleteTimer(ctx context.Context, t trigger.Timer) error {
	f.mu.Lock()
	f.deleteCalls++
	err := f.deleteErrs[t.ID]
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.MemoryHost.DeleteTimer(ctx, t)
}

// CreateCalls returns how many times CreateTimer was called.
func (f *FaultyHost) CreateCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.createCalls
}

// DeleteCalls returns how many times DeleteTimer was called.
func (f *FaultyHost) DeleteCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deleteCalls
}

// RequestedDelays returns the delay of every CreateTimer call, in order.
func (f *FaultyHost) RequestedDelays() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]time.Duration, len(f.afters))
	copy(out, f.afters)
	return out
}
