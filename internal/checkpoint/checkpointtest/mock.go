// Package checkpointtest provides test doubles for the checkpoint package.
package checkpointtest

import (
	"context"
	"sync"

	"github.com/flemzord/runstash/internal/checkpoint"
)

// FaultyBackend wraps an in-memory backend and lets tests inject failures
// per operation and per key.
type FaultyBackend struct {
	*checkpoint.MemoryBackend

	mu         sync.Mutex
	setErrs    map[string]error
	getErrs    map[string]error
	deleteErr  error
	keysErr    error
	casErr     error
	setCalls   int
	getCalls   int
	casCalls   int
	beforeSwap func()
}

// NewFaultyBackend creates a FaultyBackend with no failures configured.
func NewFaultyBackend() *FaultyBackend {
	return &FaultyBackend{
		MemoryBackend: checkpoint.NewMemoryBackend(),
		setErrs:       make(map[string]error),
		getErrs:       make(map[string]error),
	}
}

// Compile-time interface check.
var _ checkpoint.Backend = (*FaultyBackend)(nil)

// FailSet makes every Set of key return err. A nil err clears the failure.
func (f *FaultyBackend) FailSet(key string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.setErrs, key)
		return
	}
	f.setErrs[key] = err
}

// FailGet makes every Get of key return err. A nil err clears the failure.
func (f *FaultyBackend) FailGet(key string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.getErrs, key)
		return
	}
	f.getErrs[key] = err
}

// FailDeleteAll makes DeleteAll return err.
func (f *FaultyBackend) FailDeleteAll(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteErr = err
}

// FailKeys makes Keys return err.
func (f *FaultyBackend) FailKeys(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keysErr = err
}

// FailCompareAndSwap makes CompareAndSwap return err.
func (f *FaultyBackend) FailCompareAndSwap(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.casErr = err
}

// BeforeSwap registers fn to run inside CompareAndSwap before the swap is
// attempted, simulating a concurrent writer.
func (f *FaultyBackend) BeforeSwap(fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.beforeSwap = fn
}

// Set implements checkpoint.Backend.
func (f *FaultyBackend) Set(ctx context.Context, identity, key, value string) error {
	f.mu.Lock()
	f.setCalls++
	err := f.setErrs[key]
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.MemoryBackend.Set(ctx, identity, key, value)
}

// Get implements checkpoint.Backend.
func (f *FaultyBackend) Get(ctx context.Context, identity, key string) (string, bool, error) {
	f.mu.Lock()
	f.getCalls++
	err := f.getErrs[key]
	f.mu.Unlock()
	if err != nil {
		return "", false, err
	}
	return f.MemoryBackend.Get(ctx, identity, key)
}

// Keys implements checkpoint.Backend.
func (f *FaultyBackend) Keys(ctx context.Context, identity string) ([]string, error) {
	f.mu.Lock()
	err := f.keysErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.MemoryBackend.Keys(ctx, identity)
}

// DeleteAll implements checkpoint.Backend.
func (f *FaultyBackend) DeleteAll(ctx context.Context, identity string) error {
	f.mu.Lock()
	err := f.deleteErr
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.MemoryBackend.DeleteAll(ctx, identity)
}

// CompareAndSwap implements checkpoint.Backend.
func (f *FaultyBackend) CompareAndSwap(ctx context.Context, identity, key, oldValue, newValue string, oldPresent bool) (bool, error) {
	f.mu.Lock()
	f.casCalls++
	err := f.casErr
	hook := f.beforeSwap
	f.beforeSwap = nil
	f.mu.Unlock()
	if err != nil {
		return false, err
	}
	if hook != nil {
		hook()
	}
	return f.MemoryBackend.CompareAndSwap(ctx, identity, key, oldValue, newValue, oldPresent)
}

// SetCalls returns how many times Set was called.
func (f *FaultyBackend) SetCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.setCalls
}

// GetCalls returns how many times Get was called.
func (f *FaultyBackend) GetCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getCalls
}
