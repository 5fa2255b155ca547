// Package entry is the registry of named, zero-argument entry points that
// resume timers invoke. Entry points must be safe to call with no prior
// in-memory state.
package entry

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
)

// Func is an entry point. It receives only a context: everything else must
// be rebuilt from configuration and the checkpoint store.
type Func func(ctx context.Context) error

// ErrUnknown is returned by Invoke for unregistered names.
var ErrUnknown = errors.New("entry: unknown entry point")

var (
	entries   = make(map[string]Func)
	entriesMu sync.RWMutex
)

// Register adds an entry point under name. It panics if name is empty, fn is
// nil or name is already taken. Intended to be called from init() functions.
func Register(name string, fn Func) {
	if name == "" {
		panic("entry point name must not be empty")
	}
	if fn == nil {
		panic(fmt.Sprintf("entry point %s: func must not be nil", name))
	}

	entriesMu.Lock()
	defer entriesMu.Unlock()

	if _, exists := entries[name]; exists {
		panic(fmt.Sprintf("entry point already registered: %s", name))
	}
	entries[name] = fn
}

// Lookup returns the entry point registered under name.
func Lookup(name string) (Func, bool) {
	entriesMu.RLock()
	defer entriesMu.RUnlock()
	fn, ok := entries[name]
	return fn, ok
}

// Names returns every registered name, sorted.
func Names() []string {
	entriesMu.RLock()
	defer entriesMu.RUnlock()

	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Invoke runs the entry point registered under name.
func Invoke(ctx context.Context, name string) error {
	fn, ok := Lookup(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknown, name)
	}
	return fn(ctx)
}

// resetRegistry clears the registry. Only for testing.
func resetRegistry() {
	entriesMu.Lock()
	defer entriesMu.Unlock()
	entries = make(map[string]Func)
}
