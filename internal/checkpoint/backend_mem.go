package checkpoint

import (
	"context"
	"sync"
)

// MemoryBackend is a thread-safe, in-process Backend. State does not survive
// process exit, so it only suits tests and single-process runs.
type MemoryBackend struct {
	mu   sync.RWMutex
	data map[string]map[string]string // identity → key → value
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		data: make(map[string]map[string]string),
	}
}

// Compile-time interface check.
var _ Backend = (*MemoryBackend)(nil)

// Set implements Backend.
func (b *MemoryBackend) Set(_ context.Context, identity, key, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	scope, ok := b.data[identity]
	if !ok {
		scope = make(map[string]string)
		b.data[identity] = scope
	}
	scope[key] = value
	return nil
}

// Get implements Backend.
func (b *MemoryBackend) Get(_ context.Context, identity, key string) (string, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	v, ok := b.data[identity][key]
	return v, ok, nil
}

// Keys implements Backend.
func (b *MemoryBackend) Keys(_ context.Context, identity string) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	keys := make([]string, 0, len(b.data[identity]))
	for k := range b.data[identity] {
		keys = append(keys, k)
	}
	return keys, nil
}

// DeleteAll implements Backend.
func (b *MemoryBackend) DeleteAll(_ context.Context, identity string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.data, identity)
	return nil
}

// CompareAndSwap implements Backend.
func (b *MemoryBackend) CompareAndSwap(_ context.Context, identity, key, oldValue, newValue string, oldPresent bool) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	scope, ok := b.data[identity]
	if !ok {
		scope = make(map[string]string)
		b.data[identity] = scope
	}
	current, present := scope[key]
	if present != oldPresent || (present && current != oldValue) {
		return false, nil
	}
	scope[key] = newValue
	return true, nil
}
