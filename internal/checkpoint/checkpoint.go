// Package checkpoint persists job progress as flat string key/value entries
// scoped to an identity, so that a later invocation of the job (possibly in a
// fresh process) can restore it.
package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
)

// ReservedPrefix marks keys owned by runstash itself. Callers cannot stash
// keys with this prefix.
const ReservedPrefix = "_runstash."

// Sentinel errors for checkpoint operations.
var (
	ErrStashFailed   = errors.New("checkpoint: stash failed")
	ErrReservedKey   = errors.New("checkpoint: key uses reserved prefix")
	ErrEmptyKey      = errors.New("checkpoint: empty key")
	ErrEmptyIdentity = errors.New("checkpoint: empty identity")
)

// Backend is durable, identity-scoped key/value storage.
// Implementations must be safe for concurrent use.
type Backend interface {
	// Set writes value under key, overwriting any existing value.
	Set(ctx context.Context, identity, key, value string) error

	// Get returns the value under key. ok is false when the key is absent.
	Get(ctx context.Context, identity, key string) (value string, ok bool, err error)

	// Keys lists every key persisted for identity.
	Keys(ctx context.Context, identity string) ([]string, error)

	// DeleteAll removes every key persisted for identity.
	DeleteAll(ctx context.Context, identity string) error

	// CompareAndSwap atomically replaces the value under key with newValue if
	// the current value equals oldValue (or, when oldPresent is false, if the
	// key is absent). It reports whether the swap happened.
	CompareAndSwap(ctx context.Context, identity, key, oldValue, newValue string, oldPresent bool) (bool, error)
}

// Store is the checkpoint store for one identity.
type Store struct {
	backend  Backend
	identity string
	logger   *slog.Logger
}

// NewStore creates a Store writing to backend under identity.
func NewStore(backend Backend, identity string, logger *slog.Logger) (*Store, error) {
	if identity == "" {
		return nil, ErrEmptyIdentity
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		backend:  backend,
		identity: identity,
		logger:   logger.With("identity", identity),
	}, nil
}

// Identity returns the identity this store is scoped to.
func (s *Store) Identity() string { return s.identity }

// Stash writes every entry, overwriting existing values. Keys are written in
// sorted order; the first failed write aborts the stash and is returned
// wrapped in ErrStashFailed. Entries written before the failure stay written.
func (s *Store) Stash(ctx context.Context, entries map[string]string) error {
	keys := make([]string, 0, len(entries))
	for key := range entries {
		if err := validateKey(key); err != nil {
			return err
		}
		keys = append(keys, key)
	}
	slices.Sort(keys)

	for _, key := range keys {
		value := entries[key]
		s.logger.Debug("checkpoint: stashing key", "key", key, "value", value)
		if err := s.backend.Set(ctx, s.identity, key, value); err != nil {
			return fmt.Errorf("%w: key %q: %w", ErrStashFailed, key, err)
		}
	}
	s.logger.Info("checkpoint: stashed", "keys", len(keys))
	return nil
}

// Pop reads every requested key. It never fails as a whole: individual read
// errors are logged and reported in the result. Pop does not delete anything.
func (s *Store) Pop(ctx context.Context, keys []string) PopResult {
	res := PopResult{
		Values: make(map[string]string, len(keys)),
	}
	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		res.order = append(res.order, key)

		value, ok, err := s.backend.Get(ctx, s.identity, key)
		switch {
		case err != nil:
			s.logger.Warn("checkpoint: read failed", "key", key, "error", err)
			if res.Failed == nil {
				res.Failed = make(map[string]error)
			}
			res.Failed[key] = err
		case !ok:
			s.logger.Debug("checkpoint: key absent", "key", key)
			res.Missing = append(res.Missing, key)
		default:
			s.logger.Debug("checkpoint: restored key", "key", key, "value", value)
			res.Values[key] = value
		}
	}
	s.logger.Info("checkpoint: popped",
		"restored", len(res.Values),
		"missing", len(res.Missing),
		"failed", len(res.Failed),
	)
	return res
}

// ResetAll irreversibly deletes every key persisted for the identity,
// including the resume lease.
func (s *Store) ResetAll(ctx context.Context) error {
	if err := s.backend.DeleteAll(ctx, s.identity); err != nil {
		return fmt.Errorf("checkpoint: reset: %w", err)
	}
	s.logger.Info("checkpoint: reset all keys")
	return nil
}

// Keys lists the caller-visible keys currently persisted, sorted.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	all, err := s.backend.Keys(ctx, s.identity)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: list keys: %w", err)
	}
	keys := make([]string, 0, len(all))
	for _, k := range all {
		if !strings.HasPrefix(k, ReservedPrefix) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys, nil
}

// Snapshot returns every caller-visible entry currently persisted.
func (s *Store) Snapshot(ctx context.Context) (map[string]string, error) {
	keys, err := s.Keys(ctx)
	if err != nil {
		return nil, err
	}
	res := s.Pop(ctx, keys)
	if len(res.Failed) > 0 {
		return res.Values, res.Err()
	}
	return res.Values, nil
}

func validateKey(key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if strings.HasPrefix(key, ReservedPrefix) {
		return fmt.Errorf("%w: %q", ErrReservedKey, key)
	}
	return nil
}
