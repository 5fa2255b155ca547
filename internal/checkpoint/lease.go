package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// LeaseKey is where the single-writer lease is persisted.
const LeaseKey = ReservedPrefix + "lease"

// ErrSuperseded means another invocation currently holds (or has moved past)
// the lease this invocation expected.
var ErrSuperseded = errors.New("checkpoint: superseded by another invocation")

// LeasePhase is the state recorded alongside the lease generation.
type LeasePhase string

const (
	// LeaseRunning means an invocation is consuming the checkpoint.
	LeaseRunning LeasePhase = "running"
	// LeaseSuspended means the last holder checkpointed and exited.
	LeaseSuspended LeasePhase = "suspended"
)

// Lease is a generation-stamped claim on the checkpoint. Each successful
// acquisition increments the generation.
type Lease struct {
	Generation uint64
	Phase      LeasePhase
}

func (l Lease) String() string {
	return strconv.FormatUint(l.Generation, 10) + ":" + string(l.Phase)
}

// ParseLease decodes a persisted lease value.
func ParseLease(raw string) (Lease, error) {
	gen, phase, ok := strings.Cut(raw, ":")
	if !ok {
		return Lease{}, fmt.Errorf("checkpoint: malformed lease %q", raw)
	}
	n, err := strconv.ParseUint(gen, 10, 64)
	if err != nil {
		return Lease{}, fmt.Errorf("checkpoint: malformed lease generation %q: %w", raw, err)
	}
	switch p := LeasePhase(phase); p {
	case LeaseRunning, LeaseSuspended:
		return Lease{Generation: n, Phase: p}, nil
	default:
		return Lease{}, fmt.Errorf("checkpoint: unknown lease phase %q", phase)
	}
}

// CurrentLease returns the persisted lease. ok is false when none exists.
func (s *Store) CurrentLease(ctx context.Context) (lease Lease, ok bool, err error) {
	raw, ok, err := s.backend.Get(ctx, s.identity, LeaseKey)
	if err != nil {
		return Lease{}, false, fmt.Errorf("checkpoint: read lease: %w", err)
	}
	if !ok {
		return Lease{}, false, nil
	}
	lease, err = ParseLease(raw)
	if err != nil {
		return Lease{}, false, err
	}
	return lease, true, nil
}

// AcquireLease claims the checkpoint for this invocation. It atomically moves
// the lease from suspended (or absent) at generation N to running at N+1.
// A lease found running belongs to another live invocation and yields
// ErrSuperseded, unless force is set, in which case it is taken over.
func (s *Store) AcquireLease(ctx context.Context, force bool) (Lease, error) {
	raw, present, err := s.backend.Get(ctx, s.identity, LeaseKey)
	if err != nil {
		return Lease{}, fmt.Errorf("checkpoint: read lease: %w", err)
	}

	var current Lease
	if present {
		current, err = ParseLease(raw)
		if err != nil {
			if !force {
				return Lease{}, err
			}
			s.logger.Warn("checkpoint: overwriting malformed lease", "lease", raw)
		}
		if current.Phase == LeaseRunning && !force {
			return Lease{}, fmt.Errorf("%w: lease %s is held", ErrSuperseded, raw)
		}
	}

	next := Lease{Generation: current.Generation + 1, Phase: LeaseRunning}
	swapped, err := s.backend.CompareAndSwap(ctx, s.identity, LeaseKey, raw, next.String(), present)
	if err != nil {
		return Lease{}, fmt.Errorf("checkpoint: acquire lease: %w", err)
	}
	if !swapped {
		return Lease{}, fmt.Errorf("%w: lease changed while acquiring", ErrSuperseded)
	}

	s.logger.Info("checkpoint: lease acquired", "generation", next.Generation, "forced", force && current.Phase == LeaseRunning)
	return next, nil
}

// ReleaseLease marks the lease held by this invocation as suspended. If the
// lease moved on in the meantime, ErrSuperseded is returned.
func (s *Store) ReleaseLease(ctx context.Context, held Lease) error {
	if held.Phase != LeaseRunning {
		return fmt.Errorf("checkpoint: release of lease in phase %q", held.Phase)
	}
	released := Lease{Generation: held.Generation, Phase: LeaseSuspended}
	swapped, err := s.backend.CompareAndSwap(ctx, s.identity, LeaseKey, held.String(), released.String(), true)
	if err != nil {
		return fmt.Errorf("checkpoint: release lease: %w", err)
	}
	if !swapped {
		return fmt.Errorf("%w: lease %s no longer held", ErrSuperseded, held)
	}
	s.logger.Info("checkpoint: lease released", "generation", held.Generation)
	return nil
}
