// Package trigger schedules future re-invocations of a named entry point on a
// host timer facility, with redundant, increasingly delayed timers to hedge
// against unreliable delivery.
package trigger

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors for trigger operations.
var (
	ErrEmptyTarget  = errors.New("trigger: empty target")
	ErrInvalidDelay = errors.New("trigger: delay must be positive")
	ErrNotFound     = errors.New("trigger: timer not found")
)

// Scope is one of the two registration scopes a host exposes.
type Scope string

const (
	// ScopeProject holds timers registered globally for the job.
	ScopeProject Scope = "project"
	// ScopeContext holds timers tied to the document or context the host was
	// opened with.
	ScopeContext Scope = "context"
)

// Scopes lists every scope ClearAll sweeps, in sweep order.
var Scopes = []Scope{ScopeProject, ScopeContext}

// Timer is a host-owned scheduled invocation of Target.
type Timer struct {
	ID        string    `json:"id"`
	Target    string    `json:"target"`
	Scope     Scope     `json:"scope"`
	FireAt    time.Time `json:"fire_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Host is the timer facility. New timers are created in ScopeProject.
// Implementations must be safe for concurrent use.
type Host interface {
	CreateTimer(ctx context.Context, target string, after time.Duration) (Timer, error)
	ListTimers(ctx context.Context, scope Scope) ([]Timer, error)
	DeleteTimer(ctx context.Context, t Timer) error
}

// Multipliers are the delay factors of the redundant timers created by
// ScheduleResume: d, 2d and 4d.
var Multipliers = []int{1, 2, 4}
