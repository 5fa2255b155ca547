// Package quota measures elapsed wall-clock time against a per-invocation
// runtime budget.
package quota

import "time"

// Exceeded reports whether more than maxRuntime has elapsed since start.
// The comparison is strict: exactly maxRuntime elapsed is not exceeded.
func Exceeded(start time.Time, maxRuntime time.Duration) bool {
	return ExceededAt(time.Now(), start, maxRuntime)
}

// ExceededAt is Exceeded evaluated at a caller-supplied instant.
func ExceededAt(now, start time.Time, maxRuntime time.Duration) bool {
	return now.Sub(start) > maxRuntime
}

// Window is the runtime budget of a single invocation. It is never persisted;
// every resumed invocation opens a fresh one.
type Window struct {
	StartedAt  time.Time
	MaxRuntime time.Duration

	now func() time.Time
}

// NewWindow opens a window starting now.
func NewWindow(maxRuntime time.Duration) Window {
	return NewWindowWithClock(maxRuntime, time.Now)
}

// NewWindowWithClock opens a window using clock for both the start stamp and
// subsequent checks. A nil clock falls back to time.Now.
func NewWindowWithClock(maxRuntime time.Duration, clock func() time.Time) Window {
	if clock == nil {
		clock = time.Now
	}
	return Window{
		StartedAt:  clock(),
		MaxRuntime: maxRuntime,
		now:        clock,
	}
}

func (w Window) clock() time.Time {
	if w.now == nil {
		return time.Now()
	}
	return w.now()
}

// Exceeded reports whether the window's budget has been used up.
func (w Window) Exceeded() bool {
	return ExceededAt(w.clock(), w.StartedAt, w.MaxRuntime)
}

// Elapsed returns the time spent since the window opened.
func (w Window) Elapsed() time.Duration {
	return w.clock().Sub(w.StartedAt)
}

// Remaining returns the budget left, or zero once exceeded.
func (w Window) Remaining() time.Duration {
	if left := w.MaxRuntime - w.Elapsed(); left > 0 {
		return left
	}
	return 0
}
