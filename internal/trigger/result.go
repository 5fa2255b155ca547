package trigger

import "errors"

// ScheduleStatus summarizes a ScheduleResume call.
type ScheduleStatus string

const (
	// Scheduled means every redundant timer was created.
	Scheduled ScheduleStatus = "scheduled"
	// SchedulePartial means at least one, but not every, timer was created.
	SchedulePartial ScheduleStatus = "partial"
	// ScheduleFailed means no timer was created; the job will not resume on
	// its own.
	ScheduleFailed ScheduleStatus = "failed"
)

// ScheduleResult reports what ScheduleResume actually registered.
type ScheduleResult struct {
	Created []Timer
	Failed  []error

	// ClearErr holds failures from the clear pass that preceded scheduling.
	// Stale timers may still be registered when it is non-nil.
	ClearErr error
}

// Status reports whether the resume plan was fully, partially or not at all
// registered.
func (r ScheduleResult) Status() ScheduleStatus {
	switch {
	case len(r.Created) == 0:
		return ScheduleFailed
	case len(r.Failed) > 0:
		return SchedulePartial
	default:
		return Scheduled
	}
}

// Err joins the creation failures, or returns nil.
func (r ScheduleResult) Err() error {
	return errors.Join(r.Failed...)
}
