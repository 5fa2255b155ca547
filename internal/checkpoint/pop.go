package checkpoint

import (
	"errors"
	"fmt"
)

// PopStatus summarizes how much of a Pop succeeded.
type PopStatus string

const (
	// PopComplete means every requested key was read (present or absent).
	PopComplete PopStatus = "complete"
	// PopPartial means some reads failed but at least one succeeded.
	PopPartial PopStatus = "partial"
	// PopFailed means every requested key failed to read.
	PopFailed PopStatus = "failed"
)

// PopResult is the outcome of Store.Pop. Every requested key lands in exactly
// one of Values, Missing or Failed.
type PopResult struct {
	Values  map[string]string
	Missing []string
	Failed  map[string]error

	order []string
}

// Get returns the restored value for key.
func (r PopResult) Get(key string) (string, bool) {
	v, ok := r.Values[key]
	return v, ok
}

// Status reports whether the pop was complete, partial or failed.
func (r PopResult) Status() PopStatus {
	switch {
	case len(r.Failed) == 0:
		return PopComplete
	case len(r.Failed) == len(r.order):
		return PopFailed
	default:
		return PopPartial
	}
}

// Err joins the per-key read failures in request order, or returns nil.
func (r PopResult) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	errs := make([]error, 0, len(r.Failed))
	for _, key := range r.order {
		if err, ok := r.Failed[key]; ok {
			errs = append(errs, fmt.Errorf("checkpoint: key %q: %w", key, err))
		}
	}
	return errors.Join(errs...)
}
