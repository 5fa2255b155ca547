package resume

import (
	"fmt"
	"maps"
	"strconv"
	"time"
)

// State is the job's checkpointable progress. Values are always strings;
// the typed helpers handle the conversions.
type State map[string]string

// Get returns the raw value under key.
func (s State) Get(key string) (string, bool) {
	v, ok := s[key]
	return v, ok
}

// String returns the value under key, or def when absent.
func (s State) String(key, def string) string {
	if v, ok := s[key]; ok {
		return v
	}
	return def
}

// Set stores value under key.
func (s State) Set(key, value string) { s[key] = value }

// Int parses the value under key, returning def when absent.
func (s State) Int(key string, def int) (int, error) {
	v, ok := s[key]
	if !ok {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("resume: state %q is not an integer: %w", key, err)
	}
	return n, nil
}

// SetInt stores n under key.
func (s State) SetInt(key string, n int) { s[key] = strconv.Itoa(n) }

// Bool parses the value under key, returning def when absent.
func (s State) Bool(key string, def bool) (bool, error) {
	v, ok := s[key]
	if !ok {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, fmt.Errorf("resume: state %q is not a boolean: %w", key, err)
	}
	return b, nil
}

// SetBool stores b under key.
func (s State) SetBool(key string, b bool) { s[key] = strconv.FormatBool(b) }

// Time parses an RFC 3339 timestamp under key, returning def when absent.
func (s State) Time(key string, def time.Time) (time.Time, error) {
	v, ok := s[key]
	if !ok {
		return def, nil
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return def, fmt.Errorf("resume: state %q is not a timestamp: %w", key, err)
	}
	return t, nil
}

// SetTime stores t under key in RFC 3339 form.
func (s State) SetTime(key string, t time.Time) { s[key] = t.UTC().Format(time.RFC3339Nano) }

// Clone returns an independent copy.
func (s State) Clone() State { return maps.Clone(s) }
