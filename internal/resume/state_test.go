package resume

import (
	"testing"
	"time"
)

func TestState_Helpers(t *testing.T) {
	t.Parallel()

	s := State{}

	if n, err := s.Int("count", 7); err != nil || n != 7 {
		t.Errorf("Int absent = (%d, %v), want (7, nil)", n, err)
	}
	s.SetInt("count", 42)
	if n, err := s.Int("count", 0); err != nil || n != 42 {
		t.Errorf("Int = (%d, %v), want (42, nil)", n, err)
	}

	s.SetBool("flag", true)
	if b, err := s.Bool("flag", false); err != nil || !b {
		t.Errorf("Bool = (%v, %v), want (true, nil)", b, err)
	}

	ts := time.Date(2026, 2, 3, 4, 5, 6, 7, time.UTC)
	s.SetTime("at", ts)
	if got, err := s.Time("at", time.Time{}); err != nil || !got.Equal(ts) {
		t.Errorf("Time = (%v, %v), want %v", got, err, ts)
	}

	if got := s.String("missing", "def"); got != "def" {
		t.Errorf("String = %q, want def", got)
	}
}

func TestState_MalformedValues(t *testing.T) {
	t.Parallel()

	s := State{"n": "x", "b": "maybe", "t": "yesterday"}

	if _, err := s.Int("n", 0); err == nil {
		t.Error("expected Int error")
	}
	if _, err := s.Bool("b", false); err == nil {
		t.Error("expected Bool error")
	}
	if _, err := s.Time("t", time.Time{}); err == nil {
		t.Error("expected Time error")
	}
}

func TestState_Clone(t *testing.T) {
	t.Parallel()

	s := State{"a": "1"}
	c := s.Clone()
	c.Set("a", "2")
	if s["a"] != "1" {
		t.Error("clone should not alias the original")
	}
}
