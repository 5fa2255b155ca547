package entry

import (
	"context"
	"errors"
	"slices"
	"testing"
)

func TestRegistry(t *testing.T) {
	resetRegistry()
	t.Cleanup(resetRegistry)

	var calls int
	Register("continueJob", func(context.Context) error { calls++; return nil })
	Register("alpha", func(context.Context) error { return errors.New("nope") })

	if got := Names(); !slices.Equal(got, []string{"alpha", "continueJob"}) {
		t.Errorf("Names = %v, want sorted [alpha continueJob]", got)
	}

	if err := Invoke(context.Background(), "continueJob"); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}

	if err := Invoke(context.Background(), "alpha"); err == nil {
		t.Error("expected entry point error to propagate")
	}

	if err := Invoke(context.Background(), "ghost"); !errors.Is(err, ErrUnknown) {
		t.Errorf("err = %v, want ErrUnknown", err)
	}
}

func TestRegister_Panics(t *testing.T) {
	resetRegistry()
	t.Cleanup(resetRegistry)

	noop := func(context.Context) error { return nil }
	Register("dup", noop)

	tests := []struct {
		name string
		fn   func()
	}{
		{"empty name", func() { Register("", noop) }},
		{"nil func", func() { Register("x", nil) }},
		{"duplicate", func() { Register("dup", noop) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Error("expected panic")
				}
			}()
			tt.fn()
		})
	}
}
