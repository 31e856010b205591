package cierrors

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	err := New(KindIsolation, "mount failed")
	kind, ok := KindOf(err)
	if !ok || kind != KindIsolation {
		t.Fatalf("expected isolation kind, got %q (ok=%v)", kind, ok)
	}

	wrapped := fmt.Errorf("stage failed: %w", err)
	kind, ok = KindOf(wrapped)
	if !ok || kind != KindIsolation {
		t.Fatalf("kind not preserved through wrapping: %q (ok=%v)", kind, ok)
	}

	if _, ok := KindOf(errors.New("plain")); ok {
		t.Fatal("plain error should not carry a kind")
	}
}

func TestExitCodes(t *testing.T) {
	a := NewCLIAdapter(false, nil)

	cases := []struct {
		name string
		err  error
		code int
	}{
		{"nil", nil, 0},
		{"configuration", New(KindConfiguration, "board identifier is required"), 1},
		{"build with status", New(KindBuild, "distclean failed").WithStatus(2), 2},
		{"custom command status passthrough", New(KindBuild, "custom command failed").WithStatus(42), 42},
		{"acquisition without status", New(KindAcquisition, "clone failed"), 1},
		{"untyped", errors.New("boom"), 1},
	}

	for _, tc := range cases {
		if got := a.ExitCodeFor(tc.err); got != tc.code {
			t.Errorf("%s: expected exit code %d, got %d", tc.name, tc.code, got)
		}
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("permission denied")
	err := Wrap(KindIsolation, "attach dl cache", cause)
	if !errors.Is(err, cause) {
		t.Fatal("wrapped cause not reachable via errors.Is")
	}
}
