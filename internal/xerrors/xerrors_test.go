package xerrors

import (
	"errors"
	"testing"
)

func TestWrapNilIsNil(t *testing.T) {
	if Wrap(nil, "nothing") != nil {
		t.Fatal("Wrap(nil) should be nil")
	}
	if Wrapf(nil, "nothing %d", 1) != nil {
		t.Fatal("Wrapf(nil) should be nil")
	}
	if WithStack(nil) != nil {
		t.Fatal("WithStack(nil) should be nil")
	}
	if EnsureTrace(nil) != nil {
		t.Fatal("EnsureTrace(nil) should be nil")
	}
}

func TestWrapMessageAndUnwrap(t *testing.T) {
	base := errors.New("boom")
	err := Wrap(base, "doing thing")
	if err.Error() != "doing thing: boom" {
		t.Fatalf("unexpected message: %q", err.Error())
	}
	if !errors.Is(err, base) {
		t.Fatal("wrapped error should unwrap to base")
	}
}

func TestNewCapturesStack(t *testing.T) {
	err := New("boom")
	var hs interface{ StackPCs() []uintptr }
	if !errors.As(err, &hs) {
		t.Fatal("New should capture a stack")
	}
	if len(hs.StackPCs()) == 0 {
		t.Fatal("stack should be non-empty")
	}
}

func TestEnsureTraceDoesNotDoubleWrap(t *testing.T) {
	err := New("boom")
	again := EnsureTrace(err)
	if again != err {
		t.Fatal("EnsureTrace should not re-wrap an error that already has a stack")
	}

	plain := errors.New("plain")
	traced := EnsureTrace(plain)
	if traced == plain {
		t.Fatal("EnsureTrace should wrap a plain error")
	}
	if !errors.Is(traced, plain) {
		t.Fatal("traced error should unwrap to plain")
	}
}
