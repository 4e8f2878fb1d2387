package errors

import (
	"errors"
	"testing"
)

func TestWrap(t *testing.T) {
	if Wrap(nil, "msg") != nil {
		t.Error("Wrap(nil, msg) should return nil")
	}
	err := errors.New("base")
	wrapped := Wrap(err, "load session")
	if wrapped == nil {
		t.Fatal("Wrap(err, msg) should not return nil")
	}
	if !Is(wrapped, err) {
		t.Error("wrapped error should unwrap to base")
	}
	if wrapped.Error() != "load session: base" {
		t.Errorf("unexpected message %q", wrapped.Error())
	}
}

func TestWrapf(t *testing.T) {
	if Wrapf(nil, "format %s", "x") != nil {
		t.Error("Wrapf(nil, ...) should return nil")
	}
	wrapped := Wrapf(ErrUnavailable, "session=%s", "s1")
	if !Is(wrapped, ErrUnavailable) {
		t.Error("wrapped error should unwrap to sentinel")
	}
}

func TestJoin(t *testing.T) {
	joined := Join(ErrNotFound, ErrInvalidArg)
	if !Is(joined, ErrNotFound) || !Is(joined, ErrInvalidArg) {
		t.Error("joined error should match both sentinels")
	}
}
