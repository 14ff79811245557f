package common

import (
	"errors"
	"testing"
)

func TestStoreErr(t *testing.T) {
	cause := errors.New("disk full")
	err := NewStoreErr("nonce", Unavailable, "0123456789abcdef", cause)

	if !IsStore(err, Unavailable) || IsStore(err, Closed) {
		t.Fatalf("IsStore should match the error type only")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("StoreErr should unwrap to its cause")
	}
	if got := err.Error(); got != "nonce, 0123456789abcdef, Unavailable: disk full" {
		t.Fatalf("unexpected message %q", got)
	}

	if got := NewStoreErr("nonce", Closed, "x", nil).Error(); got != "nonce, x, Closed" {
		t.Fatalf("unexpected message %q", got)
	}
	if IsStore(errors.New("other"), Closed) {
		t.Fatalf("plain errors are not StoreErr")
	}
}
