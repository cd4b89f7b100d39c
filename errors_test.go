package auth

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorKindMatching(t *testing.T) {
	wrapped := wrapKind(KindAccountLocked, "login rejected", nil)

	if Kind(wrapped) != KindAccountLocked {
		t.Fatalf("Kind() mismatch: %v", Kind(wrapped))
	}
	// Sentinels match any error of the same kind, even through wrapping.
	if !errors.Is(wrapped, ErrAccountLocked) {
		t.Fatal("wrapped error should match sentinel of same kind")
	}
	if errors.Is(wrapped, ErrAccountDisabled) {
		t.Fatal("wrapped error matched a different kind")
	}

	deep := fmt.Errorf("handler: %w", wrapped)
	if !errors.Is(deep, ErrAccountLocked) {
		t.Fatal("fmt-wrapped error should still match by kind")
	}
	if Kind(deep) != KindAccountLocked {
		t.Fatalf("Kind through fmt wrapping: %v", Kind(deep))
	}
}

func TestErrorCausePreserved(t *testing.T) {
	cause := errors.New("pool exhausted")
	err := transientErr(cause)

	if !errors.Is(err, ErrTransient) {
		t.Fatal("transient error should match ErrTransient")
	}
	if !errors.Is(err, cause) {
		t.Fatal("cause lost through wrapping")
	}
}

func TestKindStringsAreStable(t *testing.T) {
	// These strings reach audit logs and HTTP error bodies; renaming one
	// is a breaking change for consumers.
	want := map[ErrorKind]string{
		KindInvalidCredentials:  "invalid_credentials",
		KindAccountLocked:       "account_locked",
		KindInvalidRefreshToken: "invalid_refresh_token",
		KindTokenExpired:        "token_expired",
		KindTransient:           "transient",
	}
	for kind, s := range want {
		if kind.String() != s {
			t.Fatalf("kind %d renders %q, want %q", kind, kind.String(), s)
		}
	}
}
