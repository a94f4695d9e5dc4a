package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestRegistrationErrorUnwrapsToCause(t *testing.T) {
	cause := ErrUpstreamUnavailable
	err := error(&RegistrationError{AccountID: "a-1", Cause: cause})

	if !errors.Is(err, ErrRegistrationFailed) {
		t.Fatalf("expected registration failed")
	}
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("expected cause to be reachable")
	}
	if !strings.Contains(err.Error(), "a-1") {
		t.Fatalf("expected account id in message: %s", err)
	}
}

func TestValidationErrorMessageIsSorted(t *testing.T) {
	err := NewValidationError(map[string]string{"role": "bad", "email": "required"})
	if got := err.Error(); got != "validation failed: email: required, role: bad" {
		t.Fatalf("unexpected message: %s", got)
	}
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation")
	}
}
