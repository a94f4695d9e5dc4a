package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNotFound            = errors.New("not_found")
	ErrEmailExists         = errors.New("email_exists")
	ErrPasswordInvalid     = errors.New("password_invalid")
	ErrRegistrationFailed  = errors.New("registration_failed")
	ErrCredentialsRejected = errors.New("credentials_rejected")
	ErrUpstreamUnavailable = errors.New("upstream_unavailable")
	ErrValidation          = errors.New("validation")
)

type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func NewValidationError(fields map[string]string) error {
	return &ValidationError{Fields: fields}
}

// RegistrationError reports a create that was rolled back because the
// credential gateway did not accept the new account. The local record has
// already been removed when this error is returned.
type RegistrationError struct {
	AccountID string
	Cause     error
}

func (e *RegistrationError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("registration failed for account %s", e.AccountID)
	}
	return fmt.Sprintf("registration failed for account %s: %v", e.AccountID, e.Cause)
}

func (e *RegistrationError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrRegistrationFailed}
	}
	return []error{ErrRegistrationFailed, e.Cause}
}
