package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Sentinel errors. Every gate failure matches exactly one of these via errors.Is.
var (
	ErrMissingCredential      = errors.New("missing credential")
	ErrInvalidCredential      = errors.New("invalid credential")
	ErrCredentialVerification = errors.New("credential verification failed")
	ErrInsufficientRole       = errors.New("insufficient role")
	ErrTooManyRequests        = errors.New("rate limit exceeded")
)

// VerificationError wraps a failure raised by a Verifier or UserLookup
// (malformed token, expired signature, backend unavailable).
type VerificationError struct {
	Cause error
}

func (e *VerificationError) Error() string {
	if e.Cause == nil {
		return ErrCredentialVerification.Error()
	}
	return fmt.Sprintf("%s: %v", ErrCredentialVerification, e.Cause)
}

func (e *VerificationError) Unwrap() error { return e.Cause }

func (e *VerificationError) Is(target error) bool {
	return target == ErrCredentialVerification
}

// RoleError is the deny reason produced by the Authorizer.
type RoleError struct {
	Required []string
	Actual   []string
}

func (e *RoleError) Error() string {
	return fmt.Sprintf("%s: requires one of [%s], have [%s]",
		ErrInsufficientRole, strings.Join(e.Required, ","), strings.Join(e.Actual, ","))
}

func (e *RoleError) Is(target error) bool {
	return target == ErrInsufficientRole
}

// Code returns the machine-readable taxonomy entry for a gate error.
// Unknown errors yield the empty string.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrMissingCredential):
		return "missing_credential"
	case errors.Is(err, ErrInvalidCredential):
		return "invalid_credential"
	case errors.Is(err, ErrCredentialVerification):
		return "credential_verification_error"
	case errors.Is(err, ErrInsufficientRole):
		return "insufficient_role"
	case errors.Is(err, ErrTooManyRequests):
		return "rate_limited"
	default:
		return ""
	}
}

// StatusCode maps a gate error to its HTTP status code.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, ErrMissingCredential),
		errors.Is(err, ErrInvalidCredential),
		errors.Is(err, ErrCredentialVerification):
		return http.StatusUnauthorized
	case errors.Is(err, ErrInsufficientRole):
		return http.StatusForbidden
	case errors.Is(err, ErrTooManyRequests):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
