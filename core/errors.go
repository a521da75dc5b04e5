package core

import (
	"errors"
	"fmt"
)

// Code classifies an operation failure. Codes are stable strings suitable
// for transport mapping; none of them is retryable inside the core.
type Code string

const (
	CodeValidation        Code = "validation_error"
	CodeNotFound          Code = "not_found"
	CodeConflict          Code = "conflict"
	CodeInvalidCredential Code = "invalid_credential"
	CodeQuotaExceeded     Code = "quota_exceeded"
	CodeFeatureSuspended  Code = "feature_suspended"
	CodeAlreadyActive     Code = "already_active"
)

// Error is the failure type returned by all registry, ledger, and evaluator
// operations. A failed operation leaves its aggregate unchanged.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Message
}

// Is matches any *Error carrying the same code, so callers can use
// errors.Is(err, &Error{Code: CodeQuotaExceeded}).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

func Err(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Errf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the code from an error chain, or "" for unclassified errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// ErrStaleAggregate signals a lost compare-and-swap race on a license key.
// Evaluator operations reread and retry on it; it never reaches callers.
var ErrStaleAggregate = errors.New("stale license key version")

// ErrSecretCollision signals that a freshly generated license secret matched
// an existing purchase record. Issuance retries with a new generation; any
// other purchase conflict is terminal.
var ErrSecretCollision = errors.New("license secret collision")
