package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Kind classifies an invocation or registration failure. Kinds are stable
// strings and cross the external boundary verbatim in the error wire form.
type Kind string

const (
	KindUnknownFunction       Kind = "unknown_function"
	KindValidation            Kind = "validation_error"
	KindDomain                Kind = "domain_error"
	KindInternal              Kind = "internal_error"
	KindTimeout               Kind = "timeout_error"
	KindDuplicateRegistration Kind = "duplicate_registration"
	KindUnavailable           Kind = "unavailable"
)

// Sentinel errors for dispatch. Use errors.Is to check.
var (
	ErrUnknownFunction = errors.New("function not registered")
	ErrValidation      = errors.New("argument validation failed")
	ErrTimeout         = errors.New("invocation timed out")
	ErrDuplicate       = errors.New("duplicate registration")
	ErrShutdown        = errors.New("registry is shutting down")
)

// internalMessage is the only internal-error text that crosses the external
// boundary. The original cause stays on the error chain for diagnostics.
const internalMessage = "internal error during handler execution"

// Error is the structured failure returned inside a Result. Message is safe to
// forward to the assistant runtime; for KindInternal it is always the generic
// internalMessage and the real cause is reachable only through Unwrap.
type Error struct {
	Kind    Kind
	Message string
	Field   string // offending field for KindValidation, empty otherwise
	cause   error
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (field %q)", e.Kind, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap supports errors.Is/errors.As on wrapped chains
// (e.g. errors.Is(err, ErrValidation)).
func (e *Error) Unwrap() error { return e.cause }

// MarshalJSON renders the error object of the failure wire form.
func (e *Error) MarshalJSON() ([]byte, error) {
	type wire struct {
		Kind    Kind   `json:"kind"`
		Message string `json:"message"`
		Field   string `json:"field,omitempty"`
	}
	return json.Marshal(wire{Kind: e.Kind, Message: e.Message, Field: e.Field})
}

// DomainError marks a handler-reported expected failure (resource not found,
// upstream rate limited, ...). Its message is forwarded to the caller as-is.
// Retryable is set by the handler; the registry never retries on its own, but
// the orchestrator may re-submit a retryable call unchanged.
type DomainError struct {
	Message   string
	Retryable bool
}

func (e *DomainError) Error() string { return e.Message }

// Domainf builds a DomainError with a formatted message.
func Domainf(format string, args ...any) *DomainError {
	return &DomainError{Message: fmt.Sprintf(format, args...)}
}

// IsDomainError returns true if err is or wraps a DomainError.
func IsDomainError(err error) bool {
	var de *DomainError
	return errors.As(err, &de)
}

func newValidationError(field, message string) *Error {
	return &Error{Kind: KindValidation, Message: message, Field: field, cause: ErrValidation}
}

func newInternalError(cause error) *Error {
	return &Error{Kind: KindInternal, Message: internalMessage, cause: cause}
}

// classify maps a handler-returned error to its structured form. A *Error
// passes through unchanged so nested dispatch layers keep their kind.
func classify(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	var de *DomainError
	if errors.As(err, &de) {
		return &Error{Kind: KindDomain, Message: de.Message, cause: de}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Message: "invocation exceeded configured deadline", cause: errors.Join(ErrTimeout, err)}
	}
	if errors.Is(err, context.Canceled) {
		return &Error{Kind: KindInternal, Message: "invocation cancelled before completion", cause: err}
	}
	return newInternalError(err)
}

// wrapJSONParseError returns a validation error for JSON unmarshal failures so
// parse errors surface to the runtime in the same shape as schema failures.
func wrapJSONParseError(err error) *Error {
	return &Error{Kind: KindValidation, Message: "json parse error: " + err.Error(), cause: errors.Join(ErrValidation, err)}
}

// panicError wraps a recovered panic value; used by Registry and WithRecovery.
type panicError struct{ p any }

func (e *panicError) Error() string {
	return "panic: " + fmt.Sprint(e.p)
}
