// Package errors provides the operation-error taxonomy shared by every
// component: executors, the aggregator, the alert engine and the
// orchestrator all wrap failures the same way so the rest of the code base
// can branch on retryability without caring which component raised it.
package errors

import (
	"fmt"
	"strings"
)

// Kind classifies an OperationError per the taxonomy of the platform's
// error handling design: input, transient I/O, permanent I/O,
// configuration, capacity, or an internal invariant violation.
type Kind string

const (
	KindInput         Kind = "input"
	KindTransientIO   Kind = "transient_io"
	KindPermanentIO   Kind = "permanent_io"
	KindConfiguration Kind = "configuration"
	KindCapacity      Kind = "capacity"
	KindInternal      Kind = "internal"
)

// OperationError describes a failed operation with enough context to log
// and to decide whether the caller should retry.
type OperationError struct {
	Operation string
	Component string
	Resource  string
	Kind      Kind
	Cause     error
}

func (e *OperationError) Error() string {
	var b strings.Builder
	b.WriteString("failed to ")
	b.WriteString(e.Operation)
	if e.Component != "" {
		b.WriteString(", component: ")
		b.WriteString(e.Component)
	}
	if e.Resource != "" {
		b.WriteString(", resource: ")
		b.WriteString(e.Resource)
	}
	if e.Cause != nil {
		b.WriteString(", cause: ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap exposes the underlying cause for errors.Is/errors.As.
func (e *OperationError) Unwrap() error {
	return e.Cause
}

// FailedTo renders the common "failed to X: Y" shape without the
// component/resource decoration OperationError adds, matching the plain
// top-level helper callers reach for most often.
func FailedTo(action string, cause error) error {
	if cause == nil {
		return fmt.Errorf("failed to %s", action)
	}
	return fmt.Errorf("failed to %s: %s", action, cause.Error())
}

// FailedToWithDetails builds an OperationError carrying component and
// resource context, e.g. "failed to query users, component: database,
// resource: users_table, cause: timeout".
func FailedToWithDetails(operation, component, resource string, cause error) error {
	return &OperationError{
		Operation: operation,
		Component: component,
		Resource:  resource,
		Cause:     cause,
	}
}

// Wrapf prefixes err with a formatted message, returning nil if err is nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	msg := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", msg, err)
}

// DatabaseError is FailedToWithDetails specialised for storage operations.
func DatabaseError(operation string, cause error) error {
	return &OperationError{Operation: operation, Component: "database", Kind: KindTransientIO, Cause: cause}
}

// NetworkError is FailedToWithDetails specialised for outbound network calls.
func NetworkError(operation, endpoint string, cause error) error {
	return &OperationError{Operation: operation, Component: "network", Resource: endpoint, Kind: KindTransientIO, Cause: cause}
}

// KindError attaches a taxonomy Kind to a preformatted message, for the
// constructors whose message shape predates OperationError's
// "failed to ..." rendering. KindOf resolves either type.
type KindError struct {
	Kind Kind
	Msg  string
}

func (e *KindError) Error() string { return e.Msg }

// ValidationError reports a field-level input validation failure.
func ValidationError(field, reason string) error {
	return &KindError{Kind: KindInput, Msg: fmt.Sprintf("validation failed for field %s: %s", field, reason)}
}

// ConfigurationError reports a missing/invalid configuration setting.
func ConfigurationError(setting, reason string) error {
	return &KindError{Kind: KindConfiguration, Msg: fmt.Sprintf("configuration error for setting %s: %s", setting, reason)}
}

// TimeoutError reports a deadline expiry.
func TimeoutError(action, after string) error {
	return &KindError{Kind: KindTransientIO, Msg: fmt.Sprintf("timeout while %s after %s", action, after)}
}

// KindOf returns err's taxonomy Kind, unwrapping as needed, or the empty
// Kind when err carries none.
func KindOf(err error) Kind {
	var opErr *OperationError
	if errAs(err, &opErr) {
		return opErr.Kind
	}
	var kindErr *KindError
	if asKindError(err, &kindErr) {
		return kindErr.Kind
	}
	return ""
}

// AuthenticationError reports a failed authentication attempt.
func AuthenticationError(reason string) error {
	return fmt.Errorf("authentication failed: %s", reason)
}

// AuthorizationError reports insufficient permissions for an action on a
// resource.
func AuthorizationError(action, resource string) error {
	return fmt.Errorf("authorization failed: insufficient permissions to %s %s", action, resource)
}

// ParseError reports a malformed payload that failed to parse as format.
func ParseError(resource, format string, cause error) error {
	return &OperationError{
		Operation: fmt.Sprintf("parse %s as %s", resource, format),
		Component: "parser",
		Kind:      KindPermanentIO,
		Cause:     cause,
	}
}

// retryableSubstrings are the transient-failure phrases IsRetryable
// recognises in an arbitrary error's message when it isn't a typed
// OperationError.
var retryableSubstrings = []string{
	"timeout",
	"connection refused",
	"unavailable",
	"temporarily",
	"deadline exceeded",
	"reset by peer",
	"too many requests",
}

// IsRetryable reports whether err represents a transient failure worth
// retrying. A typed *OperationError with Kind KindTransientIO or
// KindCapacity is always retryable; otherwise the error message is matched
// against a small set of known-transient phrases.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if asRetryable(err) {
		return true
	}
	var opErr *OperationError
	if errAs(err, &opErr) {
		switch opErr.Kind {
		case KindTransientIO, KindCapacity:
			return true
		case KindInput, KindPermanentIO, KindConfiguration, KindInternal:
			return false
		}
	}
	msg := strings.ToLower(err.Error())
	for _, s := range retryableSubstrings {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// errAs is a narrow local shim over errors.As to avoid importing the
// standard "errors" package under a name that collides with this package's
// own name at call sites.
func errAs(err error, target **OperationError) bool {
	for err != nil {
		if oe, ok := err.(*OperationError); ok {
			*target = oe
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// asRetryable reports whether err is (or wraps) a *RetryableError.
func asRetryable(err error) bool {
	for err != nil {
		if _, ok := err.(*RetryableError); ok {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// asKindError mirrors errAs for *KindError.
func asKindError(err error, target **KindError) bool {
	for err != nil {
		if ke, ok := err.(*KindError); ok {
			*target = ke
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// Chain joins multiple non-nil errors into one, skipping nils. Returns nil
// if every argument was nil, the single error unwrapped if exactly one was
// non-nil, or a "multiple errors: a; b; c" message otherwise.
func Chain(errs ...error) error {
	var nonNil []error
	for _, e := range errs {
		if e != nil {
			nonNil = append(nonNil, e)
		}
	}
	switch len(nonNil) {
	case 0:
		return nil
	case 1:
		return nonNil[0]
	default:
		msgs := make([]string, len(nonNil))
		for i, e := range nonNil {
			msgs[i] = e.Error()
		}
		return fmt.Errorf("multiple errors: %s", strings.Join(msgs, "; "))
	}
}

// RetryableError marks an error as safe for the caller to retry after a
// back-off delay — used wherever the capacity/transient-I/O taxonomy calls
// for caller-driven retry rather than in-place exhaustion (e.g. a
// notification channel's directory/file I/O failures, or a browser
// context-pool "limit reached" condition).
type RetryableError struct {
	Cause error
}

func (e *RetryableError) Error() string {
	if e.Cause == nil {
		return "retryable error"
	}
	return e.Cause.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Cause
}

// Retryable wraps cause in a *RetryableError.
func Retryable(cause error) error {
	return &RetryableError{Cause: cause}
}
