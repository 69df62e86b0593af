// Package errs implements the error-kind taxonomy a devc.json-driven
// environment surfaces to callers (spec §7). It mirrors the
// category/code/hint shape of internal/errors, narrowed to the fixed
// set of kinds the lifecycle manager, provider, and state store
// actually raise, plus the path/id + remediation hint every
// user-visible failure carries.
package errs

import (
	"errors"
	"fmt"
)

// Kind is one of the fixed error kinds callers can switch on.
type Kind string

const (
	// Config covers an invalid spec or feature document: missing
	// required keys, cyclic features.
	Config Kind = "config"

	// ProviderNotFound means the container or image a caller asked
	// about is absent.
	ProviderNotFound Kind = "provider.not_found"

	// ProviderExists means an operation required uniqueness (e.g. a
	// name already claimed by a non-terminal state) and found a
	// collision.
	ProviderExists Kind = "provider.exists"

	// ProviderRuntime wraps a non-zero exit from the runtime binary,
	// carrying the captured stderr tail.
	ProviderRuntime Kind = "provider.runtime"

	// ProviderTimeout means the runtime call exceeded its deadline.
	ProviderTimeout Kind = "provider.timeout"

	// ProviderCancelled means the caller's context was cancelled
	// before the runtime call finished.
	ProviderCancelled Kind = "provider.cancelled"

	// Build covers build-context assembly or a failed runtime build.
	Build Kind = "build"

	// Exec wraps a non-zero exit from an in-container command,
	// surfaced directly to the caller (as opposed to ProviderRuntime,
	// which is the provider's own lifecycle calls).
	Exec Kind = "exec"

	// Io covers filesystem access and child-process spawn failures.
	Io Kind = "io"

	// StateCorrupted means a persisted ContainerState record failed to
	// deserialize; the record has been quarantined.
	StateCorrupted Kind = "state_corrupted"

	// Invalid means caller misuse, e.g. removing a running container
	// without force.
	Invalid Kind = "invalid"
)

// Error is a structured error carrying the offending path or id and a
// short remediation hint, per spec §7's propagation policy.
type Error struct {
	Kind   Kind
	Path   string // offending path, id, or name; empty if not applicable
	Hint   string // short remediation hint shown to the user
	Cause  error
	detail string
}

func (e *Error) Error() string {
	msg := e.detail
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Path != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Path)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same Kind, so callers
// can write errors.Is(err, errs.New(errs.ProviderNotFound, "")) or, more
// naturally, errs.HasKind(err, errs.ProviderNotFound).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New constructs an *Error of the given kind with a detail message.
func New(kind Kind, detail string) *Error {
	return &Error{Kind: kind, detail: detail}
}

// Newf constructs an *Error with a formatted detail message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, detail: fmt.Sprintf(format, args...)}
}

// Wrap wraps cause as an *Error of the given kind.
func Wrap(kind Kind, cause error, detail string) *Error {
	return &Error{Kind: kind, Cause: cause, detail: detail}
}

// WithPath sets the offending path/id/name and returns the receiver,
// for fluent construction: errs.New(errs.Io, "read state").WithPath(id).
func (e *Error) WithPath(path string) *Error {
	e.Path = path
	return e
}

// WithHint sets the remediation hint and returns the receiver.
func (e *Error) WithHint(hint string) *Error {
	e.Hint = hint
	return e
}

// HasKind reports whether err is an *Error (at any wrap depth) of kind.
func HasKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf returns the Kind of err if it is (or wraps) an *Error, and
// false otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
