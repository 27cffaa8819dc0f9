// Package errors provides centralized error definitions and error handling
// utilities for the porch codebase. It defines sentinel errors for the
// orchestrator's failure taxonomy, semantic error types, and classification
// helpers.
//
// Configuration errors (unknown protocol, missing project) are fatal to the
// invoking command and carry remediation text. Transient agent failures are
// never surfaced as errors at all; they are normalized into a failed
// BuildResult by the agent package. Malformed state files are fatal and
// distinguished from absent ones, which read as nil.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Sentinel errors for the orchestrator's failure taxonomy.
var (
	// ErrProtocolNotFound indicates a protocol name resolved to no definition
	// in either the local protocols directory or the bundled skeleton.
	ErrProtocolNotFound = errors.New("protocol not found")

	// ErrProjectNotFound indicates no status file exists for a project ID.
	ErrProjectNotFound = errors.New("project not found")

	// ErrMalformedState indicates a status file exists but failed to parse.
	// This is fatal, unlike an absent file which reads as nil.
	ErrMalformedState = errors.New("malformed state file")

	// ErrMaxIterations indicates the orchestration loop exhausted its
	// iteration cap without reaching a terminal phase.
	ErrMaxIterations = errors.New("max iterations reached")

	// ErrGateUnknown indicates a gate ID that the protocol does not define.
	ErrGateUnknown = errors.New("unknown gate")

	// ErrUnsafeIdentifier indicates an identifier failed sanitization before
	// being handed to a shell-invoking channel.
	ErrUnsafeIdentifier = errors.New("unsafe identifier")

	// ErrLoopAborted indicates the operator quit the loop from the REPL.
	ErrLoopAborted = errors.New("loop aborted by operator")
)

// NotFoundError represents a missing resource with enough context to print
// actionable remediation text.
type NotFoundError struct {
	// Resource is the kind of thing that was not found ("protocol", "project").
	Resource string
	// ID is the identifier that failed to resolve.
	ID string
	// Hint is optional remediation text (e.g. "run: porch init ...").
	Hint string
}

func (e *NotFoundError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s not found: %s\n%s", e.Resource, e.ID, e.Hint)
	}
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// Unwrap maps NotFoundError onto the matching sentinel so callers can use
// errors.Is without knowing the concrete type.
func (e *NotFoundError) Unwrap() error {
	switch e.Resource {
	case "protocol":
		return ErrProtocolNotFound
	case "project":
		return ErrProjectNotFound
	default:
		return nil
	}
}

// NewNotFoundError creates a NotFoundError for the given resource and ID.
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// WithHint attaches remediation text to the error and returns it.
func (e *NotFoundError) WithHint(hint string) *NotFoundError {
	e.Hint = hint
	return e
}

// ValidationError represents invalid input or state, such as a protocol
// definition referencing a phase that does not exist.
type ValidationError struct {
	// Field is the path of the offending field (e.g. "transitions.specify:draft.default").
	Field string
	// Message describes what is wrong with the value.
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

// NewValidationError creates a ValidationError for the given field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// TimeoutError represents an operation that exceeded its hard deadline.
type TimeoutError struct {
	// Operation names what timed out (e.g. "agent build").
	Operation string
	// Timeout is the deadline that was exceeded.
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Operation, e.Timeout)
}

// NewTimeoutError creates a TimeoutError for the given operation.
func NewTimeoutError(operation string, timeout time.Duration) *TimeoutError {
	return &TimeoutError{Operation: operation, Timeout: timeout}
}

// IsFatal reports whether an error should abort the invoking command rather
// than be retried or absorbed. Configuration errors, malformed state, and
// iteration exhaustion are fatal; everything else is left to the caller.
func IsFatal(err error) bool {
	return errors.Is(err, ErrProtocolNotFound) ||
		errors.Is(err, ErrProjectNotFound) ||
		errors.Is(err, ErrMalformedState) ||
		errors.Is(err, ErrMaxIterations)
}

// IsNotFound reports whether an error indicates an absent resource.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.Is(err, ErrProtocolNotFound) ||
		errors.Is(err, ErrProjectNotFound) ||
		errors.As(err, &nf)
}
