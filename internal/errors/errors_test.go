package errors

import (
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestNotFoundErrorUnwrap(t *testing.T) {
	tests := []struct {
		resource string
		sentinel error
	}{
		{"protocol", ErrProtocolNotFound},
		{"project", ErrProjectNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.resource, func(t *testing.T) {
			err := NewNotFoundError(tt.resource, "spider")
			if !Is(err, tt.sentinel) {
				t.Errorf("expected errors.Is(%v, %v) to be true", err, tt.sentinel)
			}
		})
	}
}

func TestNotFoundErrorHint(t *testing.T) {
	err := NewNotFoundError("project", "0073").WithHint("run: porch init spider 0073 <name>")

	msg := err.Error()
	if !strings.Contains(msg, "0073") {
		t.Errorf("error message missing ID: %q", msg)
	}
	if !strings.Contains(msg, "porch init") {
		t.Errorf("error message missing remediation hint: %q", msg)
	}
}

func TestNotFoundErrorAs(t *testing.T) {
	wrapped := fmt.Errorf("loading: %w", NewNotFoundError("protocol", "nope"))

	var nf *NotFoundError
	if !As(wrapped, &nf) {
		t.Fatal("expected errors.As to find NotFoundError through wrapping")
	}
	if nf.ID != "nope" {
		t.Errorf("ID = %q, want %q", nf.ID, "nope")
	}
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("transitions.plan:draft.default", "references unknown phase")

	msg := err.Error()
	if !strings.Contains(msg, "transitions.plan:draft.default") {
		t.Errorf("error message missing field: %q", msg)
	}
}

func TestTimeoutError(t *testing.T) {
	err := NewTimeoutError("agent build", 100*time.Millisecond)

	if !strings.Contains(err.Error(), "100ms") {
		t.Errorf("error message missing duration: %q", err.Error())
	}
}

func TestIsFatal(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		fatal bool
	}{
		{"protocol not found", ErrProtocolNotFound, true},
		{"project not found", NewNotFoundError("project", "x"), true},
		{"malformed state", fmt.Errorf("parse: %w", ErrMalformedState), true},
		{"max iterations", ErrMaxIterations, true},
		{"unsafe identifier", ErrUnsafeIdentifier, false},
		{"plain error", New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsFatal(tt.err); got != tt.fatal {
				t.Errorf("IsFatal(%v) = %v, want %v", tt.err, got, tt.fatal)
			}
		})
	}
}

func TestIsNotFound(t *testing.T) {
	if !IsNotFound(NewNotFoundError("project", "x")) {
		t.Error("expected NotFoundError to be detected")
	}
	if IsNotFound(New("other")) {
		t.Error("plain error should not read as not-found")
	}
}
