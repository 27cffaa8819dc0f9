// Package notify surfaces pending gates to a human. A watcher polls gate
// status, notifies exactly once per gate appearance, and dispatches through
// a pluggable notifier command. Notification is best-effort: delivery
// failures are logged and swallowed, never propagated to the orchestration
// loop.
package notify

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/x/ansi"

	porcherr "github.com/Iron-Ham/porch/internal/errors"
	"github.com/Iron-Ham/porch/internal/logging"
	"github.com/Iron-Ham/porch/internal/protocol"
	"github.com/Iron-Ham/porch/internal/state"
)

// GateStatus describes whether a project is currently blocked on a gate.
type GateStatus struct {
	HasGate     bool
	GateName    string
	BuilderID   string
	RequestedAt string
}

// StatusFrom derives the gate status for a project from its state and
// protocol: a gate for the current state that has not passed blocks the
// project.
func StatusFrom(s *state.ProjectState, proto *protocol.Protocol) GateStatus {
	if s == nil || proto == nil {
		return GateStatus{}
	}
	gate := proto.GateForState(s.CurrentState)
	if gate == nil || s.GatePassed(gate.ID) {
		return GateStatus{}
	}
	status := GateStatus{HasGate: true, GateName: gate.ID, BuilderID: s.ID}
	if gs, ok := s.Gates[gate.ID]; ok {
		status.RequestedAt = gs.RequestedAt
	}
	return status
}

// Notifier delivers a notification message to a human.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// ExecNotifier runs a command with the message appended as the final
// argument. Arguments are passed as an argv vector, never through a shell.
type ExecNotifier struct {
	Command string
	Args    []string
}

func (n *ExecNotifier) Notify(ctx context.Context, message string) error {
	args := append(append([]string{}, n.Args...), message)
	cmd := exec.CommandContext(ctx, n.Command, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("notify command failed: %w (output: %s)", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// unsafeRe matches shell metacharacters and control characters that must
// never reach a notification command, even as an argv element.
var unsafeRe = regexp.MustCompile("[;|&$`\\n\\r\\x00-\\x08\\x0b\\x0c\\x0e-\\x1f]")

// sanitize strips ANSI escape sequences from an identifier and rejects it
// if shell metacharacters or control characters remain.
func sanitize(s string) (string, error) {
	clean := ansi.Strip(s)
	if unsafeRe.MatchString(clean) {
		return "", fmt.Errorf("%w: %q", porcherr.ErrUnsafeIdentifier, s)
	}
	return clean, nil
}

// defaultDedupeWindow suppresses repeats of an unchanged notification.
const defaultDedupeWindow = 60 * time.Second

// notification records what was last dispatched for a watch key and when.
type notification struct {
	value string
	at    time.Time
}

// Watcher tracks which gates have already been notified so repeated polls
// of an unchanged pending gate stay quiet within the dedupe window. A gate
// that clears and later re-appears notifies again, as does one still
// pending after the window elapses (a reminder).
type Watcher struct {
	mu           sync.Mutex
	notifier     Notifier
	log          *logging.Logger
	window       time.Duration
	now          func() time.Time
	lastNotified map[string]notification // watch key -> last dispatch
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDedupeWindow sets how long an unchanged notification is suppressed
// before being re-sent.
func WithDedupeWindow(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.window = d
		}
	}
}

// NewWatcher creates a gate watcher dispatching through the given notifier.
func NewWatcher(notifier Notifier, log *logging.Logger, opts ...WatcherOption) *Watcher {
	if log == nil {
		log = logging.NopLogger()
	}
	w := &Watcher{
		notifier:     notifier,
		log:          log,
		window:       defaultDedupeWindow,
		now:          time.Now,
		lastNotified: make(map[string]notification),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// suppressed reports whether an identical notification was dispatched for
// the key within the dedupe window. Caller holds w.mu.
func (w *Watcher) suppressed(key, value string) bool {
	last, ok := w.lastNotified[key]
	return ok && last.value == value && w.now().Sub(last.at) < w.window
}

// CheckAndNotify compares the gate status against the last notified state
// for the watch key and dispatches at most one notification per gate
// appearance. It never returns an error: sanitization failures and
// delivery failures are logged at warning level and swallowed.
func (w *Watcher) CheckAndNotify(ctx context.Context, status GateStatus, key string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !status.HasGate || status.GateName == "" || status.BuilderID == "" {
		// Gate cleared (or never set): re-arm so a future appearance
		// notifies again.
		delete(w.lastNotified, key)
		return
	}

	gateName, err := sanitize(status.GateName)
	if err != nil {
		w.log.Warn("skipping gate notification: unsafe gate name", "gate", status.GateName, "error", err)
		return
	}
	builderID, err := sanitize(status.BuilderID)
	if err != nil {
		w.log.Warn("skipping gate notification: unsafe builder id", "builder", status.BuilderID, "error", err)
		return
	}

	current := builderID + ":" + gateName
	if w.suppressed(key, current) {
		return
	}

	message := fmt.Sprintf("GATE: %s\nBuilder %s is waiting for approval.\nTo approve: porch approve %s %s",
		gateName, builderID, builderID, gateName)
	if err := w.notifier.Notify(ctx, message); err != nil {
		w.log.Warn("gate notification failed", "gate", gateName, "builder", builderID, "error", err)
		// Still mark as notified: a flaky notifier must not retry on
		// every poll.
	}
	w.lastNotified[key] = notification{value: current, at: w.now()}
}

// NotifyBlocked reports an agent BLOCKED signal. Repeated blocks with the
// same reason are deduplicated per watch key; a new reason notifies again.
// The reason is free text: ANSI escapes and control characters are
// stripped, and delivery runs through the argv notifier, so it needs no
// metacharacter rejection.
func (w *Watcher) NotifyBlocked(ctx context.Context, builderID, reason, key string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	builder, err := sanitize(builderID)
	if err != nil {
		w.log.Warn("skipping blocked notification: unsafe builder id", "builder", builderID, "error", err)
		return
	}
	cleanReason := unsafeRe.ReplaceAllString(ansi.Strip(reason), " ")

	current := "blocked:" + builder + ":" + cleanReason
	if w.suppressed(key, current) {
		return
	}

	message := fmt.Sprintf("BLOCKED: builder %s needs help.\nReason: %s", builder, cleanReason)
	if err := w.notifier.Notify(ctx, message); err != nil {
		w.log.Warn("blocked notification failed", "builder", builder, "error", err)
	}
	w.lastNotified[key] = notification{value: current, at: w.now()}
}

// Reset clears all tracked notification state.
func (w *Watcher) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastNotified = make(map[string]notification)
}
