package notify

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Iron-Ham/porch/internal/logging"
	"github.com/Iron-Ham/porch/internal/protocol"
	"github.com/Iron-Ham/porch/internal/state"
)

type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
	err      error
}

func (f *fakeNotifier) Notify(ctx context.Context, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, message)
	return nil
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}

func pendingGate(name, builder string) GateStatus {
	return GateStatus{HasGate: true, GateName: name, BuilderID: builder}
}

func TestNotifiesOnNewGate(t *testing.T) {
	n := &fakeNotifier{}
	w := NewWatcher(n, nil)

	w.CheckAndNotify(context.Background(), pendingGate("spec-approval", "0100"), "/projects/test")

	if n.count() != 1 {
		t.Fatalf("got %d notifications, want 1", n.count())
	}
	msg := n.messages[0]
	for _, want := range []string{"GATE: spec-approval", "Builder 0100", "porch approve 0100 spec-approval"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q: %q", want, msg)
		}
	}
}

func TestDeduplicatesUnchangedGate(t *testing.T) {
	n := &fakeNotifier{}
	w := NewWatcher(n, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		w.CheckAndNotify(ctx, pendingGate("spec-approval", "0100"), "/projects/test")
	}

	if n.count() != 1 {
		t.Errorf("got %d notifications, want 1", n.count())
	}
}

func TestDifferentBuildersNotifySeparately(t *testing.T) {
	n := &fakeNotifier{}
	w := NewWatcher(n, nil)
	ctx := context.Background()

	w.CheckAndNotify(ctx, pendingGate("spec-approval", "0100"), "/projects/a")
	w.CheckAndNotify(ctx, pendingGate("spec-approval", "0101"), "/projects/b")

	if n.count() != 2 {
		t.Errorf("got %d notifications, want 2", n.count())
	}
}

func TestGateClearedThenReappearedNotifiesAgain(t *testing.T) {
	n := &fakeNotifier{}
	w := NewWatcher(n, nil)
	ctx := context.Background()

	w.CheckAndNotify(ctx, pendingGate("spec-approval", "0100"), "/projects/test")
	w.CheckAndNotify(ctx, GateStatus{}, "/projects/test")
	w.CheckAndNotify(ctx, pendingGate("spec-approval", "0100"), "/projects/test")

	if n.count() != 2 {
		t.Errorf("got %d notifications, want 2", n.count())
	}
}

func TestRemindsAfterDedupeWindow(t *testing.T) {
	n := &fakeNotifier{}
	w := NewWatcher(n, nil, WithDedupeWindow(time.Minute))
	ctx := context.Background()

	base := time.Now()
	w.now = func() time.Time { return base }
	w.CheckAndNotify(ctx, pendingGate("spec-approval", "0100"), "/projects/test")
	w.CheckAndNotify(ctx, pendingGate("spec-approval", "0100"), "/projects/test")
	if n.count() != 1 {
		t.Fatalf("got %d notifications inside window, want 1", n.count())
	}

	w.now = func() time.Time { return base.Add(2 * time.Minute) }
	w.CheckAndNotify(ctx, pendingGate("spec-approval", "0100"), "/projects/test")
	if n.count() != 2 {
		t.Errorf("got %d notifications after window elapsed, want 2", n.count())
	}
}

func TestGateTransitionNotifiesAgain(t *testing.T) {
	n := &fakeNotifier{}
	w := NewWatcher(n, nil)
	ctx := context.Background()

	w.CheckAndNotify(ctx, pendingGate("spec-approval", "0100"), "/projects/test")
	w.CheckAndNotify(ctx, pendingGate("plan-approval", "0100"), "/projects/test")

	if n.count() != 2 {
		t.Fatalf("got %d notifications, want 2", n.count())
	}
	if !strings.Contains(n.messages[1], "plan-approval") {
		t.Errorf("second message = %q", n.messages[1])
	}
}

func TestRejectsShellMetacharacters(t *testing.T) {
	tests := []struct {
		name string
		gate string
	}{
		{"semicolon", "spec;rm -rf /"},
		{"newline", "spec\napproval"},
		{"pipe", "spec|cat"},
		{"backtick", "spec`id`"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			log, err := logging.NewLogger(dir, "warn")
			if err != nil {
				t.Fatal(err)
			}
			n := &fakeNotifier{}
			w := NewWatcher(n, log)

			w.CheckAndNotify(context.Background(), pendingGate(tt.gate, "0100"), "/projects/test")

			if n.count() != 0 {
				t.Errorf("unsafe gate name %q was dispatched", tt.gate)
			}

			if err := log.Close(); err != nil {
				t.Fatal(err)
			}
			data, err := os.ReadFile(filepath.Join(dir, "porch.log"))
			if err != nil {
				t.Fatal(err)
			}
			if got := strings.Count(string(data), "unsafe gate name"); got != 1 {
				t.Errorf("got %d warnings for %q, want 1 (log: %s)", got, tt.gate, data)
			}
		})
	}
}

func TestStripsANSIEscapes(t *testing.T) {
	n := &fakeNotifier{}
	w := NewWatcher(n, nil)

	w.CheckAndNotify(context.Background(), pendingGate("\x1b[31mspec-approval\x1b[0m", "0100"), "/projects/test")

	if n.count() != 1 {
		t.Fatalf("got %d notifications, want 1", n.count())
	}
	if strings.Contains(n.messages[0], "\x1b") {
		t.Errorf("ANSI escape leaked into message: %q", n.messages[0])
	}
	if !strings.Contains(n.messages[0], "spec-approval") {
		t.Errorf("stripped name missing: %q", n.messages[0])
	}
}

func TestDeliveryFailureIsSwallowed(t *testing.T) {
	n := &fakeNotifier{err: errors.New("tmux not available")}
	w := NewWatcher(n, nil)

	// Must not panic or propagate.
	w.CheckAndNotify(context.Background(), pendingGate("spec-approval", "0100"), "/projects/test")
}

func TestNoGateNoNotification(t *testing.T) {
	n := &fakeNotifier{}
	w := NewWatcher(n, nil)
	ctx := context.Background()

	w.CheckAndNotify(ctx, GateStatus{}, "/projects/test")
	w.CheckAndNotify(ctx, GateStatus{HasGate: true}, "/projects/test")

	if n.count() != 0 {
		t.Errorf("got %d notifications, want 0", n.count())
	}
}

func TestReset(t *testing.T) {
	n := &fakeNotifier{}
	w := NewWatcher(n, nil)
	ctx := context.Background()

	w.CheckAndNotify(ctx, pendingGate("spec-approval", "0100"), "/projects/test")
	w.Reset()
	w.CheckAndNotify(ctx, pendingGate("spec-approval", "0100"), "/projects/test")

	if n.count() != 2 {
		t.Errorf("got %d notifications after reset, want 2", n.count())
	}
}

func TestStatusFrom(t *testing.T) {
	proto, err := protocol.Load("spider", t.TempDir())
	if err != nil {
		t.Fatalf("loading protocol: %v", err)
	}

	s := &state.ProjectState{
		ID:           "0100",
		CurrentState: "specify:review",
		Gates: map[string]state.GateState{
			"spec-approval": {Status: state.StatusPending},
		},
	}

	status := StatusFrom(s, proto)
	if !status.HasGate || status.GateName != "spec-approval" || status.BuilderID != "0100" {
		t.Errorf("StatusFrom = %+v", status)
	}

	s.Gates["spec-approval"] = state.GateState{Status: state.StatusPassed}
	if StatusFrom(s, proto).HasGate {
		t.Error("passed gate still reported as blocking")
	}

	s.CurrentState = "plan:draft"
	if StatusFrom(s, proto).HasGate {
		t.Error("ungated state reported as blocking")
	}
}

func TestNotifyBlockedDeduplicatesSameReason(t *testing.T) {
	n := &fakeNotifier{}
	w := NewWatcher(n, nil)
	ctx := context.Background()

	w.NotifyBlocked(ctx, "0100", "tests keep failing", "/projects/test#blocked")
	w.NotifyBlocked(ctx, "0100", "tests keep failing", "/projects/test#blocked")
	w.NotifyBlocked(ctx, "0100", "tests keep failing", "/projects/test#blocked")

	if n.count() != 1 {
		t.Fatalf("got %d notifications, want 1", n.count())
	}
	msg := n.messages[0]
	if !strings.Contains(msg, "BLOCKED: builder 0100") || !strings.Contains(msg, "tests keep failing") {
		t.Errorf("unexpected message: %q", msg)
	}
}

func TestNotifyBlockedNewReasonNotifiesAgain(t *testing.T) {
	n := &fakeNotifier{}
	w := NewWatcher(n, nil)
	ctx := context.Background()

	w.NotifyBlocked(ctx, "0100", "tests keep failing", "k")
	w.NotifyBlocked(ctx, "0100", "missing credentials", "k")

	if n.count() != 2 {
		t.Fatalf("got %d notifications, want 2", n.count())
	}
}

func TestNotifyBlockedScrubsReason(t *testing.T) {
	n := &fakeNotifier{}
	w := NewWatcher(n, nil)

	w.NotifyBlocked(context.Background(), "0100", "\x1b[31mstuck\x1b[0m; rm -rf /", "k")

	if n.count() != 1 {
		t.Fatalf("got %d notifications, want 1", n.count())
	}
	msg := n.messages[0]
	if strings.Contains(msg, "\x1b") || strings.Contains(msg, ";") {
		t.Errorf("reason not scrubbed: %q", msg)
	}
	if !strings.Contains(msg, "stuck") {
		t.Errorf("reason content lost: %q", msg)
	}
}

func TestNotifyBlockedRejectsUnsafeBuilder(t *testing.T) {
	n := &fakeNotifier{}
	w := NewWatcher(n, nil)

	w.NotifyBlocked(context.Background(), "0100; rm -rf /", "stuck", "k")

	if n.count() != 0 {
		t.Fatalf("got %d notifications, want 0", n.count())
	}
}
