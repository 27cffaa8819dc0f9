package signal

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    Type
		reason  string
	}{
		{"bare phase complete", "did some work\nPHASE_COMPLETE\n", PhaseComplete, ""},
		{"bare gate needed", "GATE_NEEDED\n", GateNeeded, ""},
		{"blocked with reason", "BLOCKED: missing API key\n", Blocked, "missing API key"},
		{"tagged phase complete", "done.\n<signal>PHASE_COMPLETE</signal>\n", PhaseComplete, ""},
		{"tagged gate needed", "<signal>GATE_NEEDED</signal>", GateNeeded, ""},
		{"tagged blocked", "<signal>BLOCKED</signal>", Blocked, ""},
		{"substring match", "the phase is done: PHASE_COMPLETE now", PhaseComplete, ""},
		{"phase complete wins over gate on one line", "PHASE_COMPLETE GATE_NEEDED", PhaseComplete, ""},
		{"gate wins over blocked on one line", "GATE_NEEDED BLOCKED: x", GateNeeded, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := Parse(tt.content)
			if sig == nil {
				t.Fatal("Parse returned nil")
			}
			if sig.Type != tt.want {
				t.Errorf("Type = %q, want %q", sig.Type, tt.want)
			}
			if sig.Reason != tt.reason {
				t.Errorf("Reason = %q, want %q", sig.Reason, tt.reason)
			}
		})
	}
}

func TestParseNoSignal(t *testing.T) {
	for _, content := range []string{"", "working on it\nstill going\n", "BLOCKED without colon"} {
		if sig := Parse(content); sig != nil {
			t.Errorf("Parse(%q) = %+v, want nil", content, sig)
		}
	}
}

func TestParseReturnsFirstMatchingLine(t *testing.T) {
	sig := Parse("BLOCKED: first\nPHASE_COMPLETE\n")
	if sig == nil || sig.Type != Blocked || sig.Reason != "first" {
		t.Errorf("Parse = %+v, want BLOCKED first", sig)
	}
}

func appendFile(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if _, err := f.WriteString(content); err != nil {
		t.Fatal(err)
	}
}

func TestWatcherReportsExactlyOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "output.log")
	w := Watch(path)

	appendFile(t, path, "starting work\n")
	if sig := w.Check(); sig != nil {
		t.Errorf("premature signal: %+v", sig)
	}

	appendFile(t, path, "all done\nPHASE_COMPLETE\n")
	sig := w.Check()
	if sig == nil || sig.Type != PhaseComplete {
		t.Fatalf("Check = %+v, want PHASE_COMPLETE", sig)
	}

	// No new content: the consumed signal must not be re-reported.
	if sig := w.Check(); sig != nil {
		t.Errorf("signal re-reported: %+v", sig)
	}
}

func TestWatcherMarkerSplitAcrossAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "output.log")
	w := Watch(path)

	appendFile(t, path, "working\nPHASE_COM")
	if sig := w.Check(); sig != nil {
		t.Errorf("matched an incomplete line: %+v", sig)
	}

	appendFile(t, path, "PLETE\n")
	sig := w.Check()
	if sig == nil || sig.Type != PhaseComplete {
		t.Errorf("Check = %+v, want PHASE_COMPLETE", sig)
	}
}

func TestWatcherOneSignalPerCheck(t *testing.T) {
	path := filepath.Join(t.TempDir(), "output.log")
	w := Watch(path)

	appendFile(t, path, "GATE_NEEDED\nBLOCKED: later\n")

	first := w.Check()
	if first == nil || first.Type != GateNeeded {
		t.Fatalf("first Check = %+v, want GATE_NEEDED", first)
	}
	second := w.Check()
	if second == nil || second.Type != Blocked || second.Reason != "later" {
		t.Fatalf("second Check = %+v, want BLOCKED later", second)
	}
	if third := w.Check(); third != nil {
		t.Errorf("third Check = %+v, want nil", third)
	}
}

func TestWatcherMissingFile(t *testing.T) {
	w := Watch(filepath.Join(t.TempDir(), "never-created.log"))
	if sig := w.Check(); sig != nil {
		t.Errorf("Check on missing file = %+v, want nil", sig)
	}
}

func TestWatcherStop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "output.log")
	w := Watch(path)
	appendFile(t, path, "PHASE_COMPLETE\n")

	w.Stop()
	if sig := w.Check(); sig != nil {
		t.Errorf("Check after Stop = %+v, want nil", sig)
	}
}

func TestParseTaggedCustomName(t *testing.T) {
	for _, tt := range []struct {
		content string
		want    Type
	}{
		{"spec is done\n<signal>SPEC_READY</signal>\n", Type("SPEC_READY")},
		{"<signal>PLAN_READY</signal>", Type("PLAN_READY")},
		{"<signal> NEEDS_REBASE </signal>", Type("NEEDS_REBASE")},
	} {
		sig := Parse(tt.content)
		if sig == nil || sig.Type != tt.want {
			t.Errorf("Parse(%q) = %+v, want type %q", tt.content, sig, tt.want)
		}
	}
}
