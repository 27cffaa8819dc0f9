package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Iron-Ham/porch/internal/protocol"
)

const cmdProtocol = `{
  "name": "mini",
  "version": "1.0",
  "description": "gated two-phase protocol",
  "initial_state": "specify:draft",
  "phases": [
    {"id": "specify", "name": "Specify", "substates": ["draft"]},
    {"id": "plan", "name": "Plan", "substates": ["draft"], "signals": {"PHASE_COMPLETE": "done"}},
    {"id": "done", "name": "Done", "terminal": true}
  ],
  "gates": [
    {"id": "spec-approval", "after_state": "specify:draft", "next_state": "plan:draft", "type": "human"}
  ],
  "transitions": {},
  "config": {"poll_interval": 1, "max_iterations": 50}
}`

func testRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, protocol.LocalDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "mini.json"), []byte(cmdProtocol), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PORCH_PATHS_ROOT", root)
	return root
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestInitCommand(t *testing.T) {
	root := testRoot(t)

	out, err := execute(t, "init", "mini", "0007", "gadget", "-d", "a gadget project")
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if !strings.Contains(out, "Initialized project 0007 (gadget)") {
		t.Errorf("output missing confirmation: %q", out)
	}
	if !strings.Contains(out, "specify:draft") {
		t.Errorf("output missing initial state: %q", out)
	}

	entries, err := os.ReadDir(filepath.Join(root, "porch", "projects"))
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected one project dir, got %v (err %v)", entries, err)
	}
}

func TestInitUnknownProtocolCommand(t *testing.T) {
	testRoot(t)

	if _, err := execute(t, "init", "nope", "0007", "gadget"); err == nil {
		t.Fatal("expected error for unknown protocol")
	}
}

func TestApproveAndStatusCommands(t *testing.T) {
	testRoot(t)

	if _, err := execute(t, "init", "mini", "0008", "widget"); err != nil {
		t.Fatalf("init: %v", err)
	}

	out, err := execute(t, "approve", "0008", "spec-approval")
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if !strings.Contains(out, "Gate spec-approval approved for project 0008") {
		t.Errorf("output missing confirmation: %q", out)
	}

	out, err = execute(t, "status", "0008")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "current_state:") || !strings.Contains(out, "0008") {
		t.Errorf("status output incomplete: %q", out)
	}
}

func TestApproveUnknownGateCommand(t *testing.T) {
	testRoot(t)

	if _, err := execute(t, "init", "mini", "0009", "widget"); err != nil {
		t.Fatalf("init: %v", err)
	}
	if _, err := execute(t, "approve", "0009", "no-such-gate"); err == nil {
		t.Fatal("expected error for unknown gate")
	}
}

func TestListCommand(t *testing.T) {
	testRoot(t)

	out, err := execute(t, "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "mini") || !strings.Contains(out, "gated two-phase protocol") {
		t.Errorf("list output incomplete: %q", out)
	}
}

func TestProjectsCommand(t *testing.T) {
	testRoot(t)

	if _, err := execute(t, "init", "mini", "0010", "widget"); err != nil {
		t.Fatalf("init: %v", err)
	}

	out, err := execute(t, "projects")
	if err != nil {
		t.Fatalf("projects: %v", err)
	}
	if !strings.Contains(out, "0010") || !strings.Contains(out, "specify:draft") {
		t.Errorf("projects output incomplete: %q", out)
	}
}

func TestRunStopsCleanlyOnCancel(t *testing.T) {
	testRoot(t)

	if _, err := execute(t, "init", "mini", "0011", "widget"); err != nil {
		t.Fatalf("init: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"run", "mini", "0011"})
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		t.Fatalf("expected clean exit after cancellation, got %v", err)
	}
	if !strings.Contains(out.String(), "run stopped") {
		t.Errorf("output missing stop notice: %q", out.String())
	}
}

func TestRunUnknownProjectFails(t *testing.T) {
	testRoot(t)

	if _, err := execute(t, "run", "mini", "9999"); err == nil {
		t.Fatal("expected error for unknown project")
	}
}

func TestShowCommand(t *testing.T) {
	testRoot(t)

	out, err := execute(t, "show", "mini")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	for _, want := range []string{
		"mini (v1.0)",
		"Initial state: specify:draft",
		"specify: Specify",
		"done: Done [terminal]",
		"spec-approval: after specify:draft -> plan:draft",
		"on PHASE_COMPLETE -> done",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("show output missing %q in %q", want, out)
		}
	}
}
