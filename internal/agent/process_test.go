package agent

import (
	"path/filepath"
	"testing"
	"time"
)

func TestSpawnMissingBinary(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "out.txt")
	_, err := Spawn("definitely-not-a-real-binary-xyz", "prompt", outputPath, t.TempDir(), false, time.Second)
	if err == nil {
		t.Fatal("expected error for missing binary")
	}
}

func TestProcessExit(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "out.txt")
	// "true" ignores its arguments and exits 0 immediately.
	p, err := Spawn("true", "prompt", outputPath, t.TempDir(), false, time.Second)
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}

	select {
	case <-p.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit")
	}

	if p.Running() {
		t.Error("Running = true after exit")
	}
	if code := p.ExitCode(); code != 0 {
		t.Errorf("ExitCode = %d, want 0", code)
	}

	// Kill after exit is a no-op.
	p.Kill()
}
