package plan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Iron-Ham/porch/internal/state"
)

const samplePlan = `# Plan 0073: Test Feature

## Phases

` + "```json" + `
{"phases": [
  {"id": "phase_1", "title": "Core types"},
  {"id": "phase_2", "title": "Wire protocol"},
  {"id": "phase_3", "title": "CLI"}
]}
` + "```" + `

### Phase 1: Core types

Define the structs.

### Phase 2: Wire protocol

Implement encode and decode.

### Phase 3: CLI

Add the commands.

## Risks

None.
`

func TestExtractPhases(t *testing.T) {
	phases := ExtractPhases(samplePlan)

	if len(phases) != 3 {
		t.Fatalf("got %d phases, want 3", len(phases))
	}
	if phases[0].ID != "phase_1" || phases[0].Title != "Core types" {
		t.Errorf("phase 0 = %+v", phases[0])
	}
	if phases[0].Status != state.StatusInProgress {
		t.Errorf("first phase status = %q, want in_progress", phases[0].Status)
	}
	for _, p := range phases[1:] {
		if p.Status != state.StatusPending {
			t.Errorf("phase %s status = %q, want pending", p.ID, p.Status)
		}
	}
}

func TestExtractPhasesFallback(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"no json block", "# Plan\n\nJust prose.\n"},
		{"invalid json", "```json\n{not json\n```\n"},
		{"json without phases", "```json\n{\"other\": true}\n```\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			phases := ExtractPhases(tt.content)
			if len(phases) != 1 {
				t.Fatalf("got %d phases, want 1", len(phases))
			}
			if phases[0].ID != "phase_1" || phases[0].Title != "Implementation" {
				t.Errorf("fallback phase = %+v", phases[0])
			}
			if phases[0].Status != state.StatusInProgress {
				t.Errorf("fallback status = %q", phases[0].Status)
			}
		})
	}
}

func TestCurrentPhase(t *testing.T) {
	phases := []state.PlanPhase{
		{ID: "phase_1", Status: state.StatusComplete},
		{ID: "phase_2", Status: state.StatusInProgress},
		{ID: "phase_3", Status: state.StatusPending},
	}

	cur := CurrentPhase(phases)
	if cur == nil || cur.ID != "phase_2" {
		t.Errorf("CurrentPhase = %+v, want phase_2", cur)
	}

	for i := range phases {
		phases[i].Status = state.StatusComplete
	}
	if cur := CurrentPhase(phases); cur != nil {
		t.Errorf("CurrentPhase on finished plan = %+v, want nil", cur)
	}
}

func TestNextPhase(t *testing.T) {
	phases := []state.PlanPhase{
		{ID: "phase_1"}, {ID: "phase_2"}, {ID: "phase_3"},
	}

	next := NextPhase(phases, "phase_1")
	if next == nil || next.ID != "phase_2" {
		t.Errorf("NextPhase(phase_1) = %+v", next)
	}
	if next := NextPhase(phases, "phase_3"); next != nil {
		t.Errorf("NextPhase(last) = %+v, want nil", next)
	}
	if next := NextPhase(phases, "nope"); next != nil {
		t.Errorf("NextPhase(unknown) = %+v, want nil", next)
	}
}

func TestAdvance(t *testing.T) {
	phases := []state.PlanPhase{
		{ID: "phase_1", Status: state.StatusInProgress},
		{ID: "phase_2", Status: state.StatusPending},
	}

	updated, done := Advance(phases, "phase_1")
	if done {
		t.Error("plan reported finished with a phase remaining")
	}
	if updated[0].Status != state.StatusComplete {
		t.Errorf("phase_1 status = %q", updated[0].Status)
	}
	if updated[1].Status != state.StatusInProgress {
		t.Errorf("phase_2 status = %q", updated[1].Status)
	}
	// Input slice untouched.
	if phases[0].Status != state.StatusInProgress {
		t.Error("Advance mutated its input")
	}

	updated, done = Advance(updated, "phase_2")
	if !done {
		t.Error("plan not reported finished after last phase")
	}
	if !AllComplete(updated) {
		t.Error("AllComplete = false after advancing every phase")
	}
}

func TestAdvanceUnknownPhase(t *testing.T) {
	phases := []state.PlanPhase{{ID: "phase_1", Status: state.StatusInProgress}}
	updated, done := Advance(phases, "phase_9")
	if done {
		t.Error("unknown phase reported the plan finished")
	}
	if updated[0].Status != state.StatusInProgress {
		t.Errorf("unknown phase changed status to %q", updated[0].Status)
	}
}

func TestPhaseContent(t *testing.T) {
	content := PhaseContent(samplePlan, "phase_2")
	if content != "Implement encode and decode." {
		t.Errorf("PhaseContent(phase_2) = %q", content)
	}

	// Last phase section ends at the next ## header.
	content = PhaseContent(samplePlan, "phase_3")
	if content != "Add the commands." {
		t.Errorf("PhaseContent(phase_3) = %q", content)
	}

	if got := PhaseContent(samplePlan, "phase_9"); got != "" {
		t.Errorf("PhaseContent(missing) = %q, want empty", got)
	}
	if got := PhaseContent(samplePlan, "not-a-phase"); got != "" {
		t.Errorf("PhaseContent(malformed id) = %q, want empty", got)
	}
}

func TestFindFile(t *testing.T) {
	root := t.TempDir()

	projectPlan := filepath.Join(state.ProjectDir(root, "0073", "test-feature"), "plan.md")
	if err := os.MkdirAll(filepath.Dir(projectPlan), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(projectPlan, []byte(samplePlan), 0o644); err != nil {
		t.Fatal(err)
	}

	if got := FindFile(root, "0073", "test-feature"); got != projectPlan {
		t.Errorf("FindFile = %q, want %q", got, projectPlan)
	}
	if got := FindFile(root, "9999", "other"); got != "" {
		t.Errorf("FindFile(missing) = %q, want empty", got)
	}
}

func TestFindFileFlatPlansDir(t *testing.T) {
	root := t.TempDir()
	plansDir := filepath.Join(root, "porch", "plans")
	if err := os.MkdirAll(plansDir, 0o755); err != nil {
		t.Fatal(err)
	}
	flat := filepath.Join(plansDir, "0073-test-feature.md")
	if err := os.WriteFile(flat, []byte(samplePlan), 0o644); err != nil {
		t.Fatal(err)
	}

	if got := FindFile(root, "0073", ""); got != flat {
		t.Errorf("FindFile = %q, want %q", got, flat)
	}
}

func TestExtractPhasesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.md")
	if err := os.WriteFile(path, []byte(samplePlan), 0o644); err != nil {
		t.Fatal(err)
	}

	phases, err := ExtractPhasesFromFile(path)
	if err != nil {
		t.Fatalf("ExtractPhasesFromFile: %v", err)
	}
	if len(phases) != 3 {
		t.Errorf("got %d phases, want 3", len(phases))
	}

	if _, err := ExtractPhasesFromFile(filepath.Join(t.TempDir(), "nope.md")); err == nil {
		t.Error("expected error for missing plan file")
	}
}
