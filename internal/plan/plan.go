// Package plan extracts the implementation checklist from a project's
// plan.md. Plans declare their phases in a fenced JSON block
// ({"phases": [{"id": "phase_1", "title": "..."}]}); a plan without one is
// treated as a single "Implementation" phase. Phase prose lives under
// "### Phase N:" headers in the same file.
package plan

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/Iron-Ham/porch/internal/state"
)

// FindFile locates the plan file for a project, checking the project
// directory first and the flat plans directory second. Returns "" when no
// plan exists.
func FindFile(projectRoot, projectID, projectTitle string) string {
	var candidates []string

	if projectTitle != "" {
		candidates = append(candidates, filepath.Join(state.ProjectDir(projectRoot, projectID, projectTitle), "plan.md"))
	}

	plansDir := filepath.Join(projectRoot, "porch", "plans")
	if entries, err := os.ReadDir(plansDir); err == nil {
		for _, e := range entries {
			name := e.Name()
			if strings.HasPrefix(name, projectID+"-") && strings.HasSuffix(name, ".md") {
				candidates = append(candidates, filepath.Join(plansDir, name))
				break
			}
		}
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

var jsonBlockRe = regexp.MustCompile("(?s)```json\\s*\\n(.*?)\\n```")

// ExtractPhases parses the phase checklist out of plan markdown. The first
// phase starts in_progress and the rest pending. A plan without a parseable
// phases block yields a single catch-all phase.
func ExtractPhases(content string) []state.PlanPhase {
	if m := jsonBlockRe.FindStringSubmatch(content); m != nil {
		var block struct {
			Phases []struct {
				ID    string `json:"id"`
				Title string `json:"title"`
			} `json:"phases"`
		}
		if err := json.Unmarshal([]byte(m[1]), &block); err == nil && len(block.Phases) > 0 {
			phases := make([]state.PlanPhase, len(block.Phases))
			for i, p := range block.Phases {
				status := state.StatusPending
				if i == 0 {
					status = state.StatusInProgress
				}
				phases[i] = state.PlanPhase{ID: p.ID, Title: p.Title, Status: status}
			}
			return phases
		}
	}

	return []state.PlanPhase{{ID: "phase_1", Title: "Implementation", Status: state.StatusInProgress}}
}

// ExtractPhasesFromFile reads a plan file and extracts its phases. Unlike
// FindFile, a missing file here is an error: by the time phases are needed
// the plan must exist.
func ExtractPhasesFromFile(path string) ([]state.PlanPhase, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading plan file %s: %w", path, err)
	}
	return ExtractPhases(string(content)), nil
}

// CurrentPhase returns the first phase that is not complete, or nil when
// every phase is done.
func CurrentPhase(phases []state.PlanPhase) *state.PlanPhase {
	for i := range phases {
		if phases[i].Status != state.StatusComplete {
			return &phases[i]
		}
	}
	return nil
}

// NextPhase returns the phase after the given one, or nil at the end of the
// checklist.
func NextPhase(phases []state.PlanPhase, currentID string) *state.PlanPhase {
	for i := range phases {
		if phases[i].ID == currentID && i < len(phases)-1 {
			return &phases[i+1]
		}
	}
	return nil
}

// AllComplete reports whether every phase in the checklist is complete.
func AllComplete(phases []state.PlanPhase) bool {
	for _, p := range phases {
		if p.Status != state.StatusComplete {
			return false
		}
	}
	return true
}

// Advance marks the given phase complete and the following phase
// in_progress. It returns the updated checklist and whether the whole plan
// is now finished. An unknown phase id leaves the checklist unchanged.
func Advance(phases []state.PlanPhase, currentID string) ([]state.PlanPhase, bool) {
	idx := -1
	for i := range phases {
		if phases[i].ID == currentID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return phases, false
	}

	updated := make([]state.PlanPhase, len(phases))
	copy(updated, phases)
	updated[idx].Status = state.StatusComplete
	if idx+1 < len(updated) {
		updated[idx+1].Status = state.StatusInProgress
	}

	return updated, AllComplete(updated)
}

var phaseNumRe = regexp.MustCompile(`phase_(\d+)`)

// PhaseContent extracts the prose under a "### Phase N:" header, up to the
// next phase header or section. Returns "" when the plan has no section for
// the phase.
func PhaseContent(planContent, phaseID string) string {
	m := phaseNumRe.FindStringSubmatch(phaseID)
	if m == nil {
		return ""
	}

	re := regexp.MustCompile(`(?is)###\s*Phase\s+` + m[1] + `:\s*[^\n]+\n(.*?)(\n###\s*Phase|\n##\s|$)`)
	sec := re.FindStringSubmatch(planContent)
	if sec == nil {
		return ""
	}
	return strings.TrimSpace(sec[1])
}
