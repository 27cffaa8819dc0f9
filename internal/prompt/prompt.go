// Package prompt builds the instruction text handed to the agent for each
// phase. Protocols may ship per-phase markdown templates with {{variable}}
// placeholders; when a protocol has none, a generic fallback prompt is
// used. Every prompt ends with a footer telling the agent which completion
// markers to emit.
package prompt

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/Iron-Ham/porch/internal/plan"
	"github.com/Iron-Ham/porch/internal/protocol"
	"github.com/Iron-Ham/porch/internal/state"
)

// promptsDirs are searched in order under the project root for a
// protocol's prompt templates.
var promptsDirs = []string{
	"porch/protocols",
	"porch-skeleton/protocols",
	"skeleton/protocols",
}

func findPromptsDir(projectRoot, protocolName string) string {
	for _, base := range promptsDirs {
		dir := filepath.Join(projectRoot, base, protocolName, "prompts")
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir
		}
	}
	return ""
}

var placeholderRe = regexp.MustCompile(`\{\{(\w+)\}\}`)

// substitute replaces {{variable}} placeholders with project values.
// Placeholders without a value are left in place verbatim.
func substitute(tmpl string, s *state.ProjectState, planPhase *state.PlanPhase) string {
	vars := map[string]string{
		"project_id":    s.ID,
		"title":         s.Title,
		"current_state": s.CurrentState,
		"protocol":      s.Protocol,
	}
	if planPhase != nil {
		vars["plan_phase_id"] = planPhase.ID
		vars["plan_phase_title"] = planPhase.Title
	}

	return placeholderRe.ReplaceAllStringFunc(tmpl, func(m string) string {
		name := m[2 : len(m)-2]
		if v, ok := vars[name]; ok && v != "" {
			return v
		}
		return m
	})
}

// BuildPhasePrompt assembles the prompt for the project's current phase:
// the protocol's template for the phase when one exists, otherwise a
// generic fallback. Phased protocols get the current plan phase's details
// appended from the plan file.
func BuildPhasePrompt(projectRoot string, s *state.ProjectState, proto *protocol.Protocol) string {
	phaseID := protocol.PhaseOf(s.CurrentState)
	phase := proto.PhaseByID(phaseID)
	if phase == nil {
		return fallbackPrompt(s, "unknown", nil)
	}

	var planPhase *state.PlanPhase
	if proto.Phased(phaseID) && len(s.PlanPhases) > 0 {
		planPhase = plan.CurrentPhase(s.PlanPhases)
	}

	if dir := findPromptsDir(projectRoot, s.Protocol); dir != "" {
		if tmpl, err := os.ReadFile(filepath.Join(dir, phaseID+".md")); err == nil {
			result := substitute(string(tmpl), s, planPhase)
			if planPhase != nil {
				result = addPlanPhaseContext(projectRoot, s, planPhase, result)
			}
			return result + signalFooter()
		}
	}

	return fallbackPrompt(s, phase.Name, planPhase)
}

// addPlanPhaseContext appends the plan file's section for the current plan
// phase. A missing or unreadable plan leaves the prompt unchanged.
func addPlanPhaseContext(projectRoot string, s *state.ProjectState, planPhase *state.PlanPhase, prompt string) string {
	planPath := plan.FindFile(projectRoot, s.ID, s.Title)
	if planPath == "" {
		return prompt
	}

	content, err := os.ReadFile(planPath)
	if err != nil {
		return prompt
	}
	section := plan.PhaseContent(string(content), planPhase.ID)
	if section == "" {
		return prompt
	}

	return prompt + fmt.Sprintf("\n\n## Current Plan Phase Details\n\n**%s: %s**\n\n%s\n",
		planPhase.ID, planPhase.Title, section)
}

func signalFooter() string {
	return `

## Completion Signals

When you complete your work, output one of these signals:

- **Phase complete**: ` + "`PHASE_COMPLETE`" + `
- **Need human approval**: ` + "`GATE_NEEDED`" + `
- **Blocked on something**: ` + "`BLOCKED: <reason>`" + `

Output the signal on its own line when appropriate.
`
}

func fallbackPrompt(s *state.ProjectState, phaseName string, planPhase *state.PlanPhase) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Phase: %s\n\n", phaseName)
	fmt.Fprintf(&b, "You are executing the %s phase of the %s protocol.\n\n",
		phaseName, strings.ToUpper(s.Protocol))
	b.WriteString("## Context\n\n")
	fmt.Fprintf(&b, "- **Project ID**: %s\n", s.ID)
	fmt.Fprintf(&b, "- **Project Title**: %s\n", s.Title)
	fmt.Fprintf(&b, "- **Protocol**: %s\n", s.Protocol)
	if planPhase != nil {
		fmt.Fprintf(&b, "- **Plan Phase**: %s - %s\n", planPhase.ID, planPhase.Title)
	}
	b.WriteString("\n## Task\n\nComplete the work for this phase according to the protocol.\n\n")
	b.WriteString(signalFooter())
	return b.String()
}
