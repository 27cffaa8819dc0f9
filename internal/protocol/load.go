// Package protocol loads and indexes protocol definitions.
//
// A protocol is a declarative JSON document naming the phases, gates, and
// transitions a project moves through. Definitions resolve from the
// project-local porch/protocols directory first, falling back to the
// skeleton definitions bundled into the binary.
package protocol

import (
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Iron-Ham/porch/internal/errors"
)

//go:embed skeleton/*.json
var skeletonFS embed.FS

// LocalDir is the project-relative directory holding protocol overrides.
const LocalDir = "porch/protocols"

// Load resolves a named protocol, preferring a local override under
// projectRoot, then the bundled skeleton. The returned Protocol is
// validated and indexed.
func Load(name, projectRoot string) (*Protocol, error) {
	data, err := readDefinition(name, projectRoot)
	if err != nil {
		return nil, err
	}

	var p Protocol
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("protocol %s: invalid JSON: %w", name, err)
	}
	if p.Name == "" {
		p.Name = name
	}

	p.buildIndex()
	if err := p.validate(); err != nil {
		return nil, fmt.Errorf("protocol %s: %w", name, err)
	}
	return &p, nil
}

func readDefinition(name, projectRoot string) ([]byte, error) {
	localPath := filepath.Join(projectRoot, LocalDir, name+".json")
	if data, err := os.ReadFile(localPath); err == nil {
		return data, nil
	}

	if data, err := skeletonFS.ReadFile("skeleton/" + name + ".json"); err == nil {
		return data, nil
	}

	hint := "Available protocols: " + strings.Join(List(projectRoot), ", ")
	return nil, errors.NewNotFoundError("protocol", name).WithHint(hint)
}

// List enumerates the available protocol names, locals and bundled skeletons
// merged and sorted.
func List(projectRoot string) []string {
	seen := make(map[string]bool)

	localDir := filepath.Join(projectRoot, LocalDir)
	if entries, err := os.ReadDir(localDir); err == nil {
		for _, e := range entries {
			if name, ok := strings.CutSuffix(e.Name(), ".json"); ok && !e.IsDir() {
				seen[name] = true
			}
		}
	}

	if entries, err := skeletonFS.ReadDir("skeleton"); err == nil {
		for _, e := range entries {
			if name, ok := strings.CutSuffix(e.Name(), ".json"); ok {
				seen[name] = true
			}
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// validate checks the structural invariants: every state referenced by
// transitions, gates, and phase signal maps must resolve to an existing
// phase (optionally suffixed with a declared substate), and the initial
// state must resolve.
func (p *Protocol) validate() error {
	if len(p.Phases) == 0 {
		return errors.NewValidationError("phases", "protocol declares no phases")
	}

	if !p.stateResolves(p.InitialState) {
		return errors.NewValidationError("initial_state",
			fmt.Sprintf("%q does not resolve to a phase", p.InitialState))
	}

	for _, g := range p.Gates {
		if !p.stateResolves(g.AfterState) {
			return errors.NewValidationError("gates."+g.ID+".after_state",
				fmt.Sprintf("%q does not resolve to a phase", g.AfterState))
		}
		if !p.stateResolves(g.NextState) {
			return errors.NewValidationError("gates."+g.ID+".next_state",
				fmt.Sprintf("%q does not resolve to a phase", g.NextState))
		}
	}

	for state, tc := range p.Transitions {
		if !p.stateResolves(state) {
			return errors.NewValidationError("transitions."+state,
				"key does not resolve to a phase")
		}
		for field, target := range map[string]string{
			"default":              tc.Default,
			"on_gate_pass":         tc.OnGatePass,
			"on_backpressure_pass": tc.OnBackpressurePass,
			"on_backpressure_fail": tc.OnBackpressureFail,
		} {
			if target != "" && !p.stateResolves(target) {
				return errors.NewValidationError("transitions."+state+"."+field,
					fmt.Sprintf("%q does not resolve to a phase", target))
			}
		}
	}

	for _, phase := range p.Phases {
		for sig, target := range phase.Signals {
			if !p.stateResolves(target) {
				return errors.NewValidationError("phases."+phase.ID+".signals."+sig,
					fmt.Sprintf("%q does not resolve to a phase", target))
			}
		}
	}

	if p.Config.MaxIterations <= 0 {
		return errors.NewValidationError("config.max_iterations", "must be positive")
	}
	if p.Config.PollInterval <= 0 {
		return errors.NewValidationError("config.poll_interval", "must be positive")
	}

	return nil
}

// stateResolves reports whether a compound "phase[:substate]" string names
// an existing phase and, when a substate is present, one the phase declares.
func (p *Protocol) stateResolves(state string) bool {
	if state == "" {
		return false
	}

	phaseID, substate, _ := strings.Cut(state, ":")
	phase := p.phaseByID[phaseID]
	if phase == nil {
		return false
	}
	if substate == "" {
		return true
	}
	for _, s := range phase.Substates {
		if s == substate {
			return true
		}
	}
	return false
}

// PhaseOf returns the phase component of a compound state string.
func PhaseOf(state string) string {
	phaseID, _, _ := strings.Cut(state, ":")
	return phaseID
}
