// Package signal recognizes completion markers in agent output. Agents
// report progress by emitting marker lines (PHASE_COMPLETE, GATE_NEEDED,
// BLOCKED: <reason>) or a tagged form (<signal>NAME</signal>); this package
// provides a one-shot parser for complete output and an incremental watcher
// that scans a growing output file without re-reading consumed bytes.
package signal

import (
	"regexp"
	"strings"
)

// Type identifies which marker an agent emitted.
type Type string

const (
	PhaseComplete Type = "PHASE_COMPLETE"
	GateNeeded    Type = "GATE_NEEDED"
	Blocked       Type = "BLOCKED"
)

// Signal is a marker extracted from agent output. Reason is set only for
// Blocked signals.
type Signal struct {
	Type   Type
	Reason string
}

var (
	taggedRe  = regexp.MustCompile(`<signal>\s*([A-Z_]+)\s*</signal>`)
	blockedRe = regexp.MustCompile(`BLOCKED:\s*(.+)`)
)

// parseLine scans a single line for a marker. The tagged form carries any
// name through, so protocols can route custom signals (SPEC_READY,
// PLAN_READY) via their signal maps. Among the bare markers,
// PHASE_COMPLETE takes priority over GATE_NEEDED, which takes priority
// over BLOCKED.
func parseLine(line string) *Signal {
	if m := taggedRe.FindStringSubmatch(line); m != nil {
		return &Signal{Type: Type(m[1])}
	}
	if strings.Contains(line, string(PhaseComplete)) {
		return &Signal{Type: PhaseComplete}
	}
	if strings.Contains(line, string(GateNeeded)) {
		return &Signal{Type: GateNeeded}
	}
	if m := blockedRe.FindStringSubmatch(line); m != nil {
		return &Signal{Type: Blocked, Reason: strings.TrimSpace(m[1])}
	}
	return nil
}

// Parse scans a complete output string line by line and returns the first
// signal found, or nil if the output contains no marker.
func Parse(content string) *Signal {
	for _, line := range strings.Split(content, "\n") {
		if sig := parseLine(line); sig != nil {
			return sig
		}
	}
	return nil
}
