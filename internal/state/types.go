// Package state manages the durable per-project status file.
//
// A status file is a markdown document with a YAML frontmatter block holding
// the structured fields and a free-form body below it. Serialize and Parse
// are a canonical round-trip pair: every structured field survives the trip.
// Mutators are pure; persistence is an explicit, atomic write step.
package state

// Gate and check statuses stored in the status file.
const (
	StatusPending    = "pending"
	StatusPassed     = "passed"
	StatusFailed     = "failed"
	StatusInProgress = "in_progress"
	StatusComplete   = "complete"
)

// GateState records one gate's approval progress. A gate only ever moves
// pending to passed, never backward.
type GateState struct {
	Status      string `yaml:"status"`
	RequestedAt string `yaml:"requested_at,omitempty"`
	ApprovedAt  string `yaml:"approved_at,omitempty"`
}

// CheckState records one backpressure check's outcome.
type CheckState struct {
	Status string `yaml:"status"`
}

// PhaseState records one implementation phase's checklist status.
type PhaseState struct {
	Status string `yaml:"status"`
	Title  string `yaml:"title,omitempty"`
}

// PlanPhase is one entry of the plan-derived implementation checklist.
type PlanPhase struct {
	ID     string `yaml:"id"`
	Title  string `yaml:"title"`
	Status string `yaml:"status"`
}

// LogEntry records one committed state transition. The log is append-only
// and never reordered.
type LogEntry struct {
	From   string `yaml:"from"`
	To     string `yaml:"to"`
	Signal string `yaml:"signal,omitempty"`
	At     string `yaml:"at"`
}

// ProjectState is one project's progress through a protocol. The status
// file on disk is the source of truth; consumers re-read it rather than
// caching across loop iterations so out-of-band edits (gate approvals)
// take effect on the next iteration.
type ProjectState struct {
	ID           string                `yaml:"id"`
	Title        string                `yaml:"title"`
	Protocol     string                `yaml:"protocol"`
	CurrentState string                `yaml:"current_state"`
	Iteration    int                   `yaml:"iteration"`
	Worktree     string                `yaml:"worktree,omitempty"`
	Gates        map[string]GateState  `yaml:"gates"`
	Backpressure map[string]CheckState `yaml:"backpressure,omitempty"`
	Phases       map[string]PhaseState `yaml:"phases"`
	PlanPhases   []PlanPhase           `yaml:"plan_phases,omitempty"`
	StartedAt    string                `yaml:"started_at"`
	LastUpdated  string                `yaml:"last_updated"`
	Log          []LogEntry            `yaml:"log"`

	// Body is the free-form markdown below the frontmatter,
	// preserved opaquely across the round trip.
	Body string `yaml:"-"`
}

// Clone returns a deep copy. Mutators operate on copies so callers never
// observe partial in-place updates.
func (s *ProjectState) Clone() *ProjectState {
	c := *s

	c.Gates = make(map[string]GateState, len(s.Gates))
	for k, v := range s.Gates {
		c.Gates[k] = v
	}

	if s.Backpressure != nil {
		c.Backpressure = make(map[string]CheckState, len(s.Backpressure))
		for k, v := range s.Backpressure {
			c.Backpressure[k] = v
		}
	}

	c.Phases = make(map[string]PhaseState, len(s.Phases))
	for k, v := range s.Phases {
		c.Phases[k] = v
	}

	c.PlanPhases = make([]PlanPhase, len(s.PlanPhases))
	copy(c.PlanPhases, s.PlanPhases)

	c.Log = make([]LogEntry, len(s.Log))
	copy(c.Log, s.Log)

	return &c
}
