package state

import (
	"time"
)

// nowFunc returns the current time; replaced in tests for stable timestamps.
var nowFunc = time.Now

func timestamp() string {
	return nowFunc().UTC().Format(time.RFC3339)
}

// UpdateMeta carries optional context for a state transition.
type UpdateMeta struct {
	// Signal is the agent signal that triggered the transition, if any.
	Signal string
}

// Update returns a copy of s advanced to newState: iteration incremented by
// exactly one, exactly one log entry appended recording the transition, and
// last_updated stamped. The input state is not modified.
func Update(s *ProjectState, newState string, meta *UpdateMeta) *ProjectState {
	c := s.Clone()

	entry := LogEntry{
		From: s.CurrentState,
		To:   newState,
		At:   timestamp(),
	}
	if meta != nil {
		entry.Signal = meta.Signal
	}

	c.CurrentState = newState
	c.Iteration = s.Iteration + 1
	c.Log = append(c.Log, entry)
	c.LastUpdated = entry.At
	return c
}

// ApproveGate returns a copy of s with the gate marked passed and stamped.
// Approving an already-passed gate is idempotent: the status stays passed
// and the original approval timestamp is kept.
func ApproveGate(s *ProjectState, gateID string) *ProjectState {
	c := s.Clone()

	gate := c.Gates[gateID]
	if gate.Status == StatusPassed {
		return c
	}
	gate.Status = StatusPassed
	gate.ApprovedAt = timestamp()
	c.Gates[gateID] = gate
	c.LastUpdated = gate.ApprovedAt
	return c
}

// RequestGateApproval returns a copy of s with the gate marked pending and
// its request time stamped. A gate that has already passed is left alone;
// gates never move backward.
func RequestGateApproval(s *ProjectState, gateID string) *ProjectState {
	c := s.Clone()

	gate := c.Gates[gateID]
	if gate.Status == StatusPassed {
		return c
	}
	if gate.Status != StatusPending || gate.RequestedAt == "" {
		gate.Status = StatusPending
		gate.RequestedAt = timestamp()
		c.Gates[gateID] = gate
		c.LastUpdated = gate.RequestedAt
	}
	return c
}

// GatePassed reports whether the named gate has been approved.
func (s *ProjectState) GatePassed(gateID string) bool {
	return s.Gates[gateID].Status == StatusPassed
}

// UpdatePhaseStatus returns a copy of s with one checklist phase's status
// replaced. The phase's title is preserved.
func UpdatePhaseStatus(s *ProjectState, phaseID, status string) *ProjectState {
	c := s.Clone()

	phase := c.Phases[phaseID]
	phase.Status = status
	c.Phases[phaseID] = phase

	for i := range c.PlanPhases {
		if c.PlanPhases[i].ID == phaseID {
			c.PlanPhases[i].Status = status
		}
	}

	c.LastUpdated = timestamp()
	return c
}

// SetPlanPhases returns a copy of s with the plan checklist installed.
// Every checklist entry without an explicit status is seeded pending, and
// the phases map gains a pending entry per plan phase.
func SetPlanPhases(s *ProjectState, phases []PlanPhase) *ProjectState {
	c := s.Clone()

	c.PlanPhases = make([]PlanPhase, len(phases))
	for i, p := range phases {
		if p.Status == "" {
			p.Status = StatusPending
		}
		c.PlanPhases[i] = p
		c.Phases[p.ID] = PhaseState{Status: StatusPending, Title: p.Title}
	}
	c.LastUpdated = timestamp()
	return c
}

// SetBackpressure returns a copy of s with one backpressure check's status
// replaced.
func SetBackpressure(s *ProjectState, check, status string) *ProjectState {
	c := s.Clone()

	if c.Backpressure == nil {
		c.Backpressure = make(map[string]CheckState)
	}
	c.Backpressure[check] = CheckState{Status: status}
	c.LastUpdated = timestamp()
	return c
}

// New creates an initial ProjectState for a freshly initialized project.
// All provided gate IDs are seeded pending and the log carries a single
// initialization entry.
func New(id, title, protocolName, initialState string, gateIDs []string) *ProjectState {
	now := timestamp()

	gates := make(map[string]GateState, len(gateIDs))
	for _, g := range gateIDs {
		gates[g] = GateState{Status: StatusPending}
	}

	return &ProjectState{
		ID:           id,
		Title:        title,
		Protocol:     protocolName,
		CurrentState: initialState,
		Iteration:    0,
		Gates:        gates,
		Backpressure: map[string]CheckState{
			"tests_pass": {Status: StatusPending},
			"build_pass": {Status: StatusPending},
		},
		Phases:      make(map[string]PhaseState),
		StartedAt:   now,
		LastUpdated: now,
		Log: []LogEntry{
			{From: "", To: initialState, At: now},
		},
	}
}
