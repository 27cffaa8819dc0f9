package protocol

// BackpressureCheck is an automated pass/fail command gating a transition,
// such as a test or build run.
type BackpressureCheck struct {
	Command string `json:"command"`
	OnFail  string `json:"on_fail"`
}

// Phase is a named stage of work within a protocol. A phase may declare
// substates; the compound state string is "phase:substate".
type Phase struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Prompt          string   `json:"prompt,omitempty"`
	Substates       []string `json:"substates,omitempty"`
	InitialSubstate string   `json:"initial_substate,omitempty"`
	// Signals maps a signal name emitted by the agent to the next state.
	Signals  map[string]string `json:"signals,omitempty"`
	Terminal bool              `json:"terminal,omitempty"`
	// Phased marks a phase driven by the plan-phase checklist.
	Phased       bool                         `json:"phased,omitempty"`
	Backpressure map[string]BackpressureCheck `json:"backpressure,omitempty"`
}

// Gate blocks progress past AfterState until approved, then advances the
// project to NextState.
type Gate struct {
	ID          string `json:"id"`
	AfterState  string `json:"after_state"`
	NextState   string `json:"next_state"`
	Type        string `json:"type"` // "human" or "automated"
	Description string `json:"description,omitempty"`
}

// TransitionConfig describes where a state goes when no signal mapping applies.
type TransitionConfig struct {
	Default            string `json:"default,omitempty"`
	OnGatePass         string `json:"on_gate_pass,omitempty"`
	WaitFor            string `json:"wait_for,omitempty"`
	OnBackpressurePass string `json:"on_backpressure_pass,omitempty"`
	OnBackpressureFail string `json:"on_backpressure_fail,omitempty"`
}

// Config holds per-protocol loop tuning.
type Config struct {
	// PollInterval is the gate polling interval in seconds.
	PollInterval int `json:"poll_interval"`
	// MaxIterations caps the orchestration loop.
	MaxIterations int `json:"max_iterations"`
	// PromptsDir names the prompt directory relative to the protocol dir.
	PromptsDir string `json:"prompts_dir,omitempty"`
}

// Protocol is the static definition of phases, gates, and transitions a
// project follows. Loaded once per run and immutable afterwards; lookup
// queries go through pre-built indices.
type Protocol struct {
	Schema       string                      `json:"$schema,omitempty"`
	Name         string                      `json:"name"`
	Version      string                      `json:"version"`
	Description  string                      `json:"description"`
	Phases       []Phase                     `json:"phases"`
	Gates        []Gate                      `json:"gates"`
	Transitions  map[string]TransitionConfig `json:"transitions"`
	InitialState string                      `json:"initial_state"`
	Config       Config                      `json:"config"`

	phaseByID   map[string]*Phase
	gateByID    map[string]*Gate
	gateByAfter map[string]*Gate
}

// buildIndex populates the lookup maps. Called once at load time.
func (p *Protocol) buildIndex() {
	p.phaseByID = make(map[string]*Phase, len(p.Phases))
	for i := range p.Phases {
		p.phaseByID[p.Phases[i].ID] = &p.Phases[i]
	}

	p.gateByID = make(map[string]*Gate, len(p.Gates))
	p.gateByAfter = make(map[string]*Gate, len(p.Gates))
	for i := range p.Gates {
		p.gateByID[p.Gates[i].ID] = &p.Gates[i]
		p.gateByAfter[p.Gates[i].AfterState] = &p.Gates[i]
	}
}

// PhaseByID returns the phase with the given ID, or nil.
func (p *Protocol) PhaseByID(id string) *Phase {
	return p.phaseByID[id]
}

// TerminalPhase reports whether the given phase ID is flagged terminal.
// Unknown phase IDs are not terminal.
func (p *Protocol) TerminalPhase(phaseID string) bool {
	phase := p.phaseByID[phaseID]
	return phase != nil && phase.Terminal
}

// GateForState returns the gate blocking the given compound state, or nil
// when the state is not gated.
func (p *Protocol) GateForState(state string) *Gate {
	return p.gateByAfter[state]
}

// GateByID returns the gate with the given ID, or nil.
func (p *Protocol) GateByID(id string) *Gate {
	return p.gateByID[id]
}

// GateNextState returns the state reached when the given gate passes,
// or "" for an unknown gate.
func (p *Protocol) GateNextState(gateID string) string {
	gate := p.gateByID[gateID]
	if gate == nil {
		return ""
	}
	return gate.NextState
}

// SignalNextState returns the state mapped to the given signal for a phase,
// or "" when the phase has no mapping for it.
func (p *Protocol) SignalNextState(phaseID, signal string) string {
	phase := p.phaseByID[phaseID]
	if phase == nil {
		return ""
	}
	return phase.Signals[signal]
}

// DefaultTransition returns the default next state configured for a compound
// state, or "" when none is defined.
func (p *Protocol) DefaultTransition(state string) string {
	return p.Transitions[state].Default
}

// Phased reports whether the phase for the given phase ID is driven by the
// plan-phase checklist.
func (p *Protocol) Phased(phaseID string) bool {
	phase := p.phaseByID[phaseID]
	return phase != nil && phase.Phased
}
