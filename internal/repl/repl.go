// Package repl is the interactive side-channel that runs while the agent
// works. It does not own the state machine: it can tail output, force-kill
// the agent for manual intervention, approve the blocking gate, or quit.
// It resolves to whichever happens first: a signal in the output, the
// agent exiting, or a user command.
package repl

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Iron-Ham/porch/internal/plan"
	"github.com/Iron-Ham/porch/internal/protocol"
	"github.com/Iron-Ham/porch/internal/signal"
	"github.com/Iron-Ham/porch/internal/state"
	"github.com/Iron-Ham/porch/internal/util"
)

// pollInterval is how often the REPL checks for signals and agent exit.
const pollInterval = time.Second

// tailLines is how many output lines the tail view shows.
const tailLines = 15

// tailWidth caps tail lines so long unwrapped agent output does not
// push the prompt off screen.
const tailWidth = 100

// ActionType identifies how the REPL resolved.
type ActionType string

const (
	// ActionQuit kills the agent and aborts the loop.
	ActionQuit ActionType = "quit"
	// ActionSignal reports a completion signal found in the output.
	ActionSignal ActionType = "signal"
	// ActionAgentExit reports the agent process exiting on its own.
	ActionAgentExit ActionType = "agent_exit"
	// ActionApproved reports the user approving the blocking gate.
	ActionApproved ActionType = "approved"
	// ActionManual kills the agent so the user can intervene; the loop
	// respawns it afterwards.
	ActionManual ActionType = "manual_agent"
)

// Action is the REPL's resolution. Exactly one is produced per run.
type Action struct {
	Type     ActionType
	Signal   *signal.Signal
	ExitCode int
}

// Proc is the running agent as the REPL sees it. *agent.Process satisfies it.
type Proc interface {
	Running() bool
	ExitCode() int
	Kill()
}

type tickMsg time.Time

var (
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#22D3EE"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	downStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	boldStyle   = lipgloss.NewStyle().Bold(true)
)

// Model is the bubbletea model for the REPL.
type Model struct {
	st         *state.ProjectState
	proto      *protocol.Protocol
	proc       Proc
	watcher    *signal.Watcher
	outputPath string
	statusPath string

	input   textinput.Model
	started time.Time
	tailing bool
	tail    []string
	message string
	action  *Action
}

// New creates a REPL model over a running agent.
func New(st *state.ProjectState, proc Proc, outputPath, statusPath string, proto *protocol.Protocol) Model {
	ti := textinput.New()
	ti.Prompt = ""
	ti.Placeholder = "t tail · c respawn · a approve · s status · q quit · ? help"
	ti.Focus()

	return Model{
		st:         st,
		proto:      proto,
		proc:       proc,
		watcher:    signal.Watch(outputPath),
		outputPath: outputPath,
		statusPath: statusPath,
		input:      ti,
		started:    time.Now(),
	}
}

// Action returns the REPL's resolution, or nil if it has not resolved.
func (m Model) Action() *Action {
	return m.action
}

func tick() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, tick())
}

// resolve records the single resolution and quits. Later events are inert.
func (m Model) resolve(a Action) (Model, tea.Cmd) {
	if m.action != nil {
		return m, nil
	}
	m.action = &a
	m.watcher.Stop()
	return m, tea.Quit
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		if m.action != nil {
			return m, nil
		}
		if sig := m.watcher.Check(); sig != nil {
			return m.resolve(Action{Type: ActionSignal, Signal: sig})
		}
		if !m.proc.Running() {
			return m.resolve(Action{Type: ActionAgentExit, ExitCode: m.proc.ExitCode()})
		}
		if m.tailing {
			m.tail = readTail(m.outputPath, tailLines)
		}
		return m, tick()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			m.proc.Kill()
			return m.resolve(Action{Type: ActionQuit})
		case tea.KeyEnter:
			return m.dispatch(strings.TrimSpace(strings.ToLower(m.input.Value())))
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// dispatch executes one REPL command.
func (m Model) dispatch(cmd string) (tea.Model, tea.Cmd) {
	m.input.SetValue("")
	m.message = ""

	switch cmd {
	case "":
		return m, nil

	case "t", "tail":
		m.tailing = !m.tailing
		if m.tailing {
			m.tail = readTail(m.outputPath, tailLines)
		}
		return m, nil

	case "c", "claude", "agent":
		m.proc.Kill()
		return m.resolve(Action{Type: ActionManual})

	case "a", "approve":
		gate := m.proto.GateForState(m.st.CurrentState)
		if gate == nil || m.st.GatePassed(gate.ID) {
			m.message = "No gate pending approval."
			return m, nil
		}
		ns := state.ApproveGate(m.st, gate.ID)
		if err := state.Write(m.statusPath, ns); err != nil {
			m.message = fmt.Sprintf("Approve failed: %v", err)
			return m, nil
		}
		m.st = ns
		return m.resolve(Action{Type: ActionApproved})

	case "s", "status":
		m.message = m.statusBlock()
		return m, nil

	case "q", "quit":
		m.proc.Kill()
		return m.resolve(Action{Type: ActionQuit})

	case "help", "?":
		m.message = helpText()
		return m, nil

	default:
		m.message = dimStyle.Render(fmt.Sprintf("Unknown command: %s. Type 'help' for commands.", cmd))
		return m, nil
	}
}

func (m Model) statusBlock() string {
	var b strings.Builder
	rule := boldStyle.Render(strings.Repeat("─", 50))
	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, "  Project: %s - %s\n", m.st.ID, util.TruncateString(m.st.Title, 40))
	fmt.Fprintf(&b, "  Protocol: %s\n", m.st.Protocol)

	phaseID := protocol.PhaseOf(m.st.CurrentState)
	phaseName := "unknown"
	if phase := m.proto.PhaseByID(phaseID); phase != nil {
		phaseName = phase.Name
	}
	fmt.Fprintf(&b, "  State: %s (%s)\n", m.st.CurrentState, phaseName)

	if m.proto.Phased(phaseID) && len(m.st.PlanPhases) > 0 {
		if cur := plan.CurrentPhase(m.st.PlanPhases); cur != nil {
			fmt.Fprintf(&b, "  Plan Phase: %s - %s\n", cur.ID, cur.Title)
		}
	}

	if gate := m.proto.GateForState(m.st.CurrentState); gate != nil {
		icon := warnIcon()
		if m.st.GatePassed(gate.ID) {
			icon = okStyle.Render("✓")
		}
		fmt.Fprintf(&b, "  Gate: %s %s\n", gate.ID, icon)
	}

	agentState := okStyle.Render("running")
	if !m.proc.Running() {
		agentState = downStyle.Render("exited")
	}
	fmt.Fprintf(&b, "  Agent: %s (%s)\n", agentState, util.FormatElapsed(time.Since(m.started)))
	fmt.Fprintln(&b, rule)
	return b.String()
}

func warnIcon() string {
	return lipgloss.NewStyle().Foreground(lipgloss.Color("#FBBF24")).Render("○")
}

func helpText() string {
	return strings.Join([]string{
		boldStyle.Render("Commands:"),
		"  t / tail     - Toggle output tail",
		"  c / agent    - Kill agent and respawn (manual intervention)",
		"  a / approve  - Approve pending gate",
		"  s / status   - Show detailed status",
		"  q / quit     - Kill agent and exit",
		"  help / ?     - Show this help",
	}, "\n")
}

func (m Model) View() string {
	var b strings.Builder

	if m.tailing && len(m.tail) > 0 {
		b.WriteString(dimStyle.Render(strings.Join(m.tail, "\n")))
		b.WriteString("\n\n")
	}
	if m.message != "" {
		b.WriteString(m.message)
		b.WriteString("\n")
	}

	agentState := okStyle.Render("running")
	if !m.proc.Running() {
		agentState = downStyle.Render("exited")
	}
	prompt := promptStyle.Render(fmt.Sprintf("[%s] agent: %s (%s) > ",
		m.st.ID, agentState, util.FormatElapsed(time.Since(m.started))))
	b.WriteString(prompt)
	b.WriteString(m.input.View())
	return b.String()
}

// readTail returns the last n lines of the file, or nothing if unreadable.
func readTail(path string, n int) []string {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	for i, line := range lines {
		lines[i] = util.TruncateANSI(line, tailWidth)
	}
	return lines
}

// Run drives the REPL until it resolves and returns the action.
func Run(st *state.ProjectState, proc Proc, outputPath, statusPath string, proto *protocol.Protocol) (*Action, error) {
	p := tea.NewProgram(New(st, proc, outputPath, statusPath, proto))
	final, err := p.Run()
	if err != nil {
		return nil, err
	}
	m, ok := final.(Model)
	if !ok || m.Action() == nil {
		return &Action{Type: ActionQuit}, nil
	}
	return m.Action(), nil
}
