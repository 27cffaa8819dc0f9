// Package orch drives the protocol state machine. Each iteration reads the
// project's status file fresh from disk, applies one transition policy
// (gate block, terminal exit, or phase execution), and commits the result
// back to disk. The status file is the only shared state: gate approvals
// made out-of-band take effect on the very next iteration.
package orch

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/Iron-Ham/porch/internal/agent"
	"github.com/Iron-Ham/porch/internal/config"
	porcherr "github.com/Iron-Ham/porch/internal/errors"
	"github.com/Iron-Ham/porch/internal/logging"
	"github.com/Iron-Ham/porch/internal/notify"
	"github.com/Iron-Ham/porch/internal/plan"
	"github.com/Iron-Ham/porch/internal/prompt"
	"github.com/Iron-Ham/porch/internal/protocol"
	"github.com/Iron-Ham/porch/internal/signal"
	"github.com/Iron-Ham/porch/internal/state"
)

// Builder runs one supervised agent invocation. *agent.Builder satisfies
// it; tests substitute a scripted implementation.
type Builder interface {
	BuildWithTimeout(ctx context.Context, prompt, outputPath, cwd string, timeout time.Duration) agent.BuildResult
}

// Options tunes one Run invocation.
type Options struct {
	// DryRun skips agent invocation entirely; transitions still follow
	// the protocol's defaults.
	DryRun bool
	// NoAgent simulates a completed invocation after a short delay.
	NoAgent bool
	// PollInterval overrides the gate poll interval when > 0.
	PollInterval time.Duration
	// MaxIterations overrides the protocol's iteration cap when > 0.
	MaxIterations int
	// Out receives human-readable status lines; defaults to os.Stdout.
	Out io.Writer
	// CheckRunner executes one backpressure check command; defaults to
	// running it through the shell in the project directory.
	CheckRunner CheckRunner
}

// Loop executes a protocol for one project.
type Loop struct {
	root    string
	proto   *protocol.Protocol
	cfg     *config.Config
	builder Builder
	watcher *notify.Watcher
	log     *logging.Logger
	opts    Options
	print   printer
}

// New creates a loop. The watcher may be nil when gate notifications are
// disabled.
func New(root string, proto *protocol.Protocol, cfg *config.Config, builder Builder, watcher *notify.Watcher, log *logging.Logger, opts Options) *Loop {
	if log == nil {
		log = logging.NopLogger()
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.CheckRunner == nil {
		opts.CheckRunner = execCheck
	}
	return &Loop{
		root:    root,
		proto:   proto,
		cfg:     cfg,
		builder: builder,
		watcher: watcher,
		log:     log,
		opts:    opts,
		print:   printer{w: opts.Out},
	}
}

func (l *Loop) pollInterval() time.Duration {
	if l.opts.PollInterval > 0 {
		return l.opts.PollInterval
	}
	if l.cfg.Loop.PollIntervalSeconds > 0 {
		return time.Duration(l.cfg.Loop.PollIntervalSeconds) * time.Second
	}
	return time.Duration(l.proto.Config.PollInterval) * time.Second
}

func (l *Loop) maxIterations() int {
	if l.opts.MaxIterations > 0 {
		return l.opts.MaxIterations
	}
	return l.proto.Config.MaxIterations
}

// sleep waits for d or until the context is cancelled.
func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Run drives the project until a terminal phase is reached. It returns a
// fatal error when the iteration cap is exhausted first: that signals a
// malformed protocol or a stuck agent, not a condition to retry.
func (l *Loop) Run(ctx context.Context, projectID string) error {
	statusPath, err := state.FindStatusFile(l.root, projectID)
	if err != nil {
		return err
	}

	maxIter := l.maxIterations()
	l.print.info("Starting %s loop for project %s", l.proto.Name, projectID)
	l.print.info("Status file: %s", statusPath)
	l.print.info("Poll interval: %s", l.pollInterval())

	for iteration := 1; iteration <= maxIter; iteration++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %v", porcherr.ErrLoopAborted, err)
		}

		// Fresh read every iteration: external edits, most importantly
		// out-of-band gate approvals, must take effect immediately.
		st, err := state.Read(statusPath)
		if err != nil {
			return err
		}
		if st == nil {
			return porcherr.NewNotFoundError("project", projectID)
		}

		l.print.rule()
		l.print.info("Iteration %d", iteration)
		l.print.info("Current state: %s", st.CurrentState)
		log := l.log.WithProject(st.ID).WithIteration(iteration)

		done, err := l.step(ctx, statusPath, st, log)
		if err != nil {
			return err
		}
		if done {
			l.print.rule()
			l.print.success("%s loop COMPLETE", l.proto.Name)
			l.print.success("Project %s finished all phases", projectID)
			l.print.rule()
			return nil
		}

		sleep(ctx, l.cfg.IterationDelay())
	}

	l.log.Error("iteration cap exhausted", "max_iterations", maxIter)
	return fmt.Errorf("%w (%d) without reaching a terminal phase", porcherr.ErrMaxIterations, maxIter)
}

// step applies one transition policy to the freshly read state. It returns
// done=true when the project reached a terminal phase.
func (l *Loop) step(ctx context.Context, statusPath string, st *state.ProjectState, log *logging.Logger) (bool, error) {
	phaseID := protocol.PhaseOf(st.CurrentState)

	// Policy 1: gate block.
	if gate := l.proto.GateForState(st.CurrentState); gate != nil {
		if st.GatePassed(gate.ID) {
			next := l.proto.GateNextState(gate.ID)
			l.print.success("Gate %s passed! Proceeding to %s", gate.ID, next)
			log.Info("gate passed", "gate", gate.ID, "next_state", next)
			return false, l.commit(statusPath, st, next, "")
		}

		l.print.phase("Phase: %s (waiting for gate: %s)", phaseID, gate.ID)
		l.print.warn("BLOCKED — waiting for gate: %s", gate.ID)
		l.print.warn("To approve: porch approve %s %s", st.ID, gate.ID)
		log.Info("blocked on gate", "gate", gate.ID)

		if st.Gates[gate.ID].RequestedAt == "" {
			if err := state.Write(statusPath, state.RequestGateApproval(st, gate.ID)); err != nil {
				return false, err
			}
		}
		if l.watcher != nil {
			l.watcher.CheckAndNotify(ctx, notify.GateStatus{
				HasGate:   true,
				GateName:  gate.ID,
				BuilderID: st.ID,
			}, statusPath)
		}

		sleep(ctx, l.pollInterval())
		return false, nil
	}

	// Policy 2: terminal phase.
	if l.proto.TerminalPhase(phaseID) {
		log.Info("terminal phase reached", "phase", phaseID)
		return true, nil
	}

	// Policy 3: phase execution.
	return false, l.executePhase(ctx, statusPath, st, phaseID, log)
}

func (l *Loop) executePhase(ctx context.Context, statusPath string, st *state.ProjectState, phaseID string, log *logging.Logger) error {
	l.print.phase("Phase: %s", phaseID)

	// Seed the plan checklist when entering a phased phase.
	if l.proto.Phased(phaseID) && len(st.PlanPhases) == 0 {
		if planPath := plan.FindFile(l.root, st.ID, st.Title); planPath != "" {
			phases, err := plan.ExtractPhasesFromFile(planPath)
			if err != nil {
				log.Warn("could not extract plan phases", "path", planPath, "error", err)
			} else {
				st = state.SetPlanPhases(st, phases)
				if err := state.Write(statusPath, st); err != nil {
					return err
				}
				l.print.info("Loaded %d plan phases", len(phases))
			}
		}
	}

	sig, err := l.invokeAgent(ctx, st, phaseID, log)
	if err != nil {
		return err
	}

	if sig != nil {
		l.print.success("Signal received: %s", sig.Type)
		log.Info("signal received", "signal", string(sig.Type), "reason", sig.Reason)
		if sig.Type == signal.Blocked {
			l.print.warn("Agent blocked: %s", sig.Reason)
			if l.watcher != nil {
				l.watcher.NotifyBlocked(ctx, st.ID, sig.Reason, statusPath+"#blocked")
			}
		}
	}

	// A completed plan phase holds the state until the checklist is done.
	if sig != nil && sig.Type == signal.PhaseComplete && l.proto.Phased(phaseID) && len(st.PlanPhases) > 0 {
		held, updated, err := l.advancePlan(statusPath, st, log)
		if err != nil || held {
			return err
		}
		st = updated
	}

	// Backpressure checks gate a signalled completion: a failing check
	// reroutes (or holds) instead of committing the signal's transition.
	if sig != nil && sig.Type == signal.PhaseComplete && !l.opts.DryRun {
		updated, bpNext, failed, err := l.runBackpressure(ctx, statusPath, st, phaseID, log)
		if err != nil {
			return err
		}
		st = updated
		if failed {
			if bpNext == "" {
				l.print.warn("Backpressure check failed; holding state")
				return nil
			}
			return l.commit(statusPath, st, bpNext, string(sig.Type))
		}
		if bpNext != "" {
			return l.commit(statusPath, st, bpNext, string(sig.Type))
		}
	}

	signalName := ""
	next := ""
	if sig != nil {
		signalName = string(sig.Type)
		next = l.proto.SignalNextState(phaseID, signalName)
	}
	if next == "" {
		next = l.proto.DefaultTransition(st.CurrentState)
	}
	if next == "" {
		if sig != nil {
			l.print.warn("No transition defined for signal: %s", signalName)
			log.Warn("no transition defined", "signal", signalName, "state", st.CurrentState)
		}
		return nil
	}

	return l.commit(statusPath, st, next, signalName)
}

// invokeAgent runs the agent for the phase (or simulates it) and extracts
// a signal from its output.
func (l *Loop) invokeAgent(ctx context.Context, st *state.ProjectState, phaseID string, log *logging.Logger) (*signal.Signal, error) {
	if l.opts.DryRun {
		l.print.warn("[DRY RUN] Would invoke agent for phase: %s", phaseID)
		return nil, nil
	}
	if l.opts.NoAgent {
		l.print.info("[NO AGENT] Simulating phase: %s", phaseID)
		sleep(ctx, time.Second)
		l.print.success("Simulated completion of phase: %s", phaseID)
		return nil, nil
	}

	phasePrompt := prompt.BuildPhasePrompt(l.root, st, l.proto)

	logsDir := filepath.Join(state.ProjectDir(l.root, st.ID, st.Title), "logs")
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating logs directory: %w", err)
	}
	outputPath := filepath.Join(logsDir, fmt.Sprintf("iter-%04d.txt", st.Iteration+1))

	cwd := l.root
	if st.Worktree != "" {
		cwd = st.Worktree
	}

	l.print.phase("Invoking agent for phase: %s", phaseID)
	res := l.builder.BuildWithTimeout(ctx, phasePrompt, outputPath, cwd, l.cfg.BuildTimeout())
	log.Info("agent build finished",
		"success", res.Success,
		"duration", res.Duration.String(),
		"cost_usd", res.CostUSD,
		"output_file", outputPath)
	if !res.Success {
		l.print.warn("Agent build did not succeed (%s)", res.Duration)
	}

	return signal.Parse(res.Output), nil
}

// advancePlan marks the current plan phase complete. When more phases
// remain it writes the checklist and reports held=true so the state does
// not transition; the next iteration reprocesses the same phase with the
// next checklist entry.
func (l *Loop) advancePlan(statusPath string, st *state.ProjectState, log *logging.Logger) (held bool, updated *state.ProjectState, err error) {
	cur := plan.CurrentPhase(st.PlanPhases)
	if cur == nil {
		return false, st, nil
	}

	advanced, finished := plan.Advance(st.PlanPhases, cur.ID)
	ns := state.UpdatePhaseStatus(st, cur.ID, state.StatusComplete)
	if nxt := plan.NextPhase(advanced, cur.ID); nxt != nil && !finished {
		ns = state.UpdatePhaseStatus(ns, nxt.ID, state.StatusInProgress)
	}

	l.print.success("Plan phase complete: %s (%s)", cur.ID, cur.Title)
	log.Info("plan phase complete", "plan_phase", cur.ID, "plan_finished", finished)

	if !finished {
		if err := state.Write(statusPath, ns); err != nil {
			return false, nil, err
		}
		remaining := 0
		for _, p := range ns.PlanPhases {
			if p.Status != state.StatusComplete {
				remaining++
			}
		}
		l.print.info("%d plan phases remaining", remaining)
		return true, nil, nil
	}
	return false, ns, nil
}

// commit advances the persisted state: current_state replaced, iteration
// incremented, one log entry appended.
func (l *Loop) commit(statusPath string, st *state.ProjectState, next, signalName string) error {
	var meta *state.UpdateMeta
	if signalName != "" {
		meta = &state.UpdateMeta{Signal: signalName}
	}
	ns := state.Update(st, next, meta)
	if err := state.Write(statusPath, ns); err != nil {
		return err
	}
	l.print.success("State → %s", next)
	return nil
}
