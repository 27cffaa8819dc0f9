package orch

import (
	"context"
	"os/exec"
	"sort"
	"time"

	porcherr "github.com/Iron-Ham/porch/internal/errors"
	"github.com/Iron-Ham/porch/internal/logging"
	"github.com/Iron-Ham/porch/internal/state"
)

// defaultCheckTimeout bounds a single backpressure check so a wedged test
// suite cannot stall the loop indefinitely.
const defaultCheckTimeout = 10 * time.Minute

// CheckRunner executes one backpressure check command in dir, returning a
// non-nil error when the check fails.
type CheckRunner func(ctx context.Context, command, dir string) error

func execCheck(ctx context.Context, command, dir string) error {
	return runCheckCommand(ctx, command, dir, defaultCheckTimeout)
}

func runCheckCommand(ctx context.Context, command, dir string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = dir
	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return porcherr.NewTimeoutError("backpressure check", timeout)
	}
	return err
}

// runBackpressure runs the phase's backpressure checks in name order,
// recording each outcome in the status file. It returns the (possibly
// updated) state, the transition to take, and whether a check failed.
// On failure the transition is the check's on_fail state, falling back to
// the state's on_backpressure_fail; empty means hold. On success the
// transition is the state's on_backpressure_pass override, empty meaning
// the normal signal/default resolution applies.
func (l *Loop) runBackpressure(ctx context.Context, statusPath string, st *state.ProjectState, phaseID string, log *logging.Logger) (*state.ProjectState, string, bool, error) {
	phase := l.proto.PhaseByID(phaseID)
	if phase == nil || len(phase.Backpressure) == 0 {
		return st, "", false, nil
	}

	dir := st.Worktree
	if dir == "" {
		dir = l.root
	}

	names := make([]string, 0, len(phase.Backpressure))
	for name := range phase.Backpressure {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		check := phase.Backpressure[name]
		l.print.info("Backpressure check: %s", name)
		log.Info("running backpressure check", "check", name, "command", check.Command)

		runErr := l.opts.CheckRunner(ctx, check.Command, dir)

		status := "passed"
		if runErr != nil {
			status = "failed"
		}
		st = state.SetBackpressure(st, name, status)
		if err := state.Write(statusPath, st); err != nil {
			return st, "", false, err
		}

		if runErr != nil {
			l.print.warn("Backpressure check failed: %s (%v)", name, runErr)
			log.Warn("backpressure check failed", "check", name, "error", runErr)
			failNext := check.OnFail
			if failNext == "" {
				failNext = l.proto.Transitions[st.CurrentState].OnBackpressureFail
			}
			return st, failNext, true, nil
		}
	}

	return st, l.proto.Transitions[st.CurrentState].OnBackpressurePass, false, nil
}
