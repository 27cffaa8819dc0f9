package cmd

import (
	"context"
	"os"
	"time"

	"github.com/Iron-Ham/porch/internal/agent"
	"github.com/Iron-Ham/porch/internal/config"
	"github.com/Iron-Ham/porch/internal/protocol"
	"github.com/Iron-Ham/porch/internal/repl"
	"github.com/Iron-Ham/porch/internal/state"
)

// interactiveBuilder satisfies orch.Builder by spawning the agent as a
// background process and running the REPL beside it. The build resolves
// when the REPL does: on a detected signal, agent exit, or a user command.
type interactiveBuilder struct {
	cfg       *config.Config
	proto     *protocol.Protocol
	root      string
	projectID string
}

func (b *interactiveBuilder) BuildWithTimeout(ctx context.Context, prompt, outputPath, cwd string, timeout time.Duration) agent.BuildResult {
	start := time.Now()

	statusPath, err := state.FindStatusFile(b.root, b.projectID)
	if err != nil {
		return agent.BuildResult{Output: "[SDK exception] " + err.Error(), Duration: time.Since(start)}
	}
	st, err := state.Read(statusPath)
	if err != nil || st == nil {
		return agent.BuildResult{Output: "[SDK exception] reading status file", Duration: time.Since(start)}
	}

	proc, err := agent.Spawn(b.cfg.Agent.Binary, prompt, outputPath, cwd,
		b.cfg.Agent.SkipPermissions, b.cfg.KillGrace())
	if err != nil {
		return agent.BuildResult{Output: "[SDK exception] " + err.Error(), Duration: time.Since(start)}
	}

	action, err := repl.Run(st, proc, outputPath, statusPath, b.proto)
	proc.Kill()
	if err != nil {
		return agent.BuildResult{Output: "[SDK exception] " + err.Error(), Duration: time.Since(start)}
	}

	output, _ := os.ReadFile(outputPath)
	res := agent.BuildResult{Output: string(output), Duration: time.Since(start)}
	switch action.Type {
	case repl.ActionSignal, repl.ActionApproved:
		res.Success = true
	case repl.ActionAgentExit:
		res.Success = action.ExitCode == 0
	}
	return res
}
