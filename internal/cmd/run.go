package cmd

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/porch/internal/agent"
	porcherr "github.com/Iron-Ham/porch/internal/errors"
	"github.com/Iron-Ham/porch/internal/notify"
	"github.com/Iron-Ham/porch/internal/orch"
	"github.com/Iron-Ham/porch/internal/protocol"
)

var (
	runDryRun       bool
	runNoAgent      bool
	runInteractive  bool
	runPollInterval int
)

var runCmd = &cobra.Command{
	Use:   "run <protocol> <project-id>",
	Short: "Run the protocol loop for a project",
	Long: `Run iterates the protocol state machine for a project until it reaches
a terminal phase: blocking on unapproved gates, invoking the agent for
work phases, and committing transitions to the status file.`,
	Args: cobra.ExactArgs(2),
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "skip agent invocation, log transitions only")
	runCmd.Flags().BoolVar(&runNoAgent, "no-agent", false, "simulate agent completion after a fixed delay")
	runCmd.Flags().BoolVarP(&runInteractive, "interactive", "i", false, "run a REPL beside the agent for manual control")
	runCmd.Flags().IntVar(&runPollInterval, "poll-interval", 0, "gate poll interval in seconds (overrides protocol)")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	protocolName, projectID := args[0], args[1]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	root, err := projectRoot(cfg)
	if err != nil {
		return err
	}

	proto, err := protocol.Load(protocolName, root)
	if err != nil {
		return err
	}

	log := newLogger(cfg, root)
	defer func() { _ = log.Close() }()

	var builder orch.Builder
	if runInteractive || cfg.Loop.Interactive {
		builder = &interactiveBuilder{cfg: cfg, proto: proto, root: root, projectID: projectID}
	} else {
		streamer := agent.NewCLIStreamer(
			agent.WithBinary(cfg.Agent.Binary),
			agent.WithSkipPermissions(cfg.Agent.SkipPermissions),
		)
		builder = agent.NewBuilder(streamer, log)
	}

	var watcher *notify.Watcher
	if cfg.Notify.Enabled && cfg.Notify.Command != "" {
		watcher = notify.NewWatcher(&notify.ExecNotifier{
			Command: cfg.Notify.Command,
			Args:    cfg.Notify.Args,
		}, log, notify.WithDedupeWindow(cfg.DedupeWindow()))
	}

	opts := orch.Options{
		DryRun:       runDryRun,
		NoAgent:      runNoAgent,
		PollInterval: time.Duration(runPollInterval) * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loop := orch.New(root, proto, cfg, builder, watcher, log, opts)
	if err := loop.Run(ctx, projectID); err != nil {
		if porcherr.IsFatal(err) {
			return err
		}
		// Operator quits and signal interrupts are clean exits.
		cmd.Printf("run stopped: %v\n", err)
		return nil
	}
	return nil
}
