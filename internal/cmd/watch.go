package cmd

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	porcherr "github.com/Iron-Ham/porch/internal/errors"
	"github.com/Iron-Ham/porch/internal/notify"
	"github.com/Iron-Ham/porch/internal/protocol"
	"github.com/Iron-Ham/porch/internal/state"
)

var watchPollInterval int

var watchCmd = &cobra.Command{
	Use:   "watch <project-id>",
	Short: "Watch a project's status file and notify on pending gates",
	Long: `Watch follows a project's status file and dispatches the configured
notification command whenever the project blocks on a gate. It fires on
filesystem change events when available and falls back to polling.
Runs until interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().IntVar(&watchPollInterval, "poll-interval", 30, "fallback poll interval in seconds")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	projectID := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	root, err := projectRoot(cfg)
	if err != nil {
		return err
	}
	if cfg.Notify.Command == "" {
		return porcherr.NewValidationError("notify.command", "no notification command configured")
	}

	statusPath, err := state.FindStatusFile(root, projectID)
	if err != nil {
		return err
	}
	st, err := state.Read(statusPath)
	if err != nil {
		return err
	}
	if st == nil {
		return porcherr.NewNotFoundError("project", projectID)
	}
	proto, err := protocol.Load(st.Protocol, root)
	if err != nil {
		return err
	}

	log := newLogger(cfg, root)
	defer func() { _ = log.Close() }()

	watcher := notify.NewWatcher(&notify.ExecNotifier{
		Command: cfg.Notify.Command,
		Args:    cfg.Notify.Args,
	}, log, notify.WithDedupeWindow(cfg.DedupeWindow()))

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(cmd.OutOrStdout(), "Watching %s\n", statusPath)
	watcher.Watch(ctx, statusPath, proto, time.Duration(watchPollInterval)*time.Second)
	return nil
}
