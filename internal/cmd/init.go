package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/porch/internal/orch"
)

var initDescription string

var initCmd = &cobra.Command{
	Use:   "init <protocol> <project-id> <title>",
	Short: "Create a new project under a protocol",
	Long: `Init creates the project status file at the protocol's initial state,
with every gate pending. The project ID must be unique within the root.`,
	Args: cobra.ExactArgs(3),
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringVarP(&initDescription, "description", "d", "", "project description recorded in the status file")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	root, err := projectRoot(cfg)
	if err != nil {
		return err
	}

	path, st, err := orch.Init(root, args[0], args[1], args[2], initDescription)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Initialized project %s (%s)\n", st.ID, st.Title)
	fmt.Fprintf(cmd.OutOrStdout(), "  protocol: %s\n", st.Protocol)
	fmt.Fprintf(cmd.OutOrStdout(), "  state:    %s\n", st.CurrentState)
	fmt.Fprintf(cmd.OutOrStdout(), "  status:   %s\n", path)
	return nil
}
