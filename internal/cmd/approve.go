package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/porch/internal/orch"
)

var approveCmd = &cobra.Command{
	Use:   "approve <project-id> <gate-id>",
	Short: "Approve a pending gate for a project",
	Long: `Approve marks a gate as passed in the project's status file. A running
loop picks the approval up on its next iteration; approving an already
passed gate is a no-op.`,
	Args: cobra.ExactArgs(2),
	RunE: runApprove,
}

func init() {
	rootCmd.AddCommand(approveCmd)
}

func runApprove(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	root, err := projectRoot(cfg)
	if err != nil {
		return err
	}

	st, err := orch.Approve(root, args[0], args[1])
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Gate %s approved for project %s\n", args[1], st.ID)
	return nil
}
