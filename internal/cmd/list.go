package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/porch/internal/protocol"
	"github.com/Iron-Ham/porch/internal/state"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List available protocols",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List projects and their current state",
	Args:  cobra.NoArgs,
	RunE:  runProjects,
}

func init() {
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(projectsCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	root, err := projectRoot(cfg)
	if err != nil {
		return err
	}

	names := protocol.List(root)
	if len(names) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No protocols found.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	for _, name := range names {
		desc := ""
		if proto, err := protocol.Load(name, root); err == nil {
			desc = proto.Description
		}
		fmt.Fprintf(w, "%s\t%s\n", name, desc)
	}
	return w.Flush()
}

func runProjects(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	root, err := projectRoot(cfg)
	if err != nil {
		return err
	}

	projects := state.FindProjects(root)
	if len(projects) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No projects found.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tPROTOCOL\tSTATE\tITER")
	for _, p := range projects {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n", p.ID, p.Title, p.Protocol, p.CurrentState, p.Iteration)
	}
	return w.Flush()
}
