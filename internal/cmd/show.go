package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/porch/internal/protocol"
)

var showCmd = &cobra.Command{
	Use:   "show <protocol>",
	Short: "Show a protocol's phases, gates, and transitions",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func init() {
	rootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	root, err := projectRoot(cfg)
	if err != nil {
		return err
	}

	proto, err := protocol.Load(args[0], root)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s (v%s)\n", proto.Name, proto.Version)
	if proto.Description != "" {
		fmt.Fprintf(out, "%s\n", proto.Description)
	}
	fmt.Fprintf(out, "\nInitial state: %s\n", proto.InitialState)

	fmt.Fprintln(out, "\nPhases:")
	for _, ph := range proto.Phases {
		markers := []string{}
		if ph.Terminal {
			markers = append(markers, "terminal")
		}
		if ph.Phased {
			markers = append(markers, "phased")
		}
		suffix := ""
		if len(markers) > 0 {
			suffix = " [" + strings.Join(markers, ", ") + "]"
		}
		fmt.Fprintf(out, "  %s: %s%s\n", ph.ID, ph.Name, suffix)
		if len(ph.Substates) > 0 {
			fmt.Fprintf(out, "    substates: %s\n", strings.Join(ph.Substates, ", "))
		}
		for _, sig := range sortedKeys(ph.Signals) {
			fmt.Fprintf(out, "    on %s -> %s\n", sig, ph.Signals[sig])
		}
	}

	if len(proto.Gates) > 0 {
		fmt.Fprintln(out, "\nGates:")
		for _, g := range proto.Gates {
			fmt.Fprintf(out, "  %s: after %s -> %s\n", g.ID, g.AfterState, g.NextState)
		}
	}

	if len(proto.Transitions) > 0 {
		fmt.Fprintln(out, "\nTransitions:")
		for _, s := range sortedTransitionKeys(proto.Transitions) {
			t := proto.Transitions[s]
			if t.Default != "" {
				fmt.Fprintf(out, "  %s -> %s\n", s, t.Default)
			}
			if t.WaitFor != "" {
				fmt.Fprintf(out, "  %s waits for %s\n", s, t.WaitFor)
			}
		}
	}
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedTransitionKeys(m map[string]protocol.TransitionConfig) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
