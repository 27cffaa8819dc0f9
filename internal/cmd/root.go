// Package cmd wires the porch CLI: protocol-driven orchestration of an
// external coding agent over per-project status files.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/porch/internal/config"
	"github.com/Iron-Ham/porch/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "porch",
	Short: "Protocol orchestrator for coding agents",
	Long: `Porch drives a coding agent through a protocol: a declarative state
machine of phases, human approval gates, and transitions. Project progress
lives in a frontmatter status file that both porch and humans edit; gate
approvals made out-of-band take effect on the next loop iteration.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command, printing any error to stderr.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/porch/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func initConfig() {
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("PORCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	_ = viper.ReadInConfig()
}

// loadConfig resolves the effective configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	return cfg, nil
}

// projectRoot returns the configured project root, defaulting to the
// current working directory.
func projectRoot(cfg *config.Config) (string, error) {
	if cfg.Paths.Root != "" {
		return cfg.Paths.Root, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("resolving working directory: %w", err)
	}
	return cwd, nil
}

// newLogger opens the structured log under the project's porch directory.
func newLogger(cfg *config.Config, root string) *logging.Logger {
	log, err := logging.NewLogger(root+"/porch", cfg.Logging.Level)
	if err != nil {
		return logging.NopLogger()
	}
	return log
}
