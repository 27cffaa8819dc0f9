// Package config loads and validates porch configuration via viper.
// Settings come from (highest precedence first) command-line flags,
// PORCH_* environment variables, an optional config.yaml, and defaults.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete porch configuration
type Config struct {
	Agent   AgentConfig   `mapstructure:"agent"`
	Loop    LoopConfig    `mapstructure:"loop"`
	Notify  NotifyConfig  `mapstructure:"notify"`
	Logging LoggingConfig `mapstructure:"logging"`
	Paths   PathsConfig   `mapstructure:"paths"`
}

// AgentConfig controls how the external agent process is invoked
type AgentConfig struct {
	// Binary is the agent executable to spawn (default: "claude")
	Binary string `mapstructure:"binary"`
	// BuildTimeoutMinutes is the hard deadline for one phase build (default: 60)
	BuildTimeoutMinutes int `mapstructure:"build_timeout_minutes"`
	// SkipPermissions passes the agent's permission-bypass flag for
	// non-interactive runs (default: true)
	SkipPermissions bool `mapstructure:"skip_permissions"`
	// KillGraceSeconds is how long to wait after SIGTERM before SIGKILL (default: 3)
	KillGraceSeconds int `mapstructure:"kill_grace_seconds"`
}

// LoopConfig controls orchestration loop pacing
type LoopConfig struct {
	// PollIntervalSeconds overrides the protocol's gate poll interval when > 0
	PollIntervalSeconds int `mapstructure:"poll_interval_seconds"`
	// IterationDelaySeconds is the fixed delay between loop iterations (default: 2)
	IterationDelaySeconds int `mapstructure:"iteration_delay_seconds"`
	// Interactive enables the REPL side-channel while the agent runs
	Interactive bool `mapstructure:"interactive"`
}

// NotifyConfig controls gate/blocked notifications
type NotifyConfig struct {
	// Enabled turns notification dispatch on (default: true)
	Enabled bool `mapstructure:"enabled"`
	// Command is the notifier executable; empty disables dispatch
	Command string `mapstructure:"command"`
	// Args are fixed arguments placed before the notification payload
	Args []string `mapstructure:"args"`
	// DedupeWindowSeconds suppresses identical notifications within the window (default: 60)
	DedupeWindowSeconds int `mapstructure:"dedupe_window_seconds"`
}

// LoggingConfig controls structured log output
type LoggingConfig struct {
	// Level is one of debug, info, warn, error (default: info)
	Level string `mapstructure:"level"`
}

// PathsConfig controls where porch looks for its working files
type PathsConfig struct {
	// Root is the project root; empty means the current working directory
	Root string `mapstructure:"root"`
}

// SetDefaults registers default values with viper. Called before reading
// the config file so defaults apply even without one.
func SetDefaults() {
	viper.SetDefault("agent.binary", "claude")
	viper.SetDefault("agent.build_timeout_minutes", 60)
	viper.SetDefault("agent.skip_permissions", true)
	viper.SetDefault("agent.kill_grace_seconds", 3)
	viper.SetDefault("loop.poll_interval_seconds", 0)
	viper.SetDefault("loop.iteration_delay_seconds", 2)
	viper.SetDefault("loop.interactive", false)
	viper.SetDefault("notify.enabled", true)
	viper.SetDefault("notify.command", "")
	viper.SetDefault("notify.args", []string{})
	viper.SetDefault("notify.dedupe_window_seconds", 60)
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("paths.root", "")
}

// Load unmarshals the current viper state into a Config and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}
	return &cfg, nil
}

// Default returns a Config populated with default values only.
func Default() *Config {
	return &Config{
		Agent: AgentConfig{
			Binary:              "claude",
			BuildTimeoutMinutes: 60,
			SkipPermissions:     true,
			KillGraceSeconds:    3,
		},
		Loop: LoopConfig{
			IterationDelaySeconds: 2,
		},
		Notify: NotifyConfig{
			Enabled:             true,
			DedupeWindowSeconds: 60,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// ConfigDir returns the porch configuration directory,
// $XDG_CONFIG_HOME/porch or ~/.config/porch.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "porch")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".porch"
	}
	return filepath.Join(home, ".config", "porch")
}

// BuildTimeout returns the agent build deadline as a duration.
func (c *Config) BuildTimeout() time.Duration {
	return time.Duration(c.Agent.BuildTimeoutMinutes) * time.Minute
}

// IterationDelay returns the fixed inter-iteration delay as a duration.
func (c *Config) IterationDelay() time.Duration {
	return time.Duration(c.Loop.IterationDelaySeconds) * time.Second
}

// DedupeWindow returns how long unchanged notifications are suppressed.
func (c *Config) DedupeWindow() time.Duration {
	return time.Duration(c.Notify.DedupeWindowSeconds) * time.Second
}

// KillGrace returns the SIGTERM-to-SIGKILL grace period as a duration.
func (c *Config) KillGrace() time.Duration {
	return time.Duration(c.Agent.KillGraceSeconds) * time.Second
}
