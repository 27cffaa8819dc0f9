package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "loop.iteration_delay_seconds")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation
// errors found
func (c *Config) Validate() []ValidationError {
	var errs []ValidationError

	if c.Agent.Binary == "" {
		errs = append(errs, ValidationError{
			Field:   "agent.binary",
			Value:   c.Agent.Binary,
			Message: "agent binary must not be empty",
		})
	}
	if c.Agent.BuildTimeoutMinutes < 1 {
		errs = append(errs, ValidationError{
			Field:   "agent.build_timeout_minutes",
			Value:   c.Agent.BuildTimeoutMinutes,
			Message: "build timeout must be at least 1 minute",
		})
	}
	if c.Agent.KillGraceSeconds < 0 {
		errs = append(errs, ValidationError{
			Field:   "agent.kill_grace_seconds",
			Value:   c.Agent.KillGraceSeconds,
			Message: "kill grace must not be negative",
		})
	}
	if c.Loop.PollIntervalSeconds < 0 {
		errs = append(errs, ValidationError{
			Field:   "loop.poll_interval_seconds",
			Value:   c.Loop.PollIntervalSeconds,
			Message: "poll interval must not be negative",
		})
	}
	if c.Loop.IterationDelaySeconds < 0 {
		errs = append(errs, ValidationError{
			Field:   "loop.iteration_delay_seconds",
			Value:   c.Loop.IterationDelaySeconds,
			Message: "iteration delay must not be negative",
		})
	}
	if c.Notify.DedupeWindowSeconds < 0 {
		errs = append(errs, ValidationError{
			Field:   "notify.dedupe_window_seconds",
			Value:   c.Notify.DedupeWindowSeconds,
			Message: "dedupe window must not be negative",
		})
	}
	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	return errs
}
