package agent

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"time"
)

// maxStreamLine bounds a single stream-json line. Assistant turns can carry
// large text blocks.
const maxStreamLine = 10 * 1024 * 1024

// CLIStreamer runs the agent binary in non-interactive mode and decodes its
// stream-json output into events.
type CLIStreamer struct {
	binary          string
	skipPermissions bool
}

// CLIOption configures a CLIStreamer.
type CLIOption func(*CLIStreamer)

// WithBinary overrides the agent binary name.
func WithBinary(binary string) CLIOption {
	return func(s *CLIStreamer) {
		s.binary = binary
	}
}

// WithSkipPermissions passes the flag that lets the agent write files
// without interactive confirmation.
func WithSkipPermissions(skip bool) CLIOption {
	return func(s *CLIStreamer) {
		s.skipPermissions = skip
	}
}

// NewCLIStreamer creates a streamer for the claude CLI.
func NewCLIStreamer(opts ...CLIOption) *CLIStreamer {
	s := &CLIStreamer{binary: "claude", skipPermissions: true}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// streamLine mirrors one line of the CLI's stream-json output.
type streamLine struct {
	Type    string `json:"type"`
	Subtype string `json:"subtype"`
	Message *struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
			Name string `json:"name"`
		} `json:"content"`
	} `json:"message"`
	Result       string  `json:"result"`
	TotalCostUSD float64 `json:"total_cost_usd"`
	DurationMS   int64   `json:"duration_ms"`
}

// Stream spawns the agent and decodes its output line by line. The returned
// channel closes when the process's stdout closes.
func (s *CLIStreamer) Stream(ctx context.Context, prompt, cwd string) (<-chan Event, error) {
	args := []string{"--print", "--output-format", "stream-json", "--verbose"}
	if s.skipPermissions {
		args = append(args, "--dangerously-skip-permissions")
	}
	args = append(args, "-p", prompt)

	cmd := exec.CommandContext(ctx, s.binary, args...)
	cmd.Dir = cwd
	cmd.Env = append(os.Environ(), "CI=1")

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", s.binary, err)
	}

	events := make(chan Event)
	go func() {
		defer close(events)
		defer func() { _ = cmd.Wait() }()

		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 64*1024), maxStreamLine)
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}

			var msg streamLine
			if err := json.Unmarshal(line, &msg); err != nil {
				continue // non-JSON noise on stdout is skipped
			}

			switch msg.Type {
			case "assistant":
				if msg.Message == nil {
					continue
				}
				for _, block := range msg.Message.Content {
					switch block.Type {
					case "text":
						events <- Event{Type: EventText, Text: block.Text}
					case "tool_use":
						events <- Event{Type: EventToolUse, Tool: block.Name}
					}
				}
			case "result":
				ev := Event{
					CostUSD:  msg.TotalCostUSD,
					Duration: time.Duration(msg.DurationMS) * time.Millisecond,
				}
				if msg.Subtype == "success" {
					ev.Type = EventResultSuccess
					ev.Result = msg.Result
				} else {
					ev.Type = EventResultError
				}
				events <- ev
				return
			}
		}
		if err := scanner.Err(); err != nil {
			events <- Event{Type: EventStreamError, Err: err}
		}
	}()

	return events, nil
}
