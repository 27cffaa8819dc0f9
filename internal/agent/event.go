// Package agent invokes the external coding agent and supervises its
// execution. The agent is treated as a black-box stream of typed events:
// assistant text, tool invocations, and exactly one terminal result. The
// builder races the stream against a hard deadline and guarantees exactly
// one resolution per invocation, never propagating a transport failure to
// the caller.
package agent

import (
	"context"
	"time"
)

// EventType classifies a single event on the agent's output stream.
type EventType string

const (
	// EventText carries a block of assistant output text.
	EventText EventType = "text"

	// EventToolUse reports the agent invoking a tool.
	EventToolUse EventType = "tool_use"

	// EventResultSuccess is the terminal event of a successful run.
	EventResultSuccess EventType = "result_success"

	// EventResultError is the terminal event of a failed run.
	EventResultError EventType = "result_error"

	// EventStreamError reports a transport failure mid-stream. It is
	// terminal: no further events follow.
	EventStreamError EventType = "stream_error"
)

// Event is one item on the agent's output stream. Which fields are set
// depends on Type.
type Event struct {
	Type     EventType
	Text     string        // EventText
	Tool     string        // EventToolUse
	Result   string        // EventResultSuccess: final summary text
	CostUSD  float64       // terminal results: reported API cost
	Duration time.Duration // terminal results: reported wall time
	Err      error         // EventStreamError
}

// Streamer starts an agent run and yields its events. The returned channel
// is closed when the stream ends. A synchronous error means the agent could
// not be started at all.
type Streamer interface {
	Stream(ctx context.Context, prompt, cwd string) (<-chan Event, error)
}
