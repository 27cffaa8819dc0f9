package agent

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/Iron-Ham/porch/internal/capture"
	"github.com/Iron-Ham/porch/internal/logging"
)

// outputMirror bytes of agent output are kept in memory for the BuildResult
// even when the on-disk file grows larger.
const outputMirror = 1 << 20

// BuildResult is the outcome of one supervised agent invocation. Exactly
// one of the success, failure, timeout, or exception paths produces it.
type BuildResult struct {
	Success  bool
	Output   string
	CostUSD  float64
	Duration time.Duration
}

// Builder supervises agent invocations: it streams output to a file for
// external watchers, mirrors it in memory, and enforces a hard deadline.
type Builder struct {
	streamer Streamer
	log      *logging.Logger
}

// NewBuilder creates a builder over the given streamer.
func NewBuilder(streamer Streamer, log *logging.Logger) *Builder {
	if log == nil {
		log = logging.NopLogger()
	}
	return &Builder{streamer: streamer, log: log}
}

// sink accumulates agent output, appending incrementally to the output file
// so partial progress is visible while the agent runs. Once settle() is
// called, stream-side appends become no-ops: whichever of the timeout or
// the stream resolves first owns the result, and the loser must not mutate
// it afterward.
type sink struct {
	mu      sync.Mutex
	path    string
	mirror  *capture.RingBuffer
	settled bool
}

func newSink(path string) *sink {
	return &sink{path: path, mirror: capture.NewRingBuffer(outputMirror)}
}

func (s *sink) append(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.settled {
		return
	}
	s.write(text)
}

// settle freezes the sink against stream appends and writes a final marker.
func (s *sink) settle(marker string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settled = true
	if marker != "" {
		s.write(marker)
	}
}

func (s *sink) write(text string) {
	_, _ = s.mirror.Write([]byte(text))
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = f.WriteString(text)
}

func (s *sink) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mirror.String()
}

// BuildWithTimeout runs the agent with the given prompt, racing stream
// completion against the deadline. It always returns a result and never
// panics or propagates a transport error:
//   - terminal success event: Success true, reported cost and duration
//   - terminal error event: Success false, "[Agent SDK error]" in output
//   - deadline first: Success false, "[TIMEOUT]" in output, Duration is
//     exactly the timeout
//   - transport failure or panic: Success false, "[SDK exception]" and the
//     error message in output
func (b *Builder) BuildWithTimeout(ctx context.Context, prompt, outputPath, cwd string, timeout time.Duration) BuildResult {
	start := time.Now()

	// Keep the prompt next to the output for postmortems.
	promptPath := strings.TrimSuffix(outputPath, ".txt") + "-prompt.txt"
	if err := os.WriteFile(promptPath, []byte(prompt), 0o644); err != nil {
		b.log.Warn("failed to save prompt file", "path", promptPath, "error", err)
	}

	out := newSink(outputPath)

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	events, err := b.streamer.Stream(streamCtx, prompt, cwd)
	if err != nil {
		out.settle(fmt.Sprintf("[SDK exception] %v\n", err))
		b.log.Error("agent failed to start", "error", err)
		return BuildResult{Output: out.String(), Duration: time.Since(start)}
	}

	done := make(chan BuildResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				out.append(fmt.Sprintf("[SDK exception] panic: %v\n", r))
				done <- BuildResult{Output: out.String(), Duration: time.Since(start)}
			}
		}()
		done <- b.consume(events, out, start)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-done:
		return res
	case <-timer.C:
		out.settle(fmt.Sprintf("\n[TIMEOUT] build exceeded %s\n", timeout))
		cancel()
		b.log.Warn("agent build timed out", "timeout", timeout)
		return BuildResult{Output: out.String(), Duration: timeout}
	}
}

// consume drains the event stream, mirroring text and tool markers into the
// sink, and converts the terminal event into a result.
func (b *Builder) consume(events <-chan Event, out *sink, start time.Time) BuildResult {
	for ev := range events {
		switch ev.Type {
		case EventText:
			out.append(ev.Text + "\n")
		case EventToolUse:
			out.append(fmt.Sprintf("[tool: %s]\n", ev.Tool))
		case EventResultSuccess:
			if ev.Result != "" {
				out.append(ev.Result + "\n")
			}
			return BuildResult{Success: true, Output: out.String(), CostUSD: ev.CostUSD, Duration: ev.Duration}
		case EventResultError:
			out.append("[Agent SDK error]\n")
			return BuildResult{Output: out.String(), CostUSD: ev.CostUSD, Duration: ev.Duration}
		case EventStreamError:
			out.append(fmt.Sprintf("[SDK exception] %v\n", ev.Err))
			return BuildResult{Output: out.String(), Duration: time.Since(start)}
		}
	}
	// Stream closed without a terminal event, e.g. the process was killed.
	return BuildResult{Output: out.String(), Duration: time.Since(start)}
}
