package capture

import (
	"strings"
	"sync"
)

// LineSplitter reassembles complete lines from a stream of arbitrary chunks.
// A line split across two Push calls is emitted exactly once, when its
// trailing newline arrives. The partial tail is held until completed or
// flushed.
type LineSplitter struct {
	mu      sync.Mutex
	partial strings.Builder
}

// NewLineSplitter creates an empty LineSplitter.
func NewLineSplitter() *LineSplitter {
	return &LineSplitter{}
}

// Push appends a chunk and returns the complete lines it finished, without
// trailing newlines. Data after the last newline is retained for the next
// call.
func (s *LineSplitter) Push(chunk string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.partial.WriteString(chunk)
	buffered := s.partial.String()

	idx := strings.LastIndexByte(buffered, '\n')
	if idx < 0 {
		return nil
	}

	complete := buffered[:idx]
	s.partial.Reset()
	s.partial.WriteString(buffered[idx+1:])

	return strings.Split(complete, "\n")
}

// Flush returns any held partial line and clears it. Returns "" when no
// partial data is buffered.
func (s *LineSplitter) Flush() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	tail := s.partial.String()
	s.partial.Reset()
	return tail
}

// Pending returns the length of the held partial line.
func (s *LineSplitter) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.partial.Len()
}
