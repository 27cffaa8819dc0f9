// Package capture provides output aggregation for agent process streams.
//
// RingBuffer keeps the most recent N bytes of a stream without unbounded
// growth, so partial progress stays visible even when a build times out.
// LineSplitter reassembles lines from writes that arrive split mid-line,
// which is how chunked agent output reaches the supervisor.
package capture

import "sync"

// RingBuffer is a thread-safe circular buffer for capturing output streams.
// When the buffer fills, new data overwrites the oldest data, keeping the
// tail of the stream. It implements io.Writer.
type RingBuffer struct {
	data  []byte
	size  int
	start int
	end   int
	full  bool
	mu    sync.RWMutex
}

// NewRingBuffer creates a ring buffer holding the most recent size bytes.
func NewRingBuffer(size int) *RingBuffer {
	return &RingBuffer{
		data: make([]byte, size),
		size: size,
	}
}

// Write appends data, overwriting the oldest bytes once the buffer is full.
// It always returns len(p), nil.
func (r *RingBuffer) Write(p []byte) (n int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, b := range p {
		r.data[r.end] = b
		r.end = (r.end + 1) % r.size

		if r.full {
			r.start = (r.start + 1) % r.size
		}
		if r.end == r.start {
			r.full = true
		}
	}
	return len(p), nil
}

// Bytes returns a copy of the buffered data in chronological order.
func (r *RingBuffer) Bytes() []byte {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.full && r.start == r.end {
		return []byte{}
	}

	if r.full {
		out := make([]byte, r.size)
		n := copy(out, r.data[r.start:])
		copy(out[n:], r.data[:r.end])
		return out
	}

	out := make([]byte, r.end-r.start)
	copy(out, r.data[r.start:r.end])
	return out
}

// String returns the buffered data as a string.
func (r *RingBuffer) String() string {
	return string(r.Bytes())
}

// Len returns the number of bytes currently buffered.
func (r *RingBuffer) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.full {
		return r.size
	}
	if r.end >= r.start {
		return r.end - r.start
	}
	return r.size - r.start + r.end
}

// Reset clears the buffer.
func (r *RingBuffer) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.start = 0
	r.end = 0
	r.full = false
}
