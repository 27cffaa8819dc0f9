package signal

import (
	"io"
	"os"
	"sync"

	"github.com/Iron-Ham/porch/internal/capture"
)

// Watcher incrementally scans an output file for signal markers. It keeps a
// byte offset into the file and only reads content appended since the last
// Check, so consumed bytes are never re-scanned and a marker is reported
// exactly once.
type Watcher struct {
	mu      sync.Mutex
	path    string
	offset  int64
	lines   *capture.LineSplitter
	queued  []string // complete lines not yet consumed (post-match remainder)
	stopped bool
}

// Watch returns a watcher over the output file at path. The file does not
// need to exist yet; Check treats a missing file as "no signal".
func Watch(path string) *Watcher {
	return &Watcher{path: path, lines: capture.NewLineSplitter()}
}

// Check scans content appended since the last call and returns the first
// signal found, or nil. At most one signal is returned per call; content
// after the matched line is retained for the next call. A missing or
// unreadable file is treated as no signal, never an error.
func (w *Watcher) Check() *Signal {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return nil
	}

	f, err := os.Open(w.path)
	if err == nil {
		if _, err := f.Seek(w.offset, io.SeekStart); err == nil {
			data, err := io.ReadAll(f)
			if err == nil {
				w.offset += int64(len(data))
				// The splitter holds a line split across two appends
				// until its trailing newline arrives.
				w.queued = append(w.queued, w.lines.Push(string(data))...)
			}
		}
		f.Close()
	}

	for i, line := range w.queued {
		if sig := parseLine(line); sig != nil {
			w.queued = append([]string(nil), w.queued[i+1:]...)
			return sig
		}
	}
	w.queued = nil
	return nil
}

// Stop halts the watcher. Subsequent Check calls return nil.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopped = true
}
