package notify

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Iron-Ham/porch/internal/protocol"
	"github.com/Iron-Ham/porch/internal/state"
)

// Watch follows a project's status file until the context is cancelled,
// checking gate status whenever the file changes and at every poll
// interval as a fallback. Filesystem watch failures degrade to pure
// polling rather than erroring: notification is best-effort end to end.
func (w *Watcher) Watch(ctx context.Context, statusPath string, proto *protocol.Protocol, pollInterval time.Duration) {
	var (
		fsEvents chan fsnotify.Event
		fsErrors chan error
	)

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		w.log.Warn("filesystem watch unavailable, polling only", "error", err)
	} else {
		defer fw.Close()
		// Watch the directory: status writes go through a rename, which
		// replaces the watched inode.
		if err := fw.Add(filepath.Dir(statusPath)); err != nil {
			w.log.Warn("filesystem watch unavailable, polling only", "path", statusPath, "error", err)
		} else {
			fsEvents = fw.Events
			fsErrors = fw.Errors
		}
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	w.check(ctx, statusPath, proto)
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-fsEvents:
			if filepath.Clean(ev.Name) == filepath.Clean(statusPath) {
				w.check(ctx, statusPath, proto)
			}
		case err := <-fsErrors:
			w.log.Warn("filesystem watch error", "error", err)
		case <-ticker.C:
			w.check(ctx, statusPath, proto)
		}
	}
}

func (w *Watcher) check(ctx context.Context, statusPath string, proto *protocol.Protocol) {
	s, err := state.Read(statusPath)
	if err != nil {
		w.log.Warn("could not read status file", "path", statusPath, "error", err)
		return
	}
	w.CheckAndNotify(ctx, StatusFrom(s, proto), statusPath)
}
