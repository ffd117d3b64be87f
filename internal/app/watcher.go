package app

import (
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/justyntemme/shelf/internal/debug"
	"github.com/justyntemme/shelf/internal/fs"
	"github.com/justyntemme/shelf/internal/metrics"
)

const defaultDebounce = 200 * time.Millisecond

// DirectoryWatcher watches listed directories and reports, debounced, which
// ones need to be listed again.
type DirectoryWatcher struct {
	watcher  *fsnotify.Watcher
	mu       sync.Mutex
	watching map[string]bool // Currently watched paths
	notify   chan string     // Changed directory paths
	done     chan struct{}   // Shutdown signal
	debounce time.Duration
}

// NewDirectoryWatcher creates a watcher. A non-positive debounce uses 200ms.
func NewDirectoryWatcher(debounce time.Duration) (*DirectoryWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if debounce <= 0 {
		debounce = defaultDebounce
	}

	dw := &DirectoryWatcher{
		watcher:  w,
		watching: make(map[string]bool),
		notify:   make(chan string, 10),
		done:     make(chan struct{}),
		debounce: debounce,
	}

	go dw.run()
	return dw, nil
}

// run processes filesystem events with debouncing
func (dw *DirectoryWatcher) run() {
	// Debounce: track last event time per directory
	lastEvent := make(map[string]time.Time)
	ticker := time.NewTicker(dw.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-dw.done:
			return

		case event, ok := <-dw.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) &&
				!event.Has(fsnotify.Rename) && !event.Has(fsnotify.Write) {
				continue
			}
			// Sidecar rewrites and other hidden files never show in a listing
			if fs.IsHidden(filepath.Base(event.Name)) {
				continue
			}

			changedPath := event.Name
			parentDir := filepath.Dir(changedPath)

			dw.mu.Lock()
			if dw.watching[parentDir] {
				lastEvent[parentDir] = time.Now()
				debug.Log(debug.APP, "FSNotify event: %s on %s", event.Op, changedPath)
			} else if dw.watching[changedPath] {
				// The watched directory itself changed
				lastEvent[changedPath] = time.Now()
				debug.Log(debug.APP, "FSNotify event: %s on watched dir %s", event.Op, changedPath)
			}
			dw.mu.Unlock()

		case err, ok := <-dw.watcher.Errors:
			if !ok {
				return
			}
			debug.Log(debug.APP, "FSNotify error: %v", err)

		case <-ticker.C:
			now := time.Now()
			for dir, last := range lastEvent {
				if now.Sub(last) < dw.debounce {
					continue
				}
				select {
				case dw.notify <- dir:
					metrics.RecordRefresh()
					debug.Log(debug.APP, "Directory change notification: %s", dir)
				default:
					// Channel full, skip
				}
				delete(lastEvent, dir)
			}
		}
	}
}

// Watch adds a directory to the watch list
func (dw *DirectoryWatcher) Watch(path string) error {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	if dw.watching[path] {
		return nil
	}
	if err := dw.watcher.Add(path); err != nil {
		return err
	}

	dw.watching[path] = true
	debug.Log(debug.APP, "Now watching directory: %s", path)
	return nil
}

// Unwatch removes a directory from the watch list
func (dw *DirectoryWatcher) Unwatch(path string) {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	if !dw.watching[path] {
		return
	}
	if err := dw.watcher.Remove(path); err != nil {
		// Path may already be gone
		debug.Log(debug.APP, "Error unwatching %s: %v", path, err)
	}
	delete(dw.watching, path)
}

// UnwatchAll removes all directories from the watch list
func (dw *DirectoryWatcher) UnwatchAll() {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	for path := range dw.watching {
		dw.watcher.Remove(path)
	}
	dw.watching = make(map[string]bool)
}

// Watching returns the watched directories in sorted order.
func (dw *DirectoryWatcher) Watching() []string {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	paths := make([]string, 0, len(dw.watching))
	for p := range dw.watching {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Notify returns the channel that receives directory change notifications
func (dw *DirectoryWatcher) Notify() <-chan string {
	return dw.notify
}

// Close shuts down the watcher
func (dw *DirectoryWatcher) Close() error {
	close(dw.done)
	return dw.watcher.Close()
}
