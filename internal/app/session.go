package app

import (
	"path/filepath"
	"sync"

	"github.com/justyntemme/shelf/internal/debug"
)

// DefaultRecentFolders bounds Session history when no limit is configured.
const DefaultRecentFolders = 10

// Session tracks folders visited during a run, most recent first, without
// duplicates. It is owned by a Library and persisted through its store.
type Session struct {
	mu      sync.Mutex
	folders []string
	max     int
}

func NewSession(max int) *Session {
	if max <= 0 {
		max = DefaultRecentFolders
	}
	return &Session{max: max}
}

// Touch moves folder to the front of the recent list.
func (s *Session) Touch(folder string) {
	if folder == "" {
		return
	}
	folder = filepath.Clean(folder)

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(s.folders)+1)
	out = append(out, folder)
	for _, f := range s.folders {
		if f != folder {
			out = append(out, f)
		}
	}
	if len(out) > s.max {
		out = out[:s.max]
	}
	s.folders = out
	debug.Log(debug.APP, "Session: touched %s (%d recent)", folder, len(s.folders))
}

// Recent returns a copy of the recent folder list.
func (s *Session) Recent() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.folders...)
}

// Restore replaces the list, keeping the bound and dropping duplicates.
func (s *Session) Restore(folders []string) {
	s.mu.Lock()
	s.folders = nil
	s.mu.Unlock()

	// Oldest first so the first entry ends up at the front
	for i := len(folders) - 1; i >= 0; i-- {
		s.Touch(folders[i])
	}
}
