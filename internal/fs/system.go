package fs

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/charlievieth/fastwalk"
	"github.com/justyntemme/shelf/internal/debug"
	"github.com/justyntemme/shelf/internal/search"
)

type OpType int

const (
	FetchDir OpType = iota
	SearchTags
	SearchAdvanced
	CancelSearch
)

type Request struct {
	Op     OpType
	Path   string   // Directory to list, or base of a search
	Query  string   // Tag text ("red, large") or advanced query
	Sort   SortMode // FetchDir and search result ordering
	Filter string   // FetchDir filter text
	Gen    int64    // Generation counter to track stale requests; CancelSearch targets it, 0 cancels all
}

type Response struct {
	Op        OpType
	Path      string
	Entries   []Entry
	Err       error
	Gen       int64 // Generation counter from request
	Cancelled bool  // True if search was cancelled
}

// Progress represents a progress update during long operations
type Progress struct {
	Gen     int64
	Current int64
	Total   int64
	Label   string
}

// System serves listing and search requests off the coordinating
// goroutine. Searches run in their own goroutine and are cancelled one
// generation at a time, so concurrent callers never interrupt each other.
type System struct {
	RequestChan  chan Request
	ResponseChan chan Response
	ProgressChan chan Progress

	cancelMu sync.Mutex
	cancels  map[int64]*inflight // in-flight searches by Gen
}

type inflight struct {
	cancel context.CancelFunc
}

func NewSystem() *System {
	return &System{
		RequestChan:  make(chan Request, 10),
		ResponseChan: make(chan Response, 10),
		ProgressChan: make(chan Progress, 100), // Buffered to avoid blocking
		cancels:      make(map[int64]*inflight),
	}
}

func (s *System) Start() {
	for req := range s.RequestChan {
		debug.Log(debug.FS, "Request: op=%d path=%q query=%q gen=%d", req.Op, req.Path, req.Query, req.Gen)

		switch req.Op {
		case CancelSearch:
			s.cancel(req.Gen)

		case FetchDir:
			entries, err := List(req.Path, req.Sort, req.Filter)
			resp := Response{Op: FetchDir, Path: req.Path, Entries: entries, Err: err, Gen: req.Gen}
			debug.Log(debug.FS, "FetchDir response: path=%q entries=%d gen=%d err=%v",
				resp.Path, len(resp.Entries), resp.Gen, resp.Err)
			s.ResponseChan <- resp

		case SearchTags, SearchAdvanced:
			ctx, cancel := context.WithCancel(context.Background())
			run := &inflight{cancel: cancel}
			s.cancelMu.Lock()
			if prev, ok := s.cancels[req.Gen]; ok {
				prev.cancel()
			}
			s.cancels[req.Gen] = run
			s.cancelMu.Unlock()

			go func(ctx context.Context, req Request) {
				defer s.finish(req.Gen, run)
				var resp Response
				if req.Op == SearchTags {
					resp = s.searchTags(ctx, req)
				} else {
					resp = s.searchAdvanced(ctx, req)
				}
				resp.Gen = req.Gen
				if ctx.Err() != nil {
					resp.Cancelled = true
					debug.Log(debug.FS, "Search cancelled (gen %d)", req.Gen)
				}

				debug.Log(debug.FS, "Search response: op=%d path=%q entries=%d gen=%d cancelled=%v",
					resp.Op, resp.Path, len(resp.Entries), resp.Gen, resp.Cancelled)
				s.ResponseChan <- resp
			}(ctx, req)
		}
	}
}

// cancel interrupts the search with the given generation, or every
// in-flight search when gen is 0.
func (s *System) cancel(gen int64) {
	s.cancelMu.Lock()
	defer s.cancelMu.Unlock()
	for g, run := range s.cancels {
		if gen == 0 || g == gen {
			debug.Log(debug.FS, "CancelSearch: cancelling search (gen %d)", g)
			run.cancel()
			delete(s.cancels, g)
		}
	}
}

// finish releases a completed search's context.
func (s *System) finish(gen int64, run *inflight) {
	run.cancel()
	s.cancelMu.Lock()
	defer s.cancelMu.Unlock()
	if s.cancels[gen] == run {
		delete(s.cancels, gen)
	}
}

// skipDirRoots contains top-level directories to skip (without trailing slash)
var skipDirRoots = map[string]bool{
	"dev":        true,
	"proc":       true,
	"sys":        true,
	"run":        true,
	"snap":       true,
	"boot":       true,
	"lost+found": true,
}

// shouldSkipPath returns true if the path should be skipped during search.
// Extracts the first path component after "/" and does a single map lookup.
func shouldSkipPath(path string) bool {
	if len(path) < 2 || path[0] != '/' {
		return false
	}
	rest := path[1:]
	slashIdx := strings.IndexByte(rest, '/')
	var firstComponent string
	if slashIdx == -1 {
		firstComponent = rest
	} else {
		firstComponent = rest[:slashIdx]
	}
	return skipDirRoots[firstComponent]
}

func (s *System) searchTags(ctx context.Context, req Request) Response {
	query := search.ParseTagQuery(req.Query)
	paths, err := search.Tags(ctx, req.Path, query)
	if err != nil && ctx.Err() == nil {
		return Response{Op: SearchTags, Path: req.Path, Err: err}
	}

	entries := make([]Entry, 0, len(paths))
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			// Removed since the walk saw it
			continue
		}
		entries = append(entries, Entry{
			Name:    filepath.Base(p),
			Path:    p,
			IsDir:   true,
			ModTime: info.ModTime(),
		})
	}
	SortEntries(entries, req.Sort)
	return Response{Op: SearchTags, Path: req.Path, Entries: entries}
}

func (s *System) searchAdvanced(ctx context.Context, req Request) Response {
	query := search.Parse(req.Query)
	if query.IsEmpty() {
		debug.Log(debug.SEARCH, "searchAdvanced: empty query")
		return Response{Op: SearchAdvanced, Path: req.Path}
	}

	progress := &searchProgress{gen: req.Gen, progressCh: s.ProgressChan}
	entries, err := Walk(ctx, req.Path, search.NewMatcher(query, req.Path), progress)
	if err != nil {
		return Response{Op: SearchAdvanced, Path: req.Path, Err: err}
	}
	SortEntries(entries, req.Sort)
	return Response{Op: SearchAdvanced, Path: req.Path, Entries: entries}
}

type searchProgress struct {
	gen          int64
	currentFiles int
	progressCh   chan Progress
}

func (p *searchProgress) report(label string) {
	if p == nil || p.progressCh == nil {
		return
	}
	// Only every 50 files to avoid flooding
	if p.currentFiles%50 != 0 {
		return
	}
	select {
	case p.progressCh <- Progress{
		Gen:     p.gen,
		Current: int64(p.currentFiles),
		Total:   0, // Indeterminate
		Label:   label,
	}:
	default:
		// Channel full, skip this update
	}
}

// Matcher decides whether a walked entry belongs in the results.
type Matcher interface {
	Match(path string, info os.FileInfo) bool
}

// Walk returns every non-hidden entry below basePath accepted by matcher.
// Hidden directories are not descended into.
func Walk(ctx context.Context, basePath string, matcher Matcher, progress *searchProgress) ([]Entry, error) {
	basePath, err := absDir(basePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPath, basePath, err)
	}
	debug.Log(debug.FS_WALK, "Walk: starting path=%q", basePath)

	if info, err := os.Stat(basePath); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPath, basePath)
	}

	var results []Entry
	var mu sync.Mutex

	// Don't follow symlinks in recursive searches to avoid infinite loops
	conf := &fastwalk.Config{
		Follow: false,
	}

	err = fastwalk.Walk(conf, basePath, func(fullPath string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			debug.Log(debug.FS_WALK, "Walk: error at %q: %v", fullPath, err)
			return nil
		}
		if fullPath == basePath {
			return nil
		}

		if shouldSkipPath(fullPath) || IsHidden(d.Name()) {
			if d.IsDir() {
				return fastwalk.SkipDir
			}
			return nil
		}

		info, err := fastwalk.StatDirEntry(fullPath, d)
		if err != nil {
			debug.Log(debug.FS_WALK, "Walk: skipping %q: stat error: %v", d.Name(), err)
			return nil
		}

		isDir := info.IsDir()
		if !isDir && !info.Mode().IsRegular() {
			return nil
		}

		if matcher.Match(fullPath, info) {
			entry := Entry{
				Name:    d.Name(),
				Path:    fullPath,
				IsDir:   isDir,
				ModTime: info.ModTime(),
			}
			if !isDir {
				entry.Size = info.Size()
			}
			mu.Lock()
			results = append(results, entry)
			mu.Unlock()
		}

		if !isDir && progress != nil {
			mu.Lock()
			progress.currentFiles++
			progress.report(fmt.Sprintf("Searched %d files...", progress.currentFiles))
			mu.Unlock()
		}
		return nil
	})

	if ctx.Err() != nil {
		return results, nil
	}
	if err != nil {
		debug.Log(debug.FS_WALK, "Walk: walk error: %v", err)
		return results, err
	}

	debug.Log(debug.FS_WALK, "Walk: complete, %d results", len(results))
	return results, nil
}
