package fs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charlievieth/fastwalk"
	"github.com/justyntemme/shelf/internal/debug"
)

// ErrInvalidPath is returned when a listing is requested for a path that
// does not exist or is not a directory.
var ErrInvalidPath = errors.New("invalid path")

// hiddenNames are OS housekeeping files never shown in a listing.
var hiddenNames = map[string]bool{
	".DS_Store":   true,
	"Thumbs.db":   true,
	"desktop.ini": true,
}

// IsHidden reports whether a directory entry name is filtered from listings.
func IsHidden(name string) bool {
	return strings.HasPrefix(name, ".") || hiddenNames[name]
}

type Entry struct {
	Name    string
	Path    string
	IsDir   bool
	Size    int64
	ModTime time.Time
}

// Modified returns the modification time as fractional seconds since epoch.
func (e Entry) Modified() float64 {
	return float64(e.ModTime.UnixNano()) / 1e9
}

// SortMode selects the ordering applied by List.
type SortMode int

const (
	SortNameAsc SortMode = iota
	SortNameDesc
	SortDateDesc
	SortDateAsc
	SortSizeDesc
	SortSizeAsc
	SortTypeDirsFirst
	SortTypeFilesFirst
)

var sortModeNames = []string{
	SortNameAsc:        "name",
	SortNameDesc:       "name-desc",
	SortDateDesc:       "date",
	SortDateAsc:        "date-asc",
	SortSizeDesc:       "size",
	SortSizeAsc:        "size-asc",
	SortTypeDirsFirst:  "type",
	SortTypeFilesFirst: "type-files",
}

func (m SortMode) String() string {
	if m < 0 || int(m) >= len(sortModeNames) {
		return sortModeNames[SortNameAsc]
	}
	return sortModeNames[m]
}

// ParseSortMode maps a config or CLI value to a SortMode. Unknown values
// fall back to name order.
func ParseSortMode(s string) SortMode {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range sortModeNames {
		if name == s {
			return SortMode(i)
		}
	}
	switch s {
	case "modified", "mtime", "newest":
		return SortDateDesc
	case "oldest":
		return SortDateAsc
	case "largest":
		return SortSizeDesc
	case "smallest":
		return SortSizeAsc
	case "dirs", "folders":
		return SortTypeDirsFirst
	case "files":
		return SortTypeFilesFirst
	}
	return SortNameAsc
}

// List returns a filtered, sorted snapshot of the direct children of dir.
// Directories always pass the filter; files pass when filter is a
// case-insensitive substring of their name.
func List(dir string, mode SortMode, filter string) ([]Entry, error) {
	dir, err := absDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPath, dir, err)
	}

	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		debug.Log(debug.FS, "List: %q is not a directory (err=%v)", dir, err)
		return nil, fmt.Errorf("%w: %s", ErrInvalidPath, dir)
	}

	entries, err := readDir(dir)
	if err != nil {
		return nil, err
	}

	entries = filterEntries(entries, filter)
	SortEntries(entries, mode)

	debug.Log(debug.FS, "List: %q mode=%s filter=%q -> %d entries", dir, mode, filter, len(entries))
	return entries, nil
}

// absDir returns dir as a clean absolute path, the form fastwalk reports
// the root in, so Entry paths are always absolute.
func absDir(dir string) (string, error) {
	if dir == "" {
		return dir, errors.New("empty path")
	}
	return filepath.Abs(dir)
}

// readDir collects direct, non-hidden children of path, which must be clean
// and absolute. Entries that cannot be stat'ed are skipped individually.
func readDir(path string) ([]Entry, error) {
	var result []Entry
	var mu sync.Mutex

	conf := &fastwalk.Config{
		Follow: true, // Follow symlinks to get target info
	}

	err := fastwalk.Walk(conf, path, func(fullPath string, d fs.DirEntry, err error) error {
		if err != nil {
			debug.Log(debug.FS_ENTRY, "readDir: walk error at %q: %v", fullPath, err)
			return nil
		}
		if fullPath == path {
			return nil
		}

		// Only direct children: a depth-1 entry never needs recursion.
		skip := func() error {
			if d.IsDir() {
				return fastwalk.SkipDir
			}
			return nil
		}

		if filepath.Dir(fullPath) != path {
			return skip()
		}

		if IsHidden(d.Name()) {
			return skip()
		}

		info, err := fastwalk.StatDirEntry(fullPath, d)
		if err != nil {
			debug.Log(debug.FS_ENTRY, "readDir: skipping %q: stat error: %v", d.Name(), err)
			return skip()
		}

		entry := Entry{
			Name:    d.Name(),
			Path:    fullPath,
			IsDir:   info.IsDir(),
			ModTime: info.ModTime(),
		}
		if !entry.IsDir {
			entry.Size = info.Size()
		}

		mu.Lock()
		result = append(result, entry)
		mu.Unlock()

		return skip()
	})
	if err != nil {
		debug.Log(debug.FS, "readDir: walk error: %v", err)
		return nil, err
	}
	return result, nil
}

func filterEntries(entries []Entry, filter string) []Entry {
	if filter == "" {
		return entries
	}
	needle := strings.ToLower(filter)
	kept := entries[:0]
	for _, e := range entries {
		if e.IsDir || strings.Contains(strings.ToLower(e.Name), needle) {
			kept = append(kept, e)
		}
	}
	return kept
}

// SortEntries orders entries in place. Ties on the primary key are broken
// by case-insensitive name, ascending.
func SortEntries(entries []Entry, mode SortMode) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		switch mode {
		case SortNameDesc:
			if la, lb := strings.ToLower(a.Name), strings.ToLower(b.Name); la != lb {
				return la > lb
			}
		case SortDateDesc, SortDateAsc:
			if a.IsDir != b.IsDir {
				return a.IsDir
			}
			if !a.ModTime.Equal(b.ModTime) {
				if mode == SortDateDesc {
					return a.ModTime.After(b.ModTime)
				}
				return a.ModTime.Before(b.ModTime)
			}
		case SortSizeDesc, SortSizeAsc:
			if a.IsDir != b.IsDir {
				return a.IsDir
			}
			if a.Size != b.Size {
				if mode == SortSizeDesc {
					return a.Size > b.Size
				}
				return a.Size < b.Size
			}
		case SortTypeDirsFirst:
			if a.IsDir != b.IsDir {
				return a.IsDir
			}
		case SortTypeFilesFirst:
			if a.IsDir != b.IsDir {
				return b.IsDir
			}
		}
		return lessName(a.Name, b.Name)
	})
}

func lessName(a, b string) bool {
	la, lb := strings.ToLower(a), strings.ToLower(b)
	if la != lb {
		return la < lb
	}
	return a < b
}
