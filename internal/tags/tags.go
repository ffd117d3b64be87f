// Package tags reads and writes the per-folder sidecar file that holds an
// item's tag set.
package tags

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/justyntemme/shelf/internal/debug"
)

// SidecarName is the metadata file stored inside every item folder.
const SidecarName = ".meta.json"

var (
	// ErrCorrupt marks a sidecar that exists but cannot be interpreted.
	// Read recovers from it locally; it is exposed for logging and tests.
	ErrCorrupt = errors.New("tags: corrupt sidecar")

	// ErrNotDirectory is returned by Write when the target is a file.
	ErrNotDirectory = errors.New("tags: not a directory")

	// ErrInvalidPath is returned by Write when the target does not exist.
	ErrInvalidPath = errors.New("tags: invalid path")
)

// WriteError reports a failed sidecar write. The previous sidecar, if any,
// is left untouched.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("tags: write %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// SidecarPath returns the sidecar location for a folder.
func SidecarPath(folder string) string {
	return filepath.Join(folder, SidecarName)
}

// Read returns the normalized tags stored for folder. A missing sidecar
// yields no tags; a corrupt one is logged and also yields no tags.
func Read(folder string) []string {
	tags, err := load(folder)
	if err != nil {
		log.Printf("Tags: %v", err)
		return nil
	}
	return tags
}

// ReadSet returns the lower-cased tag set of folder, used for matching.
func ReadSet(folder string) map[string]struct{} {
	return NormalizeQuery(Read(folder))
}

// load distinguishes a corrupt sidecar from a missing one.
func load(folder string) ([]string, error) {
	path := SidecarPath(folder)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrCorrupt, path, err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrCorrupt, path, err)
	}
	if fields == nil {
		return nil, fmt.Errorf("%w: %s is not an object", ErrCorrupt, path)
	}

	raw, ok := fields["tags"]
	if !ok {
		return nil, nil
	}
	var list []interface{}
	if err := json.Unmarshal(raw, &list); err != nil || list == nil {
		return nil, fmt.Errorf("%w: %s: tags is not a list", ErrCorrupt, path)
	}

	tags := make([]string, 0, len(list))
	for _, v := range list {
		if s, ok := stringify(v); ok {
			tags = append(tags, s)
		}
	}
	debug.Log(debug.TAGS, "load %s: %d raw tags", path, len(list))
	return Normalize(tags), nil
}

// stringify mirrors how loosely typed sidecars written by other tools are
// interpreted: scalars become their text form, nested values are skipped.
func stringify(v interface{}) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return "", false
	}
}

// Write replaces the tag list stored for folder. Unrelated sidecar fields
// are preserved. The sidecar is replaced atomically.
func Write(folder string, tags []string) error {
	info, err := os.Stat(folder)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidPath, folder)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrNotDirectory, folder)
	}

	path := SidecarPath(folder)
	fields := make(map[string]json.RawMessage)
	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
			log.Printf("Tags: existing sidecar %s unreadable, rewriting: %v", path, err)
			fields = make(map[string]json.RawMessage)
		}
	}

	normalized := Normalize(tags)
	encodedTags, err := json.Marshal(normalized)
	if err != nil {
		return &WriteError{Path: path, Err: err}
	}
	fields["tags"] = encodedTags

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(fields); err != nil {
		return &WriteError{Path: path, Err: err}
	}

	if err := replaceFile(path, buf.Bytes()); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	debug.Log(debug.TAGS, "wrote %s: %v", path, normalized)
	return nil
}

// replaceFile writes data to a temp file next to path and renames it over
// path once it is synced.
func replaceFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), SidecarName+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// Add merges extra tags into the folder's stored set.
func Add(folder string, extra ...string) ([]string, error) {
	merged := Normalize(append(Read(folder), extra...))
	if err := Write(folder, merged); err != nil {
		return nil, err
	}
	return merged, nil
}

// Remove drops the given tags (exact match after trimming) from the folder.
func Remove(folder string, drop ...string) ([]string, error) {
	gone := make(map[string]bool, len(drop))
	for _, t := range drop {
		gone[strings.TrimSpace(t)] = true
	}
	var kept []string
	for _, t := range Read(folder) {
		if !gone[t] {
			kept = append(kept, t)
		}
	}
	kept = Normalize(kept)
	if err := Write(folder, kept); err != nil {
		return nil, err
	}
	return kept, nil
}

// Normalize trims every tag, drops empty ones, removes exact duplicates and
// sorts the result. Case is preserved.
func Normalize(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// ParseInput splits comma-separated user input into normalized tags.
func ParseInput(text string) []string {
	return Normalize(strings.Split(text, ","))
}

// NormalizeQuery builds the lower-cased set used for tag matching.
func NormalizeQuery(tags []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			set[t] = struct{}{}
		}
	}
	return set
}

// Contains reports whether every tag of query is present in set.
func Contains(set, query map[string]struct{}) bool {
	for t := range query {
		if _, ok := set[t]; !ok {
			return false
		}
	}
	return true
}
