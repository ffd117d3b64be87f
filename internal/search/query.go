package search

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/justyntemme/shelf/internal/tags"
)

// Directive types
type DirectiveType int

const (
	DirFilename DirectiveType = iota
	DirExt
	DirSize
	DirModified
	DirTag
	DirCase
)

// Comparison operators for size/date
type Operator int

const (
	OpNone Operator = iota
	OpGreater
	OpLess
	OpGreaterEq
	OpLessEq
	OpEquals
	OpRange
)

// Directive represents a single search directive
type Directive struct {
	Type     DirectiveType
	Value    string
	Values   []string // ext: and tag: lists
	Operator Operator
	NumValue int64     // Parsed size in bytes
	TimeVal  time.Time // Parsed date, range start for OpRange
	TimeEnd  time.Time // Range end (inclusive day) for OpRange
}

// Query holds parsed search directives
type Query struct {
	Directives    []Directive
	Raw           string
	CaseSensitive bool // name: matching honours case
}

// Parse parses an advanced search string into directives
// Examples:
//   - "poster" -> name contains "poster"
//   - "ext:png,jpg" -> files with either extension
//   - "size:>1MB" -> files larger than 1MB
//   - "modified:2024-01-01..2024-02-01" -> modified within the range
//   - "tag:red,large" -> entries inside an item tagged red and large, where
//     the item is the nearest tagged folder at or above the entry
//   - "case:on name:README" -> case-sensitive name match
func Parse(input string) *Query {
	q := &Query{Raw: input}
	input = strings.TrimSpace(input)
	if input == "" {
		return q
	}

	for _, part := range splitRespectingQuotes(input) {
		d := parseDirective(part)
		if d.Type == DirCase {
			q.CaseSensitive = d.Value == "on"
			continue
		}
		if d.Type == DirTag && len(d.Values) == 0 {
			// "tag:" with nothing after it filters nothing
			continue
		}
		q.Directives = append(q.Directives, d)
	}

	return q
}

func splitRespectingQuotes(s string) []string {
	var parts []string
	var current strings.Builder
	inQuotes := false
	quoteChar := rune(0)

	for _, r := range s {
		switch {
		case (r == '"' || r == '\'') && !inQuotes:
			inQuotes = true
			quoteChar = r
		case r == quoteChar && inQuotes:
			inQuotes = false
			quoteChar = 0
		case r == ' ' && !inQuotes:
			if current.Len() > 0 {
				parts = append(parts, current.String())
				current.Reset()
			}
		default:
			current.WriteRune(r)
		}
	}

	if current.Len() > 0 {
		parts = append(parts, current.String())
	}

	return parts
}

func parseDirective(s string) Directive {
	if idx := strings.Index(s, ":"); idx > 0 {
		directive := strings.ToLower(s[:idx])
		value := strings.Trim(s[idx+1:], "\"'")

		switch directive {
		case "filename", "name", "file":
			return Directive{Type: DirFilename, Value: value}

		case "ext", "extension", "type":
			var exts []string
			for _, e := range splitList(value) {
				e = strings.ToLower(e)
				if !strings.HasPrefix(e, ".") {
					e = "." + e
				}
				exts = append(exts, e)
			}
			return Directive{Type: DirExt, Value: value, Values: exts}

		case "size":
			op, numStr := parseOperator(value)
			return Directive{Type: DirSize, Value: value, Operator: op, NumValue: parseSize(numStr)}

		case "modified", "date", "mtime":
			if from, to, ok := strings.Cut(value, ".."); ok {
				return Directive{
					Type:     DirModified,
					Value:    value,
					Operator: OpRange,
					TimeVal:  parseDate(from),
					TimeEnd:  parseDate(to),
				}
			}
			op, dateStr := parseOperator(value)
			return Directive{Type: DirModified, Value: value, Operator: op, TimeVal: parseDate(dateStr)}

		case "tag", "tags":
			return Directive{Type: DirTag, Value: value, Values: splitList(value)}

		case "case":
			v := strings.ToLower(value)
			if v == "on" || v == "true" || v == "yes" || v == "1" {
				return Directive{Type: DirCase, Value: "on"}
			}
			return Directive{Type: DirCase, Value: "off"}
		}
	}

	// Default to filename search
	return Directive{Type: DirFilename, Value: s}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseOperator(s string) (Operator, string) {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, ">="):
		return OpGreaterEq, strings.TrimSpace(s[2:])
	case strings.HasPrefix(s, "<="):
		return OpLessEq, strings.TrimSpace(s[2:])
	case strings.HasPrefix(s, ">"):
		return OpGreater, strings.TrimSpace(s[1:])
	case strings.HasPrefix(s, "<"):
		return OpLess, strings.TrimSpace(s[1:])
	case strings.HasPrefix(s, "="):
		return OpEquals, strings.TrimSpace(s[1:])
	default:
		return OpEquals, s
	}
}

// parseSize converts size strings like "1KB", "10MB", "1GB" to bytes
func parseSize(s string) int64 {
	s = strings.ToUpper(strings.TrimSpace(s))

	multiplier := int64(1)
	numStr := s

	switch {
	case strings.HasSuffix(s, "GB"):
		multiplier = 1024 * 1024 * 1024
		numStr = s[:len(s)-2]
	case strings.HasSuffix(s, "MB"):
		multiplier = 1024 * 1024
		numStr = s[:len(s)-2]
	case strings.HasSuffix(s, "KB"):
		multiplier = 1024
		numStr = s[:len(s)-2]
	case strings.HasSuffix(s, "B"):
		numStr = s[:len(s)-1]
	}

	n, err := strconv.ParseFloat(strings.TrimSpace(numStr), 64)
	if err != nil {
		return 0
	}

	return int64(n * float64(multiplier))
}

// parseDate parses date strings like "2024-01-01", "2024-01", "today", "yesterday"
func parseDate(s string) time.Time {
	s = strings.ToLower(strings.TrimSpace(s))
	now := time.Now()

	switch s {
	case "today":
		y, m, d := now.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	case "yesterday":
		y, m, d := now.AddDate(0, 0, -1).Date()
		return time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	case "week":
		return now.AddDate(0, 0, -7)
	case "month":
		return now.AddDate(0, -1, 0)
	case "year":
		return now.AddDate(-1, 0, 0)
	}

	formats := []string{
		"2006-01-02",
		"2006-01",
		"2006/01/02",
		"01/02/2006",
	}

	for _, layout := range formats {
		if t, err := time.ParseInLocation(layout, s, now.Location()); err == nil {
			return t
		}
	}

	return time.Time{}
}

// Matcher evaluates entries against a query
type Matcher struct {
	query   *Query
	base    string // tag lookups never climb above this folder
	tagsFor func(dir string) map[string]struct{}

	tagMu    sync.Mutex
	tagCache map[string]map[string]struct{}
}

// NewMatcher creates a new Matcher for the given query. base bounds the
// search for an entry's item folder; empty means the filesystem root.
func NewMatcher(q *Query, base string) *Matcher {
	if base != "" {
		if abs, err := filepath.Abs(base); err == nil {
			base = abs
		}
	}
	return &Matcher{
		query:    q,
		base:     base,
		tagsFor:  tags.ReadSet,
		tagCache: make(map[string]map[string]struct{}),
	}
}

// Match checks if an entry matches all directives in the query (AND logic)
func (m *Matcher) Match(path string, info os.FileInfo) bool {
	for _, d := range m.query.Directives {
		if !m.matchDirective(d, path, info) {
			return false
		}
	}
	return true
}

func (m *Matcher) matchDirective(d Directive, path string, info os.FileInfo) bool {
	switch d.Type {
	case DirFilename:
		if m.query.CaseSensitive {
			return MatchGlob(info.Name(), d.Value)
		}
		return MatchGlob(strings.ToLower(info.Name()), strings.ToLower(d.Value))

	case DirExt:
		if info.IsDir() {
			return false
		}
		ext := strings.ToLower(filepath.Ext(info.Name()))
		for _, want := range d.Values {
			if ext == want {
				return true
			}
		}
		return false

	case DirSize:
		if info.IsDir() {
			return false
		}
		return CompareInt(info.Size(), d.NumValue, d.Operator)

	case DirModified:
		if d.Operator == OpRange {
			return inRange(info.ModTime(), d.TimeVal, d.TimeEnd)
		}
		if d.TimeVal.IsZero() {
			return true
		}
		return CompareTime(info.ModTime(), d.TimeVal, d.Operator)

	case DirTag:
		dir := path
		if !info.IsDir() {
			dir = filepath.Dir(path)
		}
		set := m.itemTags(filepath.Clean(dir))
		return len(set) > 0 && tags.Contains(set, tags.NormalizeQuery(d.Values))
	}

	return true
}

// itemTags returns the tags of the nearest tagged folder from dir up to
// the matcher's base, or nil when none is tagged.
func (m *Matcher) itemTags(dir string) map[string]struct{} {
	for {
		if set := m.folderTags(dir); len(set) > 0 {
			return set
		}
		parent := filepath.Dir(dir)
		if dir == m.base || parent == dir {
			return nil
		}
		if m.base != "" && !strings.HasPrefix(parent, m.base) {
			return nil
		}
		dir = parent
	}
}

// folderTags memoizes sidecar reads; many files share one item folder.
func (m *Matcher) folderTags(dir string) map[string]struct{} {
	m.tagMu.Lock()
	defer m.tagMu.Unlock()
	if set, ok := m.tagCache[dir]; ok {
		return set
	}
	set := m.tagsFor(dir)
	m.tagCache[dir] = set
	return set
}

// inRange reports whether t falls between from and the end of the day to.
// A zero bound is open.
func inRange(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && !t.Before(to.AddDate(0, 0, 1)) {
		return false
	}
	return true
}

// MatchGlob does simple glob matching with * wildcards
func MatchGlob(name, pattern string) bool {
	// If pattern has no wildcards, do substring match
	if !strings.Contains(pattern, "*") {
		return strings.Contains(name, pattern)
	}

	parts := strings.Split(pattern, "*")

	if parts[0] != "" && !strings.HasPrefix(name, parts[0]) {
		return false
	}

	last := parts[len(parts)-1]
	if last != "" && !strings.HasSuffix(name, last) {
		return false
	}

	// Check middle parts exist in order
	pos := len(parts[0])
	for _, part := range parts[1 : len(parts)-1] {
		if part == "" {
			continue
		}
		idx := strings.Index(name[pos:], part)
		if idx < 0 {
			return false
		}
		pos += idx + len(part)
	}

	return pos <= len(name)-len(last)
}

func CompareInt(val, target int64, op Operator) bool {
	switch op {
	case OpGreater:
		return val > target
	case OpLess:
		return val < target
	case OpGreaterEq:
		return val >= target
	case OpLessEq:
		return val <= target
	default:
		return val == target
	}
}

func CompareTime(val, target time.Time, op Operator) bool {
	switch op {
	case OpGreater:
		return val.After(target)
	case OpLess:
		return val.Before(target)
	case OpGreaterEq:
		return val.After(target) || val.Equal(target)
	case OpLessEq:
		return val.Before(target) || val.Equal(target)
	default:
		// For equals, compare just the date part
		vy, vm, vd := val.Date()
		ty, tm, td := target.Date()
		return vy == ty && vm == tm && vd == td
	}
}

// IsEmpty returns true if query has no directives
func (q *Query) IsEmpty() bool {
	return len(q.Directives) == 0
}
