package search

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/justyntemme/shelf/internal/tags"
)

func TestParse_Empty(t *testing.T) {
	q := Parse("")
	if !q.IsEmpty() {
		t.Errorf("expected empty query, got %d directives", len(q.Directives))
	}
	if q.Raw != "" {
		t.Errorf("expected empty raw, got %q", q.Raw)
	}
}

func TestParse_SimpleFilename(t *testing.T) {
	q := Parse("poster.png")
	if len(q.Directives) != 1 {
		t.Fatalf("expected 1 directive, got %d", len(q.Directives))
	}
	d := q.Directives[0]
	if d.Type != DirFilename {
		t.Errorf("expected DirFilename, got %d", d.Type)
	}
	if d.Value != "poster.png" {
		t.Errorf("expected value 'poster.png', got %q", d.Value)
	}
}

func TestParse_ExtDirective(t *testing.T) {
	testCases := []struct {
		input    string
		expected []string
	}{
		{"ext:go", []string{".go"}},
		{"ext:.go", []string{".go"}},
		{"extension:TXT", []string{".txt"}},
		{"type:png,jpg", []string{".png", ".jpg"}},
		{"ext:zip, ,unitypackage", []string{".zip", ".unitypackage"}},
	}

	for _, tc := range testCases {
		q := Parse(tc.input)
		if len(q.Directives) != 1 {
			t.Fatalf("input %q: expected 1 directive, got %d", tc.input, len(q.Directives))
		}
		d := q.Directives[0]
		if d.Type != DirExt {
			t.Errorf("input %q: expected DirExt, got %d", tc.input, d.Type)
		}
		if !reflect.DeepEqual(d.Values, tc.expected) {
			t.Errorf("input %q: expected %q, got %q", tc.input, tc.expected, d.Values)
		}
	}
}

func TestParse_SizeDirective(t *testing.T) {
	testCases := []struct {
		input    string
		op       Operator
		expected int64
	}{
		{"size:>1MB", OpGreater, 1024 * 1024},
		{"size:<=10KB", OpLessEq, 10 * 1024},
		{"size:2GB", OpEquals, 2 * 1024 * 1024 * 1024},
		{"size:>=0.5KB", OpGreaterEq, 512},
	}

	for _, tc := range testCases {
		q := Parse(tc.input)
		d := q.Directives[0]
		if d.Type != DirSize {
			t.Errorf("input %q: expected DirSize, got %d", tc.input, d.Type)
		}
		if d.Operator != tc.op {
			t.Errorf("input %q: expected operator %d, got %d", tc.input, tc.op, d.Operator)
		}
		if d.NumValue != tc.expected {
			t.Errorf("input %q: expected %d bytes, got %d", tc.input, tc.expected, d.NumValue)
		}
	}
}

func TestParse_ModifiedRange(t *testing.T) {
	q := Parse("modified:2024-01-01..2024-01-31")
	d := q.Directives[0]
	if d.Type != DirModified || d.Operator != OpRange {
		t.Fatalf("expected modified range, got type=%d op=%d", d.Type, d.Operator)
	}
	if d.TimeVal.Year() != 2024 || d.TimeVal.Month() != time.January || d.TimeVal.Day() != 1 {
		t.Errorf("unexpected range start %v", d.TimeVal)
	}
	if d.TimeEnd.Day() != 31 {
		t.Errorf("unexpected range end %v", d.TimeEnd)
	}
}

func TestParse_TagAndCase(t *testing.T) {
	q := Parse("case:on tag:red,large README")
	if !q.CaseSensitive {
		t.Error("expected case-sensitive query")
	}
	if len(q.Directives) != 2 {
		t.Fatalf("expected 2 directives, got %d", len(q.Directives))
	}
	if q.Directives[0].Type != DirTag || !reflect.DeepEqual(q.Directives[0].Values, []string{"red", "large"}) {
		t.Errorf("unexpected tag directive %+v", q.Directives[0])
	}
}

func TestParse_EmptyTagDirective(t *testing.T) {
	testCases := []struct {
		query    string
		expected int
	}{
		{"tag:", 0},
		{"tags:,,", 0},
		{"tag: poster", 1},
		{"tag:red", 1},
	}
	for _, tc := range testCases {
		q := Parse(tc.query)
		if len(q.Directives) != tc.expected {
			t.Errorf("Parse(%q): expected %d directives, got %+v", tc.query, tc.expected, q.Directives)
		}
		for _, d := range q.Directives {
			if d.Type == DirTag && len(d.Values) == 0 {
				t.Errorf("Parse(%q) kept an empty tag directive", tc.query)
			}
		}
	}
}

func TestMatcher_NearestTaggedAncestor(t *testing.T) {
	base := t.TempDir()
	item := filepath.Join(base, "item")
	nested := filepath.Join(base, "tagged", "inner")
	for _, d := range []string{filepath.Join(item, "renders", "hi"), filepath.Join(nested, "x")} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	if err := tags.Write(item, []string{"red"}); err != nil {
		t.Fatal(err)
	}
	if err := tags.Write(filepath.Join(base, "tagged"), []string{"red"}); err != nil {
		t.Fatal(err)
	}
	if err := tags.Write(nested, []string{"blue"}); err != nil {
		t.Fatal(err)
	}
	if err := tags.Write(base, []string{"red"}); err != nil {
		t.Fatal(err)
	}
	deep := filepath.Join(item, "renders", "hi", "x.png")
	if err := os.WriteFile(deep, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	deepInfo, err := os.Stat(deep)
	if err != nil {
		t.Fatal(err)
	}
	innerInfo, err := os.Stat(filepath.Join(nested, "x"))
	if err != nil {
		t.Fatal(err)
	}

	testCases := []struct {
		name     string
		base     string
		path     string
		info     os.FileInfo
		query    string
		expected bool
	}{
		{"file two levels below item", base, deep, deepInfo, "tag:red", true},
		{"wrong tag", base, deep, deepInfo, "tag:blue", false},
		{"nearest tagged folder wins", base, filepath.Join(nested, "x"), innerInfo, "tag:blue", true},
		{"outer tags are not inherited", base, filepath.Join(nested, "x"), innerInfo, "tag:red", false},
		{"lookup stops at base", filepath.Join(base, "tagged", "inner", "x"), filepath.Join(nested, "x"), innerInfo, "tag:blue", false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m := NewMatcher(Parse(tc.query), tc.base)
			if got := m.Match(tc.path, tc.info); got != tc.expected {
				t.Errorf("expected %v, got %v", tc.expected, got)
			}
		})
	}
}

func TestParse_QuotedValues(t *testing.T) {
	q := Parse(`name:"my item" ext:zip`)
	if len(q.Directives) != 2 {
		t.Fatalf("expected 2 directives, got %d", len(q.Directives))
	}
	if q.Directives[0].Value != "my item" {
		t.Errorf("expected 'my item', got %q", q.Directives[0].Value)
	}
}

func TestParseSize(t *testing.T) {
	testCases := []struct {
		input    string
		expected int64
	}{
		{"100", 100},
		{"100B", 100},
		{"1KB", 1024},
		{"1.5MB", 1572864},
		{"bogus", 0},
	}

	for _, tc := range testCases {
		if result := parseSize(tc.input); result != tc.expected {
			t.Errorf("parseSize(%q): expected %d, got %d", tc.input, tc.expected, result)
		}
	}
}

func TestMatchGlob(t *testing.T) {
	testCases := []struct {
		name     string
		pattern  string
		expected bool
	}{
		{"poster.png", "poster", true},
		{"poster.png", "*.png", true},
		{"poster.png", "post*", true},
		{"poster.png", "p*r*g", true},
		{"poster.png", "*.jpg", false},
		{"a", "a*a", false},
		{"anything", "*", true},
	}

	for _, tc := range testCases {
		if result := MatchGlob(tc.name, tc.pattern); result != tc.expected {
			t.Errorf("MatchGlob(%q, %q): expected %v, got %v", tc.name, tc.pattern, tc.expected, result)
		}
	}
}

func TestCompareInt(t *testing.T) {
	testCases := []struct {
		val, target int64
		op          Operator
		expected    bool
	}{
		{10, 5, OpGreater, true},
		{5, 10, OpLess, true},
		{5, 5, OpGreaterEq, true},
		{5, 5, OpLessEq, true},
		{5, 6, OpEquals, false},
	}

	for _, tc := range testCases {
		if result := CompareInt(tc.val, tc.target, tc.op); result != tc.expected {
			t.Errorf("CompareInt(%d, %d, %d): expected %v", tc.val, tc.target, tc.op, tc.expected)
		}
	}
}

func TestInRange(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.Local)
	to := time.Date(2024, 1, 31, 0, 0, 0, 0, time.Local)

	testCases := []struct {
		t        time.Time
		expected bool
	}{
		{time.Date(2023, 12, 31, 23, 0, 0, 0, time.Local), false},
		{time.Date(2024, 1, 15, 12, 0, 0, 0, time.Local), true},
		{time.Date(2024, 1, 31, 23, 59, 0, 0, time.Local), true},
		{time.Date(2024, 2, 1, 0, 0, 0, 0, time.Local), false},
	}

	for _, tc := range testCases {
		if result := inRange(tc.t, from, to); result != tc.expected {
			t.Errorf("inRange(%v): expected %v, got %v", tc.t, tc.expected, result)
		}
	}
	if !inRange(time.Now(), time.Time{}, time.Time{}) {
		t.Error("open range should match everything")
	}
}

func TestMatcher_Match(t *testing.T) {
	dir := t.TempDir()
	item := filepath.Join(dir, "item")
	if err := os.Mkdir(item, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := tags.Write(item, []string{"Red"}); err != nil {
		t.Fatal(err)
	}
	file := filepath.Join(item, "Poster.PNG")
	if err := os.WriteFile(file, make([]byte, 2048), 0o644); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(file)
	if err != nil {
		t.Fatal(err)
	}

	testCases := []struct {
		query    string
		expected bool
	}{
		{"poster", true},
		{"case:on poster", false},
		{"case:on Poster", true},
		{"ext:png", true},
		{"ext:jpg,gif", false},
		{"size:>1KB", true},
		{"size:<1KB", false},
		{"tag:red", true},
		{"tag:red,blue", false},
		{"poster ext:png size:>=2KB", true},
		{"modified:today", true},
	}

	for _, tc := range testCases {
		m := NewMatcher(Parse(tc.query), dir)
		if result := m.Match(file, info); result != tc.expected {
			t.Errorf("query %q: expected %v, got %v", tc.query, tc.expected, result)
		}
	}
}
