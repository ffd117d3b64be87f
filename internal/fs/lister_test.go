package fs

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func names(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Name
	}
	return out
}

func equalNames(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func writeFile(t *testing.T, path string, size int, mtime time.Time) {
	t.Helper()
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	if !mtime.IsZero() {
		if err := os.Chtimes(path, mtime, mtime); err != nil {
			t.Fatalf("failed to set mtime on %s: %v", path, err)
		}
	}
}

func TestList_FilterKeepsDirectories(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "photos"), 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(dir, "readme.txt"), 10, time.Time{})
	writeFile(t, filepath.Join(dir, "item.zip"), 10, time.Time{})

	entries, err := List(dir, SortNameAsc, "txt")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if got := names(entries); !equalNames(got, []string{"photos", "readme.txt"}) {
		t.Errorf("expected [photos readme.txt], got %v", got)
	}
}

func TestList_FilterCaseInsensitive(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "README.TXT"), 1, time.Time{})
	writeFile(t, filepath.Join(dir, "other.md"), 1, time.Time{})

	entries, err := List(dir, SortNameAsc, "Readme")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if got := names(entries); !equalNames(got, []string{"README.TXT"}) {
		t.Errorf("expected [README.TXT], got %v", got)
	}
}

func TestList_Hidden(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{".meta.json", ".DS_Store", "Thumbs.db", "desktop.ini", "visible.png"} {
		writeFile(t, filepath.Join(dir, name), 1, time.Time{})
	}
	if err := os.Mkdir(filepath.Join(dir, ".git"), 0o755); err != nil {
		t.Fatal(err)
	}

	entries, err := List(dir, SortNameAsc, "")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if got := names(entries); !equalNames(got, []string{"visible.png"}) {
		t.Errorf("expected only visible.png, got %v", got)
	}
}

func TestList_DirectChildrenOnly(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	if err := os.MkdirAll(filepath.Join(sub, "deeper"), 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(sub, "nested.txt"), 1, time.Time{})
	writeFile(t, filepath.Join(dir, "top.txt"), 1, time.Time{})

	entries, err := List(dir, SortNameAsc, "")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if got := names(entries); !equalNames(got, []string{"sub", "top.txt"}) {
		t.Errorf("expected [sub top.txt], got %v", got)
	}
	for _, e := range entries {
		if e.IsDir && e.Size != 0 {
			t.Errorf("directory %s reported size %d", e.Name, e.Size)
		}
	}
}

func TestList_InvalidPath(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "file.txt")
	writeFile(t, file, 1, time.Time{})

	for _, p := range []string{filepath.Join(dir, "missing"), file} {
		if _, err := List(p, SortNameAsc, ""); !errors.Is(err, ErrInvalidPath) {
			t.Errorf("List(%q): expected ErrInvalidPath, got %v", p, err)
		}
	}
}

func TestList_PathForms(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "photos"), 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(dir, "readme.txt"), 10, time.Time{})
	chdir(t, dir)

	testCases := []struct {
		name string
		path string
	}{
		{"trailing slash", dir + string(filepath.Separator)},
		{"dot segment", filepath.Join(dir, "photos") + "/.."},
		{"relative", "."},
		{"relative trailing slash", "./"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			entries, err := List(tc.path, SortNameAsc, "txt")
			if err != nil {
				t.Fatalf("List(%q) failed: %v", tc.path, err)
			}
			if got := names(entries); !equalNames(got, []string{"photos", "readme.txt"}) {
				t.Fatalf("expected [photos readme.txt], got %v", got)
			}
			for _, e := range entries {
				if !filepath.IsAbs(e.Path) || filepath.Base(e.Path) != e.Name {
					t.Errorf("entry path %q should be absolute and end in %q", e.Path, e.Name)
				}
			}
		})
	}
}

func TestList_SortModes(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	if err := os.Mkdir(filepath.Join(dir, "folder"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(filepath.Join(dir, "folder"), base, base); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(dir, "a.txt"), 300, base.Add(-2*time.Hour))
	writeFile(t, filepath.Join(dir, "B.txt"), 100, base.Add(time.Hour))
	writeFile(t, filepath.Join(dir, "c.txt"), 200, base.Add(-time.Hour))

	testCases := []struct {
		mode     SortMode
		expected []string
	}{
		{SortNameAsc, []string{"a.txt", "B.txt", "c.txt", "folder"}},
		{SortNameDesc, []string{"folder", "c.txt", "B.txt", "a.txt"}},
		{SortDateDesc, []string{"folder", "B.txt", "c.txt", "a.txt"}},
		{SortDateAsc, []string{"folder", "a.txt", "c.txt", "B.txt"}},
		{SortSizeDesc, []string{"folder", "a.txt", "c.txt", "B.txt"}},
		{SortSizeAsc, []string{"folder", "B.txt", "c.txt", "a.txt"}},
		{SortTypeDirsFirst, []string{"folder", "a.txt", "B.txt", "c.txt"}},
		{SortTypeFilesFirst, []string{"a.txt", "B.txt", "c.txt", "folder"}},
	}

	for _, tc := range testCases {
		entries, err := List(dir, tc.mode, "")
		if err != nil {
			t.Fatalf("List(%s) failed: %v", tc.mode, err)
		}
		if got := names(entries); !equalNames(got, tc.expected) {
			t.Errorf("mode %s: expected %v, got %v", tc.mode, tc.expected, got)
		}
	}
}

func TestSortEntries_MtimeTieBreak(t *testing.T) {
	same := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	entries := []Entry{
		{Name: "zeta", ModTime: same},
		{Name: "Alpha", ModTime: same},
		{Name: "newest", ModTime: same.Add(time.Minute)},
	}

	SortEntries(entries, SortDateDesc)
	if got := names(entries); !equalNames(got, []string{"newest", "Alpha", "zeta"}) {
		t.Errorf("unexpected order %v", got)
	}
}

func TestParseSortMode(t *testing.T) {
	testCases := []struct {
		input    string
		expected SortMode
	}{
		{"name", SortNameAsc},
		{"NAME-DESC", SortNameDesc},
		{"date", SortDateDesc},
		{"oldest", SortDateAsc},
		{"size", SortSizeDesc},
		{"smallest", SortSizeAsc},
		{"folders", SortTypeDirsFirst},
		{"type-files", SortTypeFilesFirst},
		{"bogus", SortNameAsc},
		{"", SortNameAsc},
	}

	for _, tc := range testCases {
		if got := ParseSortMode(tc.input); got != tc.expected {
			t.Errorf("ParseSortMode(%q): expected %s, got %s", tc.input, tc.expected, got)
		}
	}
	for m := SortNameAsc; m <= SortTypeFilesFirst; m++ {
		if ParseSortMode(m.String()) != m {
			t.Errorf("String/Parse mismatch for %d", m)
		}
	}
}

func TestEntryModified(t *testing.T) {
	e := Entry{ModTime: time.Unix(1700000000, 500_000_000)}
	if got := e.Modified(); got != 1700000000.5 {
		t.Errorf("expected 1700000000.5, got %v", got)
	}
}

func TestIsHidden(t *testing.T) {
	testCases := []struct {
		name     string
		expected bool
	}{
		{".meta.json", true},
		{".DS_Store", true},
		{"Thumbs.db", true},
		{"desktop.ini", true},
		{"thumbs.db", false},
		{"photo.jpg", false},
	}
	for _, tc := range testCases {
		if got := IsHidden(tc.name); got != tc.expected {
			t.Errorf("IsHidden(%q): expected %v, got %v", tc.name, tc.expected, got)
		}
	}
}
