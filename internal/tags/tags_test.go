package tags

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeSidecar(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(SidecarPath(dir), []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write sidecar: %v", err)
	}
}

func TestNormalize(t *testing.T) {
	testCases := []struct {
		name     string
		input    []string
		expected []string
	}{
		{"duplicates and spaces", []string{"a", "b", "a", " b "}, []string{"a", "b"}},
		{"order independent", []string{"b", "a"}, []string{"a", "b"}},
		{"empty dropped", []string{"", "  ", "x"}, []string{"x"}},
		{"case preserved", []string{"Red", "red"}, []string{"Red", "red"}},
		{"nil", nil, []string{}},
	}

	for _, tc := range testCases {
		result := Normalize(tc.input)
		if !reflect.DeepEqual(result, tc.expected) {
			t.Errorf("%s: Normalize(%q) = %q, expected %q", tc.name, tc.input, result, tc.expected)
		}
	}
}

func TestParseInput(t *testing.T) {
	result := ParseInput(" red, large ,,red ")
	expected := []string{"large", "red"}
	if !reflect.DeepEqual(result, expected) {
		t.Errorf("ParseInput: expected %q, got %q", expected, result)
	}
}

func TestNormalizeQuery(t *testing.T) {
	set := NormalizeQuery([]string{" Red", "LARGE", "", "red"})
	if len(set) != 2 {
		t.Fatalf("expected 2 tags, got %d: %v", len(set), set)
	}
	for _, tag := range []string{"red", "large"} {
		if _, ok := set[tag]; !ok {
			t.Errorf("missing %q in %v", tag, set)
		}
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()

	if err := Write(dir, []string{"a", "b", "a", " b "}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	result := Read(dir)
	expected := []string{"a", "b"}
	if !reflect.DeepEqual(result, expected) {
		t.Errorf("expected %q, got %q", expected, result)
	}
}

func TestRead_Missing(t *testing.T) {
	if result := Read(t.TempDir()); len(result) != 0 {
		t.Errorf("expected no tags for missing sidecar, got %q", result)
	}
}

func TestRead_Malformed(t *testing.T) {
	testCases := []struct {
		name    string
		content string
	}{
		{"not json", "{not json"},
		{"tags is string", `{"tags": "red"}`},
		{"tags is object", `{"tags": {"red": true}}`},
		{"tags is null", `{"tags": null}`},
		{"root is array", `["red"]`},
		{"root is null", `null`},
	}

	for _, tc := range testCases {
		dir := t.TempDir()
		writeSidecar(t, dir, tc.content)

		if result := Read(dir); len(result) != 0 {
			t.Errorf("%s: expected empty tags, got %q", tc.name, result)
		}
		if _, err := load(dir); !errors.Is(err, ErrCorrupt) {
			t.Errorf("%s: expected ErrCorrupt, got %v", tc.name, err)
		}
	}
}

func TestRead_NoTagsField(t *testing.T) {
	dir := t.TempDir()
	writeSidecar(t, dir, `{"title": "item"}`)

	if result := Read(dir); len(result) != 0 {
		t.Errorf("expected no tags, got %q", result)
	}
	if _, err := load(dir); err != nil {
		t.Errorf("missing tags field should not be corrupt, got %v", err)
	}
}

func TestRead_ScalarMembers(t *testing.T) {
	dir := t.TempDir()
	writeSidecar(t, dir, `{"tags": ["red", 3, true, null, ["nested"], " "]}`)

	result := Read(dir)
	expected := []string{"3", "red", "true"}
	if !reflect.DeepEqual(result, expected) {
		t.Errorf("expected %q, got %q", expected, result)
	}
}

func TestWrite_PreservesUnknownFields(t *testing.T) {
	dir := t.TempDir()
	writeSidecar(t, dir, `{"title": "ブース", "rating": 5, "tags": ["old"]}`)

	if err := Write(dir, []string{"new"}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	data, err := os.ReadFile(SidecarPath(dir))
	if err != nil {
		t.Fatalf("failed to read sidecar: %v", err)
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("sidecar is not valid JSON: %v", err)
	}

	if fields["title"] != "ブース" {
		t.Errorf("title not preserved: %v", fields["title"])
	}
	if fields["rating"] != float64(5) {
		t.Errorf("rating not preserved: %v", fields["rating"])
	}
	if !reflect.DeepEqual(fields["tags"], []interface{}{"new"}) {
		t.Errorf("tags not replaced: %v", fields["tags"])
	}
}

func TestWrite_OverwritesCorruptSidecar(t *testing.T) {
	dir := t.TempDir()
	writeSidecar(t, dir, "{broken")

	if err := Write(dir, []string{"x"}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if result := Read(dir); !reflect.DeepEqual(result, []string{"x"}) {
		t.Errorf("expected [x], got %q", result)
	}
}

func TestWrite_File(t *testing.T) {
	file := filepath.Join(t.TempDir(), "readme.txt")
	if err := os.WriteFile(file, []byte("hi"), 0o644); err != nil {
		t.Fatal(err)
	}

	err := Write(file, []string{"a"})
	if !errors.Is(err, ErrNotDirectory) {
		t.Errorf("expected ErrNotDirectory, got %v", err)
	}
}

func TestWrite_Missing(t *testing.T) {
	err := Write(filepath.Join(t.TempDir(), "nope"), []string{"a"})
	if !errors.Is(err, ErrInvalidPath) {
		t.Errorf("expected ErrInvalidPath, got %v", err)
	}
}

func TestWrite_Failure(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("permission checks do not apply to root")
	}

	dir := t.TempDir()
	if err := Write(dir, []string{"keep"}); err != nil {
		t.Fatalf("initial Write failed: %v", err)
	}
	if err := os.Chmod(dir, 0o500); err != nil {
		t.Fatal(err)
	}
	defer os.Chmod(dir, 0o755)

	err := Write(dir, []string{"lost"})
	var writeErr *WriteError
	if !errors.As(err, &writeErr) {
		t.Fatalf("expected *WriteError, got %v", err)
	}
	if writeErr.Path != SidecarPath(dir) {
		t.Errorf("expected path %q, got %q", SidecarPath(dir), writeErr.Path)
	}

	if result := Read(dir); !reflect.DeepEqual(result, []string{"keep"}) {
		t.Errorf("previous sidecar should be intact, got %q", result)
	}
}

func TestAddRemove(t *testing.T) {
	dir := t.TempDir()

	result, err := Add(dir, "red", "large")
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if !reflect.DeepEqual(result, []string{"large", "red"}) {
		t.Errorf("Add: unexpected tags %q", result)
	}

	result, err = Remove(dir, " red ")
	if err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if !reflect.DeepEqual(result, []string{"large"}) {
		t.Errorf("Remove: unexpected tags %q", result)
	}
	if stored := Read(dir); !reflect.DeepEqual(stored, []string{"large"}) {
		t.Errorf("stored tags %q", stored)
	}
}

func TestContains(t *testing.T) {
	set := NormalizeQuery([]string{"red", "large", "soft"})

	testCases := []struct {
		query    []string
		expected bool
	}{
		{[]string{"red"}, true},
		{[]string{"RED", "large"}, true},
		{[]string{"red", "small"}, false},
		{nil, true},
	}

	for _, tc := range testCases {
		if result := Contains(set, NormalizeQuery(tc.query)); result != tc.expected {
			t.Errorf("Contains(%q): expected %v, got %v", tc.query, tc.expected, result)
		}
	}
}
