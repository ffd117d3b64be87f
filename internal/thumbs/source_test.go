package thumbs

import (
	"image/color"
	"os"
	"path/filepath"
	"testing"
)

func TestIsImage(t *testing.T) {
	testCases := []struct {
		name     string
		expected bool
	}{
		{"a.jpg", true},
		{"a.JPEG", true},
		{"a.png", true},
		{"a.gif", true},
		{"a.bmp", true},
		{"a.webp", true},
		{"a.zip", false},
		{"a", false},
		{"a.heic", heicSupported()},
	}
	for _, tc := range testCases {
		if got := IsImage(tc.name); got != tc.expected {
			t.Errorf("IsImage(%q): expected %v, got %v", tc.name, tc.expected, got)
		}
	}
}

func TestNewSource(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.png")
	writePNG(t, file, 2, 2)

	src, err := NewSource(dir, SourceOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := src.(*FolderSource); !ok {
		t.Errorf("expected FolderSource for directory, got %T", src)
	}

	src, err = NewSource(file, SourceOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := src.(*FileSource); !ok {
		t.Errorf("expected FileSource for file, got %T", src)
	}

	if _, err := NewSource(filepath.Join(dir, "missing"), SourceOptions{}); err == nil {
		t.Error("expected error for missing path")
	}
}

func TestFolderSource_PrefersNumbered(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "cover.png"), 2, 2)
	writePNG(t, filepath.Join(dir, "2_detail.png"), 2, 2)
	writePNG(t, filepath.Join(dir, "1_main.png"), 2, 2)
	writePNG(t, filepath.Join(dir, ".0_hidden.png"), 2, 2)

	s := NewFolderSource(dir, "")
	if s.Image() != filepath.Join(dir, "1_main.png") {
		t.Errorf("expected 1_main.png, got %q", s.Image())
	}
	if s.Key() != dir+"|1_main.png" {
		t.Errorf("unexpected key %q", s.Key())
	}
	if s.Path() != dir {
		t.Errorf("unexpected path %q", s.Path())
	}
}

func TestFolderSource_FirstImage(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "b.png"), 2, 2)
	writePNG(t, filepath.Join(dir, "a.png"), 2, 2)
	if err := os.WriteFile(filepath.Join(dir, "0_readme.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := NewFolderSource(dir, "")
	if s.Image() != filepath.Join(dir, "a.png") {
		t.Errorf("expected a.png, got %q", s.Image())
	}
}

func TestFolderSource_EmptyFolderImage(t *testing.T) {
	assets := t.TempDir()
	empty := filepath.Join(assets, "empty-folder.png")
	writePNG(t, empty, 3, 3)

	dir := t.TempDir()
	s := NewFolderSource(dir, empty)
	if s.Key() != dir+"|empty-folder.png" {
		t.Errorf("unexpected key %q", s.Key())
	}
	img, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 3 {
		t.Errorf("expected the empty folder image, got %v", b)
	}
}

func TestFolderSource_Icon(t *testing.T) {
	dir := t.TempDir()
	s := NewFolderSource(dir, filepath.Join(dir, "no-such.png"))
	if s.Key() != dir {
		t.Errorf("icon key should be the folder path, got %q", s.Key())
	}

	img, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != DefaultPlaceholderSize || b.Dy() != DefaultPlaceholderSize {
		t.Errorf("unexpected icon size %v", b)
	}
	// Corner is outside both rectangles, the body centre is inside.
	if _, _, _, a := img.At(0, 0).RGBA(); a != 0 {
		t.Error("icon corner should be transparent")
	}
	r, g, b, a := img.At(60, 70).RGBA()
	if a == 0 || r>>8 != 100 || g>>8 != 100 || b>>8 != 100 {
		t.Errorf("icon body should be gray, got %d %d %d %d", r>>8, g>>8, b>>8, a>>8)
	}
}

func TestPlaceholders(t *testing.T) {
	if !isSolid(Blank(0), color.White) {
		t.Error("Blank should be solid white")
	}
	if !IsErrorImage(ErrorImage()) {
		t.Error("ErrorImage should be recognised")
	}
	if IsErrorImage(Blank(0)) || IsErrorImage(nil) {
		t.Error("only the red sentinel is an error image")
	}
}

func TestPlaceholderSize(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	empty := filepath.Join(dir, "empty")
	if err := os.Mkdir(empty, 0o755); err != nil {
		t.Fatal(err)
	}

	testCases := []struct {
		path string
		size int
		want int
	}{
		{file, 0, DefaultPlaceholderSize},
		{file, 64, 64},
		{empty, 240, 240},
	}
	for _, tc := range testCases {
		src, err := NewSource(tc.path, SourceOptions{PlaceholderSize: tc.size})
		if err != nil {
			t.Fatal(err)
		}
		img, _ := src.Load()
		if b := img.Bounds(); b.Dx() != tc.want || b.Dy() != tc.want {
			t.Errorf("%s size %d: expected %dx%d, got %v", filepath.Base(tc.path), tc.size, tc.want, tc.want, b)
		}
	}

	// The icon scales with the tile: the body centre moves with it.
	r, g, b, a := FolderIcon(240).At(120, 140).RGBA()
	if a == 0 || r>>8 != 100 || g>>8 != 100 || b>>8 != 100 {
		t.Errorf("scaled icon body should be gray, got %d %d %d %d", r>>8, g>>8, b>>8, a>>8)
	}
}
