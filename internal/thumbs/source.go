package thumbs

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/disintegration/imaging"
	"github.com/justyntemme/shelf/internal/debug"
	"github.com/justyntemme/shelf/internal/fs"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// ErrDecode marks a thumbnail whose image could not be produced. The
// accompanying image is a placeholder.
var ErrDecode = errors.New("thumbnail decode failed")

var imageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".webp": true,
}

// IsImage reports whether name has an extension the generator can decode.
func IsImage(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == ".heic" || ext == ".heif" {
		return heicSupported()
	}
	return imageExts[ext]
}

// Source produces the image for one tile. Load always returns a usable
// image; a non-nil error explains why it is a placeholder.
type Source interface {
	Key() string
	Path() string
	Load() (image.Image, error)
}

// SourceOptions configures NewSource.
type SourceOptions struct {
	// EmptyFolderImage is shown for folders without any image. Empty or
	// missing falls back to the drawn folder icon.
	EmptyFolderImage string

	// PlaceholderSize is the edge of blank and folder icon placeholders.
	// Zero uses DefaultPlaceholderSize.
	PlaceholderSize int
}

// NewSource returns a FolderSource for directories and a FileSource for
// everything else.
func NewSource(path string, opts SourceOptions) (Source, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("thumbnail source %s: %w", path, err)
	}
	if info.IsDir() {
		s := NewFolderSource(path, opts.EmptyFolderImage)
		s.size = opts.PlaceholderSize
		return s, nil
	}
	return &FileSource{path: path, size: opts.PlaceholderSize}, nil
}

// FileSource renders a file: images decode with EXIF orientation applied,
// other files get the blank placeholder.
type FileSource struct {
	path string
	size int // placeholder edge
}

func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (s *FileSource) Key() string  { return s.path }
func (s *FileSource) Path() string { return s.path }

func (s *FileSource) Load() (image.Image, error) {
	if !IsImage(s.path) {
		return Blank(s.size), nil
	}
	img, err := decodeImage(s.path)
	if err != nil {
		debug.Log(debug.THUMB, "decode %s: %v", s.path, err)
		return Blank(s.size), fmt.Errorf("%w: %s: %v", ErrDecode, s.path, err)
	}
	return img, nil
}

func decodeImage(path string) (image.Image, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".heic" || ext == ".heif" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return decodeHEIC(f)
	}
	return imaging.Open(path, imaging.AutoOrientation(true))
}

// FolderSource renders a folder by its representative image. The choice
// is made at construction so the cache key is known up front.
type FolderSource struct {
	path   string
	image  string // chosen image path, empty when none
	key    string
	isIcon bool // no image at all, draw the folder icon
	size   int  // placeholder edge
}

// NewFolderSource picks the folder's cover image: the first image (by name)
// whose name starts with a digit, else the first image, else emptyImage.
func NewFolderSource(dir, emptyImage string) *FolderSource {
	s := &FolderSource{path: dir, key: dir}

	chosen := representativeImage(dir)
	if chosen == "" && emptyImage != "" {
		if info, err := os.Stat(emptyImage); err == nil && !info.IsDir() {
			chosen = emptyImage
		}
	}
	if chosen == "" {
		s.isIcon = true
		return s
	}

	s.image = chosen
	s.key = dir + "|" + filepath.Base(chosen)
	debug.Log(debug.THUMB, "folder %s -> %s", dir, chosen)
	return s
}

func (s *FolderSource) Key() string  { return s.key }
func (s *FolderSource) Path() string { return s.path }

// Image returns the chosen cover image path, or "" for the folder icon.
func (s *FolderSource) Image() string { return s.image }

func (s *FolderSource) Load() (image.Image, error) {
	if s.isIcon {
		return FolderIcon(s.size), nil
	}
	img, err := decodeImage(s.image)
	if err != nil {
		debug.Log(debug.THUMB, "decode %s: %v", s.image, err)
		return Blank(s.size), fmt.Errorf("%w: %s: %v", ErrDecode, s.image, err)
	}
	return img, nil
}

func representativeImage(dir string) string {
	// os.ReadDir returns entries sorted by name
	entries, err := os.ReadDir(dir)
	if err != nil {
		debug.Log(debug.THUMB, "representativeImage: %v", err)
		return ""
	}

	var first string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || fs.IsHidden(name) || !IsImage(name) {
			continue
		}
		if r, _ := utf8.DecodeRuneInString(name); unicode.IsDigit(r) {
			return filepath.Join(dir, name)
		}
		if first == "" {
			first = filepath.Join(dir, name)
		}
	}
	return first
}
