package thumbs

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"golang.org/x/image/vector"
)

// DefaultPlaceholderSize is the tile edge used when no size is configured.
const DefaultPlaceholderSize = 120

var folderColor = color.NRGBA{R: 100, G: 100, B: 100, A: 255}

func placeholderSize(size int) int {
	if size <= 0 {
		return DefaultPlaceholderSize
	}
	return size
}

// Blank returns the white size x size placeholder used for files that have
// no renderable preview.
func Blank(size int) image.Image {
	size = placeholderSize(size)
	return imaging.New(size, size, color.White)
}

// ErrorImage returns the solid red sentinel delivered when generation fails
// outright.
func ErrorImage() image.Image {
	return imaging.New(DefaultPlaceholderSize, DefaultPlaceholderSize, color.NRGBA{R: 255, A: 255})
}

// FolderIcon draws the generic folder glyph: a tab over a body, both gray
// rounded rectangles on a transparent background. The geometry is laid out
// for a 120px tile and scaled to size.
func FolderIcon(size int) image.Image {
	size = placeholderSize(size)
	dst := image.NewRGBA(image.Rect(0, 0, size, size))

	k := float32(size) / DefaultPlaceholderSize
	w := float32(DefaultPlaceholderSize)
	z := vector.NewRasterizer(size, size)
	roundedRect(z, 10*k, 10*k, (w-20)*k, 30*k, 5*k)
	roundedRect(z, 5*k, 25*k, (w-10)*k, (w-30)*k, 5*k)
	z.Draw(dst, dst.Bounds(), image.NewUniform(folderColor), image.Point{})

	return dst
}

// roundedRect adds a closed rounded rectangle path to z.
func roundedRect(z *vector.Rasterizer, x, y, w, h, r float32) {
	z.MoveTo(x+r, y)
	z.LineTo(x+w-r, y)
	z.QuadTo(x+w, y, x+w, y+r)
	z.LineTo(x+w, y+h-r)
	z.QuadTo(x+w, y+h, x+w-r, y+h)
	z.LineTo(x+r, y+h)
	z.QuadTo(x, y+h, x, y+h-r)
	z.LineTo(x, y+r)
	z.QuadTo(x, y, x+r, y)
	z.ClosePath()
}

// isSolid reports whether every pixel of img equals c. Used to recognise
// placeholders in tests and the CLI.
func isSolid(img image.Image, c color.Color) bool {
	want := color.NRGBAModel.Convert(c)
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if color.NRGBAModel.Convert(img.At(x, y)) != want {
				return false
			}
		}
	}
	return true
}

// IsErrorImage reports whether img is the red failure sentinel.
func IsErrorImage(img image.Image) bool {
	return img != nil && isSolid(img, color.NRGBA{R: 255, A: 255})
}
