//go:build !linux || !cgo

package thumbs

import (
	"fmt"
	"image"
	"io"
)

// goheif needs cgo with libde265, which is only wired up for linux builds.
func decodeHEIC(r io.Reader) (image.Image, error) {
	return nil, fmt.Errorf("HEIC decoding not supported on this platform")
}

func heicSupported() bool {
	return false
}
