// Package imaging computes the 256-bit perceptual fingerprint ("DNA") of an
// image: a 64-bit gradient component and a 192-bit structural component.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	// Side-effect registration of the stdlib decoders.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	// Side-effect registration of the formats the stdlib does not cover.
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrUnsupportedFormat is returned when no registered decoder recognizes the
// byte stream.
var ErrUnsupportedFormat = errors.New("imaging: unsupported image format")

// ErrInvalidImage is returned when a registered decoder recognizes the
// format but fails to decode the bytes (truncated or corrupt data).
var ErrInvalidImage = errors.New("imaging: image bytes are corrupt or truncated")

// ErrImageTooSmall is returned when either dimension of a decoded image is
// smaller than minDimension, which would make the 9x8 gradient resize
// degenerate.
var ErrImageTooSmall = errors.New("imaging: image smaller than minimum dimension")

// minDimension is the smallest width or height accepted for DNA extraction.
const minDimension = 8

// Decode reads an image from raw bytes using the registered decoder set
// (stdlib png/jpeg/gif plus x/image bmp/tiff/webp). The decoder set is fixed
// at build time; a deployment should pin this list rather than letting it
// drift with new blank imports.
func Decode(raw []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	b := img.Bounds()
	if b.Dx() < minDimension || b.Dy() < minDimension {
		return nil, ErrImageTooSmall
	}
	return img, nil
}
