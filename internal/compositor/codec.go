package compositor

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"strings"

	"github.com/disintegration/imaging"
)

var ErrEmptyInput = errors.New("image data is empty")

// Decoder turns uploaded or fetched bytes into a raster, applying any
// orientation metadata so the photo appears upright.
type Decoder interface {
	Decode(ctx context.Context, data []byte) (img image.Image, format string, err error)
}

// NewDecoder returns the decoder selected at build time: libvips with the
// govips tag, the pure Go decoders otherwise.
func NewDecoder() (Decoder, error) {
	return newDecoder()
}

func NormalizeFormat(format string) string {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "jpg", "jpeg":
		return "jpeg"
	case "png":
		return "png"
	case "webp":
		return "webp"
	case "gif":
		return "gif"
	case "bmp":
		return "bmp"
	case "tif", "tiff":
		return "tiff"
	case "heic", "heif":
		return "heif"
	default:
		return strings.ToLower(strings.TrimSpace(format))
	}
}

// EncodePNG writes img losslessly.
func EncodePNG(w io.Writer, img image.Image) error {
	if img == nil || img.Bounds().Empty() {
		return ErrEmptyImage
	}
	if err := imaging.Encode(w, img, imaging.PNG, imaging.PNGCompressionLevel(png.DefaultCompression)); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}
