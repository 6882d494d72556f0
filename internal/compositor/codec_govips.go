//go:build govips && cgo

package compositor

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"

	"github.com/davidbyttow/govips/v2/vips"
)

func startCodec() {
	vips.LoggingSettings(nil, vips.LogLevelWarning)
	vips.Startup(&vips.Config{
		MaxCacheFiles: 0,
		MaxCacheMem:   64 * 1024 * 1024,
		MaxCacheSize:  50,
	})
}

func stopCodec() {
	vips.Shutdown()
}

func newDecoder() (Decoder, error) {
	if err := Startup(); err != nil {
		return nil, err
	}
	return govipsDecoder{}, nil
}

// govipsDecoder handles formats the Go decoders lack (HEIF, AVIF) and
// applies EXIF rotation in libvips before handing back a Go raster.
type govipsDecoder struct{}

func (govipsDecoder) Decode(ctx context.Context, data []byte) (image.Image, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", ctx.Err()
	default:
	}
	if len(data) == 0 {
		return nil, "", ErrEmptyInput
	}

	ref, err := vips.NewImageFromBuffer(data)
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	defer ref.Close()

	format := govipsFormat(vips.DetermineImageType(data))

	if err := ref.AutoRotate(); err != nil {
		return nil, "", fmt.Errorf("auto-rotate image: %w", err)
	}

	encoded, _, err := ref.ExportPng(vips.NewPngExportParams())
	if err != nil {
		return nil, "", fmt.Errorf("export intermediate png: %w", err)
	}

	img, err := png.Decode(bytes.NewReader(encoded))
	if err != nil {
		return nil, "", fmt.Errorf("decode intermediate png: %w", err)
	}
	if img.Bounds().Empty() {
		return nil, "", ErrEmptyImage
	}
	return img, format, nil
}

func govipsFormat(t vips.ImageType) string {
	switch t {
	case vips.ImageTypeJPEG:
		return "jpeg"
	case vips.ImageTypePNG:
		return "png"
	case vips.ImageTypeWEBP:
		return "webp"
	case vips.ImageTypeGIF:
		return "gif"
	case vips.ImageTypeHEIF:
		return "heif"
	case vips.ImageTypeTIFF:
		return "tiff"
	default:
		return "unknown"
	}
}
