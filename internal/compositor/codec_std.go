//go:build !govips || !cgo

package compositor

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

func startCodec() {}

func stopCodec() {}

func newDecoder() (Decoder, error) {
	return stdlibDecoder{}, nil
}

type stdlibDecoder struct{}

func (stdlibDecoder) Decode(ctx context.Context, data []byte) (image.Image, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", ctx.Err()
	default:
	}
	if len(data) == 0 {
		return nil, "", ErrEmptyInput
	}

	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image config: %w", err)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	if img.Bounds().Empty() {
		return nil, "", ErrEmptyImage
	}
	return img, NormalizeFormat(format), nil
}
