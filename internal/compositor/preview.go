package compositor

import (
	"fmt"
	"image"
	"math"

	"github.com/bamiaux/rez"
)

// Preview returns a copy of surface scaled down to maxHeight for display.
// Surfaces already within maxHeight are returned as-is.
func Preview(surface *image.RGBA, maxHeight int) (*image.RGBA, error) {
	if surface == nil || surface.Bounds().Empty() {
		return nil, ErrEmptyImage
	}

	b := surface.Bounds()
	if maxHeight <= 0 || b.Dy() <= maxHeight {
		return surface, nil
	}

	width := int(math.Round(float64(b.Dx()) * float64(maxHeight) / float64(b.Dy())))
	if width < 1 {
		width = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, maxHeight))
	if err := rez.Convert(dst, surface, rez.NewBicubicFilter()); err != nil {
		return nil, fmt.Errorf("scale preview: %w", err)
	}
	return dst, nil
}
