package compositor

import (
	"image"
	"math"
)

// circleMask rasterizes the clip disk into an alpha mask covering the clip
// bounds. Edge pixels get partial coverage from the distance between the
// pixel center and the circle.
func circleMask(g Geometry) *image.Alpha {
	bounds := g.ClipBounds()
	mask := image.NewAlpha(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		py := float64(y) + 0.5 - g.CenterY
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			px := float64(x) + 0.5 - g.CenterX
			coverage := g.Radius + 0.5 - math.Hypot(px, py)
			switch {
			case coverage <= 0:
				continue
			case coverage >= 1:
				mask.Pix[mask.PixOffset(x, y)] = 0xff
			default:
				mask.Pix[mask.PixOffset(x, y)] = uint8(math.Round(coverage * 0xff))
			}
		}
	}
	return mask
}
