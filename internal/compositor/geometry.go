package compositor

import (
	"image"
	"math"

	"github.com/dunamismax/voteframe/internal/domain"
	"github.com/dunamismax/voteframe/internal/transform"
)

// Geometry is the fixed output layout: canvas size, the circular cut-out,
// and how many pixels one abstract offset unit moves the photo.
type Geometry struct {
	Width       int
	Height      int
	CenterX     float64
	CenterY     float64
	Radius      float64
	OffsetScale float64
}

// DefaultGeometry matches the authored frame assets. With OffsetScale 1.5 the
// largest pan is 150px, so at zoom 100 the photo's short side (exactly the
// disk diameter) no longer covers the disk once an offset is applied on that
// axis. Place reports this through Placement.CoversClip.
var DefaultGeometry = Geometry{
	Width:       domain.CanvasWidth,
	Height:      domain.CanvasHeight,
	CenterX:     540,
	CenterY:     640,
	Radius:      380,
	OffsetScale: 1.5,
}

func (g Geometry) Bounds() image.Rectangle {
	return image.Rect(0, 0, g.Width, g.Height)
}

// ClipBounds is the integer bounding square of the clip disk, intersected
// with the canvas.
func (g Geometry) ClipBounds() image.Rectangle {
	r := image.Rect(
		int(math.Floor(g.CenterX-g.Radius)),
		int(math.Floor(g.CenterY-g.Radius)),
		int(math.Ceil(g.CenterX+g.Radius)),
		int(math.Ceil(g.CenterY+g.Radius)),
	)
	return r.Intersect(g.Bounds())
}

// CoverScale is the smallest scale at which a w×h image covers the bounding
// square of a disk with the given radius.
func CoverScale(w, h int, radius float64) float64 {
	if w <= 0 || h <= 0 {
		return 0
	}
	d := 2 * radius
	return math.Max(d/float64(w), d/float64(h))
}

// Placement is where the photo lands on the canvas.
type Placement struct {
	BaseScale float64
	Scale     float64
	X         float64
	Y         float64
	W         float64
	H         float64

	geometry Geometry
}

func Place(srcW, srcH int, state transform.State, g Geometry) Placement {
	base := CoverScale(srcW, srcH, g.Radius)
	scale := base * (state.Zoom() / 100)
	w := float64(srcW) * scale
	h := float64(srcH) * scale

	return Placement{
		BaseScale: base,
		Scale:     scale,
		W:         w,
		H:         h,
		X:         g.CenterX - w/2 + state.OffsetX()*g.OffsetScale,
		Y:         g.CenterY - h/2 + state.OffsetY()*g.OffsetScale,
		geometry:  g,
	}
}

// CoversClip reports whether the drawn photo fully covers the clip disk.
// An axis-aligned rectangle covers a disk exactly when it contains the disk's
// bounding square.
func (p Placement) CoversClip() bool {
	g := p.geometry
	const eps = 1e-9
	return p.X <= g.CenterX-g.Radius+eps &&
		p.Y <= g.CenterY-g.Radius+eps &&
		p.X+p.W >= g.CenterX+g.Radius-eps &&
		p.Y+p.H >= g.CenterY+g.Radius-eps
}
