// Package compositor renders the framed composite: the frame stretched over
// the whole canvas, then the user photo cover-fitted inside a circular
// cut-out.
package compositor

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/dunamismax/voteframe/internal/transform"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

var (
	ErrEmptyImage     = errors.New("image has no pixels")
	ErrInvalidSurface = errors.New("surface does not match canvas geometry")
	ErrUnknownKernel  = errors.New("unknown interpolation kernel")
)

const DefaultKernel = "catmullrom"

type Options struct {
	Geometry Geometry
	// Kernel is one of nearest, approxbilinear, bilinear or catmullrom.
	Kernel     string
	Background color.Color
}

type Compositor struct {
	geometry   Geometry
	kernel     xdraw.Interpolator
	background *image.Uniform
	mask       *image.Alpha
}

func New(opts Options) (*Compositor, error) {
	g := opts.Geometry
	if g == (Geometry{}) {
		g = DefaultGeometry
	}
	if g.Width <= 0 || g.Height <= 0 || g.Radius <= 0 {
		return nil, fmt.Errorf("invalid geometry %dx%d radius=%v", g.Width, g.Height, g.Radius)
	}

	kernel, err := ParseKernel(opts.Kernel)
	if err != nil {
		return nil, err
	}

	bg := opts.Background
	if bg == nil {
		bg = color.Transparent
	}

	return &Compositor{
		geometry:   g,
		kernel:     kernel,
		background: image.NewUniform(bg),
		mask:       circleMask(g),
	}, nil
}

func ParseKernel(name string) (xdraw.Interpolator, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", DefaultKernel, "catmull-rom":
		return xdraw.CatmullRom, nil
	case "bilinear":
		return xdraw.BiLinear, nil
	case "approxbilinear":
		return xdraw.ApproxBiLinear, nil
	case "nearest":
		return xdraw.NearestNeighbor, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKernel, name)
	}
}

func (c *Compositor) Geometry() Geometry {
	return c.geometry
}

// NewSurface allocates an exportable surface of the canvas size.
func (c *Compositor) NewSurface() *image.RGBA {
	return image.NewRGBA(c.geometry.Bounds())
}

// Render draws the composite into dst, replacing all of its pixels. A nil
// frame renders the degraded background-only layer under the photo. The
// result depends only on the arguments.
func (c *Compositor) Render(dst *image.RGBA, frame, photo image.Image, state transform.State) (Placement, error) {
	if dst == nil || dst.Bounds() != c.geometry.Bounds() {
		return Placement{}, ErrInvalidSurface
	}
	if photo == nil || photo.Bounds().Empty() {
		return Placement{}, ErrEmptyImage
	}

	canvas := dst.Bounds()
	xdraw.Draw(dst, canvas, c.background, image.Point{}, xdraw.Src)

	if frame != nil && !frame.Bounds().Empty() {
		c.drawFrame(dst, frame)
	}

	sr := photo.Bounds()
	p := Place(sr.Dx(), sr.Dy(), state, c.geometry)

	// photo layer covering only the clip square, composited through the mask
	clip := c.mask.Bounds()
	layer := image.NewRGBA(clip)
	s2d := f64.Aff3{
		p.Scale, 0, p.X - p.Scale*float64(sr.Min.X),
		0, p.Scale, p.Y - p.Scale*float64(sr.Min.Y),
	}
	c.kernel.Transform(layer, s2d, photo, sr, xdraw.Src, nil)
	xdraw.DrawMask(dst, clip, layer, clip.Min, c.mask, clip.Min, xdraw.Over)

	return p, nil
}

func (c *Compositor) drawFrame(dst *image.RGBA, frame image.Image) {
	fr := frame.Bounds()
	if fr.Dx() == dst.Bounds().Dx() && fr.Dy() == dst.Bounds().Dy() {
		xdraw.Draw(dst, dst.Bounds(), frame, fr.Min, xdraw.Over)
		return
	}
	// frames are authored for the canvas; stretching ignores aspect ratio
	c.kernel.Scale(dst, dst.Bounds(), frame, fr, xdraw.Over, nil)
}
