// Package transform holds the zoom and pan applied to the user photo.
package transform

import "math"

const (
	MinZoom     = 50.0
	MaxZoom     = 250.0
	DefaultZoom = 100.0

	MinOffset = -100.0
	MaxOffset = 100.0
)

type Axis int

const (
	AxisX Axis = iota
	AxisY
)

func (a Axis) String() string {
	if a == AxisY {
		return "y"
	}
	return "x"
}

// State is the clamped (zoom, offsetX, offsetY) triple. Zoom is a percentage
// of the cover-fit scale; offsets are abstract units, not pixels.
//
// The zero value is not a valid state; use New.
type State struct {
	zoom    float64
	offsetX float64
	offsetY float64
}

func New() State {
	return State{zoom: DefaultZoom}
}

func (s State) Zoom() float64    { return s.zoom }
func (s State) OffsetX() float64 { return s.offsetX }
func (s State) OffsetY() float64 { return s.offsetY }

func (s State) Offset(axis Axis) float64 {
	if axis == AxisY {
		return s.offsetY
	}
	return s.offsetX
}

func (s *State) SetZoom(v float64) {
	if math.IsNaN(v) {
		return
	}
	s.zoom = clamp(v, MinZoom, MaxZoom)
}

func (s *State) SetOffset(axis Axis, v float64) {
	if math.IsNaN(v) {
		return
	}
	v = clamp(v, MinOffset, MaxOffset)
	if axis == AxisY {
		s.offsetY = v
		return
	}
	s.offsetX = v
}

// ApplyDelta pans by (dx, dy) scaled by sensitivity. The sum is clamped, not
// the delta, so repeated small moves saturate at the boundary.
func (s *State) ApplyDelta(dx, dy, sensitivity float64) {
	if math.IsNaN(dx) || math.IsNaN(dy) || math.IsNaN(sensitivity) {
		return
	}
	s.offsetX = clamp(s.offsetX+dx*sensitivity, MinOffset, MaxOffset)
	s.offsetY = clamp(s.offsetY+dy*sensitivity, MinOffset, MaxOffset)
}

func (s *State) Reset() {
	*s = New()
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
