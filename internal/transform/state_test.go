package transform

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewHasDefaults(t *testing.T) {
	s := New()
	assert.Equal(t, DefaultZoom, s.Zoom())
	assert.Zero(t, s.OffsetX())
	assert.Zero(t, s.OffsetY())
}

func TestSetZoomClamps(t *testing.T) {
	for _, tc := range []struct {
		in, want float64
	}{
		{-10, MinZoom},
		{0, MinZoom},
		{49.9, MinZoom},
		{50, 50},
		{137.5, 137.5},
		{250, 250},
		{250.1, MaxZoom},
		{math.Inf(1), MaxZoom},
		{math.Inf(-1), MinZoom},
	} {
		s := New()
		s.SetZoom(tc.in)
		assert.Equal(t, tc.want, s.Zoom(), "SetZoom(%v)", tc.in)
	}
}

func TestSetZoomIgnoresNaN(t *testing.T) {
	s := New()
	s.SetZoom(180)
	s.SetZoom(math.NaN())
	assert.Equal(t, 180.0, s.Zoom())
}

func TestSetOffsetClampsPerAxis(t *testing.T) {
	s := New()
	s.SetOffset(AxisX, 140)
	s.SetOffset(AxisY, -300)
	assert.Equal(t, MaxOffset, s.OffsetX())
	assert.Equal(t, MinOffset, s.OffsetY())

	s.SetOffset(AxisY, 12.5)
	assert.Equal(t, 12.5, s.Offset(AxisY))
	assert.Equal(t, MaxOffset, s.Offset(AxisX))
}

func TestApplyDelta(t *testing.T) {
	s := New()
	s.ApplyDelta(50, -20, 0.4)
	assert.InDelta(t, 20, s.OffsetX(), 1e-9)
	assert.InDelta(t, -8, s.OffsetY(), 1e-9)
}

func TestApplyDeltaSaturatesAtBoundary(t *testing.T) {
	s := New()
	for i := 0; i < 100; i++ {
		s.ApplyDelta(10, -10, 0.5)
		assert.GreaterOrEqual(t, s.OffsetX(), MinOffset)
		assert.LessOrEqual(t, s.OffsetX(), MaxOffset)
		assert.GreaterOrEqual(t, s.OffsetY(), MinOffset)
		assert.LessOrEqual(t, s.OffsetY(), MaxOffset)
	}
	assert.Equal(t, MaxOffset, s.OffsetX())
	assert.Equal(t, MinOffset, s.OffsetY())

	// moving back from the boundary starts from the clamped value
	s.ApplyDelta(-10, 10, 0.5)
	assert.Equal(t, 95.0, s.OffsetX())
	assert.Equal(t, -95.0, s.OffsetY())
}

func TestApplyDeltaAccumulatesSmallSteps(t *testing.T) {
	s := New()
	for i := 0; i < 10; i++ {
		s.ApplyDelta(1, 2, 0.5)
	}
	assert.InDelta(t, 5, s.OffsetX(), 1e-9)
	assert.InDelta(t, 10, s.OffsetY(), 1e-9)
}

func TestReset(t *testing.T) {
	s := New()
	s.SetZoom(220)
	s.SetOffset(AxisX, 40)
	s.ApplyDelta(3, 3, 1)
	s.Reset()
	assert.Equal(t, New(), s)
}
