package domain

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// CanvasWidth and CanvasHeight are the fixed composite dimensions every
	// frame asset is authored for.
	CanvasWidth  = 1080
	CanvasHeight = 1350
)

type FrameID string

const (
	Frame1 FrameID = "frame1"
	Frame2 FrameID = "frame2"
	Frame3 FrameID = "frame3"
	Frame4 FrameID = "frame4"
	Frame5 FrameID = "frame5"

	DefaultFrame = Frame1
)

var ErrUnknownFrame = errors.New("unknown frame")

// Frames lists the catalog in carousel order.
var Frames = []FrameID{Frame1, Frame2, Frame3, Frame4, Frame5}

func (id FrameID) String() string {
	return string(id)
}

func (id FrameID) Valid() bool {
	for _, f := range Frames {
		if f == id {
			return true
		}
	}
	return false
}

// AssetName is the logical asset path without extension.
func (id FrameID) AssetName() string {
	return string(id)
}

// Label is the human readable carousel label ("Frame 3").
func (id FrameID) Label() string {
	return "Frame " + strings.TrimPrefix(string(id), "frame")
}

func ParseFrameID(in string) (FrameID, error) {
	id := FrameID(strings.ToLower(strings.TrimSpace(in)))
	if !id.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownFrame, in)
	}
	return id, nil
}
