// Package gesture turns pointer and touch drags into pan updates.
package gesture

import (
	"github.com/dunamismax/voteframe/internal/transform"
)

const DefaultSensitivity = 0.4

type Phase int

const (
	Idle Phase = iota
	Dragging
	// Cancelled is terminal: the owning surface went away.
	Cancelled
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Dragging:
		return "dragging"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

type EventType int

const (
	PointerDown EventType = iota
	PointerMove
	PointerUp
	PointerLeave
	TouchStart
	TouchMove
	TouchEnd
	TouchCancel
)

func (t EventType) String() string {
	switch t {
	case PointerDown:
		return "pointer_down"
	case PointerMove:
		return "pointer_move"
	case PointerUp:
		return "pointer_up"
	case PointerLeave:
		return "pointer_leave"
	case TouchStart:
		return "touch_start"
	case TouchMove:
		return "touch_move"
	case TouchEnd:
		return "touch_end"
	case TouchCancel:
		return "touch_cancel"
	default:
		return "unknown"
	}
}

type Point struct {
	X, Y float64
}

// Event is a single input sample. Touch events carry the first touch point.
type Event struct {
	Type EventType
	At   Point
}

type Result struct {
	// Changed reports that the transform was updated.
	Changed bool
	// PreventDefault asks the host to suppress native scroll/pan.
	PreventDefault bool
}

// Controller is the drag state machine. It is not safe for concurrent use;
// the owner serializes events.
type Controller struct {
	state       *transform.State
	hasImage    func() bool
	sensitivity float64

	phase  Phase
	anchor Point
}

// NewController drives state. hasImage gates the start of a drag; a nil
// predicate means an image is always present.
func NewController(state *transform.State, hasImage func() bool, sensitivity float64) *Controller {
	if sensitivity <= 0 {
		sensitivity = DefaultSensitivity
	}
	if hasImage == nil {
		hasImage = func() bool { return true }
	}
	return &Controller{
		state:       state,
		hasImage:    hasImage,
		sensitivity: sensitivity,
	}
}

func (c *Controller) Phase() Phase         { return c.phase }
func (c *Controller) Sensitivity() float64 { return c.sensitivity }
func (c *Controller) Active() bool         { return c.phase == Dragging }

func (c *Controller) Handle(ev Event) Result {
	if c.phase == Cancelled {
		return Result{}
	}

	switch ev.Type {
	case PointerDown, TouchStart:
		c.start(ev.At)
		return Result{}
	case PointerMove, TouchMove:
		if c.phase != Dragging {
			return Result{}
		}
		changed := c.move(ev.At)
		return Result{Changed: changed, PreventDefault: ev.Type == TouchMove}
	case PointerUp, PointerLeave, TouchEnd, TouchCancel:
		c.phase = Idle
		return Result{}
	default:
		return Result{}
	}
}

// Cancel ends any drag and ignores every later event.
func (c *Controller) Cancel() {
	c.phase = Cancelled
}

func (c *Controller) start(at Point) {
	if !c.hasImage() {
		return
	}
	c.phase = Dragging
	c.anchor = at
}

func (c *Controller) move(at Point) bool {
	dx := at.X - c.anchor.X
	dy := at.Y - c.anchor.Y
	c.anchor = at
	if dx == 0 && dy == 0 {
		return false
	}

	beforeX, beforeY := c.state.OffsetX(), c.state.OffsetY()
	c.state.ApplyDelta(dx, dy, c.sensitivity)
	return c.state.OffsetX() != beforeX || c.state.OffsetY() != beforeY
}
