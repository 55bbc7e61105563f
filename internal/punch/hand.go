// Package punch classifies punching motions from per-frame wrist and
// shoulder positions.
//
// A Pipeline owns one HandState per side. Each frame flows through the
// same stages: landmark extraction, velocity estimation, smoothing and
// classification. A Pipeline is not safe for concurrent use; every camera
// session must construct its own.
package punch

import (
	"errors"
	"math"
)

// HandSide identifies which hand a state or result belongs to.
type HandSide int

const (
	// Left is the hand on the left half of the (mirrored) frame.
	Left HandSide = iota
	// Right is the hand on the right half of the (mirrored) frame.
	Right
)

// Sides lists both hands in a stable order.
var Sides = [2]HandSide{Left, Right}

// String returns "left" or "right".
func (s HandSide) String() string {
	switch s {
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return "unknown"
	}
}

// Forward returns the sign of the horizontal direction a punch travels for
// this side: +1 for the left hand (increasing x), -1 for the right hand.
func (s HandSide) Forward() float64 {
	if s == Right {
		return -1
	}
	return 1
}

// ParseHandSide parses "left" or "right".
func ParseHandSide(v string) (HandSide, error) {
	switch v {
	case "left", "Left", "LEFT":
		return Left, nil
	case "right", "Right", "RIGHT":
		return Right, nil
	}
	return 0, errors.New("unknown hand side: " + v)
}

// MarshalText encodes the side as "left" or "right".
func (s HandSide) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes "left" or "right".
func (s *HandSide) UnmarshalText(b []byte) error {
	side, err := ParseHandSide(string(b))
	if err != nil {
		return err
	}
	*s = side
	return nil
}

// Point2D is a position in pixel space.
type Point2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// distance returns the Euclidean distance between two points.
func distance(a, b Point2D) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// HandState is the per-side memory of the pipeline: the previous wrist
// position and timestamp, and the rolling window of recent speeds.
type HandState struct {
	side    HandSide
	prevPos Point2D
	prevTS  float64
	hasPrev bool
	window  *SpeedWindow
}

// NewHandState creates an empty state whose window holds queueSize zeros.
func NewHandState(side HandSide, queueSize int) *HandState {
	return &HandState{
		side:   side,
		window: NewSpeedWindow(queueSize),
	}
}

// Side returns the hand this state tracks.
func (h *HandState) Side() HandSide {
	return h.side
}

// Previous returns the last recorded position and timestamp.
// ok is false until the first sample has been recorded.
func (h *HandState) Previous() (pos Point2D, ts float64, ok bool) {
	return h.prevPos, h.prevTS, h.hasPrev
}

// Window returns the smoothing window of this side.
func (h *HandState) Window() *SpeedWindow {
	return h.window
}
