package punch

import (
	"errors"
	"fmt"
)

// ErrMissingLandmark is returned when a frame lacks one of the joints the
// classifier needs. The frame is skipped without touching any state.
var ErrMissingLandmark = errors.New("missing landmark")

// Joint names one of the tracked anatomical points.
type Joint int

const (
	LeftWrist Joint = iota
	LeftShoulder
	RightWrist
	RightShoulder
)

func (j Joint) String() string {
	switch j {
	case LeftWrist:
		return "left_wrist"
	case LeftShoulder:
		return "left_shoulder"
	case RightWrist:
		return "right_wrist"
	case RightShoulder:
		return "right_shoulder"
	default:
		return "unknown"
	}
}

// Landmark is a joint position in normalized [0,1] frame coordinates.
type Landmark struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Visibility float64 `json:"visibility"`
}

// PoseSample is what the pose collaborator hands over for one frame.
// A joint absent from Landmarks is treated as not detected.
type PoseSample struct {
	Landmarks map[Joint]Landmark
	Width     int
	Height    int
	Timestamp float64
}

// FrameObservation holds the four tracked joints in pixel space.
type FrameObservation struct {
	LeftWrist     Point2D `json:"left_wrist"`
	LeftShoulder  Point2D `json:"left_shoulder"`
	RightWrist    Point2D `json:"right_wrist"`
	RightShoulder Point2D `json:"right_shoulder"`
	Width         int     `json:"width"`
	Height        int     `json:"height"`
	Timestamp     float64 `json:"timestamp"`
}

// Wrist returns the wrist position of the given side.
func (o FrameObservation) Wrist(side HandSide) Point2D {
	if side == Right {
		return o.RightWrist
	}
	return o.LeftWrist
}

// Shoulder returns the shoulder position of the given side.
func (o FrameObservation) Shoulder(side HandSide) Point2D {
	if side == Right {
		return o.RightShoulder
	}
	return o.LeftShoulder
}

// Extractor converts normalized landmarks into a FrameObservation.
type Extractor struct {
	swapSides     bool
	minVisibility float64
}

// NewExtractor creates an extractor. When swapSides is set the pose
// model's left joints are reported as the right hand and vice versa.
func NewExtractor(swapSides bool, minVisibility float64) *Extractor {
	return &Extractor{swapSides: swapSides, minVisibility: minVisibility}
}

// Extract scales the four tracked joints to pixels.
func (e *Extractor) Extract(s PoseSample) (FrameObservation, error) {
	obs := FrameObservation{
		Width:     s.Width,
		Height:    s.Height,
		Timestamp: s.Timestamp,
	}

	targets := []struct {
		joint Joint
		dst   *Point2D
	}{
		{LeftWrist, &obs.LeftWrist},
		{LeftShoulder, &obs.LeftShoulder},
		{RightWrist, &obs.RightWrist},
		{RightShoulder, &obs.RightShoulder},
	}

	for _, t := range targets {
		src := t.joint
		if e.swapSides {
			src = mirrorJoint(src)
		}

		lm, ok := s.Landmarks[src]
		if !ok || lm.Visibility < e.minVisibility {
			return FrameObservation{}, fmt.Errorf("%w: %s", ErrMissingLandmark, src)
		}

		*t.dst = Point2D{
			X: lm.X * float64(s.Width),
			Y: lm.Y * float64(s.Height),
		}
	}

	return obs, nil
}

// mirrorJoint maps a joint to the same joint on the other side.
func mirrorJoint(j Joint) Joint {
	switch j {
	case LeftWrist:
		return RightWrist
	case RightWrist:
		return LeftWrist
	case LeftShoulder:
		return RightShoulder
	case RightShoulder:
		return LeftShoulder
	}
	return j
}
