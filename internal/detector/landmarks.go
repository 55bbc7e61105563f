// Package detector provides body pose detection interfaces and types.
package detector

import (
	"github.com/ayusman/jabcam/internal/punch"
)

// Pose landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/pose_landmarker
const (
	Nose          = 0
	LeftShoulder  = 11
	RightShoulder = 12
	LeftElbow     = 13
	RightElbow    = 14
	LeftWrist     = 15
	RightWrist    = 16
	LeftHip       = 23
	RightHip      = 24
	NumLandmarks  = 33
)

// Landmark is a normalized pose point with its visibility score.
type Landmark struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z"`
	Visibility float64 `json:"visibility"`
}

// PoseLandmarks represents the 33 body landmarks detected by MediaPipe.
// Coordinates are normalized to [0,1] of the frame width and height.
type PoseLandmarks struct {
	Points [NumLandmarks]Landmark `json:"points"`
	Score  float64                `json:"score"`
}

// trackedJoints maps the joints the punch classifier consumes to their
// MediaPipe indices.
var trackedJoints = map[punch.Joint]int{
	punch.LeftWrist:     LeftWrist,
	punch.LeftShoulder:  LeftShoulder,
	punch.RightWrist:    RightWrist,
	punch.RightShoulder: RightShoulder,
}

// Sample converts the landmarks into a punch.PoseSample for a frame of the
// given size. A nil receiver yields a sample with no landmarks.
func (p *PoseLandmarks) Sample(width, height int, ts float64) punch.PoseSample {
	s := punch.PoseSample{
		Landmarks: make(map[punch.Joint]punch.Landmark, len(trackedJoints)),
		Width:     width,
		Height:    height,
		Timestamp: ts,
	}
	if p == nil {
		return s
	}

	for joint, idx := range trackedJoints {
		lm := p.Points[idx]
		s.Landmarks[joint] = punch.Landmark{
			X:          lm.X,
			Y:          lm.Y,
			Visibility: lm.Visibility,
		}
	}
	return s
}

// Mirror returns a copy with x coordinates flipped around the frame centre
// and left/right joints exchanged, matching a horizontally flipped frame.
func (p *PoseLandmarks) Mirror() *PoseLandmarks {
	if p == nil {
		return nil
	}

	m := &PoseLandmarks{Score: p.Score}
	for i, lm := range p.Points {
		lm.X = 1 - lm.X
		m.Points[mirrorIndex(i)] = lm
	}
	return m
}

// mirrorIndex returns the index of the same landmark on the other side of
// the body. MediaPipe pairs left/right landmarks as consecutive
// odd/even indices from 1 to 32, except the nose.
func mirrorIndex(i int) int {
	if i == Nose {
		return i
	}
	switch {
	case i >= 1 && i <= 6:
		// eyes: 1-3 left, 4-6 right
		if i <= 3 {
			return i + 3
		}
		return i - 3
	case i == 7 || i == 9:
		return i + 1
	case i == 8 || i == 10:
		return i - 1
	case i%2 == 1:
		return i + 1
	default:
		return i - 1
	}
}
