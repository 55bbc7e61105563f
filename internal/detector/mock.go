package detector

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It returns either a fixed pose or plays back a sequence, one pose per call.
type MockDetector struct {
	mu       sync.Mutex
	pose     *PoseLandmarks
	sequence []*PoseLandmarks
	pos      int
	loop     bool
	err      error
	calls    int
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetPose sets the pose returned by every Detect call.
func (m *MockDetector) SetPose(pose *PoseLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pose = pose
	m.sequence = nil
}

// SetSequence makes Detect return the given poses in order. After the last
// one it keeps returning it, or starts over when loop is true.
func (m *MockDetector) SetSequence(poses []*PoseLandmarks, loop bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sequence = poses
	m.pos = 0
	m.loop = loop
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Detect has been called.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns the pre-configured pose or error.
func (m *MockDetector) Detect(frame *gocv.Mat) (*PoseLandmarks, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if len(m.sequence) == 0 {
		return m.pose, nil
	}

	pose := m.sequence[m.pos]
	switch {
	case m.pos < len(m.sequence)-1:
		m.pos++
	case m.loop:
		m.pos = 0
	}
	return pose, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// GuardPose returns a boxer facing the camera with both fists up near the
// chin. Coordinates are in image space: the subject's left side appears on
// the left of the frame.
func GuardPose() *PoseLandmarks {
	p := &PoseLandmarks{Score: 0.95}
	for i := range p.Points {
		p.Points[i] = Landmark{X: 0.5, Y: 0.5, Visibility: 0.9}
	}

	p.Points[Nose] = Landmark{X: 0.50, Y: 0.20, Visibility: 0.99}
	p.Points[LeftShoulder] = Landmark{X: 0.40, Y: 0.35, Visibility: 0.98}
	p.Points[RightShoulder] = Landmark{X: 0.60, Y: 0.35, Visibility: 0.98}
	p.Points[LeftElbow] = Landmark{X: 0.38, Y: 0.50, Visibility: 0.95}
	p.Points[RightElbow] = Landmark{X: 0.62, Y: 0.50, Visibility: 0.95}
	p.Points[LeftWrist] = Landmark{X: 0.45, Y: 0.30, Visibility: 0.95}
	p.Points[RightWrist] = Landmark{X: 0.55, Y: 0.30, Visibility: 0.95}
	p.Points[LeftHip] = Landmark{X: 0.42, Y: 0.75, Visibility: 0.9}
	p.Points[RightHip] = Landmark{X: 0.58, Y: 0.75, Visibility: 0.9}
	return p
}

// LeftJabPose returns the guard with the left arm fully extended forward.
func LeftJabPose() *PoseLandmarks {
	p := GuardPose()
	p.Points[LeftElbow] = Landmark{X: 0.55, Y: 0.36, Visibility: 0.95}
	p.Points[LeftWrist] = Landmark{X: 0.70, Y: 0.33, Visibility: 0.95}
	return p
}

// RightJabPose returns the guard with the right arm fully extended forward.
func RightJabPose() *PoseLandmarks {
	p := GuardPose()
	p.Points[RightElbow] = Landmark{X: 0.45, Y: 0.36, Visibility: 0.95}
	p.Points[RightWrist] = Landmark{X: 0.30, Y: 0.33, Visibility: 0.95}
	return p
}
