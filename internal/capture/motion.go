package capture

import (
	"image"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// MotionConfig tunes the frame-difference motion gate.
type MotionConfig struct {
	// Threshold is the percentage of pixels that must change to count as motion.
	Threshold float64
	// BlurSize is the odd Gaussian kernel size applied before differencing.
	BlurSize int
	// DiffThreshold is the per-pixel intensity change that counts as changed.
	DiffThreshold float32
	// Hold keeps the gate open for this long after the last motion, so a
	// boxer pausing between combinations does not drop the loop to idle.
	Hold time.Duration
}

// DefaultMotionConfig returns a 1% threshold with a 21x21 blur and a 2s hold.
func DefaultMotionConfig() MotionConfig {
	return MotionConfig{
		Threshold:     1.0,
		BlurSize:      21,
		DiffThreshold: 25,
		Hold:          2 * time.Second,
	}
}

// MotionDetector detects motion between consecutive video frames
// using frame differencing with Gaussian blur for noise reduction.
type MotionDetector struct {
	cfg         MotionConfig
	prevGray    gocv.Mat
	initialized bool
	lastMotion  time.Time
	now         func() time.Time
	mu          sync.Mutex
}

// NewMotionDetector creates a MotionDetector. Invalid fields fall back to
// DefaultMotionConfig values.
func NewMotionDetector(cfg MotionConfig) *MotionDetector {
	def := DefaultMotionConfig()
	if cfg.Threshold <= 0 {
		cfg.Threshold = def.Threshold
	}
	if cfg.BlurSize <= 0 || cfg.BlurSize%2 == 0 {
		cfg.BlurSize = def.BlurSize
	}
	if cfg.DiffThreshold <= 0 {
		cfg.DiffThreshold = def.DiffThreshold
	}
	if cfg.Hold < 0 {
		cfg.Hold = 0
	}

	return &MotionDetector{
		cfg:      cfg,
		prevGray: gocv.NewMat(),
		now:      time.Now,
	}
}

// Detect compares frame with the previous one. It returns whether the gate
// is open (motion now or within the hold period) and the percentage of
// pixels that changed. The first frame only sets the baseline.
func (m *MotionDetector) Detect(frame *gocv.Mat) (bool, float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if frame == nil || frame.Empty() {
		return false, 0
	}

	gray := gocv.NewMat()
	defer gray.Close()

	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	k := m.cfg.BlurSize
	gocv.GaussianBlur(gray, &blurred, image.Point{X: k, Y: k}, 0, 0, gocv.BorderDefault)

	if !m.initialized || m.prevGray.Rows() != blurred.Rows() || m.prevGray.Cols() != blurred.Cols() {
		blurred.CopyTo(&m.prevGray)
		m.initialized = true
		return false, 0
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(blurred, m.prevGray, &diff)

	thresh := gocv.NewMat()
	defer thresh.Close()
	gocv.Threshold(diff, &thresh, m.cfg.DiffThreshold, 255, gocv.ThresholdBinary)

	changed := float64(gocv.CountNonZero(thresh)) / float64(thresh.Rows()*thresh.Cols()) * 100.0

	blurred.CopyTo(&m.prevGray)

	now := m.now()
	if changed > m.cfg.Threshold {
		m.lastMotion = now
		return true, changed
	}
	held := !m.lastMotion.IsZero() && now.Sub(m.lastMotion) < m.cfg.Hold
	return held, changed
}

// Reset clears the baseline frame and the hold period.
func (m *MotionDetector) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.release()
}

// Close releases resources used by the motion detector.
func (m *MotionDetector) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.release()
}

func (m *MotionDetector) release() {
	if !m.prevGray.Empty() {
		m.prevGray.Close()
		m.prevGray = gocv.NewMat()
	}
	m.initialized = false
	m.lastMotion = time.Time{}
}

// SetThreshold sets the percentage of pixels that must change.
// Values less than or equal to 0 are ignored.
func (m *MotionDetector) SetThreshold(threshold float64) {
	if threshold <= 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.cfg.Threshold = threshold
}
