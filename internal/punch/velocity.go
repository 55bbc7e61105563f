package punch

import "errors"

var (
	// ErrNoPreviousSample is returned by Advance on the first sample of a side.
	ErrNoPreviousSample = errors.New("no previous sample")

	// ErrNonMonotonicTimestamp is returned by Advance when the clock did not
	// move forward since the previous sample.
	ErrNonMonotonicTimestamp = errors.New("non-monotonic timestamp")
)

// Advance records a new wrist position and returns the signed speed in
// pixels per second since the previous sample.
//
// The magnitude is the Euclidean displacement divided by the elapsed time.
// The sign is positive when the wrist moved in the side's forward
// direction (or purely vertically) and negative when it moved backward.
//
// The stored position and timestamp are replaced on every call, including
// the ones that return ErrNoPreviousSample or ErrNonMonotonicTimestamp.
func (h *HandState) Advance(pos Point2D, ts float64) (float64, error) {
	prevPos, prevTS, hadPrev := h.prevPos, h.prevTS, h.hasPrev

	h.prevPos = pos
	h.prevTS = ts
	h.hasPrev = true

	if !hadPrev {
		return 0, ErrNoPreviousSample
	}

	dt := ts - prevTS
	if dt <= 0 {
		return 0, ErrNonMonotonicTimestamp
	}

	d := distance(pos, prevPos)
	if h.side.Forward()*(pos.X-prevPos.X) < 0 {
		d = -d
	}
	return d / dt, nil
}
