package punch

// SpeedWindow is a fixed-capacity ring buffer of speed samples.
// It is seeded with zeros so it always holds exactly Cap() values, and its
// average always divides by the capacity.
type SpeedWindow struct {
	buf  []float64
	next int
	sum  float64
}

// NewSpeedWindow creates a window of the given capacity filled with zeros.
// A non-positive capacity is clamped to 1; callers validate configuration
// before reaching this point.
func NewSpeedWindow(capacity int) *SpeedWindow {
	if capacity < 1 {
		capacity = 1
	}
	return &SpeedWindow{buf: make([]float64, capacity)}
}

// Push inserts a sample, evicting the oldest one.
func (w *SpeedWindow) Push(v float64) {
	w.sum += v - w.buf[w.next]
	w.buf[w.next] = v
	w.next = (w.next + 1) % len(w.buf)

	// Resum once per lap so rounding error in the running sum cannot grow
	// over a long session.
	if w.next == 0 {
		w.sum = 0
		for _, s := range w.buf {
			w.sum += s
		}
	}
}

// Average returns sum(window) / Cap().
func (w *SpeedWindow) Average() float64 {
	return w.sum / float64(len(w.buf))
}

// Cap returns the fixed number of samples held.
func (w *SpeedWindow) Cap() int {
	return len(w.buf)
}

// Len is always equal to Cap.
func (w *SpeedWindow) Len() int {
	return len(w.buf)
}

// Values returns the samples from oldest to newest.
func (w *SpeedWindow) Values() []float64 {
	out := make([]float64, 0, len(w.buf))
	out = append(out, w.buf[w.next:]...)
	out = append(out, w.buf[:w.next]...)
	return out
}
