package app

import (
	"sync"

	"github.com/ayusman/jabcam/internal/detector"
	"github.com/ayusman/jabcam/internal/punch"
	"gocv.io/x/gocv"
)

// Frame is one captured camera frame and the pose found in it.
type Frame struct {
	Mat gocv.Mat
	// Pose is nil when no person was found or detection was skipped.
	Pose *detector.PoseLandmarks
	// Timestamp is seconds since the capture loop started.
	Timestamp float64
	// Active reports whether the motion gate was open.
	Active bool
}

// Sample converts the frame's pose into a punch.PoseSample.
func (f *Frame) Sample() punch.PoseSample {
	return f.Pose.Sample(f.Mat.Cols(), f.Mat.Rows(), f.Timestamp)
}

// Close releases the frame's pixels.
func (f *Frame) Close() {
	f.Mat.Close()
}

// Broker fans captured frames out to subscribers. Each subscriber gets its
// own copy of the pixels and must Close every frame it receives. Slow
// subscribers miss frames rather than stall capture.
type Broker struct {
	mu   sync.Mutex
	subs map[chan *Frame]struct{}
}

// NewBroker creates a broker with no subscribers.
func NewBroker() *Broker {
	return &Broker{subs: make(map[chan *Frame]struct{})}
}

// Subscribe registers a subscriber with room for buffer pending frames.
// The returned cancel func unregisters it, closes the channel and releases
// any frames still queued.
func (b *Broker) Subscribe(buffer int) (<-chan *Frame, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan *Frame, buffer)

	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ch)
			close(ch)
			b.mu.Unlock()

			for f := range ch {
				f.Close()
			}
		})
	}
	return ch, cancel
}

// Subscribers returns the number of active subscribers.
func (b *Broker) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Publish hands a copy of f to every subscriber with buffer space and
// returns how many received it. f itself is left to the caller.
func (b *Broker) Publish(f *Frame) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	delivered := 0
	for ch := range b.subs {
		c := &Frame{
			Mat:       f.Mat.Clone(),
			Pose:      f.Pose,
			Timestamp: f.Timestamp,
			Active:    f.Active,
		}
		select {
		case ch <- c:
			delivered++
		default:
			c.Close()
		}
	}
	return delivered
}
