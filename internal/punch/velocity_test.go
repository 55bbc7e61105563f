package punch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandState_FirstSampleHasNoSpeed(t *testing.T) {
	for _, side := range Sides {
		t.Run(side.String(), func(t *testing.T) {
			h := NewHandState(side, DefaultQueueSize)

			_, _, ok := h.Previous()
			require.False(t, ok)

			speed, err := h.Advance(Point2D{X: 10, Y: 20}, 1.5)
			assert.ErrorIs(t, err, ErrNoPreviousSample)
			assert.Zero(t, speed)

			pos, ts, ok := h.Previous()
			assert.True(t, ok)
			assert.Equal(t, Point2D{X: 10, Y: 20}, pos)
			assert.Equal(t, 1.5, ts)
		})
	}
}

func TestHandState_SpeedFromDisplacement(t *testing.T) {
	tests := []struct {
		name  string
		side  HandSide
		from  Point2D
		to    Point2D
		dt    float64
		speed float64
	}{
		{"left forward", Left, Point2D{X: 0, Y: 0}, Point2D{X: 500, Y: 0}, 5, 100},
		{"left backward", Left, Point2D{X: 500, Y: 0}, Point2D{X: 0, Y: 0}, 5, -100},
		{"right forward", Right, Point2D{X: 500, Y: 0}, Point2D{X: 0, Y: 0}, 5, 100},
		{"right backward", Right, Point2D{X: 0, Y: 0}, Point2D{X: 500, Y: 0}, 5, -100},
		{"diagonal", Left, Point2D{X: 0, Y: 0}, Point2D{X: 300, Y: 400}, 5, 100},
		{"vertical counts as forward", Right, Point2D{X: 100, Y: 0}, Point2D{X: 100, Y: 500}, 5, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandState(tt.side, DefaultQueueSize)
			_, err := h.Advance(tt.from, 0)
			require.ErrorIs(t, err, ErrNoPreviousSample)

			speed, err := h.Advance(tt.to, tt.dt)
			require.NoError(t, err)
			assert.InDelta(t, tt.speed, speed, 1e-9)
		})
	}
}

func TestHandState_NonMonotonicTimestamp(t *testing.T) {
	for _, dt := range []float64{0, -0.5} {
		h := NewHandState(Right, DefaultQueueSize)
		_, _ = h.Advance(Point2D{X: 100, Y: 100}, 2.0)

		speed, err := h.Advance(Point2D{X: 100, Y: 150}, 2.0+dt)
		assert.ErrorIs(t, err, ErrNonMonotonicTimestamp)
		assert.Zero(t, speed)

		pos, ts, ok := h.Previous()
		assert.True(t, ok)
		assert.Equal(t, Point2D{X: 100, Y: 150}, pos, "position advances even without a speed")
		assert.Equal(t, 2.0+dt, ts, "timestamp advances even without a speed")
	}
}

func TestHandState_NonMonotonicDoesNotTouchWindow(t *testing.T) {
	h := NewHandState(Left, 3)
	_, _ = h.Advance(Point2D{X: 0, Y: 0}, 1)
	_, _ = h.Advance(Point2D{X: 10, Y: 0}, 1)

	assert.Equal(t, []float64{0, 0, 0}, h.Window().Values())
}
