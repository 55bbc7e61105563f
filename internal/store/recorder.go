package store

import (
	"fmt"

	"github.com/ayusman/jabcam/internal/events"
)

// PunchRecorder persists punch events. It implements events.Sink.
type PunchRecorder struct {
	punches *PunchRepository
}

// NewPunchRecorder creates a recorder writing to s.
func NewPunchRecorder(s *Store) *PunchRecorder {
	return &PunchRecorder{punches: s.Punches()}
}

// Publish stores e.
func (r *PunchRecorder) Publish(e events.PunchEvent) error {
	p := &Punch{
		ID:        e.ID,
		SessionID: e.SessionID,
		Side:      e.Side.String(),
		Speed:     e.Speed,
		SpeedAvg:  e.SpeedAvg,
		Points:    e.Points,
		Timestamp: e.Timestamp,
		CreatedAt: e.At,
	}
	if err := r.punches.Create(p); err != nil {
		return fmt.Errorf("record punch %s: %w", e.ID, err)
	}
	return nil
}
