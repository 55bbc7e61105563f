// Package events fans punch events out to in-process and external consumers.
package events

import (
	"errors"
	"sync"
	"time"

	"github.com/ayusman/jabcam/internal/punch"
)

// PunchEvent describes one landed punch.
type PunchEvent struct {
	ID        string         `json:"id"`
	SessionID string         `json:"session_id"`
	Mode      string         `json:"mode"`
	Side      punch.HandSide `json:"side"`
	Speed     float64        `json:"speed"`
	SpeedAvg  float64        `json:"speed_avg"`
	Points    int            `json:"points"`
	Timestamp float64        `json:"timestamp"`
	At        time.Time      `json:"at"`
}

// Sink consumes punch events.
type Sink interface {
	Publish(PunchEvent) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(PunchEvent) error

// Publish calls f.
func (f SinkFunc) Publish(e PunchEvent) error {
	return f(e)
}

// Discard is a Sink that drops every event.
var Discard Sink = SinkFunc(func(PunchEvent) error { return nil })

// Multi fans an event out to every sink and joins their errors.
type Multi []Sink

// Publish delivers e to all sinks, even after one fails.
func (m Multi) Publish(e PunchEvent) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Publish(e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder keeps every published event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []PunchEvent
}

// Publish records e.
func (r *Recorder) Publish(e PunchEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []PunchEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]PunchEvent(nil), r.events...)
}

// Len returns how many events were recorded.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// Reset drops all recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
