package session

import (
	"math"
	"time"

	"github.com/ayusman/jabcam/internal/punch"
	"gonum.org/v1/gonum/stat"
)

// Summary describes a session for storage and display.
type Summary struct {
	ID           string    `json:"id"`
	Mode         Mode      `json:"mode"`
	StartedAt    time.Time `json:"started_at"`
	EndedAt      time.Time `json:"ended_at,omitzero"`
	Duration     float64   `json:"duration_seconds"`
	LeftPunches  int       `json:"left_punches"`
	RightPunches int       `json:"right_punches"`
	Score        int       `json:"score"`
	Lives        int       `json:"lives"`
	Over         bool      `json:"over"`

	// Mean and standard deviation of the smoothed speed over the most
	// recent maxSpeedSamples punch events; MaxSpeed covers the session.
	MeanSpeed   float64 `json:"mean_speed"`
	StdDevSpeed float64 `json:"stddev_speed"`
	MaxSpeed    float64 `json:"max_speed"`

	Stats punch.Stats `json:"stats"`
}

// Punches returns the total number of punch events.
func (s Summary) Punches() int {
	return s.LeftPunches + s.RightPunches
}

func (s *Session) summary() Summary {
	sum := Summary{
		ID:           s.id,
		Mode:         s.mode,
		StartedAt:    s.startedAt,
		EndedAt:      s.endedAt,
		Duration:     s.lastTS - s.firstTS,
		LeftPunches:  s.counts[punch.Left],
		RightPunches: s.counts[punch.Right],
		Score:        s.score,
		Lives:        s.lives,
		Over:         s.over,
		Stats:        s.pipeline.Stats(),
	}

	switch recent := s.speeds.values(); len(recent) {
	case 0:
	case 1:
		sum.MeanSpeed = recent[0]
	default:
		sum.MeanSpeed, sum.StdDevSpeed = stat.MeanStdDev(recent, nil)
	}
	sum.MaxSpeed = s.speeds.max
	return sum
}

// maxSpeedSamples bounds the speeds a session keeps for its statistics.
const maxSpeedSamples = 1024

// speedWindow keeps the most recent punch speeds in a ring and the
// session-wide maximum.
type speedWindow struct {
	buf  []float64
	next int
	max  float64
}

func (w *speedWindow) add(v float64) {
	if len(w.buf) < maxSpeedSamples {
		w.buf = append(w.buf, v)
	} else {
		w.buf[w.next] = v
		w.next = (w.next + 1) % maxSpeedSamples
	}
	w.max = math.Max(w.max, v)
}

// values returns the kept speeds, oldest first.
func (w *speedWindow) values() []float64 {
	out := make([]float64, 0, len(w.buf))
	out = append(out, w.buf[w.next:]...)
	return append(out, w.buf[:w.next]...)
}

func (w *speedWindow) len() int {
	return len(w.buf)
}
