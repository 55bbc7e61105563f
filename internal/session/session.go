// Package session turns per-frame punch classifications into punch events
// and applies the game rules of a mode on top.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/ayusman/jabcam/internal/events"
	"github.com/ayusman/jabcam/internal/punch"
	"github.com/google/uuid"
)

// ErrSessionOver is returned by HandleSample once a survival session has
// run out of lives or the session was ended.
var ErrSessionOver = errors.New("session is over")

// Rules holds the tunables of the scoring and survival modes.
type Rules struct {
	// Lives a survival session starts with.
	Lives int
	// Window is how long, in seconds, a survival player may go without
	// landing a punch before losing a life.
	Window float64
	// PointsDivisor converts a punch's smoothed speed into points.
	PointsDivisor float64
}

// DefaultRules returns 3 lives, a 3 second window and one point per 10 px/s.
func DefaultRules() Rules {
	return Rules{
		Lives:         3,
		Window:        3,
		PointsDivisor: 10,
	}
}

// Validate reports rules that cannot be played.
func (r Rules) Validate() error {
	if r.Lives <= 0 || r.Window <= 0 || r.PointsDivisor <= 0 {
		return fmt.Errorf("session: invalid rules %+v", r)
	}
	return nil
}

// Options configures a new Session.
type Options struct {
	Mode   Mode
	Punch  punch.Config
	Rules  Rules
	Sink   events.Sink
	Logger *slog.Logger

	// Now supplies wall-clock time for StartedAt and event stamps.
	Now func() time.Time
}

// Update is the outcome of one frame.
type Update struct {
	Result punch.ClassificationResult
	// Observation is nil when the frame had no usable pose.
	Observation *punch.FrameObservation
	// Events are the punches that started in this frame.
	Events   []events.PunchEvent
	Score    int
	Lives    int
	LifeLost bool
	Over     bool
}

// Session is one run of a game mode for a single subject. It is safe for
// concurrent use, though frames are expected from one goroutine.
type Session struct {
	id        string
	mode      Mode
	rules     Rules
	sink      events.Sink
	logger    *slog.Logger
	now       func() time.Time
	startedAt time.Time
	endedAt   time.Time

	mu       sync.Mutex
	pipeline *punch.Pipeline
	wasPunch [2]bool
	counts   [2]int
	speeds   speedWindow
	score    int
	lives    int
	over     bool

	// Sample clock, in the timestamps carried by pose samples.
	firstTS  float64
	lastTS   float64
	deadline float64
	started  bool
}

// New validates opts and creates a session with a fresh pipeline.
func New(opts Options) (*Session, error) {
	p, err := punch.New(opts.Punch)
	if err != nil {
		return nil, err
	}

	if err := opts.Rules.Validate(); err != nil {
		return nil, err
	}
	if opts.Sink == nil {
		opts.Sink = events.Discard
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	opts.Mode = ParseMode(string(opts.Mode))

	s := &Session{
		id:        uuid.NewString(),
		mode:      opts.Mode,
		rules:     opts.Rules,
		sink:      opts.Sink,
		now:       opts.Now,
		pipeline:  p,
		startedAt: opts.Now(),
	}
	s.logger = opts.Logger.With("session", s.id, "mode", string(s.mode))
	if s.mode.HasLives() {
		s.lives = opts.Rules.Lives
	}
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Mode returns the mode the session was started in.
func (s *Session) Mode() Mode { return s.mode }

// StartedAt returns the wall-clock start time.
func (s *Session) StartedAt() time.Time { return s.startedAt }

// Config returns the punch configuration in use.
func (s *Session) Config() punch.Config { return s.pipeline.Config() }

// HandleSample runs one pose sample through the pipeline and the mode's
// rules. A frame with missing joints still advances the survival clock and
// returns punch.ErrMissingLandmark together with the update.
func (s *Session) HandleSample(sample punch.PoseSample) (Update, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.over {
		return s.update(), ErrSessionOver
	}

	s.tick(sample.Timestamp)
	lifeLost := false
	if s.mode.HasLives() {
		lifeLost = s.drainLives(sample.Timestamp)
	}
	if s.over {
		u := s.update()
		u.LifeLost = lifeLost
		return u, ErrSessionOver
	}

	obs, err := s.pipeline.Extract(sample)
	if err != nil {
		s.wasPunch = [2]bool{}
		s.logger.Debug("frame skipped", "error", err)
		u := s.update()
		u.LifeLost = lifeLost
		return u, err
	}

	res := s.pipeline.Observe(obs)
	u := Update{Result: res, Observation: &obs, LifeLost: lifeLost}

	for _, side := range punch.Sides {
		hit := res.Punch(side)
		if hit && !s.wasPunch[side] {
			u.Events = append(u.Events, s.land(side, res))
		}
		s.wasPunch[side] = hit
	}

	u.Score, u.Lives, u.Over = s.score, s.lives, s.over
	return u, nil
}

// tick advances the sample clock.
func (s *Session) tick(ts float64) {
	if !s.started {
		s.started = true
		s.firstTS, s.lastTS = ts, ts
		s.deadline = ts + s.rules.Window
		return
	}
	if ts > s.lastTS {
		s.lastTS = ts
	}
}

// drainLives takes a life for every full window that elapsed since the
// last punch and reports whether any was lost.
func (s *Session) drainLives(ts float64) bool {
	lost := false
	for ts >= s.deadline && s.lives > 0 {
		s.lives--
		s.deadline += s.rules.Window
		lost = true
		s.logger.Info("life lost", "lives", s.lives)
	}
	if s.lives == 0 {
		s.end()
	}
	return lost
}

// land records a punch event and publishes it.
func (s *Session) land(side punch.HandSide, res punch.ClassificationResult) events.PunchEvent {
	speed := math.Abs(res.SpeedAvg(side))
	points := 0
	if s.mode.Scores() {
		points = int(math.Round(speed / s.rules.PointsDivisor))
		s.score += points
	}
	if s.mode.HasLives() {
		s.deadline = res.Timestamp + s.rules.Window
	}

	s.counts[side]++
	s.speeds.add(speed)

	e := events.PunchEvent{
		ID:        uuid.NewString(),
		SessionID: s.id,
		Mode:      string(s.mode),
		Side:      side,
		Speed:     res.Speed(side),
		SpeedAvg:  res.SpeedAvg(side),
		Points:    points,
		Timestamp: res.Timestamp,
		At:        s.now(),
	}
	if err := s.sink.Publish(e); err != nil {
		s.logger.Warn("publish punch", "side", side.String(), "error", err)
	}
	return e
}

func (s *Session) update() Update {
	return Update{Score: s.score, Lives: s.lives, Over: s.over}
}

func (s *Session) end() {
	if s.over {
		return
	}
	s.over = true
	s.endedAt = s.now()
}

// End finishes the session. Further samples return ErrSessionOver.
func (s *Session) End() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.end()
	return s.summary()
}

// Over reports whether the session has finished.
func (s *Session) Over() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.over
}

// Summary returns the statistics collected so far.
func (s *Session) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summary()
}
