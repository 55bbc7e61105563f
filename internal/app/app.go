// Package app runs the capture loop: camera, motion gate, pose detection,
// and the punch sessions fed from it.
package app

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ayusman/jabcam/internal/capture"
	"github.com/ayusman/jabcam/internal/detector"
	"github.com/ayusman/jabcam/internal/events"
	"github.com/ayusman/jabcam/internal/logging"
	"github.com/ayusman/jabcam/internal/punch"
	"github.com/ayusman/jabcam/internal/session"
	"github.com/ayusman/jabcam/internal/store"
)

// Loop rates.
const (
	// DefaultIdleFPS is the frame rate while nothing moves.
	DefaultIdleFPS = 5
	// DefaultActiveFPS is the frame rate while someone is moving or watching.
	DefaultActiveFPS = 30
)

// Settings are the game settings applied to new sessions.
type Settings struct {
	Mode  session.Mode
	Punch punch.Config
	Rules session.Rules
}

// DefaultSettings returns free-play with the default engine and rules.
func DefaultSettings() Settings {
	return Settings{
		Mode:  session.ModeFreePlay,
		Punch: punch.DefaultConfig(),
		Rules: session.DefaultRules(),
	}
}

// Config holds the collaborators and tunables of an App.
type Config struct {
	Camera   capture.Camera
	Detector detector.Detector

	Motion     capture.MotionConfig
	MotionGate bool
	IdleFPS    int
	ActiveFPS  int

	Settings Settings

	// Store persists session rows. Optional.
	Store *store.Store
	// Sink receives the punch events of every session.
	Sink events.Sink
	// Actions receives the punch events of the background session only,
	// so that plugins fire once per punch however many viewers watch.
	Actions events.Sink

	Logger *slog.Logger
}

// PunchCallback is called for every punch of the background session.
type PunchCallback func(events.PunchEvent)

// Status is a snapshot of the app for the tray and the API.
type Status struct {
	Enabled     bool               `json:"enabled"`
	Running     bool               `json:"running"`
	Active      bool               `json:"active"`
	Subscribers int                `json:"subscribers"`
	Session     *session.Summary   `json:"session,omitempty"`
	LastPunch   *events.PunchEvent `json:"last_punch,omitempty"`
	Settings    Settings           `json:"-"`
}

// App orchestrates capture, detection and sessions.
type App struct {
	cfg    Config
	logger *slog.Logger
	broker *Broker
	motion *capture.MotionDetector
	now    func() time.Time

	mu        sync.RWMutex
	camera    capture.Camera
	detector  detector.Detector
	settings  Settings
	enabled   bool
	stopCh    chan struct{}
	doneCh    chan struct{}
	active    bool
	bg        *session.Session
	lastPunch *events.PunchEvent
	callbacks []PunchCallback
}

// New creates an App. The camera and detector are required.
func New(cfg Config) (*App, error) {
	if cfg.Camera == nil {
		return nil, errors.New("app: camera is required")
	}
	if cfg.Detector == nil {
		return nil, errors.New("app: detector is required")
	}
	if cfg.IdleFPS <= 0 {
		cfg.IdleFPS = DefaultIdleFPS
	}
	if cfg.ActiveFPS <= 0 {
		cfg.ActiveFPS = DefaultActiveFPS
	}
	if cfg.Sink == nil {
		cfg.Sink = events.Discard
	}
	if cfg.Settings.Punch.QueueSize == 0 {
		cfg.Settings = DefaultSettings()
	}
	if _, err := punch.New(cfg.Settings.Punch); err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	if err := cfg.Settings.Rules.Validate(); err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	return &App{
		cfg:      cfg,
		logger:   logging.OrDiscard(cfg.Logger).With("component", "app"),
		broker:   NewBroker(),
		motion:   capture.NewMotionDetector(cfg.Motion),
		now:      time.Now,
		camera:   cfg.Camera,
		detector: cfg.Detector,
		settings: cfg.Settings,
	}, nil
}

// SetEnabled turns the background session on or off. Turning it off
// finishes the running session.
func (a *App) SetEnabled(enabled bool) {
	a.mu.Lock()
	a.enabled = enabled
	var done *session.Session
	if !enabled {
		done, a.bg = a.bg, nil
	}
	a.mu.Unlock()

	if done != nil {
		a.FinishSession(done)
	}
	a.logger.Info("detection toggled", "enabled", enabled)
}

// IsEnabled returns whether the background session is enabled.
func (a *App) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// SetDetector replaces the pose detector. The previous one is not closed.
func (a *App) SetDetector(d detector.Detector) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.detector = d
}

// Detector returns the pose detector.
func (a *App) Detector() detector.Detector {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.detector
}

// Camera returns the camera.
func (a *App) Camera() capture.Camera {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.camera
}

// MotionDetector returns the motion gate.
func (a *App) MotionDetector() *capture.MotionDetector {
	return a.motion
}

// Settings returns the settings new sessions start with.
func (a *App) Settings() Settings {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.settings
}

// ApplySettings validates s and makes it the configuration of new
// sessions. Sessions already running keep their settings, except the
// background session, which is restarted on the next frame.
func (a *App) ApplySettings(s Settings) error {
	if _, err := punch.New(s.Punch); err != nil {
		return err
	}
	if err := s.Rules.Validate(); err != nil {
		return err
	}

	a.mu.Lock()
	a.settings = s
	done := a.bg
	a.bg = nil
	a.mu.Unlock()

	if done != nil {
		a.FinishSession(done)
	}
	a.logger.Info("settings applied", "mode", string(s.Mode), "policy", string(s.Punch.Policy),
		"threshold", s.Punch.SpeedThreshold)
	return nil
}

// RegisterPunchCallback adds a callback for background session punches.
func (a *App) RegisterPunchCallback(cb PunchCallback) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.callbacks = append(a.callbacks, cb)
}

// Subscribe registers a frame subscriber. See Broker.Subscribe.
func (a *App) Subscribe(buffer int) (<-chan *Frame, func()) {
	return a.broker.Subscribe(buffer)
}

// Status returns a snapshot of the app state.
func (a *App) Status() Status {
	a.mu.RLock()
	st := Status{
		Enabled:     a.enabled,
		Running:     a.stopCh != nil,
		Active:      a.active,
		Subscribers: a.broker.Subscribers(),
		LastPunch:   a.lastPunch,
		Settings:    a.settings,
	}
	bg := a.bg
	a.mu.RUnlock()

	if bg != nil {
		sum := bg.Summary()
		st.Session = &sum
	}
	return st
}

// Start opens the camera and starts the capture loop.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopCh != nil {
		return nil
	}

	if err := a.camera.Open(); err != nil {
		return err
	}
	a.camera.SetFPS(a.cfg.IdleFPS)

	a.stopCh = make(chan struct{})
	a.doneCh = make(chan struct{})
	go a.runPipeline(a.stopCh, a.doneCh)

	a.logger.Info("capture loop started", "idle_fps", a.cfg.IdleFPS, "active_fps", a.cfg.ActiveFPS)
	return nil
}

// Stop halts the capture loop, finishes the background session and
// releases the camera, motion gate and detector.
func (a *App) Stop() {
	a.mu.Lock()
	stop, done := a.stopCh, a.doneCh
	a.stopCh, a.doneCh = nil, nil
	a.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}

	a.mu.Lock()
	bg := a.bg
	a.bg = nil
	a.mu.Unlock()
	if bg != nil {
		a.FinishSession(bg)
	}

	if err := a.camera.Close(); err != nil {
		a.logger.Error("closing camera", "error", err)
	}
	a.motion.Close()

	if d := a.Detector(); d != nil {
		if err := d.Close(); err != nil {
			a.logger.Error("closing detector", "error", err)
		}
	}

	a.logger.Info("capture loop stopped")
}
