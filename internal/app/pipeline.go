package app

import (
	"errors"
	"time"

	"github.com/ayusman/jabcam/internal/events"
	"github.com/ayusman/jabcam/internal/punch"
	"github.com/ayusman/jabcam/internal/session"
	"gocv.io/x/gocv"
)

// runPipeline is the capture loop. It reads at the idle rate until the
// motion gate opens or a viewer subscribes, then at the active rate.
// Frames are read only while the background session is enabled or someone
// is subscribed.
func (a *App) runPipeline(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	fps := a.cfg.IdleFPS
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	start := a.now()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		if !a.IsEnabled() && a.broker.Subscribers() == 0 {
			continue
		}

		frame, err := a.Camera().ReadFrame()
		if err != nil {
			a.logger.Debug("reading frame", "error", err)
			continue
		}

		next := a.step(frame, a.now().Sub(start).Seconds())
		frame.Close()

		if next != fps {
			fps = next
			a.Camera().SetFPS(fps)
			ticker.Reset(time.Second / time.Duration(fps))
			a.logger.Debug("frame rate changed", "fps", fps)
		}
	}
}

// step processes one frame taken at ts seconds and returns the frame rate
// the loop should run at next. It does not close frame.
func (a *App) step(frame *gocv.Mat, ts float64) int {
	active := true
	if a.cfg.MotionGate {
		active, _ = a.motion.Detect(frame)
	}

	a.mu.Lock()
	if active != a.active {
		a.logger.Info("motion gate", "active", active)
	}
	a.active = active
	d := a.detector
	a.mu.Unlock()

	watched := a.broker.Subscribers() > 0
	f := &Frame{Mat: *frame, Timestamp: ts, Active: active}

	if active || watched {
		pose, err := d.Detect(frame)
		if err != nil {
			a.logger.Debug("pose detection failed", "error", err)
		}
		f.Pose = pose
	}

	if watched {
		a.broker.Publish(f)
	}
	if active && a.IsEnabled() {
		a.feedBackground(f)
	}

	if active || watched {
		return a.cfg.ActiveFPS
	}
	return a.cfg.IdleFPS
}

// feedBackground runs a frame through the background session, starting
// one if needed. A session that ends is finished and replaced on the next
// frame.
func (a *App) feedBackground(f *Frame) {
	a.mu.Lock()
	bg := a.bg
	a.mu.Unlock()

	if bg == nil {
		s, err := a.startSession(a.Settings().Mode, a.backgroundSink())
		if err != nil {
			a.logger.Error("starting background session", "error", err)
			return
		}
		a.mu.Lock()
		a.bg = s
		a.mu.Unlock()
		bg = s
	}

	_, err := bg.HandleSample(f.Sample())
	switch {
	case err == nil, errors.Is(err, punch.ErrMissingLandmark):
	case errors.Is(err, session.ErrSessionOver):
		a.mu.Lock()
		if a.bg == bg {
			a.bg = nil
		}
		a.mu.Unlock()
		a.FinishSession(bg)
	default:
		a.logger.Debug("background sample", "error", err)
	}
}

// backgroundSink delivers background punches to the shared sink, the
// action sink and the registered callbacks.
func (a *App) backgroundSink() events.Sink {
	return events.Multi{
		a.cfg.Sink,
		a.cfg.Actions,
		events.SinkFunc(a.notify),
	}
}

func (a *App) notify(e events.PunchEvent) error {
	a.mu.Lock()
	a.lastPunch = &e
	callbacks := append([]PunchCallback(nil), a.callbacks...)
	a.mu.Unlock()

	for _, cb := range callbacks {
		cb(e)
	}
	return nil
}
