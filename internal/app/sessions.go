package app

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ayusman/jabcam/internal/events"
	"github.com/ayusman/jabcam/internal/session"
	"github.com/ayusman/jabcam/internal/store"
)

// StartSession creates a session in mode with the current settings and
// records it in the store. Its punches go to the shared sink. An empty
// mode uses the configured default.
func (a *App) StartSession(mode session.Mode) (*session.Session, error) {
	return a.startSession(mode, a.cfg.Sink)
}

func (a *App) startSession(mode session.Mode, sink events.Sink) (*session.Session, error) {
	settings := a.Settings()
	if mode == "" {
		mode = settings.Mode
	}

	s, err := session.New(session.Options{
		Mode:   mode,
		Punch:  settings.Punch,
		Rules:  settings.Rules,
		Sink:   sink,
		Logger: a.cfg.Logger,
	})
	if err != nil {
		return nil, err
	}

	if a.cfg.Store != nil {
		config, _ := json.Marshal(settings.Punch)
		rec := &store.Session{
			ID:        s.ID(),
			Mode:      string(s.Mode()),
			StartedAt: s.StartedAt(),
			Lives:     settings.Rules.Lives,
			Config:    config,
		}
		if !s.Mode().HasLives() {
			rec.Lives = 0
		}
		if err := a.cfg.Store.Sessions().Create(rec); err != nil {
			return nil, fmt.Errorf("record session: %w", err)
		}
	}

	a.logger.Info("session started", "session", s.ID(), "mode", string(s.Mode()))
	return s, nil
}

// FinishSession ends s and stores its final totals.
func (a *App) FinishSession(s *session.Session) session.Summary {
	sum := s.End()

	if a.cfg.Store != nil {
		ended := sum.EndedAt
		if ended.IsZero() {
			ended = time.Now()
		}
		rec := &store.Session{
			ID:           sum.ID,
			EndedAt:      &ended,
			LeftPunches:  sum.LeftPunches,
			RightPunches: sum.RightPunches,
			Score:        sum.Score,
			Lives:        sum.Lives,
			MeanSpeed:    sum.MeanSpeed,
			MaxSpeed:     sum.MaxSpeed,
		}
		if err := a.cfg.Store.Sessions().Update(rec); err != nil {
			a.logger.Error("storing session totals", "session", sum.ID, "error", err)
		}
	}

	a.logger.Info("session finished", "session", sum.ID, "mode", string(sum.Mode),
		"left", sum.LeftPunches, "right", sum.RightPunches, "score", sum.Score)
	return sum
}
