package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/ayusman/jabcam/internal/logging"
	"github.com/ayusman/jabcam/internal/punch"
	"github.com/ayusman/jabcam/internal/session"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks every section and returns all problems as ValidationErrors.
func (c *Config) Validate() error {
	var errs ValidationErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if c.Server.Addr == "" {
		add("server.addr", "must not be empty")
	}
	if c.Server.StreamFPS <= 0 || c.Server.StreamFPS > 60 {
		add("server.stream_fps", "must be within 1..60, got %d", c.Server.StreamFPS)
	}
	if c.Server.JPEGQuality < 1 || c.Server.JPEGQuality > 100 {
		add("server.jpeg_quality", "must be within 1..100, got %d", c.Server.JPEGQuality)
	}

	if c.Camera.Width <= 0 || c.Camera.Height <= 0 {
		add("camera", "width and height must be positive, got %dx%d", c.Camera.Width, c.Camera.Height)
	}
	if c.Camera.FPS <= 0 {
		add("camera.fps", "must be positive, got %d", c.Camera.FPS)
	}
	if c.Camera.IdleFPS <= 0 || c.Camera.IdleFPS > c.Camera.FPS {
		add("camera.idle_fps", "must be within 1..fps, got %d", c.Camera.IdleFPS)
	}
	if c.Camera.MotionThreshold < 0 || c.Camera.MotionThreshold > 100 {
		add("camera.motion_threshold", "must be a percentage, got %g", c.Camera.MotionThreshold)
	}

	if c.Detector.ModelComplexity < 0 || c.Detector.ModelComplexity > 2 {
		add("detector.model_complexity", "must be 0, 1 or 2, got %d", c.Detector.ModelComplexity)
	}
	for field, v := range map[string]float64{
		"detector.min_detection_confidence": c.Detector.MinDetectionConfidence,
		"detector.min_tracking_confidence":  c.Detector.MinTrackingConfidence,
	} {
		if v < 0 || v > 1 {
			add(field, "must be within [0,1], got %g", v)
		}
	}

	if err := c.Punch.Validate(); err != nil {
		add("punch", "%v", err)
	}

	if _, ok := session.LookupMode(c.Session.DefaultMode); !ok {
		add("session.default_mode", "unknown mode %q", c.Session.DefaultMode)
	}
	if c.Session.SurvivalLives <= 0 {
		add("session.survival_lives", "must be positive, got %d", c.Session.SurvivalLives)
	}
	if c.Session.SurvivalWindowSeconds <= 0 {
		add("session.survival_window_seconds", "must be positive, got %g", c.Session.SurvivalWindowSeconds)
	}
	if c.Session.PointsDivisor <= 0 {
		add("session.points_divisor", "must be positive, got %g", c.Session.PointsDivisor)
	}

	if !c.Storage.Disabled && c.Storage.Path == "" {
		add("storage.path", "must be set unless storage is disabled")
	}

	if c.Events.NATSURL != "" {
		u, err := url.Parse(c.Events.NATSURL)
		if err != nil || u.Scheme == "" {
			add("events.nats_url", "invalid url %q", c.Events.NATSURL)
		}
		if c.Events.SubjectPrefix == "" {
			add("events.subject_prefix", "must be set when nats_url is configured")
		}
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		add("logging.level", "%v", err)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		add("logging.format", "must be text or json, got %q", c.Logging.Format)
	}

	if c.Plugins.TimeoutSeconds <= 0 {
		add("plugins.timeout_seconds", "must be positive, got %d", c.Plugins.TimeoutSeconds)
	}
	if c.Plugins.QueueSize <= 0 {
		add("plugins.queue_size", "must be positive, got %d", c.Plugins.QueueSize)
	}

	for i, b := range c.Bindings {
		field := fmt.Sprintf("bindings[%d]", i)
		if _, err := punch.ParseHandSide(b.Side); err != nil {
			add(field+".side", "%v", err)
		}
		if b.Plugin == "" || b.Action == "" {
			add(field, "plugin and action are required")
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
