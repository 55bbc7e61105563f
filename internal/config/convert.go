package config

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ayusman/jabcam/internal/capture"
	"github.com/ayusman/jabcam/internal/detector"
	"github.com/ayusman/jabcam/internal/plugin"
	"github.com/ayusman/jabcam/internal/punch"
	"github.com/ayusman/jabcam/internal/session"
)

// CameraOptions returns the capture options of the camera section.
func (c *Config) CameraOptions() capture.Options {
	return capture.Options{
		DeviceID: c.Camera.DeviceID,
		Width:    c.Camera.Width,
		Height:   c.Camera.Height,
		FPS:      c.Camera.FPS,
		Mirror:   c.Camera.Mirror,
	}
}

// MotionConfig returns the motion gate tuning with the configured threshold.
func (c *Config) MotionConfig() capture.MotionConfig {
	mc := capture.DefaultMotionConfig()
	mc.Threshold = c.Camera.MotionThreshold
	return mc
}

// DetectorConfig returns the pose detector configuration.
func (c *Config) DetectorConfig() detector.Config {
	return detector.Config{
		ModelComplexity: c.Detector.ModelComplexity,
		MinConfidence:   c.Detector.MinDetectionConfidence,
		MinTrackingConf: c.Detector.MinTrackingConfidence,
		ScriptPath:      c.Detector.ScriptPath,
	}
}

// SessionMode returns the default game mode.
func (c *Config) SessionMode() session.Mode {
	return session.ParseMode(c.Session.DefaultMode)
}

// SessionRules returns the scoring and survival tunables.
func (c *Config) SessionRules() session.Rules {
	return session.Rules{
		Lives:         c.Session.SurvivalLives,
		Window:        c.Session.SurvivalWindowSeconds,
		PointsDivisor: c.Session.PointsDivisor,
	}
}

// PluginTimeout returns the per-action plugin timeout.
func (c *Config) PluginTimeout() time.Duration {
	return time.Duration(c.Plugins.TimeoutSeconds) * time.Second
}

// PluginBindings converts the bindings section for the plugin dispatcher.
func (c *Config) PluginBindings() (plugin.StaticBindings, error) {
	out := make(plugin.StaticBindings, 0, len(c.Bindings))
	for i, b := range c.Bindings {
		side, err := punch.ParseHandSide(b.Side)
		if err != nil {
			return nil, fmt.Errorf("bindings[%d]: %w", i, err)
		}

		var params json.RawMessage
		if len(b.Params) > 0 {
			params, err = json.Marshal(b.Params)
			if err != nil {
				return nil, fmt.Errorf("bindings[%d]: %w", i, err)
			}
		}

		out = append(out, plugin.Binding{
			Side:   side,
			Plugin: b.Plugin,
			Action: b.Action,
			Params: params,
		})
	}
	return out, nil
}
