// Package config loads, validates and hot-reloads the jabcam configuration.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ayusman/jabcam/internal/logging"
	"github.com/ayusman/jabcam/internal/punch"
)

// Config is the complete application configuration.
type Config struct {
	Server   ServerConfig   `toml:"server" yaml:"server" json:"server"`
	Camera   CameraConfig   `toml:"camera" yaml:"camera" json:"camera"`
	Detector DetectorConfig `toml:"detector" yaml:"detector" json:"detector"`
	Punch    punch.Config   `toml:"punch" yaml:"punch" json:"punch"`
	Session  SessionConfig  `toml:"session" yaml:"session" json:"session"`
	Storage  StorageConfig  `toml:"storage" yaml:"storage" json:"storage"`
	Events   EventsConfig   `toml:"events" yaml:"events" json:"events"`
	Logging  logging.Config `toml:"logging" yaml:"logging" json:"logging"`
	Plugins  PluginsConfig  `toml:"plugins" yaml:"plugins" json:"plugins"`
	Bindings []Binding      `toml:"bindings" yaml:"bindings" json:"bindings"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr        string `toml:"addr" yaml:"addr" json:"addr"`
	StaticDir   string `toml:"static_dir" yaml:"static_dir" json:"static_dir"`
	StreamFPS   int    `toml:"stream_fps" yaml:"stream_fps" json:"stream_fps"`
	JPEGQuality int    `toml:"jpeg_quality" yaml:"jpeg_quality" json:"jpeg_quality"`
}

// CameraConfig configures the webcam and the motion gate of the app loop.
type CameraConfig struct {
	DeviceID        int     `toml:"device_id" yaml:"device_id" json:"device_id"`
	Width           int     `toml:"width" yaml:"width" json:"width"`
	Height          int     `toml:"height" yaml:"height" json:"height"`
	FPS             int     `toml:"fps" yaml:"fps" json:"fps"`
	IdleFPS         int     `toml:"idle_fps" yaml:"idle_fps" json:"idle_fps"`
	Mirror          bool    `toml:"mirror" yaml:"mirror" json:"mirror"`
	MotionGate      bool    `toml:"motion_gate" yaml:"motion_gate" json:"motion_gate"`
	MotionThreshold float64 `toml:"motion_threshold" yaml:"motion_threshold" json:"motion_threshold"`
}

// DetectorConfig configures the pose service.
type DetectorConfig struct {
	ModelComplexity        int     `toml:"model_complexity" yaml:"model_complexity" json:"model_complexity"`
	MinDetectionConfidence float64 `toml:"min_detection_confidence" yaml:"min_detection_confidence" json:"min_detection_confidence"`
	MinTrackingConfidence  float64 `toml:"min_tracking_confidence" yaml:"min_tracking_confidence" json:"min_tracking_confidence"`
	ScriptPath             string  `toml:"script_path" yaml:"script_path" json:"script_path"`
}

// SessionConfig configures game modes.
type SessionConfig struct {
	DefaultMode           string  `toml:"default_mode" yaml:"default_mode" json:"default_mode"`
	SurvivalLives         int     `toml:"survival_lives" yaml:"survival_lives" json:"survival_lives"`
	SurvivalWindowSeconds float64 `toml:"survival_window_seconds" yaml:"survival_window_seconds" json:"survival_window_seconds"`
	PointsDivisor         float64 `toml:"points_divisor" yaml:"points_divisor" json:"points_divisor"`
}

// StorageConfig configures the sqlite session history.
type StorageConfig struct {
	Path     string `toml:"path" yaml:"path" json:"path"`
	Disabled bool   `toml:"disabled" yaml:"disabled" json:"disabled"`
}

// EventsConfig configures external punch event publishing.
type EventsConfig struct {
	NATSURL       string `toml:"nats_url" yaml:"nats_url" json:"nats_url"`
	SubjectPrefix string `toml:"subject_prefix" yaml:"subject_prefix" json:"subject_prefix"`
	ClientName    string `toml:"client_name" yaml:"client_name" json:"client_name"`
}

// PluginsConfig configures the action plugins.
type PluginsConfig struct {
	Dir            string `toml:"dir" yaml:"dir" json:"dir"`
	TimeoutSeconds int    `toml:"timeout_seconds" yaml:"timeout_seconds" json:"timeout_seconds"`
	QueueSize      int    `toml:"queue_size" yaml:"queue_size" json:"queue_size"`
}

// Binding runs a plugin action whenever a punch lands on Side.
type Binding struct {
	Side   string            `toml:"side" yaml:"side" json:"side"`
	Plugin string            `toml:"plugin" yaml:"plugin" json:"plugin"`
	Action string            `toml:"action" yaml:"action" json:"action"`
	Params map[string]string `toml:"params" yaml:"params" json:"params,omitempty"`
}

// JabcamDir returns ~/.jabcam.
func JabcamDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".jabcam"
	}
	return filepath.Join(home, ".jabcam")
}

// ConfigPath returns the default configuration file path.
func ConfigPath() string {
	return filepath.Join(JabcamDir(), "config.toml")
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	pc := punch.DefaultConfig()
	// The webcam is mirrored by default and the pose model labels joints
	// as seen in the flipped image.
	pc.SwapSides = true

	return &Config{
		Server: ServerConfig{
			Addr:        ":8000",
			StreamFPS:   15,
			JPEGQuality: 80,
		},
		Camera: CameraConfig{
			Width:           640,
			Height:          480,
			FPS:             30,
			IdleFPS:         5,
			Mirror:          true,
			MotionGate:      true,
			MotionThreshold: 1.0,
		},
		Detector: DetectorConfig{
			ModelComplexity:        1,
			MinDetectionConfidence: 0.5,
			MinTrackingConfidence:  0.5,
		},
		Punch: pc,
		Session: SessionConfig{
			DefaultMode:           "free-play",
			SurvivalLives:         3,
			SurvivalWindowSeconds: 3,
			PointsDivisor:         10,
		},
		Storage: StorageConfig{
			Path: filepath.Join(JabcamDir(), "jabcam.db"),
		},
		Events: EventsConfig{
			SubjectPrefix: "jabcam.punch",
			ClientName:    "jabcam",
		},
		Logging: logging.DefaultConfig(),
		Plugins: PluginsConfig{
			Dir:            filepath.Join(JabcamDir(), "plugins"),
			TimeoutSeconds: 5,
			QueueSize:      32,
		},
	}
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	out := *c
	out.Bindings = make([]Binding, len(c.Bindings))
	for i, b := range c.Bindings {
		out.Bindings[i] = b
		if b.Params != nil {
			out.Bindings[i].Params = make(map[string]string, len(b.Params))
			for k, v := range b.Params {
				out.Bindings[i].Params[k] = v
			}
		}
	}
	return &out
}

// ApplyEnvOverrides applies JABCAM_* environment variables on top of c.
// Unparseable numeric values are ignored.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("JABCAM_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("JABCAM_STATIC_DIR"); v != "" {
		c.Server.StaticDir = v
	}
	if v, ok := envInt("JABCAM_CAMERA_DEVICE"); ok {
		c.Camera.DeviceID = v
	}
	if v, ok := envBool("JABCAM_CAMERA_MIRROR"); ok {
		c.Camera.Mirror = v
	}
	if v := os.Getenv("JABCAM_PUNCH_POLICY"); v != "" {
		c.Punch.Policy = punch.Policy(v)
	}
	if v, ok := envFloat("JABCAM_PUNCH_THRESHOLD"); ok {
		c.Punch.SpeedThreshold = v
	}
	if v, ok := envInt("JABCAM_PUNCH_QUEUE_SIZE"); ok {
		c.Punch.QueueSize = v
	}
	if v, ok := envBool("JABCAM_PUNCH_SWAP_SIDES"); ok {
		c.Punch.SwapSides = v
	}
	if v := os.Getenv("JABCAM_SESSION_MODE"); v != "" {
		c.Session.DefaultMode = v
	}
	if v := os.Getenv("JABCAM_STORAGE_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("JABCAM_NATS_URL"); v != "" {
		c.Events.NATSURL = v
	}
	if v := os.Getenv("JABCAM_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("JABCAM_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("JABCAM_PLUGIN_DIR"); v != "" {
		c.Plugins.Dir = v
	}
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	return n, err == nil
}

func envFloat(key string) (float64, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	return f, err == nil
}

func envBool(key string) (bool, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	return b, err == nil
}
