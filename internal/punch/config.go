package punch

import (
	"errors"
	"fmt"
)

// ErrInvalidConfiguration is returned by New when the configuration cannot
// produce a well-defined pipeline.
var ErrInvalidConfiguration = errors.New("invalid punch configuration")

// Policy selects how a smoothed speed becomes a punch decision.
type Policy string

const (
	// PolicyGated requires the smoothed forward speed to exceed the threshold
	// and the wrist to be extended past the shoulder.
	PolicyGated Policy = "gated"
	// PolicySpeedOnly compares the magnitude of the instantaneous speed with
	// the threshold.
	PolicySpeedOnly Policy = "speed_only"
)

// Default tuning values.
const (
	DefaultQueueSize          = 5
	DefaultGatedThreshold     = 100.0
	DefaultSpeedOnlyThreshold = 150.0
	DefaultGateOffset         = 0.1
)

// Config holds the tunable parameters of a Pipeline.
type Config struct {
	// QueueSize is the capacity of each side's smoothing window.
	QueueSize int `toml:"queue_size" json:"queue_size" yaml:"queue_size"`

	// SpeedThreshold is the punch cutoff in pixels per second.
	SpeedThreshold float64 `toml:"speed_threshold" json:"speed_threshold" yaml:"speed_threshold"`

	// PositionGateOffset is how far, in normalized units, the wrist may trail
	// the shoulder and still count as extended. Only used by PolicyGated.
	PositionGateOffset float64 `toml:"position_gate_offset" json:"position_gate_offset" yaml:"position_gate_offset"`

	// Policy selects the decision rule.
	Policy Policy `toml:"policy" json:"policy" yaml:"policy"`

	// RefractorySeconds suppresses repeat punches on the same side for this
	// long after a reported punch. Zero disables it.
	RefractorySeconds float64 `toml:"refractory_seconds" json:"refractory_seconds" yaml:"refractory_seconds"`

	// SwapSides feeds the pose model's left joints into the right hand state
	// and vice versa, for mirrored camera feeds.
	SwapSides bool `toml:"swap_sides" json:"swap_sides" yaml:"swap_sides"`

	// MinVisibility treats joints reported below this visibility as absent.
	MinVisibility float64 `toml:"min_visibility" json:"min_visibility" yaml:"min_visibility"`
}

// DefaultConfig returns the gated policy with its default tuning.
func DefaultConfig() Config {
	return Config{
		QueueSize:          DefaultQueueSize,
		SpeedThreshold:     DefaultGatedThreshold,
		PositionGateOffset: DefaultGateOffset,
		Policy:             PolicyGated,
	}
}

// SpeedOnlyConfig returns the speed-only policy with its default tuning.
func SpeedOnlyConfig() Config {
	cfg := DefaultConfig()
	cfg.Policy = PolicySpeedOnly
	cfg.SpeedThreshold = DefaultSpeedOnlyThreshold
	return cfg
}

// Validate reports the first problem found, wrapped in
// ErrInvalidConfiguration.
func (c Config) Validate() error {
	switch {
	case c.QueueSize <= 0:
		return fmt.Errorf("%w: queue_size must be positive, got %d", ErrInvalidConfiguration, c.QueueSize)
	case c.SpeedThreshold < 0:
		return fmt.Errorf("%w: speed_threshold must not be negative, got %g", ErrInvalidConfiguration, c.SpeedThreshold)
	case c.PositionGateOffset < 0:
		return fmt.Errorf("%w: position_gate_offset must not be negative, got %g", ErrInvalidConfiguration, c.PositionGateOffset)
	case c.RefractorySeconds < 0:
		return fmt.Errorf("%w: refractory_seconds must not be negative, got %g", ErrInvalidConfiguration, c.RefractorySeconds)
	case c.MinVisibility < 0 || c.MinVisibility > 1:
		return fmt.Errorf("%w: min_visibility must be within [0,1], got %g", ErrInvalidConfiguration, c.MinVisibility)
	}

	switch c.Policy {
	case PolicyGated, PolicySpeedOnly:
	default:
		return fmt.Errorf("%w: unknown policy %q", ErrInvalidConfiguration, c.Policy)
	}
	return nil
}
