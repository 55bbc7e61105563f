package punch

// Classifier turns a speed sample into a punch decision for one frame.
// It holds only configuration; all per-side memory lives in the pipeline.
type Classifier struct {
	policy     Policy
	threshold  float64
	gateOffset float64
}

// NewClassifier creates a classifier from a validated configuration.
func NewClassifier(cfg Config) *Classifier {
	return &Classifier{
		policy:     cfg.Policy,
		threshold:  cfg.SpeedThreshold,
		gateOffset: cfg.PositionGateOffset,
	}
}

// Gate reports whether the wrist of the given side is extended relative to
// its shoulder: the wrist may trail the shoulder along the side's forward
// axis by at most the gate offset, scaled to the frame width.
func (c *Classifier) Gate(side HandSide, wrist, shoulder Point2D, width int) bool {
	ahead := side.Forward() * (wrist.X - shoulder.X)
	return ahead > -c.gateOffset*float64(width)
}

// Classify decides whether the side is punching in this frame.
// instant is the raw signed speed of the frame and avg the window average.
func (c *Classifier) Classify(side HandSide, instant, avg float64, obs FrameObservation) bool {
	switch c.policy {
	case PolicySpeedOnly:
		if instant < 0 {
			instant = -instant
		}
		return instant > c.threshold
	default:
		if avg <= c.threshold {
			return false
		}
		return c.Gate(side, obs.Wrist(side), obs.Shoulder(side), obs.Width)
	}
}
