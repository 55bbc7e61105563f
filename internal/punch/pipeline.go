package punch

import (
	"errors"
)

// ClassificationResult is the per-frame output of a Pipeline.
type ClassificationResult struct {
	LeftPunch     bool    `json:"left_punch"`
	RightPunch    bool    `json:"right_punch"`
	LeftSpeedAvg  float64 `json:"left_speed_avg"`
	RightSpeedAvg float64 `json:"right_speed_avg"`

	// LeftSpeed and RightSpeed are the raw signed speeds of this frame.
	LeftSpeed  float64 `json:"left_speed"`
	RightSpeed float64 `json:"right_speed"`

	// LeftTracked and RightTracked are false when no speed could be computed
	// for the side in this frame (first sample or a clock that did not
	// advance). Punch is always false for an untracked side.
	LeftTracked  bool `json:"left_tracked"`
	RightTracked bool `json:"right_tracked"`

	Timestamp float64 `json:"timestamp"`
}

// Punch returns the punch flag of a side.
func (r ClassificationResult) Punch(side HandSide) bool {
	if side == Right {
		return r.RightPunch
	}
	return r.LeftPunch
}

// SpeedAvg returns the smoothed speed of a side.
func (r ClassificationResult) SpeedAvg(side HandSide) float64 {
	if side == Right {
		return r.RightSpeedAvg
	}
	return r.LeftSpeedAvg
}

// Speed returns the instantaneous speed of a side.
func (r ClassificationResult) Speed(side HandSide) float64 {
	if side == Right {
		return r.RightSpeed
	}
	return r.LeftSpeed
}

// Tracked reports whether a speed was computed for the side.
func (r ClassificationResult) Tracked(side HandSide) bool {
	if side == Right {
		return r.RightTracked
	}
	return r.LeftTracked
}

func (r *ClassificationResult) set(side HandSide, punch bool, speed, avg float64, tracked bool) {
	if side == Right {
		r.RightPunch, r.RightSpeed, r.RightSpeedAvg, r.RightTracked = punch, speed, avg, tracked
		return
	}
	r.LeftPunch, r.LeftSpeed, r.LeftSpeedAvg, r.LeftTracked = punch, speed, avg, tracked
}

// Stats counts what a pipeline has seen since construction.
type Stats struct {
	Frames         int `json:"frames"`
	MissingFrames  int `json:"missing_frames"`
	NonMonotonic   int `json:"non_monotonic"`
	LeftPunches    int `json:"left_punches"`
	RightPunches   int `json:"right_punches"`
	SuppressedHits int `json:"suppressed_hits"`
}

// hand bundles a HandState with the refractory bookkeeping of its side.
type hand struct {
	state     *HandState
	lastPunch float64
	hasPunch  bool
}

// Pipeline runs extraction, velocity, smoothing and classification for both
// hands of one subject. It is not safe for concurrent use.
type Pipeline struct {
	cfg        Config
	extractor  *Extractor
	classifier *Classifier
	hands      [2]*hand
	stats      Stats
}

// New validates cfg and builds a pipeline with fresh state for both sides.
func New(cfg Config) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Pipeline{
		cfg:        cfg,
		extractor:  NewExtractor(cfg.SwapSides, cfg.MinVisibility),
		classifier: NewClassifier(cfg),
	}
	for _, side := range Sides {
		p.hands[side] = &hand{state: NewHandState(side, cfg.QueueSize)}
	}
	return p, nil
}

// Config returns the configuration the pipeline was built with.
func (p *Pipeline) Config() Config {
	return p.cfg
}

// HandState exposes the state of one side for inspection.
func (p *Pipeline) HandState(side HandSide) *HandState {
	return p.hands[side].state
}

// Stats returns a copy of the pipeline counters.
func (p *Pipeline) Stats() Stats {
	return p.stats
}

// Process classifies one pose sample. If a required joint is missing it
// returns ErrMissingLandmark and leaves every state untouched.
func (p *Pipeline) Process(s PoseSample) (ClassificationResult, error) {
	obs, err := p.Extract(s)
	if err != nil {
		return ClassificationResult{}, err
	}
	return p.Observe(obs), nil
}

// Extract converts a sample to pixel space without touching hand state.
// Failed extractions are counted as missing frames.
func (p *Pipeline) Extract(s PoseSample) (FrameObservation, error) {
	obs, err := p.extractor.Extract(s)
	if err != nil {
		p.stats.MissingFrames++
		return FrameObservation{}, err
	}
	return obs, nil
}

// Observe classifies a frame whose joints are already in pixel space.
func (p *Pipeline) Observe(obs FrameObservation) ClassificationResult {
	p.stats.Frames++
	res := ClassificationResult{Timestamp: obs.Timestamp}

	for _, side := range Sides {
		h := p.hands[side]

		speed, err := h.state.Advance(obs.Wrist(side), obs.Timestamp)
		if err != nil {
			if errors.Is(err, ErrNonMonotonicTimestamp) {
				p.stats.NonMonotonic++
			}
			res.set(side, false, 0, h.state.window.Average(), false)
			continue
		}

		h.state.window.Push(speed)
		avg := h.state.window.Average()

		punch := p.classifier.Classify(side, speed, avg, obs)
		if punch && p.inRefractory(h, obs.Timestamp) {
			p.stats.SuppressedHits++
			punch = false
		}
		if punch {
			h.lastPunch = obs.Timestamp
			h.hasPunch = true
			if side == Right {
				p.stats.RightPunches++
			} else {
				p.stats.LeftPunches++
			}
		}

		res.set(side, punch, speed, avg, true)
	}

	return res
}

// inRefractory reports whether a new punch at ts falls within the cooldown
// of the previous one on the same side.
func (p *Pipeline) inRefractory(h *hand, ts float64) bool {
	if p.cfg.RefractorySeconds <= 0 || !h.hasPunch {
		return false
	}
	return ts-h.lastPunch < p.cfg.RefractorySeconds
}
