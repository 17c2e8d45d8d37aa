// Package score computes Poi popularity from review history.
//
// A review's weight halves every HalfLifeDays. The freshness-weighted mean
// rating is then shrunk toward the global average rating, with Confidence
// acting as a pseudo-count of reviews at the global average:
//
//	w     = exp(-ln2/HalfLifeDays * ageDays)
//	R     = Σ(rating·w) / Σw
//	V     = Σw
//	score = V/(V+M)·R + M/(V+M)·globalAverage
package score

import (
	"fmt"
	"math"
	"time"
)

// Config holds the scoring parameters.
type Config struct {
	HalfLifeDays   float64
	Confidence     float64
	NeutralAverage float64
}

// DefaultConfig returns a 180 day half-life, M=5 and a 3.0 neutral average.
func DefaultConfig() Config {
	return Config{
		HalfLifeDays:   180,
		Confidence:     5,
		NeutralAverage: 3,
	}
}

// Validate checks that cfg describes a usable engine.
func (c Config) Validate() error {
	if !(c.HalfLifeDays > 0) || math.IsInf(c.HalfLifeDays, 0) {
		return fmt.Errorf("half-life must be a positive number of days, got %v", c.HalfLifeDays)
	}
	if !(c.Confidence >= 0) || math.IsInf(c.Confidence, 0) {
		return fmt.Errorf("confidence must be non-negative, got %v", c.Confidence)
	}
	if !(c.NeutralAverage > 0) || math.IsInf(c.NeutralAverage, 0) {
		return fmt.Errorf("neutral average must be positive, got %v", c.NeutralAverage)
	}
	return nil
}

// Sample is the part of a review the engine looks at.
type Sample struct {
	Rating    float64
	CreatedAt time.Time
}

// Engine computes scores. It is stateless and safe for concurrent use.
type Engine struct {
	cfg    Config
	lambda float64
}

// NewEngine validates cfg and returns an Engine.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg, lambda: math.Ln2 / cfg.HalfLifeDays}, nil
}

// Config returns the engine parameters.
func (e *Engine) Config() Config { return e.cfg }

// AgeDays returns the whole days between created and now. Timestamps after
// now count as age 0.
func AgeDays(created, now time.Time) float64 {
	d := now.Sub(created)
	if d <= 0 {
		return 0
	}
	return math.Floor(d.Hours() / 24)
}

// Weight returns the decay weight of a review ageDays old.
func (e *Engine) Weight(ageDays float64) float64 {
	if ageDays < 0 {
		ageDays = 0
	}
	return math.Exp(-e.lambda * ageDays)
}

// Baseline returns globalAverage, or the neutral average when globalAverage
// is not a usable rating (NaN, infinite or not positive).
func (e *Engine) Baseline(globalAverage float64) float64 {
	if math.IsNaN(globalAverage) || math.IsInf(globalAverage, 0) || globalAverage <= 0 {
		return e.cfg.NeutralAverage
	}
	return globalAverage
}

// Compute returns the popularity score for samples as of now. An empty
// sample set, or one whose weights have all decayed to zero, scores exactly
// the baseline. Samples with a non-finite rating are ignored. The result is
// not rounded.
func (e *Engine) Compute(samples []Sample, globalAverage float64, now time.Time) float64 {
	g := e.Baseline(globalAverage)

	var weighted, total float64
	for _, s := range samples {
		if math.IsNaN(s.Rating) || math.IsInf(s.Rating, 0) {
			continue
		}
		w := e.Weight(AgeDays(s.CreatedAt, now))
		weighted += s.Rating * w
		total += w
	}
	if total == 0 {
		return g
	}

	mean := weighted / total
	m := e.cfg.Confidence
	return total/(total+m)*mean + m/(total+m)*g
}
