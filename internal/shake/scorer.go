// Package shake turns raw accelerometer samples into an activity score.
//
// Two interchangeable strategies implement Scorer:
//   - Bucket: stateless, maps the deviation from gravity onto a fixed level table (0-6).
//   - Frequency: tracks a slow baseline and counts threshold crossings in a short
//     history window, blending magnitude and crossing rate into 0-100.
//
// Scorers never touch game state; their output is telemetry only.
package shake

import "fmt"

// Sample is one raw 3-axis accelerometer reading.
type Sample struct {
	X, Y, Z int
}

// Scorer computes an activity score for each sample.
// Implementations may keep history, so a Scorer must be owned by a single goroutine.
type Scorer interface {
	Score(s Sample) int
	Name() string
}

// Strategy names accepted by New.
const (
	StrategyBucket    = "bucket"
	StrategyFrequency = "frequency"
)

// Config selects and tunes a scoring strategy.
type Config struct {
	Strategy      string  `yaml:"strategy"`
	GravityOffset int     `yaml:"gravity_offset,omitempty"` // bucket: resting |x|+|y|+|z|
	Weights       string  `yaml:"weights,omitempty"`        // frequency: "balanced" or "magnitude"
	Window        int     `yaml:"window,omitempty"`         // frequency: history length
	Threshold     float64 `yaml:"threshold,omitempty"`      // frequency: deviation counted as a crossing
	MaxDeviation  float64 `yaml:"max_deviation,omitempty"`  // frequency: deviation mapped to a full magnitude score
}

// Validate checks the strategy name and strategy-specific fields.
func (c Config) Validate() error {
	switch c.Strategy {
	case StrategyBucket:
		if c.GravityOffset < 0 {
			return fmt.Errorf("shake.gravity_offset must be >= 0, got %d", c.GravityOffset)
		}
	case StrategyFrequency:
		if _, err := weightsFor(c.Weights); err != nil {
			return err
		}
		if c.Window < 0 || c.Window == 1 {
			return fmt.Errorf("shake.window must be >= 2, got %d", c.Window)
		}
		if c.Threshold < 0 || c.MaxDeviation < 0 {
			return fmt.Errorf("shake.threshold and shake.max_deviation must be >= 0")
		}
	default:
		return fmt.Errorf("unknown shake strategy: %q (must be '%s' or '%s')", c.Strategy, StrategyBucket, StrategyFrequency)
	}
	return nil
}

// New builds the scorer named by cfg.Strategy. Zero-valued tuning fields take defaults.
func New(cfg Config) (Scorer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Strategy == StrategyBucket {
		offset := cfg.GravityOffset
		if offset == 0 {
			offset = DefaultGravityOffset
		}
		return Bucket{GravityOffset: offset}, nil
	}

	w, _ := weightsFor(cfg.Weights)
	return NewFrequency(FrequencyOptions{
		Weights:      w,
		Window:       cfg.Window,
		Threshold:    cfg.Threshold,
		MaxDeviation: cfg.MaxDeviation,
	}), nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
