package shake

import (
	"fmt"
	"math"
)

// Weights blends the magnitude and frequency sub-scores.
type Weights struct {
	Magnitude float64
	Frequency float64
}

var (
	// WeightsBalanced favours magnitude but lets shake rate matter.
	WeightsBalanced = Weights{Magnitude: 0.6, Frequency: 0.4}

	// WeightsMagnitude mostly follows how hard the controller is moved.
	WeightsMagnitude = Weights{Magnitude: 0.8, Frequency: 0.2}
)

func weightsFor(name string) (Weights, error) {
	switch name {
	case "", "balanced":
		return WeightsBalanced, nil
	case "magnitude":
		return WeightsMagnitude, nil
	default:
		return Weights{}, fmt.Errorf("unknown shake weights: %q (must be 'balanced' or 'magnitude')", name)
	}
}

const (
	DefaultWindow       = 32
	DefaultThreshold    = 150.0
	DefaultMaxDeviation = 1500.0

	baselineKeep = 0.99
)

// FrequencyOptions tunes a Frequency scorer. Zero fields take defaults.
type FrequencyOptions struct {
	Weights      Weights
	Window       int
	Threshold    float64
	MaxDeviation float64
}

// Frequency scores samples on a 0-100 scale from deviation magnitude and crossing rate.
type Frequency struct {
	opts     FrequencyOptions
	baseline float64
	primed   bool
	history  []float64
	next     int
	filled   int
}

// NewFrequency creates a Frequency scorer with an empty history.
func NewFrequency(opts FrequencyOptions) *Frequency {
	if opts.Weights == (Weights{}) {
		opts.Weights = WeightsBalanced
	}
	if opts.Window < 2 {
		opts.Window = DefaultWindow
	}
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	if opts.MaxDeviation <= 0 {
		opts.MaxDeviation = DefaultMaxDeviation
	}
	return &Frequency{
		opts:    opts,
		history: make([]float64, opts.Window),
	}
}

// Name implements Scorer.
func (f *Frequency) Name() string { return StrategyFrequency }

// Score implements Scorer. The first sample only seeds the baseline and scores 0.
func (f *Frequency) Score(s Sample) int {
	x, y, z := float64(s.X), float64(s.Y), float64(s.Z)
	mag := math.Sqrt(x*x + y*y + z*z)

	if !f.primed {
		f.baseline = mag
		f.primed = true
	}
	f.baseline = baselineKeep*f.baseline + (1-baselineKeep)*mag
	deviation := math.Abs(mag - f.baseline)

	f.history[f.next] = deviation
	f.next = (f.next + 1) % len(f.history)
	if f.filled < len(f.history) {
		f.filled++
	}

	magScore := math.Min(100, deviation/f.opts.MaxDeviation*100)
	maxCrossings := float64(len(f.history) / 2)
	freqScore := math.Min(100, float64(f.crossings())/maxCrossings*100)

	score := math.Round(f.opts.Weights.Magnitude*magScore + f.opts.Weights.Frequency*freqScore)
	return int(math.Max(0, math.Min(100, score)))
}

// crossings counts rising edges through the threshold, oldest to newest.
func (f *Frequency) crossings() int {
	n := len(f.history)
	start := (f.next - f.filled + n) % n
	count := 0
	for i := 1; i < f.filled; i++ {
		prev := f.history[(start+i-1)%n]
		cur := f.history[(start+i)%n]
		if prev < f.opts.Threshold && cur >= f.opts.Threshold {
			count++
		}
	}
	return count
}
