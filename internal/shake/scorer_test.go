package shake

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBucket_Boundaries(t *testing.T) {
	b := Bucket{GravityOffset: 0}

	tests := []struct {
		deviation int
		want      int
	}{
		{0, 0},
		{199, 0},
		{200, 1},
		{399, 1},
		{400, 3},
		{599, 3},
		{600, 4},
		{899, 4},
		{900, 5},
		{1199, 5},
		{1200, 6},
		{50000, 6},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, b.Score(Sample{X: tt.deviation}), "deviation %d", tt.deviation)
		assert.Equal(t, tt.want, BucketLevel(tt.deviation), "deviation %d", tt.deviation)
	}
}

func TestBucket_GravityOffsetAndSigns(t *testing.T) {
	b := Bucket{GravityOffset: DefaultGravityOffset}

	assert.Equal(t, 0, b.Score(Sample{Z: 1000}), "resting")
	assert.Equal(t, 0, b.Score(Sample{Z: -1000}), "upside down")
	assert.Equal(t, 1, b.Score(Sample{Z: 1200}), "above gravity")
	assert.Equal(t, 1, b.Score(Sample{Z: 800}), "below gravity")
	assert.Equal(t, 1, b.Score(Sample{X: -600, Z: -600}), "negative axes are summed by magnitude")
	assert.Equal(t, 5, b.Score(Sample{}), "free fall")
}

func TestBucket_DeterministicAndNeverLevelTwo(t *testing.T) {
	b := Bucket{GravityOffset: DefaultGravityOffset}
	allowed := map[int]bool{0: true, 1: true, 3: true, 4: true, 5: true, 6: true}

	for x := -2000; x <= 2000; x += 97 {
		for y := -2000; y <= 2000; y += 131 {
			for z := -2000; z <= 2000; z += 173 {
				s := Sample{X: x, Y: y, Z: z}
				got := b.Score(s)
				require.True(t, allowed[got], "score %d for %+v", got, s)
				require.Equal(t, got, b.Score(s))
			}
		}
	}
}

func TestFrequency_StillSensorScoresZero(t *testing.T) {
	f := NewFrequency(FrequencyOptions{})
	for i := 0; i < 100; i++ {
		assert.Equal(t, 0, f.Score(Sample{Z: 1000}))
	}
}

func TestFrequency_ShakingScoresHigh(t *testing.T) {
	f := NewFrequency(FrequencyOptions{})
	var last int
	for i := 0; i < 64; i++ {
		z := 1000
		if i%2 == 1 {
			z = 3000
		}
		last = f.Score(Sample{Z: z})
		require.GreaterOrEqual(t, last, 0)
		require.LessOrEqual(t, last, 100)
	}
	assert.GreaterOrEqual(t, last, 50)
}

func TestFrequency_WeightsChangeBlend(t *testing.T) {
	// A single jolt after a still period: no crossings yet beyond one, so magnitude dominates.
	run := func(w Weights) int {
		f := NewFrequency(FrequencyOptions{Weights: w, Window: 8})
		for i := 0; i < 20; i++ {
			f.Score(Sample{Z: 1000})
		}
		return f.Score(Sample{Z: 4000})
	}

	balanced := run(WeightsBalanced)
	magnitude := run(WeightsMagnitude)
	assert.Greater(t, magnitude, balanced)
}

func TestFrequency_CrossingsCountRisingEdges(t *testing.T) {
	f := NewFrequency(FrequencyOptions{Window: 4, Threshold: 10})
	f.history = []float64{0, 20, 0, 20}
	f.next = 0
	f.filled = 4
	assert.Equal(t, 2, f.crossings())

	f.history = []float64{20, 20, 20, 20}
	assert.Equal(t, 0, f.crossings())
}

func TestNew_SelectsStrategy(t *testing.T) {
	s, err := New(Config{Strategy: StrategyBucket})
	require.NoError(t, err)
	assert.Equal(t, StrategyBucket, s.Name())
	assert.Equal(t, Bucket{GravityOffset: DefaultGravityOffset}, s)

	s, err = New(Config{Strategy: StrategyFrequency, Weights: "magnitude", Window: 16})
	require.NoError(t, err)
	assert.Equal(t, StrategyFrequency, s.Name())
	freq, ok := s.(*Frequency)
	require.True(t, ok)
	assert.Equal(t, WeightsMagnitude, freq.opts.Weights)
	assert.Len(t, freq.history, 16)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"unknown strategy", Config{Strategy: "fft"}, "unknown shake strategy"},
		{"empty strategy", Config{}, "unknown shake strategy"},
		{"negative offset", Config{Strategy: StrategyBucket, GravityOffset: -1}, "gravity_offset"},
		{"bad weights", Config{Strategy: StrategyFrequency, Weights: "heavy"}, "unknown shake weights"},
		{"window of one", Config{Strategy: StrategyFrequency, Window: 1}, "shake.window"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
