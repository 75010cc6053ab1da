package sim

import (
	"math/rand"
	"sync"

	"github.com/dyluth/tremor/internal/shake"
)

// Accelerometer produces either a fixed script of samples (looping) or seeded noise
// around 1g on Z with occasional shake bursts.
type Accelerometer struct {
	mu       sync.Mutex
	script   []shake.Sample
	pos      int
	rng      *rand.Rand
	burst    int
	reads    int
	failures int
}

// NewScriptedAccelerometer replays samples in order, wrapping around.
func NewScriptedAccelerometer(samples ...shake.Sample) *Accelerometer {
	return &Accelerometer{script: samples}
}

// NewNoiseAccelerometer generates resting noise and random shake bursts.
func NewNoiseAccelerometer(seed int64) *Accelerometer {
	return &Accelerometer{rng: rand.New(rand.NewSource(seed))}
}

// Read implements hw.Accelerometer.
func (a *Accelerometer) Read() (shake.Sample, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.failures > 0 {
		a.failures--
		return shake.Sample{}, ErrInjected
	}
	a.reads++

	if len(a.script) > 0 {
		s := a.script[a.pos]
		a.pos = (a.pos + 1) % len(a.script)
		return s, nil
	}
	if a.rng == nil {
		return shake.Sample{Z: shake.DefaultGravityOffset}, nil
	}

	if a.burst == 0 && a.rng.Intn(200) == 0 {
		a.burst = 25 + a.rng.Intn(50)
	}
	spread := 30
	if a.burst > 0 {
		a.burst--
		spread = 1500
	}
	jitter := func() int { return a.rng.Intn(2*spread+1) - spread }
	return shake.Sample{X: jitter(), Y: jitter(), Z: shake.DefaultGravityOffset + jitter()}, nil
}

// FailNext makes the next n reads fail.
func (a *Accelerometer) FailNext(n int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failures = n
}

// Reads returns the number of successful reads.
func (a *Accelerometer) Reads() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.reads
}
