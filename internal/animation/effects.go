package animation

import (
	"math"
	"time"

	"github.com/dyluth/tremor/pkg/gamestate"
)

// Progress bar colors: the phase color at low intensity.
var (
	DimRed   = gamestate.RGB{R: 24}
	DimGreen = gamestate.RGB{G: 24}
	Red      = gamestate.RGB{R: 255}
)

// PhaseColor returns the dim progress-bar color for a light.
func PhaseColor(l gamestate.Light) gamestate.RGB {
	if l == gamestate.LightGreen {
		return DimGreen
	}
	return DimRed
}

// LitCount is round(progress/100 × n).
func LitCount(progress, n int) int {
	progress = gamestate.ClampProgress(progress)
	return (progress*n + 50) / 100
}

func progressFrame(buf []gamestate.RGB, snap gamestate.State) {
	lit := LitCount(snap.PlayerProgress, len(buf))
	c := PhaseColor(snap.Light)
	for i := range buf {
		if i < lit {
			buf[i] = c
		} else {
			buf[i] = gamestate.RGB{}
		}
	}
}

// rainbowPeriod is the time for the hue sweep to travel once around the wheel.
const rainbowPeriod = time.Second

func rainbowFrame(buf []gamestate.RGB, elapsed time.Duration) {
	n := len(buf)
	if n == 0 {
		return
	}
	shift := float64(elapsed%rainbowPeriod) / float64(rainbowPeriod) * 360
	for i := range buf {
		hue := math.Mod(float64(i)*360/float64(n)+shift, 360)
		buf[i] = HueToRGB(hue)
	}
}

// fadeFrame runs cycles full fade-in/fade-out cycles of red across total.
func fadeFrame(buf []gamestate.RGB, elapsed, total time.Duration, cycles int) {
	level := FadeLevel(elapsed, total, cycles)
	c := Red.Scale(level)
	for i := range buf {
		buf[i] = c
	}
}

// FadeLevel is a triangle wave: 0 → 255 → 0 once per cycle.
func FadeLevel(elapsed, total time.Duration, cycles int) uint8 {
	if total <= 0 || cycles <= 0 {
		return 0
	}
	cycle := total / time.Duration(cycles)
	if cycle <= 0 {
		return 0
	}
	phase := float64(elapsed%cycle) / float64(cycle)
	var v float64
	if phase < 0.5 {
		v = phase * 2
	} else {
		v = (1 - phase) * 2
	}
	return uint8(math.Round(v * 255))
}

// HueToRGB converts a hue in degrees at full saturation and value.
func HueToRGB(hue float64) gamestate.RGB {
	h := math.Mod(hue, 360)
	if h < 0 {
		h += 360
	}
	sector := h / 60
	x := uint8(math.Round(255 * (1 - math.Abs(math.Mod(sector, 2)-1))))
	switch int(sector) {
	case 0:
		return gamestate.RGB{R: 255, G: x}
	case 1:
		return gamestate.RGB{R: x, G: 255}
	case 2:
		return gamestate.RGB{G: 255, B: x}
	case 3:
		return gamestate.RGB{G: x, B: 255}
	case 4:
		return gamestate.RGB{R: x, B: 255}
	default:
		return gamestate.RGB{R: 255, B: x}
	}
}
