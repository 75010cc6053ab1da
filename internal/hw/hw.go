// Package hw defines the physical surfaces a node drives or samples.
// Real boards provide their own implementations; package sim provides workstation ones.
package hw

import (
	"github.com/dyluth/tremor/internal/shake"
	"github.com/dyluth/tremor/pkg/gamestate"
)

// Strip is an addressable LED strip of fixed length.
// Set and SetBrightness only stage values; nothing is visible until Show.
type Strip interface {
	Len() int
	Set(i int, c gamestate.RGB)
	SetBrightness(level uint8)
	Show() error
}

// Display is a framebuffer-style screen. Commit pushes a complete frame in one transfer.
type Display interface {
	Size() (width, height int)
	Commit(f *Frame) error
}

// Haptic is a binary vibration actuator.
type Haptic interface {
	Set(on bool) error
}

// Accelerometer is a polled 3-axis sensor.
type Accelerometer interface {
	Read() (shake.Sample, error)
}
