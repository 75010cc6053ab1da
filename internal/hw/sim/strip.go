// Package sim provides in-process stand-ins for the node's physical surfaces.
// They record what was pushed to them so tests and the terminal simulator can inspect it.
package sim

import (
	"errors"
	"sync"

	"github.com/dyluth/tremor/pkg/gamestate"
)

// ErrInjected is returned by a surface while it has injected failures pending.
var ErrInjected = errors.New("sim: injected I/O failure")

// Strip is a recording LED strip. Shown frames are kept in order.
type Strip struct {
	mu         sync.Mutex
	staged     []gamestate.RGB
	brightness uint8
	shown      [][]gamestate.RGB
	keep       int
	failures   int
}

// NewStrip creates a strip of n pixels that keeps at most keep shown frames (0 = unlimited).
func NewStrip(n, keep int) *Strip {
	return &Strip{
		staged:     make([]gamestate.RGB, n),
		brightness: 255,
		keep:       keep,
	}
}

func (s *Strip) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.staged)
}

func (s *Strip) Set(i int, c gamestate.RGB) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i >= 0 && i < len(s.staged) {
		s.staged[i] = c
	}
}

func (s *Strip) SetBrightness(level uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.brightness = level
}

// Show latches the staged pixels (with brightness applied) as a new frame.
func (s *Strip) Show() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failures > 0 {
		s.failures--
		return ErrInjected
	}

	out := make([]gamestate.RGB, len(s.staged))
	for i, c := range s.staged {
		out[i] = c.Scale(s.brightness)
	}
	s.shown = append(s.shown, out)
	if s.keep > 0 && len(s.shown) > s.keep {
		s.shown = s.shown[len(s.shown)-s.keep:]
	}
	return nil
}

// FailNext makes the next n Show calls fail.
func (s *Strip) FailNext(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = n
}

// Last returns the most recently shown frame, or nil.
func (s *Strip) Last() []gamestate.RGB {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.shown) == 0 {
		return nil
	}
	return append([]gamestate.RGB(nil), s.shown[len(s.shown)-1]...)
}

// Shown returns the number of retained frames.
func (s *Strip) Shown() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.shown)
}

// Lit counts non-black pixels in a frame.
func Lit(frame []gamestate.RGB) int {
	n := 0
	for _, c := range frame {
		if c != (gamestate.RGB{}) {
			n++
		}
	}
	return n
}
