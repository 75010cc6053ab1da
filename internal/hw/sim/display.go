package sim

import (
	"sync"

	"github.com/dyluth/tremor/internal/hw"
)

// MemDisplay records every committed frame.
type MemDisplay struct {
	mu       sync.Mutex
	width    int
	height   int
	commits  int
	last     *hw.Frame
	failures int
}

// NewMemDisplay creates a recording display of the given size.
func NewMemDisplay(width, height int) *MemDisplay {
	return &MemDisplay{width: width, height: height}
}

func (d *MemDisplay) Size() (int, int) {
	return d.width, d.height
}

// Commit copies the frame; the caller may reuse its buffer afterwards.
func (d *MemDisplay) Commit(f *hw.Frame) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.failures > 0 {
		d.failures--
		return ErrInjected
	}

	if d.last == nil {
		d.last = hw.NewFrame(f.Width, f.Height)
	}
	d.last.CopyFrom(f)
	d.commits++
	return nil
}

// FailNext makes the next n commits fail.
func (d *MemDisplay) FailNext(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failures = n
}

// Commits returns how many frames were committed successfully.
func (d *MemDisplay) Commits() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.commits
}

// Last returns a copy of the last committed frame, or nil.
func (d *MemDisplay) Last() *hw.Frame {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.last == nil {
		return nil
	}
	out := hw.NewFrame(d.last.Width, d.last.Height)
	out.CopyFrom(d.last)
	return out
}
