package sim

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/dyluth/tremor/internal/hw"
	"github.com/dyluth/tremor/pkg/gamestate"
	"github.com/fatih/color"
)

// TermDisplay draws committed frames to a terminal as 24-bit colored cells,
// sampling every Step-th pixel in each direction.
type TermDisplay struct {
	mu     sync.Mutex
	out    io.Writer
	width  int
	height int
	step   int
	cells  map[gamestate.RGB]*color.Color
}

// NewTermDisplay creates a display of width×height pixels rendered at 1/step scale.
func NewTermDisplay(out io.Writer, width, height, step int) *TermDisplay {
	if step < 1 {
		step = 1
	}
	return &TermDisplay{
		out:    out,
		width:  width,
		height: height,
		step:   step,
		cells:  make(map[gamestate.RGB]*color.Color),
	}
}

func (d *TermDisplay) Size() (int, int) {
	return d.width, d.height
}

// Commit writes the whole frame in a single Write so a partial frame never reaches the terminal.
func (d *TermDisplay) Commit(f *hw.Frame) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var b strings.Builder
	b.WriteString("\033[H")
	for y := 0; y < f.Height; y += d.step * 2 {
		for x := 0; x < f.Width; x += d.step {
			b.WriteString(d.cell(f.At(x, y)).Sprint(" "))
		}
		b.WriteString("\n")
	}

	if _, err := io.WriteString(d.out, b.String()); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

func (d *TermDisplay) cell(c gamestate.RGB) *color.Color {
	if cc, ok := d.cells[c]; ok {
		return cc
	}
	cc := color.BgRGB(int(c.R), int(c.G), int(c.B))
	d.cells[c] = cc
	return cc
}
