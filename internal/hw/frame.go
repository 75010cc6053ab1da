package hw

import "github.com/dyluth/tremor/pkg/gamestate"

// Frame is an off-screen RGB buffer. Drawing into a Frame never touches a Display.
type Frame struct {
	Width, Height int
	Pix           []gamestate.RGB // row-major, len Width*Height
}

// NewFrame allocates a black frame.
func NewFrame(width, height int) *Frame {
	return &Frame{
		Width:  width,
		Height: height,
		Pix:    make([]gamestate.RGB, width*height),
	}
}

// At returns the pixel at (x, y). Out-of-bounds reads return black.
func (f *Frame) At(x, y int) gamestate.RGB {
	if x < 0 || y < 0 || x >= f.Width || y >= f.Height {
		return gamestate.RGB{}
	}
	return f.Pix[y*f.Width+x]
}

// Fill paints the whole frame.
func (f *Frame) Fill(c gamestate.RGB) {
	for i := range f.Pix {
		f.Pix[i] = c
	}
}

// FillRect paints the rectangle [x, x+w) × [y, y+h), clipped to the frame.
func (f *Frame) FillRect(x, y, w, h int, c gamestate.RGB) {
	x0, y0 := max(x, 0), max(y, 0)
	x1, y1 := min(x+w, f.Width), min(y+h, f.Height)
	for py := y0; py < y1; py++ {
		row := f.Pix[py*f.Width : (py+1)*f.Width]
		for px := x0; px < x1; px++ {
			row[px] = c
		}
	}
}

// FillCircle paints a filled disc centred on (cx, cy), clipped to the frame.
func (f *Frame) FillCircle(cx, cy, r int, c gamestate.RGB) {
	rr := r * r
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			if dx*dx+dy*dy > rr {
				continue
			}
			x, y := cx+dx, cy+dy
			if x < 0 || y < 0 || x >= f.Width || y >= f.Height {
				continue
			}
			f.Pix[y*f.Width+x] = c
		}
	}
}

// Line draws a one-pixel line using Bresenham's algorithm, clipped to the frame.
func (f *Frame) Line(x0, y0, x1, y1 int, c gamestate.RGB) {
	dx := absInt(x1 - x0)
	dy := -absInt(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	for {
		if x0 >= 0 && y0 >= 0 && x0 < f.Width && y0 < f.Height {
			f.Pix[y0*f.Width+x0] = c
		}
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

// CopyFrom makes f an exact copy of src, reusing f's buffer when sizes match.
func (f *Frame) CopyFrom(src *Frame) {
	if len(f.Pix) != len(src.Pix) {
		f.Pix = make([]gamestate.RGB, len(src.Pix))
	}
	f.Width, f.Height = src.Width, src.Height
	copy(f.Pix, src.Pix)
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
