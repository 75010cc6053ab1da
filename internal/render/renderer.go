// Package render draws the player-status screen from the shared game state.
//
// The renderer polls the store and redraws only when a displayed field changed.
// Every redraw is composed off-screen and pushed to the display in a single commit,
// so a partially drawn frame never reaches the panel.
package render

import (
	"fmt"

	"github.com/dyluth/tremor/internal/hw"
	"github.com/dyluth/tremor/pkg/gamestate"
)

// Screen colors.
var (
	BackgroundRed   = gamestate.RGB{R: 160}
	BackgroundGreen = gamestate.RGB{G: 160}
	Unassigned      = gamestate.RGB{R: 96, G: 96, B: 96}
	Overlay         = gamestate.RGB{}
)

// key holds every field that affects what is on screen.
// Progress only appears on the LED strip and is not part of it.
type key struct {
	light         gamestate.Light
	color         gamestate.RGB
	colorAssigned bool
	alive         bool
}

func keyOf(s gamestate.State) key {
	return key{
		light:         s.Light,
		color:         s.PlayerColor,
		colorAssigned: s.ColorAssigned,
		alive:         s.PlayerAlive,
	}
}

// Renderer owns the off-screen frame and the cached key of the last committed redraw.
// It is not safe for concurrent use; one goroutine polls it.
type Renderer struct {
	store   *gamestate.Store
	display hw.Display
	frame   *hw.Frame

	last    key
	valid   bool
	redraws int
}

// New creates a renderer sized to the display. The first Poll always draws.
func New(store *gamestate.Store, display hw.Display) *Renderer {
	w, h := display.Size()
	return &Renderer{
		store:   store,
		display: display,
		frame:   hw.NewFrame(w, h),
	}
}

// Poll redraws if the displayed fields changed since the last successful commit.
// It reports whether a frame was committed. After a failed commit the cache stays
// invalid, so the next Poll retries.
func (r *Renderer) Poll() (bool, error) {
	k := keyOf(r.store.Snapshot())
	if r.valid && k == r.last {
		return false, nil
	}

	Compose(r.frame, k.light, k.color, k.colorAssigned, k.alive)

	if err := r.display.Commit(r.frame); err != nil {
		r.valid = false
		return false, fmt.Errorf("failed to commit display frame: %w", err)
	}

	r.last = k
	r.valid = true
	r.redraws++
	return true, nil
}

// Redraws returns the number of committed frames.
func (r *Renderer) Redraws() int {
	return r.redraws
}

// Compose draws the status screen into f: phase background, then the avatar disc,
// then the eliminated overlay.
func Compose(f *hw.Frame, light gamestate.Light, avatar gamestate.RGB, assigned, alive bool) {
	bg := BackgroundRed
	if light == gamestate.LightGreen {
		bg = BackgroundGreen
	}
	f.Fill(bg)

	cx, cy, r := avatarGeometry(f)
	if !assigned {
		avatar = Unassigned
	}
	f.FillCircle(cx, cy, r, avatar)

	if !alive {
		drawEliminated(f, cx, cy, r)
	}
}

// avatarGeometry centres the disc with a radius of a third of the shorter side.
func avatarGeometry(f *hw.Frame) (cx, cy, r int) {
	return f.Width / 2, f.Height / 2, min(f.Width, f.Height) / 3
}

// drawEliminated darkens a band across the bottom and crosses out the avatar.
func drawEliminated(f *hw.Frame, cx, cy, r int) {
	band := max(f.Height/8, 1)
	f.FillRect(0, f.Height-band, f.Width, band, Overlay)

	thick := max(r/8, 1)
	for o := -thick / 2; o <= thick/2; o++ {
		f.Line(cx-r, cy-r+o, cx+r, cy+r+o, Overlay)
		f.Line(cx-r, cy+r+o, cx+r, cy-r+o, Overlay)
	}
}
