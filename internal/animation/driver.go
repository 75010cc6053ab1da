package animation

import (
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/dyluth/tremor/internal/hw"
	"github.com/dyluth/tremor/pkg/gamestate"
)

// Options tunes the one-shot animations.
type Options struct {
	WinDuration  time.Duration
	LoseDuration time.Duration
	LoseCycles   int
	Brightness   uint8
}

// DefaultOptions returns the stock animation timings.
func DefaultOptions() Options {
	return Options{
		WinDuration:  3 * time.Second,
		LoseDuration: 2 * time.Second,
		LoseCycles:   2,
		Brightness:   255,
	}
}

// EventSource is the consumer side of the command channel.
type EventSource interface {
	TryPop(timeout time.Duration) (gamestate.EventKind, bool)
}

// Driver owns the animation state, the winner latch and the LED frame buffer.
// Only Current is safe to call from other goroutines.
type Driver struct {
	store  *gamestate.Store
	strip  hw.Strip
	haptic hw.Haptic
	opts   Options

	state         State
	after         State
	started       time.Time
	winnerLatched bool
	buf           []gamestate.RGB

	current atomic.Uint32
}

// NewDriver creates a driver in StateDefault.
func NewDriver(store *gamestate.Store, strip hw.Strip, haptic hw.Haptic, opts Options) *Driver {
	if opts.LoseCycles <= 0 {
		opts.LoseCycles = 2
	}
	strip.SetBrightness(opts.Brightness)

	d := &Driver{
		store:  store,
		strip:  strip,
		haptic: haptic,
		opts:   opts,
		buf:    make([]gamestate.RGB, strip.Len()),
	}
	d.setState(StateDefault)
	return d
}

// State returns the current animation state.
func (d *Driver) State() State { return d.state }

// WinnerLatched reports whether a Winner event has been seen since the last new game.
func (d *Driver) WinnerLatched() bool { return d.winnerLatched }

// Busy reports whether a one-shot animation is still running.
func (d *Driver) Busy() bool { return d.state.OneShot() }

// Current returns the state last entered. Safe for concurrent use.
func (d *Driver) Current() State { return State(d.current.Load()) }

// Step is one scheduling tick: take at most one event if no one-shot is running,
// then render. Events queued during a one-shot wait for it to finish.
func (d *Driver) Step(now time.Time, events EventSource) error {
	if !d.Busy() {
		if ev, ok := events.TryPop(0); ok {
			d.Handle(ev, now)
		}
	}
	return d.Tick(now)
}

// Handle applies the transition for ev.
func (d *Driver) Handle(ev gamestate.EventKind, now time.Time) {
	if d.Busy() {
		d.setHaptic(false)
	}

	tr := transitionFor(ev, d.winnerLatched)

	switch tr.latch {
	case latchSet:
		d.winnerLatched = true
	case latchClear:
		d.winnerLatched = false
	}
	if tr.effect != nil {
		d.store.Update(tr.effect)
	}

	log.Printf("[DEBUG] Animation: event=%s %s -> %s", ev, d.state, tr.enter)
	d.setState(tr.enter)
	d.after = tr.after
	d.started = now

	if tr.enter.OneShot() {
		d.setHaptic(true)
	}
}

// Tick renders the frame for now, completing a one-shot whose duration has elapsed.
func (d *Driver) Tick(now time.Time) error {
	if d.state.OneShot() && now.Sub(d.started) >= d.duration(d.state) {
		d.setHaptic(false)
		log.Printf("[DEBUG] Animation: %s complete -> %s", d.state, d.after)
		d.setState(d.after)
	}

	elapsed := now.Sub(d.started)
	switch d.state {
	case StateDefault:
		progressFrame(d.buf, d.store.Snapshot())
	case StateWin:
		rainbowFrame(d.buf, elapsed)
	case StateLose:
		fadeFrame(d.buf, elapsed, d.opts.LoseDuration, d.opts.LoseCycles)
	case StateIdle, StateGameOver:
		clear(d.buf)
	default:
		panic(fmt.Sprintf("animation: unhandled state %v", d.state))
	}

	for i, c := range d.buf {
		d.strip.Set(i, c)
	}
	if err := d.strip.Show(); err != nil {
		return fmt.Errorf("failed to show LED frame: %w", err)
	}
	return nil
}

func (d *Driver) duration(s State) time.Duration {
	if s == StateWin {
		return d.opts.WinDuration
	}
	return d.opts.LoseDuration
}

func (d *Driver) setState(s State) {
	d.state = s
	d.current.Store(uint32(s))
}

func (d *Driver) setHaptic(on bool) {
	if err := d.haptic.Set(on); err != nil {
		log.Printf("[WARN] Haptic set(%v) failed: %v", on, err)
	}
}
