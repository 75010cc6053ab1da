// Package node runs a controller node: the concurrent loops that sample the sensor,
// ingest commands, drive the animation and render the display around one shared store.
package node

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/dyluth/tremor/internal/animation"
	"github.com/dyluth/tremor/internal/command"
	"github.com/dyluth/tremor/internal/hw"
	"github.com/dyluth/tremor/internal/link"
	"github.com/dyluth/tremor/internal/render"
	"github.com/dyluth/tremor/internal/shake"
	"github.com/dyluth/tremor/internal/telemetry"
	"github.com/dyluth/tremor/pkg/gamestate"
)

// Options sets the loop periods.
type Options struct {
	SamplePeriod    time.Duration
	AnimationPeriod time.Duration
	RenderPeriod    time.Duration

	// MirrorPeriod is how often the state mirror checks for changes.
	MirrorPeriod time.Duration

	// IOTimeout bounds each network write made by the sampling and mirror loops.
	IOTimeout time.Duration

	// WarnInterval limits how often each loop logs repeated I/O failures.
	WarnInterval time.Duration

	// StatsInterval is how often counters are logged at DEBUG. Zero disables it.
	StatsInterval time.Duration
}

// DefaultOptions returns the stock loop periods.
func DefaultOptions() Options {
	return Options{
		SamplePeriod:    20 * time.Millisecond,
		AnimationPeriod: 20 * time.Millisecond,
		RenderPeriod:    40 * time.Millisecond,
		MirrorPeriod:    50 * time.Millisecond,
		IOTimeout:       250 * time.Millisecond,
		WarnInterval:    5 * time.Second,
		StatsInterval:   30 * time.Second,
	}
}

// Deps are the components an Engine drives. Mirror is optional.
type Deps struct {
	Store         *gamestate.Store
	Queue         *EventQueue
	Source        link.Source
	Accelerometer hw.Accelerometer
	Scorer        shake.Scorer
	Publisher     *telemetry.Publisher
	Mirror        *telemetry.Mirror
	Driver        *animation.Driver
	Renderer      *render.Renderer
}

func (d Deps) validate() error {
	switch {
	case d.Store == nil:
		return errors.New("store is required")
	case d.Queue == nil:
		return errors.New("event queue is required")
	case d.Source == nil:
		return errors.New("line source is required")
	case d.Accelerometer == nil:
		return errors.New("accelerometer is required")
	case d.Scorer == nil:
		return errors.New("scorer is required")
	case d.Publisher == nil:
		return errors.New("telemetry publisher is required")
	case d.Driver == nil:
		return errors.New("animation driver is required")
	case d.Renderer == nil:
		return errors.New("renderer is required")
	}
	return nil
}

// Engine runs four goroutines, plus a fifth when a Mirror is set:
//   - Sampler: reads the accelerometer, scores the sample, publishes telemetry
//   - Listener: parses inbound lines, applies field updates, queues events
//   - Animator: steps the animation driver
//   - Renderer: polls the display renderer
//   - Mirrorer: writes the state to the host bus when it changed
//
// The store is the only state they share. Each loop handles its own I/O errors and
// keeps running, so a failing sensor never stalls rendering or command handling.
type Engine struct {
	opts  Options
	deps  Deps
	stats stats
	wg    sync.WaitGroup
}

// New creates an engine. It does not start any goroutine until Start is called.
func New(opts Options, deps Deps) (*Engine, error) {
	if err := deps.validate(); err != nil {
		return nil, fmt.Errorf("invalid node dependencies: %w", err)
	}
	def := DefaultOptions()
	if opts.SamplePeriod <= 0 {
		opts.SamplePeriod = def.SamplePeriod
	}
	if opts.AnimationPeriod <= 0 {
		opts.AnimationPeriod = def.AnimationPeriod
	}
	if opts.RenderPeriod <= 0 {
		opts.RenderPeriod = def.RenderPeriod
	}
	if opts.MirrorPeriod <= 0 {
		opts.MirrorPeriod = def.MirrorPeriod
	}
	if opts.IOTimeout <= 0 {
		opts.IOTimeout = def.IOTimeout
	}
	if opts.WarnInterval <= 0 {
		opts.WarnInterval = def.WarnInterval
	}
	return &Engine{opts: opts, deps: deps}, nil
}

// Store returns the engine's shared state store.
func (e *Engine) Store() *gamestate.Store {
	return e.deps.Store
}

// Start launches the loops and blocks until ctx is cancelled and every loop has exited.
func (e *Engine) Start(ctx context.Context) error {
	log.Printf("[INFO] Node starting (scorer=%s, sample=%s, animation=%s, render=%s)",
		e.deps.Scorer.Name(), e.opts.SamplePeriod, e.opts.AnimationPeriod, e.opts.RenderPeriod)

	e.wg.Add(4)
	go e.sampler(ctx)
	go e.listener(ctx)
	go e.animator(ctx)
	go e.renderer(ctx)
	if e.deps.Mirror != nil {
		e.wg.Add(1)
		go e.mirrorer(ctx)
	}

	var statsC <-chan time.Time
	if e.opts.StatsInterval > 0 {
		ticker := time.NewTicker(e.opts.StatsInterval)
		defer ticker.Stop()
		statsC = ticker.C
	}

	for done := false; !done; {
		select {
		case <-ctx.Done():
			done = true
		case <-statsC:
			log.Printf("[DEBUG] Node stats: %s", e.Stats())
		}
	}

	log.Printf("[INFO] Shutdown signal received, waiting for loops to exit")
	e.wg.Wait()
	log.Printf("[INFO] All loops exited, final stats: %s", e.Stats())
	return nil
}

func (e *Engine) sampler(ctx context.Context) {
	defer e.wg.Done()
	defer log.Printf("[DEBUG] Sampler exited cleanly")

	ticker := time.NewTicker(e.opts.SamplePeriod)
	defer ticker.Stop()
	warn := newWarnLimiter(e.opts.WarnInterval)

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			e.stats.sampleTick.Store(now.UnixNano())

			sample, err := e.deps.Accelerometer.Read()
			if err != nil {
				e.stats.sensorErrors.Add(1)
				warn.Printf(now, "Accelerometer read failed: %v", err)
				continue
			}
			e.stats.samples.Add(1)

			score := e.deps.Scorer.Score(sample)
			e.publish(ctx, now, score, warn)
		}
	}
}

func (e *Engine) publish(ctx context.Context, now time.Time, score int, warn *warnLimiter) {
	ioCtx, cancel := context.WithTimeout(ctx, e.opts.IOTimeout)
	defer cancel()

	sent, err := e.deps.Publisher.Offer(ioCtx, now, score)
	if sent {
		e.stats.published.Add(1)
	}
	if err != nil {
		e.stats.telemetryErrors.Add(1)
		warn.Printf(now, "Telemetry publish failed: %v", err)
	}
}

// mirrorer pushes the state to the host bus when it changed. Sampling never waits on it.
func (e *Engine) mirrorer(ctx context.Context) {
	defer e.wg.Done()
	defer log.Printf("[DEBUG] Mirrorer exited cleanly")

	ticker := time.NewTicker(e.opts.MirrorPeriod)
	defer ticker.Stop()
	warn := newWarnLimiter(e.opts.WarnInterval)

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			e.mirror(ctx, now, warn)
		}
	}
}

func (e *Engine) mirror(ctx context.Context, now time.Time, warn *warnLimiter) {
	ioCtx, cancel := context.WithTimeout(ctx, e.opts.IOTimeout)
	defer cancel()

	if _, err := e.deps.Mirror.Sync(ioCtx, now, e.deps.Store.Snapshot(), e.deps.Driver.Current().String()); err != nil {
		e.stats.telemetryErrors.Add(1)
		warn.Printf(now, "State mirror failed: %v", err)
	}
}

func (e *Engine) listener(ctx context.Context) {
	defer e.wg.Done()
	defer log.Printf("[DEBUG] Listener exited cleanly")

	lines := e.deps.Source.Lines()
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				log.Printf("[WARN] Command source closed, no further commands will be received")
				return
			}
			if err := e.handleLine(ctx, line); err != nil {
				// Only shutdown interrupts a blocked push
				return
			}
		}
	}
}

// handleLine applies one command: field updates as one commit, then the event (if any).
// Pushing the event blocks while the queue is full.
func (e *Engine) handleLine(ctx context.Context, line []byte) error {
	e.stats.lines.Add(1)

	cmd := command.Parse(line)
	if !cmd.Recognized {
		e.stats.dropped.Add(1)
		log.Printf("[DEBUG] Dropped unrecognized line: %q", line)
		return nil
	}

	if len(cmd.Updates) > 0 {
		e.deps.Store.Apply(cmd.Updates...)
	}
	if cmd.HasEvent {
		if err := e.deps.Queue.Push(ctx, cmd.Event); err != nil {
			return err
		}
		e.stats.events.Add(1)
	}
	return nil
}

func (e *Engine) animator(ctx context.Context) {
	defer e.wg.Done()
	defer log.Printf("[DEBUG] Animator exited cleanly")

	ticker := time.NewTicker(e.opts.AnimationPeriod)
	defer ticker.Stop()
	warn := newWarnLimiter(e.opts.WarnInterval)

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			e.stats.animationTick.Store(now.UnixNano())
			if err := e.deps.Driver.Step(now, e.deps.Queue); err != nil {
				e.stats.stripErrors.Add(1)
				warn.Printf(now, "LED update failed: %v", err)
			}
		}
	}
}

func (e *Engine) renderer(ctx context.Context) {
	defer e.wg.Done()
	defer log.Printf("[DEBUG] Renderer exited cleanly")

	ticker := time.NewTicker(e.opts.RenderPeriod)
	defer ticker.Stop()
	warn := newWarnLimiter(e.opts.WarnInterval)

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			e.stats.renderTick.Store(now.UnixNano())
			drawn, err := e.deps.Renderer.Poll()
			if err != nil {
				e.stats.displayErrors.Add(1)
				warn.Printf(now, "Display update failed: %v", err)
				continue
			}
			if drawn {
				e.stats.redraws.Add(1)
			}
		}
	}
}

// warnLimiter logs at most one [WARN] per interval and counts what it suppressed.
// Each loop owns its own limiter.
type warnLimiter struct {
	every      time.Duration
	last       time.Time
	suppressed int
}

func newWarnLimiter(every time.Duration) *warnLimiter {
	return &warnLimiter{every: every}
}

func (w *warnLimiter) Printf(now time.Time, format string, args ...any) {
	if !w.last.IsZero() && now.Sub(w.last) < w.every {
		w.suppressed++
		return
	}
	msg := fmt.Sprintf(format, args...)
	if w.suppressed > 0 {
		msg = fmt.Sprintf("%s (%d similar suppressed)", msg, w.suppressed)
	}
	log.Printf("[WARN] %s", msg)
	w.last = now
	w.suppressed = 0
}
