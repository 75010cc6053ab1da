package animation

import (
	"testing"
	"time"

	"github.com/dyluth/tremor/internal/hw/sim"
	"github.com/dyluth/tremor/pkg/gamestate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ledCount = 10

// queue is a slice-backed EventSource.
type queue struct {
	events []gamestate.EventKind
}

func (q *queue) TryPop(time.Duration) (gamestate.EventKind, bool) {
	if len(q.events) == 0 {
		return 0, false
	}
	ev := q.events[0]
	q.events = q.events[1:]
	return ev, true
}

type fixture struct {
	store  *gamestate.Store
	strip  *sim.Strip
	haptic *sim.Haptic
	driver *Driver
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:  gamestate.NewStore(),
		strip:  sim.NewStrip(ledCount, 0),
		haptic: &sim.Haptic{},
		now:    time.Unix(1700000000, 0),
	}
	opts := DefaultOptions()
	opts.WinDuration = 300 * time.Millisecond
	opts.LoseDuration = 200 * time.Millisecond
	f.driver = NewDriver(f.store, f.strip, f.haptic, opts)
	return f
}

// advance ticks the driver in 20ms steps for d.
func (f *fixture) advance(t *testing.T, d time.Duration) {
	t.Helper()
	for end := f.now.Add(d); f.now.Before(end); {
		f.now = f.now.Add(20 * time.Millisecond)
		require.NoError(t, f.driver.Tick(f.now))
	}
}

func TestDriver_StartsInDefaultWithProgressBar(t *testing.T) {
	f := newFixture(t)
	f.store.Apply(gamestate.SetLight{Light: gamestate.LightGreen}, gamestate.SetProgress{Value: 40})

	require.NoError(t, f.driver.Tick(f.now))

	assert.Equal(t, StateDefault, f.driver.State())
	frame := f.strip.Last()
	require.Len(t, frame, ledCount)
	for i, c := range frame {
		if i < 4 {
			assert.Equal(t, DimGreen, c, "pixel %d", i)
		} else {
			assert.Equal(t, gamestate.RGB{}, c, "pixel %d", i)
		}
	}
}

func TestDriver_ProgressBarIgnoresPlayerColor(t *testing.T) {
	f := newFixture(t)
	f.store.Apply(gamestate.SetProgress{Value: 100}, gamestate.SetColor{R: 1, G: 2, B: 3})

	require.NoError(t, f.driver.Tick(f.now))
	for _, c := range f.strip.Last() {
		assert.Equal(t, DimRed, c)
	}
}

func TestLitCount_Rounds(t *testing.T) {
	tests := []struct{ progress, n, want int }{
		{0, 10, 0},
		{40, 10, 4},
		{44, 10, 4},
		{45, 10, 5},
		{50, 5, 3},
		{100, 7, 7},
		{150, 7, 7},
		{33, 60, 20},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LitCount(tt.progress, tt.n), "progress=%d n=%d", tt.progress, tt.n)
	}
}

func TestDriver_WinnerThenGameOverSkipsLose(t *testing.T) {
	f := newFixture(t)

	f.driver.Handle(gamestate.EventWinner, f.now)
	assert.Equal(t, StateWin, f.driver.State())
	assert.True(t, f.driver.WinnerLatched())
	assert.True(t, f.haptic.On())

	f.advance(t, 400*time.Millisecond)
	assert.Equal(t, StateIdle, f.driver.State())
	assert.False(t, f.haptic.On())

	f.driver.Handle(gamestate.EventGameOver, f.now)
	assert.Equal(t, StateGameOver, f.driver.State())
	assert.NotEqual(t, StateLose, f.driver.State())

	f.advance(t, 400*time.Millisecond)
	assert.Equal(t, StateGameOver, f.driver.State(), "game over rests")
	assert.Equal(t, 0, sim.Lit(f.strip.Last()))
	assert.Equal(t, []bool{true, false}, f.haptic.History(), "haptic only bracketed the win")
}

func TestDriver_GameOverWithoutWinnerPlaysLose(t *testing.T) {
	f := newFixture(t)

	f.driver.Handle(gamestate.EventGameOver, f.now)
	assert.Equal(t, StateLose, f.driver.State())
	assert.True(t, f.haptic.On())

	f.advance(t, 300*time.Millisecond)
	assert.Equal(t, StateDefault, f.driver.State())
	assert.False(t, f.haptic.On())
}

func TestDriver_EliminatedRunsLoseThenIdle(t *testing.T) {
	f := newFixture(t)

	f.driver.Handle(gamestate.EventEliminated, f.now)
	assert.False(t, f.store.Snapshot().PlayerAlive)
	assert.Equal(t, StateLose, f.driver.State())

	f.advance(t, 100*time.Millisecond)
	assert.Equal(t, StateLose, f.driver.State())

	f.advance(t, 200*time.Millisecond)
	assert.Equal(t, StateIdle, f.driver.State())
	assert.Equal(t, StateIdle, f.driver.Current())
	assert.Equal(t, 0, sim.Lit(f.strip.Last()))
}

func TestDriver_NewGameResetsProgressColorAndLatch(t *testing.T) {
	for _, ev := range []gamestate.EventKind{gamestate.EventNewGame, gamestate.EventGameStarted} {
		t.Run(ev.String(), func(t *testing.T) {
			f := newFixture(t)
			f.store.Apply(gamestate.SetProgress{Value: 80}, gamestate.SetColor{R: 9, G: 9, B: 9})
			f.driver.Handle(gamestate.EventWinner, f.now)
			f.advance(t, 400*time.Millisecond)
			f.driver.Handle(gamestate.EventEliminated, f.now)
			f.advance(t, 300*time.Millisecond)

			require.True(t, f.driver.WinnerLatched())
			require.True(t, f.store.Snapshot().ColorAssigned)

			f.driver.Handle(ev, f.now)

			snap := f.store.Snapshot()
			assert.Equal(t, 0, snap.PlayerProgress)
			assert.False(t, snap.ColorAssigned)
			assert.False(t, f.driver.WinnerLatched())
			assert.True(t, snap.PlayerAlive)
			assert.Equal(t, StateDefault, f.driver.State())
		})
	}
}

func TestDriver_GameStoppedResetsProgressAndLight(t *testing.T) {
	f := newFixture(t)
	f.store.Apply(gamestate.SetProgress{Value: 70}, gamestate.SetLight{Light: gamestate.LightGreen})

	f.driver.Handle(gamestate.EventGameStopped, f.now)

	snap := f.store.Snapshot()
	assert.Equal(t, 0, snap.PlayerProgress)
	assert.Equal(t, gamestate.LightRed, snap.Light)
	assert.Equal(t, StateDefault, f.driver.State())
}

func TestDriver_PlayingEntersDefault(t *testing.T) {
	f := newFixture(t)
	f.driver.Handle(gamestate.EventWinner, f.now)
	f.advance(t, 400*time.Millisecond)
	require.Equal(t, StateIdle, f.driver.State())

	f.driver.Handle(gamestate.EventPlaying, f.now)
	assert.Equal(t, StateDefault, f.driver.State())
	assert.True(t, f.driver.WinnerLatched(), "playing does not clear the latch")
}

func TestDriver_StepHoldsEventsDuringOneShot(t *testing.T) {
	f := newFixture(t)
	q := &queue{events: []gamestate.EventKind{gamestate.EventWinner, gamestate.EventEliminated}}

	require.NoError(t, f.driver.Step(f.now, q))
	assert.Equal(t, StateWin, f.driver.State())

	for i := 0; i < 10; i++ {
		f.now = f.now.Add(20 * time.Millisecond)
		require.NoError(t, f.driver.Step(f.now, q))
		assert.Equal(t, StateWin, f.driver.State())
	}
	assert.Len(t, q.events, 1, "eliminated still queued")

	// Win completes on the first tick past its duration, then the queued event runs.
	f.now = f.now.Add(200 * time.Millisecond)
	require.NoError(t, f.driver.Step(f.now, q))
	assert.Equal(t, StateIdle, f.driver.State())

	f.now = f.now.Add(20 * time.Millisecond)
	require.NoError(t, f.driver.Step(f.now, q))
	assert.Equal(t, StateLose, f.driver.State())
	assert.Empty(t, q.events)
}

func TestDriver_WinRendersRainbow(t *testing.T) {
	f := newFixture(t)
	f.driver.Handle(gamestate.EventWinner, f.now)
	f.advance(t, 100*time.Millisecond)

	frame := f.strip.Last()
	assert.Equal(t, ledCount, sim.Lit(frame))
	assert.NotEqual(t, frame[0], frame[ledCount/2], "hue varies along the strip")
}

func TestDriver_ShowErrorIsReturnedAndStateContinues(t *testing.T) {
	f := newFixture(t)
	f.driver.Handle(gamestate.EventGameOver, f.now)

	f.strip.FailNext(1)
	assert.Error(t, f.driver.Tick(f.now.Add(20*time.Millisecond)))

	f.advance(t, 300*time.Millisecond)
	assert.Equal(t, StateDefault, f.driver.State())
}

func TestFadeLevel(t *testing.T) {
	total := 2 * time.Second
	assert.Equal(t, uint8(0), FadeLevel(0, total, 2))
	assert.Equal(t, uint8(255), FadeLevel(500*time.Millisecond, total, 2))
	assert.Equal(t, uint8(0), FadeLevel(time.Second, total, 2))
	assert.Equal(t, uint8(255), FadeLevel(1500*time.Millisecond, total, 2))
	assert.Equal(t, uint8(0), FadeLevel(time.Second, 0, 2))
}

func TestHueToRGB(t *testing.T) {
	assert.Equal(t, gamestate.RGB{R: 255}, HueToRGB(0))
	assert.Equal(t, gamestate.RGB{R: 255, G: 255}, HueToRGB(60))
	assert.Equal(t, gamestate.RGB{G: 255}, HueToRGB(120))
	assert.Equal(t, gamestate.RGB{B: 255}, HueToRGB(240))
	assert.Equal(t, gamestate.RGB{R: 255}, HueToRGB(360))
	assert.Equal(t, gamestate.RGB{R: 255, B: 255}, HueToRGB(-60))
}

func TestTransitionFor_CoversEveryEvent(t *testing.T) {
	for _, ev := range gamestate.AllEvents {
		for _, latched := range []bool{false, true} {
			assert.NotPanics(t, func() { transitionFor(ev, latched) }, "%s latched=%v", ev, latched)
		}
	}
	assert.Panics(t, func() { transitionFor(gamestate.EventKind(99), false) })
}
