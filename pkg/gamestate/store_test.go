package gamestate

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStore_Defaults(t *testing.T) {
	snap := NewStore().Snapshot()

	assert.Equal(t, LightRed, snap.Light)
	assert.True(t, snap.PlayerAlive)
	assert.Equal(t, 0, snap.PlayerProgress)
	assert.Equal(t, RGB{}, snap.PlayerColor)
	assert.False(t, snap.ColorAssigned)
	assert.Equal(t, uint64(0), snap.Version)
}

func TestApply_ProgressIsClampedAndIsolated(t *testing.T) {
	tests := []struct {
		name string
		in   int
		want int
	}{
		{"negative clamps to zero", -5, 0},
		{"zero", 0, 0},
		{"mid range", 40, 40},
		{"upper bound", 100, 100},
		{"above range clamps to 100", 101, 100},
		{"far above range", 1 << 30, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := NewStore()
			st.Apply(SetColor{R: 1, G: 2, B: 3}, SetLight{Light: LightGreen})
			before := st.Snapshot()

			after := st.Apply(SetProgress{Value: tt.in})

			assert.Equal(t, tt.want, after.PlayerProgress)
			assert.Equal(t, before.Light, after.Light)
			assert.Equal(t, before.PlayerColor, after.PlayerColor)
			assert.Equal(t, before.PlayerAlive, after.PlayerAlive)
			assert.Equal(t, before.ColorAssigned, after.ColorAssigned)
		})
	}
}

func TestApply_ColorChannelsClamped(t *testing.T) {
	st := NewStore()
	snap := st.Apply(SetColor{R: -20, G: 128, B: 999})

	assert.Equal(t, RGB{R: 0, G: 128, B: 255}, snap.PlayerColor)
	assert.True(t, snap.ColorAssigned)
}

func TestApply_LastWriteWins(t *testing.T) {
	st := NewStore()
	values := []int{10, 90, 33, 0, 75, 12}

	for _, v := range values {
		st.Apply(SetProgress{Value: v})
		assert.Equal(t, v, st.Snapshot().PlayerProgress)
	}
	assert.Equal(t, 12, st.Snapshot().PlayerProgress)
}

func TestApply_EmptyIsNoop(t *testing.T) {
	st := NewStore()
	st.Apply()
	assert.Equal(t, uint64(0), st.Snapshot().Version)
}

func TestUpdate_BumpsVersionAndClamps(t *testing.T) {
	st := NewStore()
	snap := st.Update(func(s *State) {
		s.PlayerProgress = 250
		s.PlayerAlive = false
	})

	assert.Equal(t, 100, snap.PlayerProgress)
	assert.False(t, snap.PlayerAlive)
	assert.Equal(t, uint64(1), snap.Version)
}

func TestSnapshot_IsACopy(t *testing.T) {
	st := NewStore()
	snap := st.Snapshot()
	snap.PlayerProgress = 77
	snap.PlayerColor.R = 9

	fresh := st.Snapshot()
	assert.Equal(t, 0, fresh.PlayerProgress)
	assert.Equal(t, uint8(0), fresh.PlayerColor.R)
}

// Writers publish colors whose three channels are always equal; a torn read would show
// channels from different commits.
func TestStore_ConcurrentColorWritesNeverTear(t *testing.T) {
	st := NewStore()

	const writers = 4
	const readers = 4
	const iterations = 2000

	var wg sync.WaitGroup
	torn := make(chan RGB, 1)

	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(offset int) {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				v := (i + offset*61) % 256
				st.Apply(SetColor{R: v, G: v, B: v}, SetProgress{Value: v % 101})
			}
		}(w)
	}

	for r := 0; r < readers; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				c := st.Snapshot().PlayerColor
				if c.R != c.G || c.G != c.B {
					select {
					case torn <- c:
					default:
					}
					return
				}
			}
		}()
	}

	wg.Wait()
	close(torn)

	c, found := <-torn
	require.False(t, found, "observed torn color %+v", c)
	assert.Equal(t, uint64(writers*iterations), st.Snapshot().Version)
}

func TestEventKind_StringAndValidate(t *testing.T) {
	names := map[EventKind]string{
		EventWinner:      "winner",
		EventEliminated:  "eliminated",
		EventGameOver:    "game_over",
		EventPlaying:     "playing",
		EventGameStarted: "game_started",
		EventGameStopped: "game_stopped",
		EventNewGame:     "new_game",
	}
	require.Len(t, AllEvents, len(names))

	for _, e := range AllEvents {
		assert.Equal(t, names[e], e.String())
		assert.NoError(t, e.Validate())
	}

	assert.Error(t, EventKind(42).Validate())
}

func TestRGB_Scale(t *testing.T) {
	assert.Equal(t, RGB{R: 255, G: 0, B: 0}, RGB{R: 255}.Scale(255))
	assert.Equal(t, RGB{}, RGB{R: 255, G: 255, B: 255}.Scale(0))
	assert.Equal(t, RGB{R: 127, G: 63, B: 0}, RGB{R: 255, G: 127, B: 0}.Scale(127))
}
