package command

import (
	"strings"
	"testing"

	"github.com/dyluth/tremor/pkg/gamestate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_StructuredFields(t *testing.T) {
	cmd := Parse([]byte(`{"light":"green","progress":40,"player_color":[10,200,30]}`))

	require.True(t, cmd.Recognized)
	assert.False(t, cmd.HasEvent)
	assert.Equal(t, []gamestate.FieldUpdate{
		gamestate.SetLight{Light: gamestate.LightGreen},
		gamestate.SetProgress{Value: 40},
		gamestate.SetColor{R: 10, G: 200, B: 30},
	}, cmd.Updates)
}

func TestParse_Light(t *testing.T) {
	tests := []struct {
		name string
		line string
		want gamestate.Light
	}{
		{"green", `{"light":"green"}`, gamestate.LightGreen},
		{"red", `{"light":"red"}`, gamestate.LightRed},
		{"wrong case is red", `{"light":"Green"}`, gamestate.LightRed},
		{"unknown string is red", `{"light":"blue"}`, gamestate.LightRed},
		{"non string is red", `{"light":1}`, gamestate.LightRed},
		{"null is red", `{"light":null}`, gamestate.LightRed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := Parse([]byte(tt.line))
			require.Len(t, cmd.Updates, 1)
			assert.Equal(t, gamestate.SetLight{Light: tt.want}, cmd.Updates[0])
		})
	}
}

func TestParse_ProgressIsPassedThroughForClamping(t *testing.T) {
	tests := []struct {
		line string
		want int
	}{
		{`{"progress":0}`, 0},
		{`{"progress":100}`, 100},
		{`{"progress":250}`, 250},
		{`{"progress":-3}`, -3},
		{`{"progress":41.9}`, 41},
		{`{"progress":1e12}`, 2147483647},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			cmd := Parse([]byte(tt.line))
			require.Len(t, cmd.Updates, 1)
			assert.Equal(t, gamestate.SetProgress{Value: tt.want}, cmd.Updates[0])
		})
	}
}

func TestParse_ProgressNonNumberIgnored(t *testing.T) {
	cmd := Parse([]byte(`{"progress":"forty"}`))
	assert.True(t, cmd.Recognized)
	assert.Empty(t, cmd.Updates)
}

func TestParse_ColorWrongLengthIgnored(t *testing.T) {
	for _, line := range []string{
		`{"player_color":[]}`,
		`{"player_color":[1,2]}`,
		`{"player_color":[1,2,3,4]}`,
		`{"player_color":"red"}`,
		`{"player_color":[1,"2",3]}`,
	} {
		t.Run(line, func(t *testing.T) {
			cmd := Parse([]byte(line))
			assert.True(t, cmd.Recognized)
			assert.Empty(t, cmd.Updates)
		})
	}
}

func TestParse_Status(t *testing.T) {
	tests := map[string]gamestate.EventKind{
		"winner":       gamestate.EventWinner,
		"eliminated":   gamestate.EventEliminated,
		"game_over":    gamestate.EventGameOver,
		"playing":      gamestate.EventPlaying,
		"game_started": gamestate.EventGameStarted,
		"game_stopped": gamestate.EventGameStopped,
	}

	for status, want := range tests {
		t.Run(status, func(t *testing.T) {
			cmd := Parse([]byte(`{"status":"` + status + `"}`))
			require.True(t, cmd.HasEvent)
			assert.Equal(t, want, cmd.Event)
		})
	}
}

func TestParse_UnknownStatusIsNoEvent(t *testing.T) {
	cmd := Parse([]byte(`{"status":"dancing","progress":5}`))

	assert.True(t, cmd.Recognized)
	assert.False(t, cmd.HasEvent)
	assert.Equal(t, []gamestate.FieldUpdate{gamestate.SetProgress{Value: 5}}, cmd.Updates)
}

func TestParse_UnknownKeysIgnored(t *testing.T) {
	cmd := Parse([]byte(`{"player_id":2,"volume":11}`))

	assert.True(t, cmd.Recognized)
	assert.True(t, cmd.Empty())
}

func TestParse_LegacyTokens(t *testing.T) {
	tests := map[string]gamestate.EventKind{
		"WINNER":     gamestate.EventWinner,
		"ELIMINATED": gamestate.EventEliminated,
		"GAME_OVER":  gamestate.EventGameOver,
		"NEW_GAME":   gamestate.EventNewGame,
	}

	for token, want := range tests {
		t.Run(token, func(t *testing.T) {
			cmd := Parse([]byte(token + "\r\n"))
			require.True(t, cmd.Recognized)
			require.True(t, cmd.HasEvent)
			assert.Equal(t, want, cmd.Event)
			assert.Empty(t, cmd.Updates)
		})
	}
}

func TestParse_MalformedIsDropped(t *testing.T) {
	for _, line := range []string{
		"",
		"winner",
		"PLAYING",
		`{"progress":`,
		`[1,2,3]`,
		`"WINNER"`,
		"WINNER please",
	} {
		t.Run(line, func(t *testing.T) {
			cmd := Parse([]byte(line))
			assert.False(t, cmd.Recognized)
			assert.True(t, cmd.Empty())
		})
	}
}

func TestParse_TruncatesLongLines(t *testing.T) {
	// The closing brace falls past the cutoff, so the structured form is broken.
	long := `{"progress":10,"pad":"` + strings.Repeat("x", MaxLineLength) + `"}`
	cmd := Parse([]byte(long))
	assert.False(t, cmd.Recognized)

	// Everything after the cutoff is discarded, leaving the bare token and spaces.
	padded := "WINNER" + strings.Repeat(" ", MaxLineLength) + "X"
	cmd = Parse([]byte(padded))
	assert.True(t, cmd.Recognized)
	assert.Equal(t, gamestate.EventWinner, cmd.Event)
}
