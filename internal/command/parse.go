package command

import (
	"bytes"
	"encoding/json"
	"math"

	"github.com/dyluth/tremor/pkg/gamestate"
)

// MaxLineLength is the longest line the node accepts. Longer input is truncated to this
// many bytes and the prefix is parsed as-is.
const MaxLineLength = 255

// Command is the typed result of parsing one input line.
type Command struct {
	// Updates are applied to the store as one commit, before Event is queued.
	Updates []gamestate.FieldUpdate

	// Event is meaningful only when HasEvent is true.
	Event    gamestate.EventKind
	HasEvent bool

	// Recognized is false when neither the structured nor the legacy form matched.
	Recognized bool
}

// Empty reports whether the command has no effect at all.
func (c Command) Empty() bool {
	return len(c.Updates) == 0 && !c.HasEvent
}

// statusEvents maps the structured "status" values to events.
var statusEvents = map[string]gamestate.EventKind{
	"winner":       gamestate.EventWinner,
	"eliminated":   gamestate.EventEliminated,
	"game_over":    gamestate.EventGameOver,
	"playing":      gamestate.EventPlaying,
	"game_started": gamestate.EventGameStarted,
	"game_stopped": gamestate.EventGameStopped,
}

// legacyTokens maps the bare plain-text tokens to events.
var legacyTokens = map[string]gamestate.EventKind{
	"WINNER":     gamestate.EventWinner,
	"ELIMINATED": gamestate.EventEliminated,
	"GAME_OVER":  gamestate.EventGameOver,
	"NEW_GAME":   gamestate.EventNewGame,
}

// Parse turns one line into a Command. It never fails: malformed input yields a
// Command with Recognized=false. Parse has no side effects.
func Parse(line []byte) Command {
	if len(line) > MaxLineLength {
		line = line[:MaxLineLength]
	}
	line = bytes.TrimSpace(line)

	if cmd, ok := parseStructured(line); ok {
		return cmd
	}

	if ev, ok := legacyTokens[string(line)]; ok {
		return Command{Event: ev, HasEvent: true, Recognized: true}
	}

	return Command{}
}

// parseStructured handles the flat key/value form. ok is false if the line is not a JSON object.
func parseStructured(line []byte) (Command, bool) {
	if len(line) == 0 || line[0] != '{' {
		return Command{}, false
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(line, &fields); err != nil {
		return Command{}, false
	}

	cmd := Command{Recognized: true}

	if raw, ok := fields["light"]; ok {
		cmd.Updates = append(cmd.Updates, gamestate.SetLight{Light: parseLight(raw)})
	}

	if raw, ok := fields["progress"]; ok {
		var n float64
		if err := json.Unmarshal(raw, &n); err == nil {
			cmd.Updates = append(cmd.Updates, gamestate.SetProgress{Value: toInt(n)})
		}
	}

	if raw, ok := fields["player_color"]; ok {
		if u, ok := parseColor(raw); ok {
			cmd.Updates = append(cmd.Updates, u)
		}
	}

	if raw, ok := fields["status"]; ok {
		var status string
		if err := json.Unmarshal(raw, &status); err == nil {
			if ev, known := statusEvents[status]; known {
				cmd.Event = ev
				cmd.HasEvent = true
			}
		}
	}

	return cmd, true
}

// parseLight treats anything other than the exact string "green" as red.
func parseLight(raw json.RawMessage) gamestate.Light {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil && s == "green" {
		return gamestate.LightGreen
	}
	return gamestate.LightRed
}

// parseColor accepts exactly three numbers; anything else is ignored as a whole.
func parseColor(raw json.RawMessage) (gamestate.SetColor, bool) {
	var parts []float64
	if err := json.Unmarshal(raw, &parts); err != nil || len(parts) != 3 {
		return gamestate.SetColor{}, false
	}
	return gamestate.SetColor{R: toInt(parts[0]), G: toInt(parts[1]), B: toInt(parts[2])}, true
}

// toInt truncates toward zero, saturating at the int32 range so the later clamp is exact.
func toInt(f float64) int {
	f = math.Trunc(f)
	if f > math.MaxInt32 {
		return math.MaxInt32
	}
	if f < math.MinInt32 {
		return math.MinInt32
	}
	return int(f)
}
