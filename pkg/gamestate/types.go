package gamestate

import "fmt"

// Light is the current game phase color.
type Light uint8

const (
	// LightRed is the default phase ("stop").
	LightRed Light = iota

	// LightGreen is the "go" phase.
	LightGreen
)

// String returns the protocol name of the light.
func (l Light) String() string {
	if l == LightGreen {
		return "green"
	}
	return "red"
}

// ParseLight is the inverse of Light.String.
func ParseLight(s string) (Light, error) {
	switch s {
	case "red":
		return LightRed, nil
	case "green":
		return LightGreen, nil
	default:
		return LightRed, fmt.Errorf("invalid light: %q", s)
	}
}

// MarshalText encodes the light by name.
func (l Light) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText decodes a light name.
func (l *Light) UnmarshalText(b []byte) error {
	v, err := ParseLight(string(b))
	if err != nil {
		return err
	}
	*l = v
	return nil
}

// RGB is an 8-bit-per-channel color.
type RGB struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// Scale returns the color with every channel multiplied by level/255.
func (c RGB) Scale(level uint8) RGB {
	return RGB{
		R: uint8(uint16(c.R) * uint16(level) / 255),
		G: uint8(uint16(c.G) * uint16(level) / 255),
		B: uint8(uint16(c.B) * uint16(level) / 255),
	}
}

// State is a snapshot of the game/player state held by a node.
// Values returned by Store.Snapshot are copies; mutating them has no effect on the store.
type State struct {
	Light          Light  `json:"light"`
	PlayerAlive    bool   `json:"player_alive"`
	PlayerProgress int    `json:"player_progress"` // Always within [0,100]
	PlayerColor    RGB    `json:"player_color"`
	ColorAssigned  bool   `json:"color_assigned"` // Set by a player_color update, cleared by a new game
	Version        uint64 `json:"version"`        // Incremented on every commit
}

// Default returns the startup state: red light, alive, no progress, no color.
func Default() State {
	return State{
		Light:       LightRed,
		PlayerAlive: true,
	}
}

// EventKind is a high-level game event delivered to the animation driver.
type EventKind uint8

const (
	EventWinner EventKind = iota
	EventEliminated
	EventGameOver
	EventPlaying
	EventGameStarted
	EventGameStopped
	EventNewGame
)

// AllEvents lists every EventKind in declaration order.
var AllEvents = []EventKind{
	EventWinner,
	EventEliminated,
	EventGameOver,
	EventPlaying,
	EventGameStarted,
	EventGameStopped,
	EventNewGame,
}

// String returns the protocol spelling of the event.
func (e EventKind) String() string {
	switch e {
	case EventWinner:
		return "winner"
	case EventEliminated:
		return "eliminated"
	case EventGameOver:
		return "game_over"
	case EventPlaying:
		return "playing"
	case EventGameStarted:
		return "game_started"
	case EventGameStopped:
		return "game_stopped"
	case EventNewGame:
		return "new_game"
	default:
		return fmt.Sprintf("event(%d)", uint8(e))
	}
}

// Validate checks that the value is one of the declared kinds.
func (e EventKind) Validate() error {
	if e > EventNewGame {
		return fmt.Errorf("invalid event kind: %d", uint8(e))
	}
	return nil
}
