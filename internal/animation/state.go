// Package animation implements the LED/haptic state machine driven by game events.
//
// Transition table (event → store effect, latch, entered state, state after a one-shot):
//
//	Winner                 –                                     set    Win       → Idle
//	Eliminated             alive=false                           –      Lose      → Idle
//	GameOver, latch clear  –                                     –      Lose      → Default
//	GameOver, latch set    –                                     –      GameOver  (rests)
//	Playing                –                                     –      Default
//	GameStarted, NewGame   progress=0, color unassigned, alive   clear  Default
//	GameStopped            progress=0, light=red                 –      Default
//
// Win and Lose are one-shots: they run for a fixed duration with the haptic engaged and
// fall through to their after-state on the first tick past that duration.
package animation

import (
	"fmt"

	"github.com/dyluth/tremor/pkg/gamestate"
)

// State is the animation currently owning the LED strip.
type State uint8

const (
	StateIdle State = iota
	StateDefault
	StateWin
	StateLose
	StateGameOver
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDefault:
		return "default"
	case StateWin:
		return "win"
	case StateLose:
		return "lose"
	case StateGameOver:
		return "game_over"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// OneShot reports whether the state runs once and then hands over to another state.
func (s State) OneShot() bool {
	return s == StateWin || s == StateLose
}

type latchOp uint8

const (
	latchKeep latchOp = iota
	latchSet
	latchClear
)

// transition is one row of the table above.
type transition struct {
	enter  State
	after  State // only meaningful when enter is a one-shot
	latch  latchOp
	effect func(s *gamestate.State)
}

func markEliminated(s *gamestate.State) {
	s.PlayerAlive = false
}

func resetForNewGame(s *gamestate.State) {
	s.PlayerProgress = 0
	s.ColorAssigned = false
	s.PlayerAlive = true
}

func resetForStop(s *gamestate.State) {
	s.PlayerProgress = 0
	s.Light = gamestate.LightRed
}

// transitionFor returns the table row for ev given the current winner latch.
func transitionFor(ev gamestate.EventKind, winnerLatched bool) transition {
	switch ev {
	case gamestate.EventWinner:
		return transition{enter: StateWin, after: StateIdle, latch: latchSet}
	case gamestate.EventEliminated:
		return transition{enter: StateLose, after: StateIdle, effect: markEliminated}
	case gamestate.EventGameOver:
		if winnerLatched {
			return transition{enter: StateGameOver}
		}
		return transition{enter: StateLose, after: StateDefault}
	case gamestate.EventPlaying:
		return transition{enter: StateDefault}
	case gamestate.EventGameStarted, gamestate.EventNewGame:
		return transition{enter: StateDefault, latch: latchClear, effect: resetForNewGame}
	case gamestate.EventGameStopped:
		return transition{enter: StateDefault, effect: resetForStop}
	default:
		panic(fmt.Sprintf("animation: unhandled event %v", ev))
	}
}
