package gamestate

// FieldUpdate is a single host-driven change to the shared state.
// The set of implementations is closed: SetLight, SetProgress and SetColor.
type FieldUpdate interface {
	apply(s *State)
}

// SetLight switches the game phase color.
type SetLight struct {
	Light Light
}

func (u SetLight) apply(s *State) {
	s.Light = u.Light
}

// SetProgress sets the player's progress. Out-of-range values are clamped to [0,100].
type SetProgress struct {
	Value int
}

func (u SetProgress) apply(s *State) {
	s.PlayerProgress = ClampProgress(u.Value)
}

// SetColor sets the player's avatar color. Each channel is clamped to [0,255].
// The three channels are always committed together.
type SetColor struct {
	R, G, B int
}

func (u SetColor) apply(s *State) {
	s.PlayerColor = RGB{R: clampChannel(u.R), G: clampChannel(u.G), B: clampChannel(u.B)}
	s.ColorAssigned = true
}

// ClampProgress limits a progress value to [0,100].
func ClampProgress(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func clampChannel(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
