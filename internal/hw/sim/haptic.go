package sim

import "sync"

// Haptic records actuator transitions.
type Haptic struct {
	mu      sync.Mutex
	on      bool
	history []bool
}

func (h *Haptic) Set(on bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if on != h.on || len(h.history) == 0 {
		h.history = append(h.history, on)
	}
	h.on = on
	return nil
}

// On reports the current actuator state.
func (h *Haptic) On() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.on
}

// History returns every distinct state set so far, in order.
func (h *Haptic) History() []bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]bool(nil), h.history...)
}
