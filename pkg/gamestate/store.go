package gamestate

import (
	"sync"
	"sync/atomic"
)

// Store is the single shared container for a node's State.
// It is safe for concurrent use: any number of readers alongside serialized writers.
type Store struct {
	mu      sync.Mutex // serializes writers only
	current atomic.Pointer[State]
}

// NewStore creates a store holding Default().
func NewStore() *Store {
	return NewStoreWith(Default())
}

// NewStoreWith creates a store holding the given initial state (clamped).
func NewStoreWith(initial State) *Store {
	st := &Store{}
	initial.PlayerProgress = ClampProgress(initial.PlayerProgress)
	st.current.Store(&initial)
	return st
}

// Snapshot returns a consistent copy of the current state. It never blocks.
func (st *Store) Snapshot() State {
	return *st.current.Load()
}

// Apply commits all updates as one step. Readers observe either none or all of them.
// Calling Apply with no updates is a no-op and does not bump Version.
func (st *Store) Apply(updates ...FieldUpdate) State {
	if len(updates) == 0 {
		return st.Snapshot()
	}
	return st.Update(func(s *State) {
		for _, u := range updates {
			u.apply(s)
		}
	})
}

// Update runs fn against a private copy of the state and publishes the result.
// fn must not retain the pointer or call back into the store.
func (st *Store) Update(fn func(s *State)) State {
	st.mu.Lock()
	defer st.mu.Unlock()

	next := *st.current.Load()
	fn(&next)
	next.PlayerProgress = ClampProgress(next.PlayerProgress)
	next.Version++

	st.current.Store(&next)
	return next
}
