// Package gamestate provides the shared game/player state model for a tremor node.
//
// # Overview
//
// A node holds exactly one State for its whole lifetime. The command listener writes
// host-driven fields (light, progress, player color), the animation driver writes the
// fields derived from events (alive flag, resets), and every other task only reads.
//
// # Access Discipline
//
// All access goes through a Store. Writers are serialized by a mutex and publish a fresh
// immutable State value through an atomic pointer, so:
//
//   - Readers never lock and never block on a writer.
//   - A reader always sees a whole committed State. The player color triple in particular is
//     never observed half old and half new.
//   - The writer critical section is a struct copy, the mutation, and a clamp pass.
//
// # Usage Example
//
//	store := gamestate.NewStore()
//
//	// Apply the updates parsed from one command line as a single commit
//	store.Apply(gamestate.SetProgress{Value: 140}, gamestate.SetColor{R: 10, G: 200, B: 30})
//
//	snap := store.Snapshot()
//	// snap.PlayerProgress == 100 (clamped)
//	// snap.PlayerColor == gamestate.RGB{R: 10, G: 200, B: 30}
//
// # Events
//
// EventKind is a closed set. Every switch over it in this module is exhaustive, so adding a
// kind is a compile-visible change (the default branches panic or log as unreachable).
package gamestate
