package node

import (
	"context"
	"fmt"
	"time"

	"github.com/dyluth/tremor/pkg/gamestate"
)

// MinQueueCapacity is the smallest accepted event queue.
const MinQueueCapacity = 2

// EventQueue is the bounded FIFO hand-off of game events from the command listener
// to the animation driver. A full queue blocks the producer: events are never dropped.
type EventQueue struct {
	ch chan gamestate.EventKind
}

// NewEventQueue creates a queue holding up to capacity events.
func NewEventQueue(capacity int) (*EventQueue, error) {
	if capacity < MinQueueCapacity {
		return nil, fmt.Errorf("event queue capacity must be >= %d, got %d", MinQueueCapacity, capacity)
	}
	return &EventQueue{ch: make(chan gamestate.EventKind, capacity)}, nil
}

// Push appends ev, blocking while the queue is full. It only gives up when ctx is
// cancelled, which happens at shutdown.
func (q *EventQueue) Push(ctx context.Context, ev gamestate.EventKind) error {
	select {
	case q.ch <- ev:
		return nil
	default:
	}

	select {
	case q.ch <- ev:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("event %s not queued: %w", ev, ctx.Err())
	}
}

// TryPop removes the oldest event, waiting at most timeout for one to arrive.
// A zero timeout never waits.
func (q *EventQueue) TryPop(timeout time.Duration) (gamestate.EventKind, bool) {
	select {
	case ev := <-q.ch:
		return ev, true
	default:
	}
	if timeout <= 0 {
		return 0, false
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case ev := <-q.ch:
		return ev, true
	case <-timer.C:
		return 0, false
	}
}

// Len returns the number of queued events.
func (q *EventQueue) Len() int {
	return len(q.ch)
}

// Cap returns the queue capacity.
func (q *EventQueue) Cap() int {
	return cap(q.ch)
}
