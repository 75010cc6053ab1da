package node

import (
	"context"
	"testing"
	"time"

	"github.com/dyluth/tremor/pkg/gamestate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEventQueue_RejectsTinyCapacity(t *testing.T) {
	for _, c := range []int{-1, 0, 1} {
		_, err := NewEventQueue(c)
		assert.Error(t, err, "capacity %d", c)
	}
	q, err := NewEventQueue(2)
	require.NoError(t, err)
	assert.Equal(t, 2, q.Cap())
}

func TestEventQueue_FIFO(t *testing.T) {
	q, err := NewEventQueue(4)
	require.NoError(t, err)
	ctx := context.Background()

	for _, ev := range []gamestate.EventKind{gamestate.EventWinner, gamestate.EventGameOver, gamestate.EventNewGame} {
		require.NoError(t, q.Push(ctx, ev))
	}
	assert.Equal(t, 3, q.Len())

	for _, want := range []gamestate.EventKind{gamestate.EventWinner, gamestate.EventGameOver, gamestate.EventNewGame} {
		ev, ok := q.TryPop(0)
		require.True(t, ok)
		assert.Equal(t, want, ev)
	}
	_, ok := q.TryPop(0)
	assert.False(t, ok)
}

func TestEventQueue_TryPopWaitsAtMostTimeout(t *testing.T) {
	q, err := NewEventQueue(2)
	require.NoError(t, err)

	start := time.Now()
	_, ok := q.TryPop(30 * time.Millisecond)
	assert.False(t, ok)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)

	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = q.Push(context.Background(), gamestate.EventPlaying)
	}()
	ev, ok := q.TryPop(time.Second)
	require.True(t, ok)
	assert.Equal(t, gamestate.EventPlaying, ev)
}

func TestEventQueue_FullQueueBlocksProducer(t *testing.T) {
	q, err := NewEventQueue(2)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, q.Push(ctx, gamestate.EventWinner))
	require.NoError(t, q.Push(ctx, gamestate.EventEliminated))

	pushed := make(chan struct{})
	go func() {
		_ = q.Push(ctx, gamestate.EventGameOver)
		close(pushed)
	}()

	select {
	case <-pushed:
		t.Fatal("push on a full queue returned")
	case <-time.After(50 * time.Millisecond):
	}

	ev, ok := q.TryPop(0)
	require.True(t, ok)
	assert.Equal(t, gamestate.EventWinner, ev)

	select {
	case <-pushed:
	case <-time.After(time.Second):
		t.Fatal("push did not resume after a pop")
	}

	// Nothing was dropped and order held
	for _, want := range []gamestate.EventKind{gamestate.EventEliminated, gamestate.EventGameOver} {
		ev, ok := q.TryPop(0)
		require.True(t, ok)
		assert.Equal(t, want, ev)
	}
}

func TestEventQueue_PushUnblocksOnCancel(t *testing.T) {
	q, err := NewEventQueue(2)
	require.NoError(t, err)
	require.NoError(t, q.Push(context.Background(), gamestate.EventWinner))
	require.NoError(t, q.Push(context.Background(), gamestate.EventWinner))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = q.Push(ctx, gamestate.EventGameOver)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 2, q.Len())
}
