// Package telemetry publishes a node's shake score and mirrors its game state
// to outbound sinks.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dyluth/tremor/internal/bus"
	"github.com/dyluth/tremor/pkg/gamestate"
)

// DefaultInterval is the minimum spacing between two published scores.
const DefaultInterval = 100 * time.Millisecond

// Sink receives published shake scores.
type Sink interface {
	Send(ctx context.Context, score int) error
}

// Publisher rate-limits scores to at most one per interval, independent of how often
// samples arrive. Scores offered between publishes are superseded by the latest one.
// It is owned by the sampling goroutine.
type Publisher struct {
	interval time.Duration
	sinks    []Sink

	last      time.Time
	latest    int
	published int
}

// NewPublisher creates a publisher. A non-positive interval selects DefaultInterval.
func NewPublisher(interval time.Duration, sinks ...Sink) *Publisher {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Publisher{interval: interval, sinks: sinks}
}

// Offer records score as the latest value and publishes it if the interval since the
// previous publish has elapsed. It reports whether a publish happened; a failing sink
// does not stop the others.
func (p *Publisher) Offer(ctx context.Context, now time.Time, score int) (bool, error) {
	p.latest = score
	if !p.last.IsZero() && now.Sub(p.last) < p.interval {
		return false, nil
	}
	p.last = now
	p.published++

	var errs []error
	for _, s := range p.sinks {
		if err := s.Send(ctx, score); err != nil {
			errs = append(errs, err)
		}
	}
	return true, errors.Join(errs...)
}

// Latest returns the most recently offered score.
func (p *Publisher) Latest() int {
	return p.latest
}

// Published returns how many publishes have happened.
func (p *Publisher) Published() int {
	return p.published
}

// WriterSink writes each score as a decimal line, the node's serial telemetry format.
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterSink creates a sink writing to w.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

func (s *WriterSink) Send(_ context.Context, score int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.w, "%d\n", score); err != nil {
		return fmt.Errorf("failed to write score: %w", err)
	}
	return nil
}

// RedisSink publishes scores on the node's shake channel.
type RedisSink struct {
	client *bus.Client
}

// NewRedisSink creates a sink publishing through client.
func NewRedisSink(client *bus.Client) *RedisSink {
	return &RedisSink{client: client}
}

func (s *RedisSink) Send(ctx context.Context, score int) error {
	return s.client.PublishScore(ctx, score)
}

// StateMirror receives game-state snapshots.
type StateMirror interface {
	MirrorState(ctx context.Context, s gamestate.State, animation string, updatedAtMs int64) error
}

// Mirror forwards a snapshot to a StateMirror only when its Version or the animation
// state changed. A failed write is retried on the next Sync.
type Mirror struct {
	target    StateMirror
	version   uint64
	animation string
	synced    bool
}

// NewMirror creates a mirror writing to target.
func NewMirror(target StateMirror) *Mirror {
	return &Mirror{target: target}
}

// Sync writes snap if it differs from what was last written, reporting whether it wrote.
func (m *Mirror) Sync(ctx context.Context, now time.Time, snap gamestate.State, animation string) (bool, error) {
	if m.synced && snap.Version == m.version && animation == m.animation {
		return false, nil
	}
	if err := m.target.MirrorState(ctx, snap, animation, now.UnixMilli()); err != nil {
		m.synced = false
		return false, err
	}
	m.version = snap.Version
	m.animation = animation
	m.synced = true
	return true, nil
}
