package telemetry

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dyluth/tremor/internal/bus"
	"github.com/dyluth/tremor/pkg/gamestate"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	scores []int
	err    error
}

func (s *recordingSink) Send(_ context.Context, score int) error {
	s.scores = append(s.scores, score)
	return s.err
}

func TestPublisher_RateLimitsIndependentOfSampling(t *testing.T) {
	sink := &recordingSink{}
	p := NewPublisher(100*time.Millisecond, sink)
	ctx := context.Background()
	start := time.Unix(1700000000, 0)

	// 20ms sampling for one second: 50 samples, at most 10 publishes.
	for i := 0; i < 50; i++ {
		_, err := p.Offer(ctx, start.Add(time.Duration(i)*20*time.Millisecond), i)
		require.NoError(t, err)
	}

	assert.Equal(t, []int{0, 5, 10, 15, 20, 25, 30, 35, 40, 45}, sink.scores)
	assert.Equal(t, 10, p.Published())
	assert.Equal(t, 49, p.Latest())
}

func TestPublisher_DefaultInterval(t *testing.T) {
	sink := &recordingSink{}
	p := NewPublisher(0, sink)
	now := time.Unix(0, 0)

	sent, _ := p.Offer(context.Background(), now, 1)
	assert.True(t, sent)
	sent, _ = p.Offer(context.Background(), now.Add(DefaultInterval-time.Millisecond), 2)
	assert.False(t, sent)
	sent, _ = p.Offer(context.Background(), now.Add(DefaultInterval), 3)
	assert.True(t, sent)
}

func TestPublisher_FailingSinkDoesNotStopOthers(t *testing.T) {
	bad := &recordingSink{err: errors.New("unplugged")}
	good := &recordingSink{}
	p := NewPublisher(time.Millisecond, bad, good)

	sent, err := p.Offer(context.Background(), time.Unix(0, 0), 6)
	assert.True(t, sent)
	assert.ErrorContains(t, err, "unplugged")
	assert.Equal(t, []int{6}, good.scores)
}

func TestWriterSink(t *testing.T) {
	var buf bytes.Buffer
	s := NewWriterSink(&buf)
	require.NoError(t, s.Send(context.Background(), 3))
	require.NoError(t, s.Send(context.Background(), 42))
	assert.Equal(t, "3\n42\n", buf.String())
}

type recordingMirror struct {
	writes []gamestate.State
	fail   int
}

func (m *recordingMirror) MirrorState(_ context.Context, s gamestate.State, _ string, _ int64) error {
	if m.fail > 0 {
		m.fail--
		return errors.New("redis down")
	}
	m.writes = append(m.writes, s)
	return nil
}

func TestMirror_WritesOnlyOnChange(t *testing.T) {
	target := &recordingMirror{}
	m := NewMirror(target)
	store := gamestate.NewStore()
	ctx := context.Background()
	now := time.Unix(0, 0)

	wrote, err := m.Sync(ctx, now, store.Snapshot(), "default")
	require.NoError(t, err)
	assert.True(t, wrote, "first sync always writes")

	wrote, _ = m.Sync(ctx, now, store.Snapshot(), "default")
	assert.False(t, wrote)

	wrote, _ = m.Sync(ctx, now, store.Snapshot(), "win")
	assert.True(t, wrote, "animation change")

	store.Apply(gamestate.SetProgress{Value: 10})
	target.fail = 1
	_, err = m.Sync(ctx, now, store.Snapshot(), "win")
	assert.Error(t, err)

	wrote, err = m.Sync(ctx, now, store.Snapshot(), "win")
	require.NoError(t, err)
	assert.True(t, wrote, "retried after failure")
	assert.Len(t, target.writes, 3)
	assert.Equal(t, 10, target.writes[2].PlayerProgress)
}

func TestRedisSinkAndMirror(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := bus.NewClient(&redis.Options{Addr: mr.Addr()}, "node-1")
	require.NoError(t, err)
	defer client.Close()
	ctx := context.Background()

	require.NoError(t, NewRedisSink(client).Send(ctx, 5))

	_, err = NewMirror(client).Sync(ctx, time.UnixMilli(1234), gamestate.Default(), "default")
	require.NoError(t, err)

	ns, err := client.GetState(ctx, "node-1")
	require.NoError(t, err)
	assert.Equal(t, 5, ns.Score)
	assert.Equal(t, "default", ns.Animation)
	assert.Equal(t, int64(1234), ns.UpdatedAtMs)
}
