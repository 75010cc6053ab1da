// Package bus connects a node to the Redis host bus.
//
// A node mirrors its game state into a hash, publishes shake scores, and receives
// command lines over Pub/Sub, either addressed to it or broadcast to all nodes.
// The same client is used by the CLI to send commands and list nodes.
package bus

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"

	"github.com/dyluth/tremor/pkg/gamestate"
	"github.com/redis/go-redis/v9"
)

// Client provides node-scoped Redis operations.
// The client is thread-safe and can be used concurrently from multiple goroutines.
type Client struct {
	rdb    *redis.Client
	nodeID string
}

// NewClient creates a client for the given node. nodeID must be non-empty and must
// not contain ':' (it is embedded in key names).
func NewClient(redisOpts *redis.Options, nodeID string) (*Client, error) {
	if err := ValidateNodeID(nodeID); err != nil {
		return nil, err
	}

	return &Client{
		rdb:    redis.NewClient(redisOpts),
		nodeID: nodeID,
	}, nil
}

// ValidateNodeID checks that id can be used in key names.
func ValidateNodeID(id string) error {
	if id == "" {
		return fmt.Errorf("node id cannot be empty")
	}
	if strings.ContainsAny(id, ": \t\r\n") {
		return fmt.Errorf("node id %q must not contain ':' or whitespace", id)
	}
	return nil
}

// NodeID returns the node this client is scoped to.
func (c *Client) NodeID() string {
	return c.nodeID
}

// RedisClient exposes the underlying client for scans.
func (c *Client) RedisClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection. Implements io.Closer.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// MirrorState writes the snapshot to tremor:{node}:state.
// All fields are written with one HSET so readers never see a mixed state.
func (c *Client) MirrorState(ctx context.Context, s gamestate.State, animation string, updatedAtMs int64) error {
	hash, err := StateToHash(s, animation, updatedAtMs)
	if err != nil {
		return fmt.Errorf("failed to serialize state: %w", err)
	}

	if err := c.rdb.HSet(ctx, StateKey(c.nodeID), hash).Err(); err != nil {
		return fmt.Errorf("failed to mirror state to Redis: %w", err)
	}
	return nil
}

// PublishScore publishes a shake score on tremor:{node}:shake and records it as the
// node's latest score.
func (c *Client) PublishScore(ctx context.Context, score int) error {
	pipe := c.rdb.Pipeline()
	pipe.Publish(ctx, ShakeChannel(c.nodeID), score)
	pipe.HSet(ctx, StateKey(c.nodeID), "score", score)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to publish shake score: %w", err)
	}
	return nil
}

// GetState reads a node's mirrored state.
// Returns (nil, redis.Nil) if the node has never mirrored anything.
func (c *Client) GetState(ctx context.Context, nodeID string) (*NodeState, error) {
	hash, err := c.rdb.HGetAll(ctx, StateKey(nodeID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read state from Redis: %w", err)
	}
	if len(hash) == 0 {
		return nil, redis.Nil
	}

	ns, err := HashToNodeState(nodeID, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize state: %w", err)
	}
	return ns, nil
}

// SendCommand publishes a command line to this client's node.
// Returns the number of subscribers that received it.
func (c *Client) SendCommand(ctx context.Context, line string) (int64, error) {
	n, err := c.rdb.Publish(ctx, CommandChannel(c.nodeID), line).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to publish command: %w", err)
	}
	return n, nil
}

// Broadcast publishes a command line to every node.
func (c *Client) Broadcast(ctx context.Context, line string) (int64, error) {
	n, err := c.rdb.Publish(ctx, BroadcastChannel, line).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to broadcast command: %w", err)
	}
	return n, nil
}

// Subscription is an active subscription to a node's command channels.
// Caller must call Close() when done to clean up resources.
type Subscription struct {
	lines  <-chan []byte
	cancel func()
	once   sync.Once
}

// Lines returns the channel of received command lines.
// The channel is closed when the subscription is closed or the context is cancelled.
func (s *Subscription) Lines() <-chan []byte {
	return s.lines
}

// Close stops the subscription. Safe to call multiple times.
func (s *Subscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// SubscribeCommands subscribes to tremor:{node}:commands and the broadcast channel.
// It returns once Redis has confirmed the subscription.
//
// A payload holding several newline-separated lines is delivered as separate lines.
// Lines are delivered on a buffered channel (size 16); Redis Pub/Sub is at-most-once,
// so lines published while the node is disconnected are lost.
func (c *Client) SubscribeCommands(ctx context.Context) (*Subscription, error) {
	pubsub := c.rdb.Subscribe(ctx, CommandChannel(c.nodeID), BroadcastChannel)

	// Wait for confirmation so nothing published after return is missed
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to commands: %w", err)
	}

	linesChan := make(chan []byte, 16)
	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(linesChan)
		defer pubsub.Close()

		ch := pubsub.Channel()

		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				for _, line := range bytes.Split([]byte(msg.Payload), []byte("\n")) {
					if len(bytes.TrimSpace(line)) == 0 {
						continue
					}
					select {
					case linesChan <- line:
					case <-subCtx.Done():
						return
					}
				}
			}
		}
	}()

	return &Subscription{
		lines:  linesChan,
		cancel: cancelFunc,
	}, nil
}

// IsNotFound returns true if the error is a Redis "key not found" error (redis.Nil).
func IsNotFound(err error) bool {
	return errors.Is(err, redis.Nil)
}

// Score is one shake score published by a node.
type Score struct {
	NodeID string `json:"node_id"`
	Score  int    `json:"score"`
}

// ScoreSubscription is an active subscription to every node's shake channel.
type ScoreSubscription struct {
	scores <-chan Score
	cancel func()
	once   sync.Once
}

// Scores returns the channel of received scores.
// The channel is closed when the subscription is closed or the context is cancelled.
func (s *ScoreSubscription) Scores() <-chan Score {
	return s.scores
}

// Close stops the subscription. Safe to call multiple times.
func (s *ScoreSubscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// SubscribeScores pattern-subscribes to tremor:*:shake. Payloads that are not
// integers are logged and skipped.
func (c *Client) SubscribeScores(ctx context.Context) (*ScoreSubscription, error) {
	pubsub := c.rdb.PSubscribe(ctx, ShakeChannelPattern)

	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to scores: %w", err)
	}

	scoresChan := make(chan Score, 64)
	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(scoresChan)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				nodeID, ok := NodeFromShakeChannel(msg.Channel)
				if !ok {
					continue
				}
				score, err := strconv.Atoi(msg.Payload)
				if err != nil {
					log.Printf("[WARN] Ignoring non-numeric score from %s: %q", nodeID, msg.Payload)
					continue
				}

				select {
				case scoresChan <- Score{NodeID: nodeID, Score: score}:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &ScoreSubscription{
		scores: scoresChan,
		cancel: cancelFunc,
	}, nil
}
