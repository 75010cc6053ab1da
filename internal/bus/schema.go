package bus

import (
	"fmt"
	"strings"
)

// Redis key pattern helpers
//
// All keys and Pub/Sub channels are namespaced by node ID so any number of nodes
// can share one Redis server.
//
// Key pattern: tremor:{node_id}:{entity}
// Broadcast channel: tremor:commands

// BroadcastChannel carries command lines addressed to every node.
const BroadcastChannel = "tremor:commands"

// StateKey returns the Redis key for a node's mirrored state hash.
// Pattern: tremor:{node_id}:state
func StateKey(nodeID string) string {
	return fmt.Sprintf("tremor:%s:state", nodeID)
}

// StateKeyPattern matches every node's state hash, for SCAN.
const StateKeyPattern = "tremor:*:state"

// NodeFromStateKey extracts the node ID from a state key.
// Returns false if key is not a state key.
func NodeFromStateKey(key string) (string, bool) {
	rest, ok := strings.CutPrefix(key, "tremor:")
	if !ok {
		return "", false
	}
	nodeID, ok := strings.CutSuffix(rest, ":state")
	if !ok || nodeID == "" {
		return "", false
	}
	return nodeID, true
}

// ShakeChannel returns the Pub/Sub channel a node publishes shake scores on.
// Pattern: tremor:{node_id}:shake
func ShakeChannel(nodeID string) string {
	return fmt.Sprintf("tremor:%s:shake", nodeID)
}

// CommandChannel returns the Pub/Sub channel carrying command lines for one node.
// Pattern: tremor:{node_id}:commands
func CommandChannel(nodeID string) string {
	return fmt.Sprintf("tremor:%s:commands", nodeID)
}

// ShakeChannelPattern matches every node's shake channel, for PSUBSCRIBE.
const ShakeChannelPattern = "tremor:*:shake"

// NodeFromShakeChannel extracts the node ID from a shake channel name.
func NodeFromShakeChannel(channel string) (string, bool) {
	rest, ok := strings.CutPrefix(channel, "tremor:")
	if !ok {
		return "", false
	}
	nodeID, ok := strings.CutSuffix(rest, ":shake")
	if !ok || nodeID == "" {
		return "", false
	}
	return nodeID, true
}
