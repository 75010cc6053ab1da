package bus

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/dyluth/tremor/pkg/gamestate"
)

// NodeState is a node's state as mirrored to Redis.
type NodeState struct {
	NodeID      string          `json:"node_id"`
	State       gamestate.State `json:"state"`
	Animation   string          `json:"animation"`
	Score       int             `json:"score"`
	UpdatedAtMs int64           `json:"updated_at_ms"`
}

// StateToHash converts a state snapshot to Redis hash fields.
// The color triple is JSON-encoded into a single field so it is always written together.
func StateToHash(s gamestate.State, animation string, updatedAtMs int64) (map[string]interface{}, error) {
	colorJSON, err := json.Marshal([3]uint8{s.PlayerColor.R, s.PlayerColor.G, s.PlayerColor.B})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal player color: %w", err)
	}

	return map[string]interface{}{
		"light":          s.Light.String(),
		"alive":          strconv.FormatBool(s.PlayerAlive),
		"progress":       s.PlayerProgress,
		"color":          string(colorJSON),
		"color_assigned": strconv.FormatBool(s.ColorAssigned),
		"version":        s.Version,
		"animation":      animation,
		"updated_at_ms":  updatedAtMs,
	}, nil
}

// HashToNodeState converts a mirrored hash back into a NodeState.
// A hash holding only a score (the node has not mirrored its state yet) is valid.
func HashToNodeState(nodeID string, hash map[string]string) (*NodeState, error) {
	ns := &NodeState{
		NodeID:    nodeID,
		State:     gamestate.Default(),
		Animation: hash["animation"],
	}

	if v, ok := hash["light"]; ok {
		light, err := gamestate.ParseLight(v)
		if err != nil {
			return nil, err
		}
		ns.State.Light = light
	}

	var err error
	if v, ok := hash["alive"]; ok {
		if ns.State.PlayerAlive, err = strconv.ParseBool(v); err != nil {
			return nil, fmt.Errorf("invalid alive field: %w", err)
		}
	}
	if v, ok := hash["color_assigned"]; ok {
		if ns.State.ColorAssigned, err = strconv.ParseBool(v); err != nil {
			return nil, fmt.Errorf("invalid color_assigned field: %w", err)
		}
	}
	if v, ok := hash["progress"]; ok {
		if ns.State.PlayerProgress, err = strconv.Atoi(v); err != nil {
			return nil, fmt.Errorf("invalid progress field: %w", err)
		}
	}
	if v, ok := hash["version"]; ok {
		if ns.State.Version, err = strconv.ParseUint(v, 10, 64); err != nil {
			return nil, fmt.Errorf("invalid version field: %w", err)
		}
	}
	if v, ok := hash["color"]; ok {
		var c [3]uint8
		if err := json.Unmarshal([]byte(v), &c); err != nil {
			return nil, fmt.Errorf("failed to unmarshal color: %w", err)
		}
		ns.State.PlayerColor = gamestate.RGB{R: c[0], G: c[1], B: c[2]}
	}

	// Score and timestamp are informational; tolerate their absence.
	ns.Score, _ = strconv.Atoi(hash["score"])
	ns.UpdatedAtMs, _ = strconv.ParseInt(hash["updated_at_ms"], 10, 64)

	return ns, nil
}
