// Package roster lists the nodes that mirror their state to Redis.
package roster

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/dyluth/tremor/internal/bus"
	"github.com/dyluth/tremor/pkg/gamestate"
)

// OutputFormat specifies how to format the node list output.
type OutputFormat string

const (
	// OutputFormatDefault uses an aligned table
	OutputFormatDefault OutputFormat = "default"

	// OutputFormatJSONL outputs complete node states as line-delimited JSON
	OutputFormatJSONL OutputFormat = "jsonl"
)

// FilterCriteria defines filtering options for the node list.
// All filters are ANDed together.
type FilterCriteria struct {
	NodeGlob  string // Glob pattern for node ID, empty = no filter
	AliveOnly bool
	Light     string // "red" or "green", empty = no filter
	SinceMs   int64  // Updated at or after, 0 = no bound
	UntilMs   int64  // Updated before, 0 = no bound
}

func (fc *FilterCriteria) matches(ns *bus.NodeState) bool {
	if fc.NodeGlob != "" {
		matched, err := filepath.Match(fc.NodeGlob, ns.NodeID)
		if err != nil || !matched {
			return false
		}
	}
	if fc.AliveOnly && !ns.State.PlayerAlive {
		return false
	}
	if fc.Light != "" && ns.State.Light.String() != fc.Light {
		return false
	}
	if fc.SinceMs > 0 && ns.UpdatedAtMs < fc.SinceMs {
		return false
	}
	if fc.UntilMs > 0 && ns.UpdatedAtMs >= fc.UntilMs {
		return false
	}
	return true
}

// Validate checks the filter values.
func (fc *FilterCriteria) Validate() error {
	if fc.Light != "" {
		if _, err := gamestate.ParseLight(fc.Light); err != nil {
			return fmt.Errorf("invalid light filter: %w", err)
		}
	}
	if fc.NodeGlob != "" {
		if _, err := filepath.Match(fc.NodeGlob, ""); err != nil {
			return fmt.Errorf("invalid node pattern %q: %w", fc.NodeGlob, err)
		}
	}
	return nil
}

// Collect scans for mirrored node states and returns those matching filters,
// sorted by node ID. Nodes whose state cannot be decoded are skipped with a warning on stderr.
func Collect(ctx context.Context, client *bus.Client, filters *FilterCriteria) ([]*bus.NodeState, error) {
	iter := client.RedisClient().Scan(ctx, 0, bus.StateKeyPattern, 0).Iterator()

	var nodes []*bus.NodeState
	for iter.Next(ctx) {
		key := iter.Val()
		nodeID, ok := bus.NodeFromStateKey(key)
		if !ok {
			continue
		}

		ns, err := client.GetState(ctx, nodeID)
		if err != nil {
			if bus.IsNotFound(err) {
				continue
			}
			fmt.Fprintf(os.Stderr, "⚠️  Skipping malformed node state: key=%s (error: %v)\n", key, err)
			continue
		}

		if filters != nil && !filters.matches(ns) {
			continue
		}
		nodes = append(nodes, ns)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan node states: %w", err)
	}

	sort.Slice(nodes, func(i, j int) bool {
		return nodes[i].NodeID < nodes[j].NodeID
	})
	return nodes, nil
}

// ListNodes collects node states and writes them to w in the requested format.
func ListNodes(ctx context.Context, client *bus.Client, format OutputFormat, filters *FilterCriteria, w io.Writer) error {
	nodes, err := Collect(ctx, client, filters)
	if err != nil {
		return err
	}

	switch format {
	case OutputFormatDefault:
		FormatTable(w, nodes)
	case OutputFormatJSONL:
		if err := FormatJSONL(w, nodes); err != nil {
			return fmt.Errorf("failed to format JSONL output: %w", err)
		}
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}
	return nil
}

// GetNode writes a single node's state as pretty-printed JSON.
func GetNode(ctx context.Context, client *bus.Client, nodeID string, w io.Writer) error {
	if err := bus.ValidateNodeID(nodeID); err != nil {
		return err
	}

	ns, err := client.GetState(ctx, nodeID)
	if err != nil {
		if bus.IsNotFound(err) {
			return &NodeNotFoundError{NodeID: nodeID}
		}
		return fmt.Errorf("failed to fetch node state: %w", err)
	}

	return FormatSingleJSON(w, ns)
}

// NodeNotFoundError is returned by GetNode when a node has never mirrored its state.
type NodeNotFoundError struct {
	NodeID string
}

func (e *NodeNotFoundError) Error() string {
	return fmt.Sprintf("node '%s' not found", e.NodeID)
}

// IsNotFound returns true if the error is a NodeNotFoundError.
func IsNotFound(err error) bool {
	_, ok := err.(*NodeNotFoundError)
	return ok
}
