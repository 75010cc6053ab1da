package roster

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dyluth/tremor/internal/bus"
	"github.com/dyluth/tremor/pkg/gamestate"
)

// FormatTable writes node states as an aligned table.
// Returns the number of nodes formatted.
func FormatTable(w io.Writer, nodes []*bus.NodeState) int {
	if len(nodes) == 0 {
		fmt.Fprintln(w, "No nodes found")
		return 0
	}

	fmt.Fprintf(w, "%-16s %-6s %-6s %-5s %-13s %-10s %-6s %s\n",
		"NODE", "LIGHT", "ALIVE", "PROG", "COLOR", "ANIMATION", "SCORE", "UPDATED")
	fmt.Fprintf(w, "%-16s %-6s %-6s %-5s %-13s %-10s %-6s %s\n",
		"----------------", "------", "------", "-----", "-------------", "----------", "------", "--------")

	for _, ns := range nodes {
		fmt.Fprintf(w, "%-16s %-6s %-6s %-5s %-13s %-10s %-6d %s\n",
			formatNodeID(ns.NodeID),
			ns.State.Light,
			formatAlive(ns.State.PlayerAlive),
			fmt.Sprintf("%d%%", ns.State.PlayerProgress),
			formatColor(ns.State.PlayerColor, ns.State.ColorAssigned),
			formatAnimation(ns.Animation),
			ns.Score,
			formatTimestamp(ns.UpdatedAtMs),
		)
	}

	countMsg := "node"
	if len(nodes) != 1 {
		countMsg = "nodes"
	}
	fmt.Fprintf(w, "\n%d %s found\n", len(nodes), countMsg)

	return len(nodes)
}

// FormatJSONL writes each node state as a single JSON object per line.
func FormatJSONL(w io.Writer, nodes []*bus.NodeState) error {
	for _, ns := range nodes {
		data, err := json.Marshal(ns)
		if err != nil {
			return fmt.Errorf("failed to marshal node state to JSON: %w", err)
		}
		if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
			return fmt.Errorf("failed to write JSONL output: %w", err)
		}
	}
	return nil
}

// FormatSingleJSON writes one node state as pretty-printed JSON.
func FormatSingleJSON(w io.Writer, ns *bus.NodeState) error {
	data, err := json.MarshalIndent(ns, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal node state to JSON: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write JSON output: %w", err)
	}
	fmt.Fprintln(w)
	return nil
}

func formatNodeID(id string) string {
	if len(id) > 16 {
		return id[:13] + "..."
	}
	return id
}

func formatAlive(alive bool) string {
	if alive {
		return "yes"
	}
	return "out"
}

// formatColor renders an assigned color as a hex triple, "-" otherwise.
func formatColor(c gamestate.RGB, assigned bool) string {
	if !assigned {
		return "-"
	}
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

func formatAnimation(name string) string {
	if name == "" {
		return "-"
	}
	return name
}

// formatTimestamp formats a Unix millisecond timestamp as relative time ("2m ago").
func formatTimestamp(timestampMs int64) string {
	if timestampMs == 0 {
		return "-"
	}

	diff := time.Since(time.UnixMilli(timestampMs))
	switch {
	case diff < time.Minute:
		return fmt.Sprintf("%ds ago", int(diff.Seconds()))
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	}
}
