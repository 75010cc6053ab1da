// Package watch follows nodes through Redis: it waits for a node's mirrored
// state to reach a condition and streams shake scores as nodes publish them.
package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/dyluth/tremor/internal/bus"
	"github.com/dyluth/tremor/internal/printer"
)

// pollInterval is how often PollForState re-reads the state hash.
const pollInterval = 200 * time.Millisecond

// PollForState polls a node's mirrored state until match returns true.
// Returns the matching state or an error if timeout occurs.
// A node that has not mirrored anything yet is polled again.
func PollForState(ctx context.Context, client *bus.Client, nodeID string, timeout time.Duration, match func(*bus.NodeState) bool) (*bus.NodeState, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	timeoutCh := time.After(timeout)

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()

		case <-timeoutCh:
			return nil, fmt.Errorf("timeout waiting for node %s after %v", nodeID, timeout)

		case <-ticker.C:
			ns, err := client.GetState(ctx, nodeID)
			if err != nil {
				if bus.IsNotFound(err) {
					continue
				}
				return nil, fmt.Errorf("failed to query node state: %w", err)
			}

			if match == nil || match(ns) {
				return ns, nil
			}
		}
	}
}

// OutputFormat selects how streamed scores are written.
type OutputFormat string

const (
	// OutputFormatDefault prints one line per score with a bar
	OutputFormatDefault OutputFormat = "default"

	// OutputFormatJSONL prints one JSON object per score
	OutputFormatJSONL OutputFormat = "jsonl"
)

type scoreFormatter interface {
	FormatScore(at time.Time, s bus.Score) error
}

type defaultFormatter struct {
	writer io.Writer
	top    int
}

func (f *defaultFormatter) FormatScore(at time.Time, s bus.Score) error {
	_, err := fmt.Fprintf(f.writer, "%s  %-16s %4d %s\n",
		at.Format("15:04:05.000"), s.NodeID, s.Score, printer.Bar(s.Score, f.top, 30))
	return err
}

type jsonlFormatter struct {
	writer io.Writer
}

type scoreLine struct {
	TimestampMs int64  `json:"timestamp_ms"`
	NodeID      string `json:"node_id"`
	Score       int    `json:"score"`
}

func (f *jsonlFormatter) FormatScore(at time.Time, s bus.Score) error {
	data, err := json.Marshal(scoreLine{TimestampMs: at.UnixMilli(), NodeID: s.NodeID, Score: s.Score})
	if err != nil {
		return fmt.Errorf("failed to marshal score: %w", err)
	}
	_, err = fmt.Fprintf(f.writer, "%s\n", data)
	return err
}

// StreamOptions configures StreamScores.
type StreamOptions struct {
	Format   OutputFormat
	NodeGlob string // Glob pattern for node ID, empty = every node
	Top      int    // Full-scale score for the default bar
}

// StreamScores writes every shake score published on the bus until ctx is
// cancelled. It returns nil on cancellation.
func StreamScores(ctx context.Context, client *bus.Client, opts StreamOptions, w io.Writer) error {
	if opts.NodeGlob != "" {
		if _, err := filepath.Match(opts.NodeGlob, ""); err != nil {
			return fmt.Errorf("invalid node pattern %q: %w", opts.NodeGlob, err)
		}
	}

	var formatter scoreFormatter
	switch opts.Format {
	case OutputFormatDefault, "":
		top := opts.Top
		if top <= 0 {
			top = 100
		}
		formatter = &defaultFormatter{writer: w, top: top}
	case OutputFormatJSONL:
		formatter = &jsonlFormatter{writer: w}
	default:
		return fmt.Errorf("unknown output format: %s", opts.Format)
	}

	sub, err := client.SubscribeScores(ctx)
	if err != nil {
		return err
	}
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case s, ok := <-sub.Scores():
			if !ok {
				return nil
			}
			if opts.NodeGlob != "" {
				if matched, _ := filepath.Match(opts.NodeGlob, s.NodeID); !matched {
					continue
				}
			}
			if err := formatter.FormatScore(time.Now(), s); err != nil {
				return fmt.Errorf("failed to write score: %w", err)
			}
		}
	}
}
