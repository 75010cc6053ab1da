package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dyluth/tremor/internal/printer"
	"github.com/dyluth/tremor/internal/roster"
	"github.com/dyluth/tremor/internal/timespec"
	"github.com/spf13/cobra"
)

var (
	nodesOutputFormat string
	nodesMatch        string
	nodesAlive        bool
	nodesLight        string
	nodesSince        string
	nodesUntil        string
)

var nodesCmd = &cobra.Command{
	Use:   "nodes [NODE_ID]",
	Short: "List nodes mirroring their state to Redis",
	Long: `List the nodes that mirror their state to Redis, or show one node in full.

List Mode (no NODE_ID):
  Displays matching nodes as a table or JSONL stream.

Get Mode (with NODE_ID):
  Displays the node's mirrored state as pretty-printed JSON.

Examples:
  # Who is still in the game?
  tremor nodes --alive

  # Nodes that changed in the last five minutes
  tremor nodes --since 5m

  # Stream to jq
  tremor nodes -o jsonl | jq '.state.player_progress'

  # One node
  tremor nodes node-1a2b3c4d`,
	Args: cobra.MaximumNArgs(1),
	RunE: runNodes,
}

func init() {
	nodesCmd.Flags().StringVarP(&nodesOutputFormat, "output", "o", "default", "Output format: default or jsonl (ignored in get mode)")
	nodesCmd.Flags().StringVar(&nodesMatch, "match", "", "Filter by node ID (glob pattern)")
	nodesCmd.Flags().BoolVar(&nodesAlive, "alive", false, "Only nodes whose player is alive")
	nodesCmd.Flags().StringVar(&nodesLight, "light", "", "Filter by light: red or green")
	nodesCmd.Flags().StringVar(&nodesSince, "since", "", "Only nodes updated after this time (duration like '5m' or RFC3339)")
	nodesCmd.Flags().StringVar(&nodesUntil, "until", "", "Only nodes updated before this time (duration like '1m' or RFC3339)")

	rootCmd.AddCommand(nodesCmd)
}

func runNodes(cmd *cobra.Command, args []string) error {
	isGetMode := len(args) > 0

	var outputFormat roster.OutputFormat
	switch nodesOutputFormat {
	case "default":
		outputFormat = roster.OutputFormatDefault
	case "jsonl":
		outputFormat = roster.OutputFormatJSONL
	default:
		return printer.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", nodesOutputFormat),
			[]string{"Valid formats: default, jsonl"},
		)
	}

	sinceMs, untilMs, err := timespec.ParseRange(nodesSince, nodesUntil, time.Now())
	if err != nil {
		return printer.Error("invalid time filter", err.Error(), nil)
	}

	filters := &roster.FilterCriteria{
		NodeGlob:  nodesMatch,
		AliveOnly: nodesAlive,
		Light:     nodesLight,
		SinceMs:   sinceMs,
		UntilMs:   untilMs,
	}
	if err := filters.Validate(); err != nil {
		return printer.Error("invalid filter", err.Error(), nil)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx := context.Background()
	client, err := connectBus(ctx, cfg, cfg.Node.ID)
	if err != nil {
		return err
	}
	defer client.Close()

	if isGetMode {
		err := roster.GetNode(ctx, client, args[0], os.Stdout)
		if roster.IsNotFound(err) {
			return printer.Error(
				err.Error(),
				"The node has never mirrored its state to this Redis.",
				[]string{"List known nodes:\n  tremor nodes", "Start the node with Redis enabled:\n  tremor run --redis"},
			)
		}
		if err != nil {
			return fmt.Errorf("failed to get node: %w", err)
		}
		return nil
	}

	if err := roster.ListNodes(ctx, client, outputFormat, filters, os.Stdout); err != nil {
		return fmt.Errorf("failed to list nodes: %w", err)
	}
	return nil
}
