package commands

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dyluth/tremor/internal/printer"
	"github.com/dyluth/tremor/internal/shake"
	"github.com/dyluth/tremor/internal/watch"
	"github.com/spf13/cobra"
)

var (
	watchOutputFormat string
	watchMatch        string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream shake scores published by nodes",
	Long: `Stream shake scores from every node running with --sink redis.

Examples:
  # Live bars for every node
  tremor watch

  # Only some nodes, as JSON
  tremor watch --match 'node-1*' -o jsonl`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchOutputFormat, "output", "o", "default", "Output format: default or jsonl")
	watchCmd.Flags().StringVar(&watchMatch, "match", "", "Filter by node ID (glob pattern)")

	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	var format watch.OutputFormat
	switch watchOutputFormat {
	case "default":
		format = watch.OutputFormatDefault
	case "jsonl":
		format = watch.OutputFormatJSONL
	default:
		return printer.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", watchOutputFormat),
			[]string{"Valid formats: default, jsonl"},
		)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := connectBus(ctx, cfg, cfg.Node.ID)
	if err != nil {
		return err
	}
	defer client.Close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			log.Printf("[INFO] Received signal: %v", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	top := 100
	if cfg.Shake.Strategy == shake.StrategyBucket {
		top = shake.MaxBucketLevel
	}

	opts := watch.StreamOptions{Format: format, NodeGlob: watchMatch, Top: top}
	if err := watch.StreamScores(ctx, client, opts, os.Stdout); err != nil {
		return fmt.Errorf("watch failed: %w", err)
	}
	return nil
}
