package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dyluth/tremor/internal/bus"
	"github.com/dyluth/tremor/internal/command"
	"github.com/dyluth/tremor/internal/printer"
	"github.com/dyluth/tremor/internal/watch"
	"github.com/spf13/cobra"
)

var (
	sendNode  string
	sendAll   bool
	sendForce bool
	sendWait  time.Duration
)

var sendCmd = &cobra.Command{
	Use:   "send LINE",
	Short: "Send a command line to nodes over Redis",
	Long: `Publish one command line to a node's command channel, or to every node.

Nodes must be running with --redis to receive it. Lines a node would not
understand are refused unless --force is given.

Examples:
  tremor send --node node-1a2b3c4d '{"player_color":[255,0,128]}'
  tremor send --all '{"light":"green"}'
  tremor send --all NEW_GAME

  # Wait until the node has applied the update
  tremor send --node node-1a2b3c4d --wait 5s '{"progress":60}'`,
	Args: cobra.ExactArgs(1),
	RunE: runSend,
}

func init() {
	sendCmd.Flags().StringVarP(&sendNode, "node", "n", "", "Target node ID")
	sendCmd.Flags().BoolVar(&sendAll, "all", false, "Broadcast to every node")
	sendCmd.Flags().BoolVar(&sendForce, "force", false, "Send even if the line is not a recognized command")
	sendCmd.Flags().DurationVar(&sendWait, "wait", 0, "With --node, wait up to this long for the node to mirror a newer state")

	rootCmd.AddCommand(sendCmd)
}

func runSend(cmd *cobra.Command, args []string) error {
	line := strings.TrimSpace(args[0])

	if sendAll == (sendNode != "") {
		return printer.Error(
			"choose one target",
			"Exactly one of --node or --all is required.",
			[]string{"tremor send --node <id> LINE", "tremor send --all LINE"},
		)
	}
	if sendWait > 0 && sendAll {
		return printer.Error("--wait needs --node", "Waiting is only supported for a single node.", nil)
	}
	if !sendForce && !command.Parse([]byte(line)).Recognized {
		return printer.Error(
			"unrecognized command",
			fmt.Sprintf("Nodes would ignore %q.", line),
			[]string{
				`Send a JSON object such as {"light":"green"} or a token such as WINNER`,
				"Send it anyway with --force",
			},
		)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// The client's node ID is the publish target; for broadcasts it is unused.
	target := sendNode
	if sendAll {
		target = cfg.Node.ID
	}

	ctx := context.Background()
	client, err := connectBus(ctx, cfg, target)
	if err != nil {
		return err
	}
	defer client.Close()

	var before uint64
	if sendWait > 0 {
		if ns, err := client.GetState(ctx, target); err == nil {
			before = ns.State.Version
		} else if !bus.IsNotFound(err) {
			return fmt.Errorf("failed to read node state: %w", err)
		}
	}

	var receivers int64
	if sendAll {
		receivers, err = client.Broadcast(ctx, line)
	} else {
		receivers, err = client.SendCommand(ctx, line)
	}
	if err != nil {
		return fmt.Errorf("failed to send command: %w", err)
	}

	if receivers == 0 {
		printer.Warning("sent, but no node is listening\n")
		return nil
	}
	printer.Success("delivered to %d subscriber(s)\n", receivers)

	if sendWait > 0 {
		ns, err := watch.PollForState(ctx, client, target, sendWait, func(ns *bus.NodeState) bool {
			return ns.State.Version > before
		})
		if err != nil {
			return printer.Error(
				"node did not apply the command",
				err.Error(),
				[]string{"Check that the node mirrors state (tremor run --redis)"},
			)
		}
		printer.Success("applied: light=%s progress=%d v%d\n", ns.State.Light, ns.State.PlayerProgress, ns.State.Version)
	}
	return nil
}
