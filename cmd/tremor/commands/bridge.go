package commands

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dyluth/tremor/internal/bridge"
	"github.com/dyluth/tremor/internal/printer"
	"github.com/spf13/cobra"
)

var (
	bridgeAddr       string
	bridgeMaxPlayers int
)

var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Relay between host consoles and nodes over websockets",
	Long: `Run a websocket bridge between host consoles and controller nodes.

Nodes connect to /node and are numbered 1..max-players. Consoles connect to
/console. A console message with "player_id" goes to that player only; any
other JSON object goes to every node. Each line a node sends reaches every
console as {"player": n, "data": line}.

Examples:
  tremor bridge --addr :8765
  tremor run --websocket ws://localhost:8765/node --sink websocket`,
	RunE: runBridge,
}

func init() {
	bridgeCmd.Flags().StringVar(&bridgeAddr, "addr", "", "Listen address (overrides bridge.addr)")
	bridgeCmd.Flags().IntVar(&bridgeMaxPlayers, "max-players", 0, "Player slots (overrides bridge.max_players)")

	rootCmd.AddCommand(bridgeCmd)
}

func runBridge(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("addr") {
		cfg.Bridge.Addr = bridgeAddr
	}
	if cmd.Flags().Changed("max-players") {
		cfg.Bridge.MaxPlayers = bridgeMaxPlayers
	}
	if err := cfg.Validate(); err != nil {
		return printer.Error("invalid configuration", err.Error(), nil)
	}

	hub := bridge.NewHub(cfg.Bridge.MaxPlayers)
	go hub.Run()
	defer hub.Stop()

	server := bridge.NewServer(hub, cfg.Bridge.Addr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	serveDone := make(chan error, 1)
	go func() {
		serveDone <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigCh:
		log.Printf("[INFO] Received signal: %v", sig)
	case err := <-serveDone:
		if err != nil {
			return printer.ErrorWithContext("bridge failed", err.Error(), map[string]string{"Address": cfg.Bridge.Addr}, nil)
		}
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("[WARN] Bridge shutdown: %v", err)
	}
	return nil
}
