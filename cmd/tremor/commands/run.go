package commands

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dyluth/tremor/internal/animation"
	"github.com/dyluth/tremor/internal/bus"
	"github.com/dyluth/tremor/internal/config"
	"github.com/dyluth/tremor/internal/hw"
	"github.com/dyluth/tremor/internal/hw/sim"
	"github.com/dyluth/tremor/internal/link"
	"github.com/dyluth/tremor/internal/node"
	"github.com/dyluth/tremor/internal/printer"
	"github.com/dyluth/tremor/internal/render"
	"github.com/dyluth/tremor/internal/shake"
	"github.com/dyluth/tremor/internal/telemetry"
	"github.com/dyluth/tremor/pkg/gamestate"
	"github.com/spf13/cobra"
)

var (
	runNodeID    string
	runSerial    string
	runWebSocket string
	runRedis     bool
	runNoStdin   bool
	runDisplay   string
	runHealth    string
	runSinks     []string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a controller node",
	Long: `Run a controller node until interrupted.

Command sources (merged with stdin unless --no-stdin is given):
  --serial     read lines from a serial device
  --websocket  connect to a bridge, e.g. ws://host:8765/node
  --redis      subscribe to tremor:{node}:commands and tremor:commands

Telemetry sinks (--sink, repeatable):
  stdout     one score per line on stdout
  redis      publish on tremor:{node}:shake
  websocket  send back over the --websocket link

Examples:
  # Drive a node by hand
  echo '{"light":"green","progress":40}' | tremor run

  # Join a bridge and report scores over it
  tremor run --websocket ws://localhost:8765/node --sink websocket`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runNodeID, "node-id", "", "Node ID (overrides node.id)")
	runCmd.Flags().StringVar(&runSerial, "serial", "", "Serial device to read commands from")
	runCmd.Flags().StringVar(&runWebSocket, "websocket", "", "Bridge websocket URL")
	runCmd.Flags().BoolVar(&runRedis, "redis", false, "Receive commands over Redis")
	runCmd.Flags().BoolVar(&runNoStdin, "no-stdin", false, "Do not read commands from stdin")
	runCmd.Flags().StringVar(&runDisplay, "display", "", "Display simulator: term or memory")
	runCmd.Flags().StringVar(&runHealth, "health", "", "Serve /healthz and /stats on this address")
	runCmd.Flags().StringSliceVar(&runSinks, "sink", nil, "Telemetry sinks: stdout, redis, websocket")

	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := applyRunFlags(cmd, cfg); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt, err := buildNode(ctx, cfg, os.Stdin, os.Stdout, os.Stderr)
	if err != nil {
		return err
	}
	defer rt.Close()

	var health *node.HealthServer
	if cfg.Health.Addr != "" {
		health = node.NewHealthServer(rt.engine, cfg.Health.Addr)
		if err := health.Start(); err != nil {
			return printer.Error("failed to start health server", err.Error(), nil)
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	log.Printf("[INFO] Node %s running (shake: %s, sinks: %v)", cfg.Node.ID, cfg.Shake.Strategy, cfg.Telemetry.Sinks)

	engineDone := make(chan error, 1)
	go func() {
		engineDone <- rt.engine.Start(ctx)
	}()

	select {
	case sig := <-sigCh:
		log.Printf("[INFO] Received signal: %v", sig)
		cancel()
		err = <-engineDone
	case err = <-engineDone:
	}

	if health != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := health.Shutdown(shutdownCtx); err != nil {
			log.Printf("[WARN] Health server shutdown: %v", err)
		}
	}

	if err != nil {
		return fmt.Errorf("node stopped: %w", err)
	}
	return nil
}

// applyRunFlags overlays explicitly set flags onto cfg and revalidates it.
func applyRunFlags(cmd *cobra.Command, cfg *config.TremorConfig) error {
	flags := cmd.Flags()
	if flags.Changed("node-id") {
		cfg.Node.ID = runNodeID
	}
	if flags.Changed("serial") {
		cfg.Link.Serial = runSerial
	}
	if flags.Changed("websocket") {
		cfg.Link.WebSocket = runWebSocket
	}
	if flags.Changed("redis") {
		cfg.Link.Redis = runRedis
	}
	if flags.Changed("display") {
		cfg.Node.Display = runDisplay
	}
	if flags.Changed("health") {
		cfg.Health.Addr = runHealth
	}
	if flags.Changed("sink") {
		cfg.Telemetry.Sinks = runSinks
	}

	if runNoStdin {
		cfg.Link.Stdin = false
	}

	if err := cfg.Validate(); err != nil {
		return printer.Error("invalid configuration", err.Error(), nil)
	}
	return nil
}

// nodeRuntime is a fully wired engine plus the resources it must release.
type nodeRuntime struct {
	engine  *node.Engine
	strip   *sim.Strip
	display hw.Display
	closers []io.Closer
}

func (rt *nodeRuntime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i].Close(); err != nil {
			log.Printf("[WARN] Cleanup: %v", err)
		}
	}
}

// buildNode wires simulated hardware, command sources, telemetry sinks and the
// engine from cfg. ctx bounds the lifetime of the sources.
func buildNode(ctx context.Context, cfg *config.TremorConfig, in io.Reader, out, term io.Writer) (*nodeRuntime, error) {
	rt := &nodeRuntime{}
	ok := false
	defer func() {
		if !ok {
			rt.Close()
		}
	}()

	var busClient *bus.Client
	if cfg.UsesRedis() {
		c, err := connectBus(ctx, cfg, cfg.Node.ID)
		if err != nil {
			return nil, err
		}
		busClient = c
		rt.closers = append(rt.closers, c)
	}

	var sources []link.Source
	var ws *link.WebSocket
	if cfg.Link.Stdin {
		sources = append(sources, link.NewReaderSource(ctx, in))
	}
	if cfg.Link.Serial != "" {
		src, err := link.OpenSerial(ctx, cfg.Link.Serial)
		if err != nil {
			return nil, printer.ErrorWithContext(
				"failed to open serial device",
				err.Error(),
				map[string]string{"Device": cfg.Link.Serial},
				[]string{"Check the device path and that your user can read it (e.g. the dialout group)"},
			)
		}
		sources = append(sources, src)
		rt.closers = append(rt.closers, src)
	}
	if cfg.Link.WebSocket != "" {
		c, err := link.DialWebSocket(ctx, cfg.Link.WebSocket, nil)
		if err != nil {
			return nil, printer.ErrorWithContext(
				"failed to connect to bridge",
				err.Error(),
				map[string]string{"URL": cfg.Link.WebSocket},
				[]string{"Start a bridge:\n  tremor bridge"},
			)
		}
		ws = c
		sources = append(sources, c)
		rt.closers = append(rt.closers, c)
	}
	if cfg.Link.Redis {
		sub, err := busClient.SubscribeCommands(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to subscribe to node commands: %w", err)
		}
		sources = append(sources, sub)
		rt.closers = append(rt.closers, sub)
	}

	var sinks []telemetry.Sink
	for _, name := range cfg.Telemetry.Sinks {
		switch name {
		case config.SinkStdout:
			sinks = append(sinks, telemetry.NewWriterSink(out))
		case config.SinkRedis:
			sinks = append(sinks, telemetry.NewRedisSink(busClient))
		case config.SinkWebSocket:
			sinks = append(sinks, ws)
		}
	}

	var mirror *telemetry.Mirror
	if busClient != nil {
		mirror = telemetry.NewMirror(busClient)
	}

	scorer, err := shake.New(cfg.Shake)
	if err != nil {
		return nil, fmt.Errorf("failed to create scorer: %w", err)
	}

	queue, err := node.NewEventQueue(cfg.Node.QueueCapacity)
	if err != nil {
		return nil, err
	}

	seed := cfg.Node.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	rt.strip = sim.NewStrip(cfg.Node.LEDs, 1)
	if cfg.Node.Display == config.DisplayMemory {
		rt.display = sim.NewMemDisplay(cfg.Node.DisplayWidth, cfg.Node.DisplayHeight)
	} else {
		rt.display = sim.NewTermDisplay(term, cfg.Node.DisplayWidth, cfg.Node.DisplayHeight, cfg.Node.DisplayStep)
	}

	store := gamestate.NewStore()
	engine, err := node.New(cfg.NodeOptions(), node.Deps{
		Store:         store,
		Queue:         queue,
		Source:        link.Merge(ctx, sources...),
		Accelerometer: sim.NewNoiseAccelerometer(seed),
		Scorer:        scorer,
		Publisher:     telemetry.NewPublisher(cfg.Telemetry.Interval, sinks...),
		Mirror:        mirror,
		Driver:        animation.NewDriver(store, rt.strip, &sim.Haptic{}, cfg.AnimationOptions()),
		Renderer:      render.New(store, rt.display),
	})
	if err != nil {
		return nil, err
	}
	rt.engine = engine

	ok = true
	return rt, nil
}
