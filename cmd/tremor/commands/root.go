package commands

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/dyluth/tremor/internal/bus"
	"github.com/dyluth/tremor/internal/config"
	"github.com/dyluth/tremor/internal/printer"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

var (
	version string
	commit  string
	date    string

	configPath string
	envFile    string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tremor",
	Short: "Tremor - motion-sensing game controller node",
	Long: `Tremor runs a battery-powered motion-sensing game controller node.

A node reads newline-delimited commands from its host link (stdin, a serial
device, a websocket bridge or Redis), shows the game state on an LED strip and
a small display, and reports how hard the controller is being shaken.

Hardware is simulated: the display renders to the terminal and the
accelerometer produces noise with occasional shake bursts.`,
	Version: version,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
	// Enable strict flag parsing - unknown flags will cause an error
	FParseErrWhitelist: cobra.FParseErrWhitelist{},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	// We print formatted colored errors directly in the printer package
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Path to tremor.yml (defaults are used if the default file is absent)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Load TREMOR_* variables from this file if it exists")
}

// loadConfig loads the .env file and tremor.yml. A missing config file is only an
// error when --config was given explicitly.
func loadConfig(cmd *cobra.Command) (*config.TremorConfig, error) {
	if err := config.LoadDotEnv(envFile); err != nil {
		return nil, printer.Error("failed to load environment file", err.Error(), nil)
	}

	cfg, err := config.Load(configPath)
	if err == nil {
		return cfg, nil
	}

	if !errors.Is(err, fs.ErrNotExist) || cmd.Flags().Changed("config") {
		return nil, printer.Error(
			"invalid configuration",
			err.Error(),
			[]string{fmt.Sprintf("Check %s against the documented sections: node, timing, animation, shake, telemetry, link, bus, bridge, health", configPath)},
		)
	}

	cfg = config.Default()
	if err := cfg.ApplyEnv(); err != nil {
		return nil, printer.Error("invalid environment", err.Error(), nil)
	}
	if err := cfg.Validate(); err != nil {
		return nil, printer.Error("invalid configuration", err.Error(), nil)
	}
	return cfg, nil
}

// connectBus creates a bus client for nodeID and verifies Redis is reachable.
func connectBus(ctx context.Context, cfg *config.TremorConfig, nodeID string) (*bus.Client, error) {
	client, err := bus.NewClient(&redis.Options{
		Addr:     cfg.Bus.Addr,
		Password: cfg.Bus.Password,
		DB:       cfg.Bus.DB,
	}, nodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to create bus client: %w", err)
	}

	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, printer.ErrorWithContext(
			"Redis connection failed",
			fmt.Sprintf("Could not connect to Redis at %s", cfg.Bus.Addr),
			map[string]string{"Error": err.Error()},
			[]string{
				"Start a local Redis:\n  docker run -p 6379:6379 redis:7",
				"Point at another server:\n  TREMOR_REDIS_ADDR=host:6379",
			},
		)
	}
	return client, nil
}
