package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/dyluth/tremor/internal/animation"
	"github.com/dyluth/tremor/internal/bus"
	"github.com/dyluth/tremor/internal/node"
	"github.com/dyluth/tremor/internal/shake"
	"github.com/dyluth/tremor/internal/telemetry"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file read when no --config flag is given.
const DefaultPath = "tremor.yml"

// Telemetry sink names.
const (
	SinkStdout    = "stdout"
	SinkRedis     = "redis"
	SinkWebSocket = "websocket"
)

// Display simulator names.
const (
	DisplayTerm   = "term"
	DisplayMemory = "memory"
)

// TremorConfig represents the top-level tremor.yml configuration
type TremorConfig struct {
	Version   string          `yaml:"version"`
	Node      NodeConfig      `yaml:"node"`
	Timing    TimingConfig    `yaml:"timing"`
	Animation AnimationConfig `yaml:"animation"`
	Shake     shake.Config    `yaml:"shake"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Link      LinkConfig      `yaml:"link"`
	Bus       BusConfig       `yaml:"bus"`
	Bridge    BridgeConfig    `yaml:"bridge"`
	Health    HealthConfig    `yaml:"health"`
}

// NodeConfig describes the node and its (simulated) hardware
type NodeConfig struct {
	ID            string `yaml:"id,omitempty"` // Defaults to a generated "node-xxxxxxxx"
	LEDs          int    `yaml:"leds"`
	DisplayWidth  int    `yaml:"display_width"`
	DisplayHeight int    `yaml:"display_height"`
	Display       string `yaml:"display"`      // "term" or "memory"
	DisplayStep   int    `yaml:"display_step"` // term: pixels per character cell
	QueueCapacity int    `yaml:"queue_capacity"`
	Seed          int64  `yaml:"seed,omitempty"` // Noise accelerometer seed, 0 = time-based
}

// TimingConfig sets the loop periods
type TimingConfig struct {
	SamplePeriod    time.Duration `yaml:"sample_period"`
	AnimationPeriod time.Duration `yaml:"animation_period"`
	RenderPeriod    time.Duration `yaml:"render_period"`
	MirrorPeriod    time.Duration `yaml:"mirror_period"`
	IOTimeout       time.Duration `yaml:"io_timeout"`
	StatsInterval   time.Duration `yaml:"stats_interval"`
}

// AnimationConfig tunes the LED effects
type AnimationConfig struct {
	WinDuration  time.Duration `yaml:"win_duration"`
	LoseDuration time.Duration `yaml:"lose_duration"`
	LoseCycles   int           `yaml:"lose_cycles"`
	Brightness   *int          `yaml:"brightness,omitempty"` // 0-255, default 255
}

// TelemetryConfig selects where shake scores go
type TelemetryConfig struct {
	Interval time.Duration `yaml:"interval"`
	Sinks    []string      `yaml:"sinks"` // stdout, redis, websocket
}

// LinkConfig selects the command line sources; all enabled sources are merged
type LinkConfig struct {
	Stdin     bool   `yaml:"stdin"`
	Serial    string `yaml:"serial,omitempty"`    // Device path, e.g. /dev/ttyACM0
	WebSocket string `yaml:"websocket,omitempty"` // Bridge URL, e.g. ws://host:8765/node
	Redis     bool   `yaml:"redis"`
}

// BusConfig locates the Redis host bus
type BusConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
}

// BridgeConfig configures `tremor bridge`
type BridgeConfig struct {
	Addr       string `yaml:"addr"`
	MaxPlayers int    `yaml:"max_players"`
}

// HealthConfig configures the node's HTTP health endpoint; empty Addr disables it
type HealthConfig struct {
	Addr string `yaml:"addr,omitempty"`
}

// Default returns a valid configuration that needs no file.
func Default() *TremorConfig {
	c := &TremorConfig{Version: "1.0"}
	c.ApplyDefaults()
	return c
}

// ApplyDefaults fills every zero-valued field with its default.
func (c *TremorConfig) ApplyDefaults() {
	nodeDefaults := node.DefaultOptions()
	animDefaults := animation.DefaultOptions()

	if c.Node.ID == "" {
		c.Node.ID = "node-" + uuid.NewString()[:8]
	}
	if c.Node.LEDs == 0 {
		c.Node.LEDs = 10
	}
	if c.Node.DisplayWidth == 0 {
		c.Node.DisplayWidth = 240
	}
	if c.Node.DisplayHeight == 0 {
		c.Node.DisplayHeight = 135
	}
	if c.Node.Display == "" {
		c.Node.Display = DisplayTerm
	}
	if c.Node.DisplayStep == 0 {
		c.Node.DisplayStep = 8
	}
	if c.Node.QueueCapacity == 0 {
		c.Node.QueueCapacity = 8
	}

	if c.Timing.SamplePeriod == 0 {
		c.Timing.SamplePeriod = nodeDefaults.SamplePeriod
	}
	if c.Timing.AnimationPeriod == 0 {
		c.Timing.AnimationPeriod = nodeDefaults.AnimationPeriod
	}
	if c.Timing.RenderPeriod == 0 {
		c.Timing.RenderPeriod = nodeDefaults.RenderPeriod
	}
	if c.Timing.MirrorPeriod == 0 {
		c.Timing.MirrorPeriod = nodeDefaults.MirrorPeriod
	}
	if c.Timing.IOTimeout == 0 {
		c.Timing.IOTimeout = nodeDefaults.IOTimeout
	}
	if c.Timing.StatsInterval == 0 {
		c.Timing.StatsInterval = nodeDefaults.StatsInterval
	}

	if c.Animation.WinDuration == 0 {
		c.Animation.WinDuration = animDefaults.WinDuration
	}
	if c.Animation.LoseDuration == 0 {
		c.Animation.LoseDuration = animDefaults.LoseDuration
	}
	if c.Animation.LoseCycles == 0 {
		c.Animation.LoseCycles = animDefaults.LoseCycles
	}
	if c.Animation.Brightness == nil {
		b := int(animDefaults.Brightness)
		c.Animation.Brightness = &b
	}

	if c.Shake.Strategy == "" {
		c.Shake.Strategy = shake.StrategyFrequency
	}

	if c.Telemetry.Interval == 0 {
		c.Telemetry.Interval = telemetry.DefaultInterval
	}
	if c.Telemetry.Sinks == nil {
		c.Telemetry.Sinks = []string{SinkStdout}
	}

	if !c.Link.Stdin && c.Link.Serial == "" && c.Link.WebSocket == "" && !c.Link.Redis {
		c.Link.Stdin = true
	}

	if c.Bus.Addr == "" {
		c.Bus.Addr = "localhost:6379"
	}
	if c.Bridge.Addr == "" {
		c.Bridge.Addr = ":8765"
	}
	if c.Bridge.MaxPlayers == 0 {
		c.Bridge.MaxPlayers = 4
	}
}

// Validate performs strict validation on the configuration
func (c *TremorConfig) Validate() error {
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	if err := bus.ValidateNodeID(c.Node.ID); err != nil {
		return fmt.Errorf("node.id: %w", err)
	}
	if c.Node.LEDs < 1 {
		return fmt.Errorf("node.leds must be >= 1, got %d", c.Node.LEDs)
	}
	if c.Node.DisplayWidth < 1 || c.Node.DisplayHeight < 1 {
		return fmt.Errorf("node.display_width and node.display_height must be >= 1")
	}
	if c.Node.Display != DisplayTerm && c.Node.Display != DisplayMemory {
		return fmt.Errorf("invalid node.display: %s (must be '%s' or '%s')", c.Node.Display, DisplayTerm, DisplayMemory)
	}
	if c.Node.DisplayStep < 1 {
		return fmt.Errorf("node.display_step must be >= 1, got %d", c.Node.DisplayStep)
	}
	if c.Node.QueueCapacity < node.MinQueueCapacity {
		return fmt.Errorf("node.queue_capacity must be >= %d, got %d", node.MinQueueCapacity, c.Node.QueueCapacity)
	}

	for name, d := range map[string]time.Duration{
		"timing.sample_period":    c.Timing.SamplePeriod,
		"timing.animation_period": c.Timing.AnimationPeriod,
		"timing.render_period":    c.Timing.RenderPeriod,
		"timing.mirror_period":    c.Timing.MirrorPeriod,
		"timing.io_timeout":       c.Timing.IOTimeout,
		"timing.stats_interval":   c.Timing.StatsInterval,
		"animation.win_duration":  c.Animation.WinDuration,
		"animation.lose_duration": c.Animation.LoseDuration,
		"telemetry.interval":      c.Telemetry.Interval,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}

	if c.Animation.LoseCycles < 1 {
		return fmt.Errorf("animation.lose_cycles must be >= 1, got %d", c.Animation.LoseCycles)
	}
	if b := c.Animation.Brightness; b == nil || *b < 0 || *b > 255 {
		return fmt.Errorf("animation.brightness must be within 0-255")
	}

	if err := c.Shake.Validate(); err != nil {
		return err
	}

	for _, s := range c.Telemetry.Sinks {
		switch s {
		case SinkStdout, SinkRedis:
		case SinkWebSocket:
			if c.Link.WebSocket == "" {
				return fmt.Errorf("telemetry sink 'websocket' requires link.websocket")
			}
		default:
			return fmt.Errorf("unknown telemetry sink: %s (must be '%s', '%s' or '%s')", s, SinkStdout, SinkRedis, SinkWebSocket)
		}
	}

	if !c.Link.Stdin && c.Link.Serial == "" && c.Link.WebSocket == "" && !c.Link.Redis {
		return fmt.Errorf("no command source enabled (set link.stdin, link.serial, link.websocket or link.redis)")
	}

	if c.Bridge.MaxPlayers < 1 {
		return fmt.Errorf("bridge.max_players must be >= 1, got %d", c.Bridge.MaxPlayers)
	}

	return nil
}

// UsesRedis reports whether any enabled component needs the Redis bus.
func (c *TremorConfig) UsesRedis() bool {
	if c.Link.Redis {
		return true
	}
	for _, s := range c.Telemetry.Sinks {
		if s == SinkRedis {
			return true
		}
	}
	return false
}

// NodeOptions converts the timing section into engine options.
func (c *TremorConfig) NodeOptions() node.Options {
	opts := node.DefaultOptions()
	opts.SamplePeriod = c.Timing.SamplePeriod
	opts.AnimationPeriod = c.Timing.AnimationPeriod
	opts.RenderPeriod = c.Timing.RenderPeriod
	opts.MirrorPeriod = c.Timing.MirrorPeriod
	opts.IOTimeout = c.Timing.IOTimeout
	opts.StatsInterval = c.Timing.StatsInterval
	return opts
}

// AnimationOptions converts the animation section into driver options.
func (c *TremorConfig) AnimationOptions() animation.Options {
	return animation.Options{
		WinDuration:  c.Animation.WinDuration,
		LoseDuration: c.Animation.LoseDuration,
		LoseCycles:   c.Animation.LoseCycles,
		Brightness:   uint8(*c.Animation.Brightness),
	}
}

// ApplyEnv overrides fields from TREMOR_* environment variables.
func (c *TremorConfig) ApplyEnv() error {
	str := map[string]*string{
		"TREMOR_NODE_ID":        &c.Node.ID,
		"TREMOR_SERIAL":         &c.Link.Serial,
		"TREMOR_WEBSOCKET_URL":  &c.Link.WebSocket,
		"TREMOR_REDIS_ADDR":     &c.Bus.Addr,
		"TREMOR_REDIS_PASSWORD": &c.Bus.Password,
		"TREMOR_SHAKE_STRATEGY": &c.Shake.Strategy,
		"TREMOR_HEALTH_ADDR":    &c.Health.Addr,
		"TREMOR_BRIDGE_ADDR":    &c.Bridge.Addr,
	}
	for key, field := range str {
		if v, ok := os.LookupEnv(key); ok {
			*field = v
		}
	}

	if v, ok := os.LookupEnv("TREMOR_REDIS_DB"); ok {
		db, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid TREMOR_REDIS_DB: %w", err)
		}
		c.Bus.DB = db
	}
	if v, ok := os.LookupEnv("TREMOR_TELEMETRY_INTERVAL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid TREMOR_TELEMETRY_INTERVAL: %w", err)
		}
		c.Telemetry.Interval = d
	}
	return nil
}

// LoadDotEnv loads variables from a .env file into the environment without
// overriding variables already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Load reads tremor.yml from path, applies defaults and environment overrides, and validates it
func Load(path string) (*TremorConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config TremorConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	config.ApplyDefaults()
	if err := config.ApplyEnv(); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}
