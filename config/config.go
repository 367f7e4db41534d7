// Package config provides configuration loading and access for the shape
// cycle, the growth engine and the viewers.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all configuration parameters.
type Config struct {
	Screen    ScreenConfig    `yaml:"screen"`
	Particles ParticlesConfig `yaml:"particles"`
	Grid      GridConfig      `yaml:"grid"`
	NCA       NCAConfig       `yaml:"nca"`
	Transport TransportConfig `yaml:"transport"`
	Cycle     CycleConfig     `yaml:"cycle"`
	Physics   PhysicsConfig   `yaml:"physics"`
	Server    ServerConfig    `yaml:"server"`
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// ScreenConfig holds display settings for the graphical viewer.
type ScreenConfig struct {
	Width     int `yaml:"width"`
	Height    int `yaml:"height"`
	TargetFPS int `yaml:"target_fps"`
}

// ParticlesConfig holds swarm size settings.
type ParticlesConfig struct {
	Count        int `yaml:"count"`         // N, particles in every published buffer
	PreviewCount int `yaml:"preview_count"` // particles simulated by the local viewer (0 = Count)
}

// GridConfig holds density grid settings.
type GridConfig struct {
	Size int `yaml:"size"` // H = W of every goal and grown grid
}

// NCAConfig holds growth engine parameters.
type NCAConfig struct {
	Channels        int     `yaml:"channels"`
	Hidden          int     `yaml:"hidden"`
	Rounds          int     `yaml:"rounds"`
	FireRate        float64 `yaml:"fire_rate"`
	SeedNoise       float64 `yaml:"seed_noise"`
	Clamp           float64 `yaml:"clamp"` // state bound, symmetric
	ReadoutGain     float64 `yaml:"readout_gain"`
	ReadoutMidpoint float64 `yaml:"readout_midpoint"`
	Weights         string  `yaml:"weights"` // optional JSON export; empty = untrained
}

// TransportConfig holds representative sampling and assignment parameters.
type TransportConfig struct {
	Representatives int     `yaml:"representatives"` // K
	Jitter          float64 `yaml:"jitter"`          // NDC std added per particle
	FloorFraction   float64 `yaml:"floor_fraction"`  // density floor as a share of the peak
}

// CycleConfig holds the shape sequence.
type CycleConfig struct {
	Shapes      []string `yaml:"shapes"`
	IntervalSec float64  `yaml:"interval_sec"` // dwell per shape, including compute time
}

// PhysicsConfig holds viewer-side particle physics. AttractK is also sent
// to remote viewers with every shape.
type PhysicsConfig struct {
	AttractK float64 `yaml:"attract_k"`
	Spring   float64 `yaml:"spring"`
	Damping  float64 `yaml:"damping"`
}

// ServerConfig holds websocket listener settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// TelemetryConfig holds telemetry and logging parameters.
type TelemetryConfig struct {
	PerfWindow     int     `yaml:"perf_window"`      // transitions averaged by the perf collector
	StatsWindowSec float64 `yaml:"stats_window_sec"` // wall-clock window for aggregate stats
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	Interval     time.Duration // Cycle.IntervalSec
	StatsWindow  time.Duration // Telemetry.StatsWindowSec
	Addr         string        // host:port
	PreviewCount int           // effective local particle count
	ScreenW32    float32
	ScreenH32    float32
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Only overwrites fields present in the file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	cfg.computeDerived()

	return cfg, nil
}

// Validate checks ranges that would otherwise surface as panics deep in
// the growth engine or sampler. The K ≤ N requirement is left to the
// orchestrator, which reports it with its own error.
func (c *Config) Validate() error {
	var errs []error
	positive := func(name string, v int) {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", name, v))
		}
	}
	positive("particles.count", c.Particles.Count)
	positive("grid.size", c.Grid.Size)
	positive("nca.channels", c.NCA.Channels)
	positive("nca.hidden", c.NCA.Hidden)
	positive("nca.rounds", c.NCA.Rounds)
	positive("transport.representatives", c.Transport.Representatives)

	if c.NCA.FireRate < 0 || c.NCA.FireRate > 1 {
		errs = append(errs, fmt.Errorf("nca.fire_rate must be in [0,1], got %g", c.NCA.FireRate))
	}
	if c.NCA.Clamp <= 0 {
		errs = append(errs, fmt.Errorf("nca.clamp must be positive, got %g", c.NCA.Clamp))
	}
	if c.Transport.Jitter < 0 || c.Transport.FloorFraction < 0 {
		errs = append(errs, errors.New("transport.jitter and transport.floor_fraction must be non-negative"))
	}
	if len(c.Cycle.Shapes) == 0 {
		errs = append(errs, errors.New("cycle.shapes is empty"))
	}
	if c.Cycle.IntervalSec < 0 {
		errs = append(errs, fmt.Errorf("cycle.interval_sec must be non-negative, got %g", c.Cycle.IntervalSec))
	}
	return errors.Join(errs...)
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	c.Derived.Interval = time.Duration(c.Cycle.IntervalSec * float64(time.Second))
	c.Derived.StatsWindow = time.Duration(c.Telemetry.StatsWindowSec * float64(time.Second))
	c.Derived.Addr = net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
	c.Derived.ScreenW32 = float32(c.Screen.Width)
	c.Derived.ScreenH32 = float32(c.Screen.Height)

	c.Derived.PreviewCount = c.Particles.PreviewCount
	if c.Derived.PreviewCount <= 0 || c.Derived.PreviewCount > c.Particles.Count {
		c.Derived.PreviewCount = c.Particles.Count
	}
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
