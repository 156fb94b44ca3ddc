package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// RingConfig holds placement ring configuration
type RingConfig struct {
	Name              string `yaml:"name"`
	Strategy          string `yaml:"strategy"`
	HashSeed          uint32 `yaml:"hash_seed"`
	ExpectedNodeCount int    `yaml:"expected_node_count"`
	Quorum            string `yaml:"quorum"`
	VnodeMultiplier   uint32 `yaml:"vnode_multiplier"`
	VnodeMin          uint32 `yaml:"vnode_min"`
	VnodeMax          uint32 `yaml:"vnode_max"`
}

// NodeEntry describes one static ring member
type NodeEntry struct {
	ID       uint64 `yaml:"id"`
	Name     string `yaml:"name"`
	Address  string `yaml:"address"`
	Weight   uint32 `yaml:"weight"`
	Capacity uint64 `yaml:"capacity"`
	Rack     uint32 `yaml:"rack"`
	AZ       uint32 `yaml:"az"`
	Region   uint32 `yaml:"region"`
}

// KeySpaceEntry describes one keyspace to provision at startup
type KeySpaceEntry struct {
	Name   string `yaml:"name"`
	Quorum string `yaml:"quorum"`
}

// WheelConfig holds timer wheel configuration
type WheelConfig struct {
	RepeatMode     string        `yaml:"repeat_mode"`
	TickInterval   time.Duration `yaml:"tick_interval"`
	HealthInterval time.Duration `yaml:"health_interval"`
	StatsInterval  time.Duration `yaml:"stats_interval"`
}

// WorkloadConfig holds synthetic workload configuration
type WorkloadConfig struct {
	Enabled   bool          `yaml:"enabled"`
	KeyCount  int           `yaml:"key_count"`
	Interval  time.Duration `yaml:"interval"`
	FlapNodes bool          `yaml:"flap_nodes"`
	FlapEvery time.Duration `yaml:"flap_every"`
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config represents the complete configuration for the simulator
type Config struct {
	Ring      RingConfig      `yaml:"ring"`
	Nodes     []NodeEntry     `yaml:"nodes"`
	KeySpaces []KeySpaceEntry `yaml:"keyspaces"`
	Wheel     WheelConfig     `yaml:"wheel"`
	Workload  WorkloadConfig  `yaml:"workload"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoadConfig loads configuration from a file
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Set defaults if not specified
	setDefaults(&cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default values for unspecified configuration
func setDefaults(cfg *Config) {
	if cfg.Ring.Name == "" {
		cfg.Ring.Name = "default"
	}
	if cfg.Ring.Strategy == "" {
		cfg.Ring.Strategy = "ketama"
	}
	if cfg.Ring.Quorum == "" {
		cfg.Ring.Quorum = "balanced"
	}

	if cfg.Wheel.RepeatMode == "" {
		cfg.Wheel.RepeatMode = "strict"
	}
	if cfg.Wheel.TickInterval == 0 {
		cfg.Wheel.TickInterval = time.Millisecond
	}
	if cfg.Wheel.HealthInterval == 0 {
		cfg.Wheel.HealthInterval = 5 * time.Second
	}
	if cfg.Wheel.StatsInterval == 0 {
		cfg.Wheel.StatsInterval = 30 * time.Second
	}

	if cfg.Workload.KeyCount == 0 {
		cfg.Workload.KeyCount = 1000
	}
	if cfg.Workload.Interval == 0 {
		cfg.Workload.Interval = 100 * time.Millisecond
	}
	if cfg.Workload.FlapEvery == 0 {
		cfg.Workload.FlapEvery = time.Minute
	}

	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = 9090
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Ring.Strategy {
	case "ketama", "rendezvous", "jump", "maglev", "bounded":
	default:
		return fmt.Errorf("ring.strategy %q is not supported", c.Ring.Strategy)
	}
	switch c.Ring.Quorum {
	case "strong", "eventual", "balanced", "read_heavy", "write_heavy":
	default:
		return fmt.Errorf("ring.quorum %q is not supported", c.Ring.Quorum)
	}
	switch c.Wheel.RepeatMode {
	case "strict", "drift":
	default:
		return fmt.Errorf("wheel.repeat_mode %q is not supported", c.Wheel.RepeatMode)
	}
	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535")
	}
	seen := make(map[uint64]bool, len(c.Nodes))
	for _, n := range c.Nodes {
		if seen[n.ID] {
			return fmt.Errorf("duplicate node id %d", n.ID)
		}
		seen[n.ID] = true
	}
	return nil
}
