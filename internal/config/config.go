package config

import (
	"fmt"
	"os"
	"time"

	"github.com/me/rrsim/pkg/model"
	"gopkg.in/yaml.v3"
)

// ServerConfig holds configuration for the rrsim server.
type ServerConfig struct {
	Addr      string // Listen address (default ":8080")
	LogLevel  string // Log level: debug, info, warn, error
	LogFormat string // Log format: text, json
	DBPath    string // SQLite database path (default ":memory:")

	Simulation SimulationDefaults
}

// SimulationDefaults bounds and paces simulations created through the server.
type SimulationDefaults struct {
	Quantum      int           // Quantum used when a create request omits one
	TickInterval time.Duration // Auto-play cadence
	MaxProcesses int           // Per-simulation process cap (0 = unlimited)
}

// DefaultServerConfig returns sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:      ":8080",
		LogLevel:  "info",
		LogFormat: "text",
		DBPath:    ":memory:",
		Simulation: SimulationDefaults{
			Quantum:      2,
			TickInterval: time.Second,
			MaxProcesses: 64,
		},
	}
}

// File is the on-disk YAML layout. Empty fields leave the existing value alone.
type File struct {
	Addr      string `yaml:"addr"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	DBPath    string `yaml:"db_path"`

	Simulation struct {
		Quantum      int    `yaml:"quantum"`
		TickInterval string `yaml:"tick_interval"`
		MaxProcesses *int   `yaml:"max_processes"`
	} `yaml:"simulation"`
}

// LoadFile reads a YAML config file at path and applies it on top of cfg.
func LoadFile(path string, cfg ServerConfig) (ServerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return f.Apply(cfg)
}

// Apply overlays the non-empty fields of f on cfg.
func (f *File) Apply(cfg ServerConfig) (ServerConfig, error) {
	if f.Addr != "" {
		cfg.Addr = f.Addr
	}
	if f.LogLevel != "" {
		cfg.LogLevel = f.LogLevel
	}
	if f.LogFormat != "" {
		cfg.LogFormat = f.LogFormat
	}
	if f.DBPath != "" {
		cfg.DBPath = f.DBPath
	}

	sim := f.Simulation
	if sim.Quantum != 0 {
		if err := model.ValidateQuantum(sim.Quantum); err != nil {
			return cfg, fmt.Errorf("simulation.quantum: %w", err)
		}
		cfg.Simulation.Quantum = sim.Quantum
	}
	if sim.TickInterval != "" {
		d, err := time.ParseDuration(sim.TickInterval)
		if err != nil {
			return cfg, fmt.Errorf("simulation.tick_interval: %w", err)
		}
		if d <= 0 {
			return cfg, fmt.Errorf("simulation.tick_interval must be positive, got %s", d)
		}
		cfg.Simulation.TickInterval = d
	}
	if sim.MaxProcesses != nil {
		if *sim.MaxProcesses < 0 {
			return cfg, fmt.Errorf("simulation.max_processes must be >= 0, got %d", *sim.MaxProcesses)
		}
		cfg.Simulation.MaxProcesses = *sim.MaxProcesses
	}
	return cfg, nil
}
