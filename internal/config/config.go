// Package config loads, validates and normalizes the yaml configuration
// for the monitor daemon.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Monitor MonitorConfig `yaml:"monitor"`
}

// ---- MONITOR ----

type MonitorConfig struct {
	Connection ConnectionConfig `yaml:"connection"`
	Poll       PollConfig       `yaml:"poll"`
	Groups     []GroupConfig    `yaml:"groups"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	LogLevel   string           `yaml:"log_level"`
}

// ---- CONNECTION ----

type ConnectionConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	UnitID    uint8  `yaml:"unit_id"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

// ---- POLL ----

type PollConfig struct {
	IntervalMs int `yaml:"interval_ms"`
	Retries    int `yaml:"retries"`
}

// ---- GROUPS ----

type GroupConfig struct {
	Name    string `yaml:"name"`
	Kind    string `yaml:"kind"` // holding | input | coils | discrete_inputs
	Address uint16 `yaml:"address"`
	Count   uint16 `yaml:"count"`
}

// ---- METRICS ----

type MetricsConfig struct {
	Addr string `yaml:"addr"` // empty disables the metrics listener
}

// Load reads and parses the config file. Validation is a separate pass.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return &cfg, nil
}
