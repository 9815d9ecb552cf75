/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package meshconfig defines the on-disk YAML configuration for a mesh
// relay node, modeled on ptp/sptp/client's Config/DefaultConfig/
// ReadConfig/Validate convention.
package meshconfig

import (
	"fmt"
	"os"
	"time"

	yaml "gopkg.in/yaml.v2"
)

// OutboxConfig configures the durable outbox and seen-cache store.
type OutboxConfig struct {
	DataDir       string `yaml:"data_dir"`
	SeenCacheSize int    `yaml:"seen_cache_size"`
}

// Validate checks OutboxConfig is sane.
func (c *OutboxConfig) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must be specified")
	}
	if c.SeenCacheSize <= 0 {
		return fmt.Errorf("seen_cache_size must be greater than zero")
	}
	return nil
}

// RelayConfig configures the drain-loop timing, mirroring the tunables in
// mesh/relay.
type RelayConfig struct {
	Interval            time.Duration `yaml:"interval"`
	PostSendBlackout    time.Duration `yaml:"post_send_blackout"`
	MaxConsecutiveFails int           `yaml:"max_consecutive_fails"`
	PauseDuration       time.Duration `yaml:"pause_duration"`
	SendDeadline        time.Duration `yaml:"send_deadline"`
}

// Validate checks RelayConfig is sane.
func (c *RelayConfig) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be greater than zero")
	}
	if c.PostSendBlackout < 0 {
		return fmt.Errorf("post_send_blackout must be zero or positive")
	}
	if c.MaxConsecutiveFails <= 0 {
		return fmt.Errorf("max_consecutive_fails must be greater than zero")
	}
	if c.PauseDuration <= 0 {
		return fmt.Errorf("pause_duration must be greater than zero")
	}
	if c.SendDeadline <= 0 {
		return fmt.Errorf("send_deadline must be greater than zero")
	}
	return nil
}

// ScorerConfig configures the optional operator-supplied scoring formula.
type ScorerConfig struct {
	Formula string `yaml:"formula"` // empty disables, falls back to the built-in weight table
}

// NodeTableConfig configures neighbor staleness.
type NodeTableConfig struct {
	DiscoveryRefreshInterval time.Duration `yaml:"discovery_refresh_interval"`
	SweepInterval            time.Duration `yaml:"sweep_interval"`
}

// Validate checks NodeTableConfig is sane.
func (c *NodeTableConfig) Validate() error {
	if c.DiscoveryRefreshInterval <= 0 {
		return fmt.Errorf("discovery_refresh_interval must be greater than zero")
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("sweep_interval must be greater than zero")
	}
	return nil
}

// MetricsConfig configures the Prometheus exporter.
type MetricsConfig struct {
	ListenAddress string `yaml:"listen_address"`
}

// Config is the top-level mesh node configuration.
type Config struct {
	NodeID      string          `yaml:"node_id"`
	DisplayName string          `yaml:"display_name"`
	LogLevel    string          `yaml:"log_level"`
	Outbox      OutboxConfig    `yaml:"outbox"`
	Relay       RelayConfig     `yaml:"relay"`
	Scorer      ScorerConfig    `yaml:"scorer"`
	NodeTable   NodeTableConfig `yaml:"node_table"`
	Metrics     MetricsConfig   `yaml:"metrics"`
}

// DefaultConfig returns a Config initialized with the spec's default
// tunables.
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Outbox: OutboxConfig{
			DataDir:       "/var/lib/meshnode",
			SeenCacheSize: 1000,
		},
		Relay: RelayConfig{
			Interval:            10 * time.Second,
			PostSendBlackout:    500 * time.Millisecond,
			MaxConsecutiveFails: 3,
			PauseDuration:       30 * time.Second,
			SendDeadline:        5 * time.Second,
		},
		NodeTable: NodeTableConfig{
			DiscoveryRefreshInterval: 60 * time.Second,
			SweepInterval:            30 * time.Second,
		},
		Metrics: MetricsConfig{
			ListenAddress: ":9110",
		},
	}
}

// Validate checks the whole Config is sane.
func (c *Config) Validate() error {
	if c.LogLevel == "" {
		return fmt.Errorf("log_level must be specified")
	}
	if err := c.Outbox.Validate(); err != nil {
		return fmt.Errorf("invalid outbox config: %w", err)
	}
	if err := c.Relay.Validate(); err != nil {
		return fmt.Errorf("invalid relay config: %w", err)
	}
	if err := c.NodeTable.Validate(); err != nil {
		return fmt.Errorf("invalid node_table config: %w", err)
	}
	if c.Metrics.ListenAddress == "" {
		return fmt.Errorf("metrics listen_address must be specified")
	}
	return nil
}

// ReadConfig reads config from path, layered over DefaultConfig.
func ReadConfig(path string) (*Config, error) {
	c := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, err
	}
	return c, nil
}
