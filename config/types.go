// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

// Package config provides configuration management for agentmail nodes and
// relays: YAML/JSON file loading, ${VAR}-style environment substitution,
// and environment-variable overrides layered on top.
package config

import "time"

// Config is the top-level configuration for either cmd/agentmail-node or
// cmd/agentmail-relay; each binary reads only the sections it needs.
type Config struct {
	Environment string          `yaml:"environment" json:"environment"`
	DataDir     string          `yaml:"data_dir" json:"data_dir"`
	Node        *NodeConfig     `yaml:"node" json:"node"`
	Relay       *RelayConfig    `yaml:"relay" json:"relay"`
	Discovery   *DiscoveryConfig `yaml:"discovery" json:"discovery"`
	Router      *RouterConfig   `yaml:"router" json:"router"`
	Logging     *LoggingConfig  `yaml:"logging" json:"logging"`
	Metrics     *MetricsConfig  `yaml:"metrics" json:"metrics"`
}

// NodeConfig configures the per-agent mailbox node (C6).
type NodeConfig struct {
	Name       string `yaml:"name" json:"name"`
	ListenAddr string `yaml:"listen_addr" json:"listen_addr"`
	RelayAddr  string `yaml:"relay_addr,omitempty" json:"relay_addr,omitempty"`
}

// RelayConfig configures the store-and-forward relay (C7).
type RelayConfig struct {
	ListenAddr      string `yaml:"listen_addr" json:"listen_addr"`
	QueueCapacity   int    `yaml:"queue_capacity" json:"queue_capacity"`
	QueueMaxBytes   int    `yaml:"queue_max_bytes" json:"queue_max_bytes"`
	RegistryBackend string `yaml:"registry_backend" json:"registry_backend"` // memory, postgres
	PostgresDSN     string `yaml:"postgres_dsn,omitempty" json:"postgres_dsn,omitempty"`
}

// DiscoveryConfig configures mDNS peer discovery (C4).
type DiscoveryConfig struct {
	Enabled     bool   `yaml:"enabled" json:"enabled"`
	ServiceName string `yaml:"service_name" json:"service_name"`
	Domain      string `yaml:"domain" json:"domain"`
}

// RouterConfig configures outbound delivery (C5).
type RouterConfig struct {
	RetryPolicy   RetryPolicyConfig `yaml:"retry_policy" json:"retry_policy"`
	DrainInterval time.Duration     `yaml:"drain_interval" json:"drain_interval"`
	DirectTimeout time.Duration     `yaml:"direct_timeout" json:"direct_timeout"`
	RelayTimeout  time.Duration     `yaml:"relay_timeout" json:"relay_timeout"`
}

// RetryPolicyConfig controls the outbox's exponential backoff schedule.
type RetryPolicyConfig struct {
	MaxAttempts  int           `yaml:"max_attempts" json:"max_attempts"`
	InitialDelay time.Duration `yaml:"initial_delay" json:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay" json:"max_delay"`
	Multiplier   float64       `yaml:"multiplier" json:"multiplier"`
}

// LoggingConfig configures internal/logger's default logger.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`   // debug, info, warn, error
	Format string `yaml:"format" json:"format"` // json, text
	Output string `yaml:"output" json:"output"` // stdout, stderr, file path
}

// MetricsConfig configures the Prometheus /metrics endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Addr    string `yaml:"addr" json:"addr"`
	Path    string `yaml:"path" json:"path"`
}
