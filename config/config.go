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

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadFromFile loads configuration from a YAML or JSON file, trying YAML
// first since it is a superset of JSON.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file (tried YAML and JSON): %w", err)
		}
	}

	setDefaults(cfg)
	return cfg, nil
}

// SaveToFile saves configuration to a file, choosing the format by
// extension (".json" for JSON, anything else for YAML).
func SaveToFile(cfg *Config, path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".json") {
		data, err = json.MarshalIndent(cfg, "", "  ")
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// setDefaults fills in the values a fresh deployment needs without writing
// a config file at all.
func setDefaults(cfg *Config) {
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.DataDir == "" {
		cfg.DataDir = ".agentmail"
	}

	if cfg.Node != nil {
		if cfg.Node.ListenAddr == "" {
			cfg.Node.ListenAddr = "127.0.0.1:7700"
		}
	}

	if cfg.Relay != nil {
		if cfg.Relay.ListenAddr == "" {
			cfg.Relay.ListenAddr = "127.0.0.1:7800"
		}
		if cfg.Relay.QueueCapacity == 0 {
			cfg.Relay.QueueCapacity = 256
		}
		if cfg.Relay.RegistryBackend == "" {
			cfg.Relay.RegistryBackend = "memory"
		}
	}

	if cfg.Discovery != nil {
		if cfg.Discovery.ServiceName == "" {
			cfg.Discovery.ServiceName = "_agentmail._tcp"
		}
		if cfg.Discovery.Domain == "" {
			cfg.Discovery.Domain = "local."
		}
	}

	if cfg.Router != nil {
		if cfg.Router.RetryPolicy.MaxAttempts == 0 {
			cfg.Router.RetryPolicy.MaxAttempts = 20
		}
		if cfg.Router.RetryPolicy.InitialDelay == 0 {
			cfg.Router.RetryPolicy.InitialDelay = 5 * time.Second
		}
		if cfg.Router.RetryPolicy.MaxDelay == 0 {
			cfg.Router.RetryPolicy.MaxDelay = 300 * time.Second
		}
		if cfg.Router.RetryPolicy.Multiplier == 0 {
			cfg.Router.RetryPolicy.Multiplier = 2.0
		}
		if cfg.Router.DrainInterval == 0 {
			cfg.Router.DrainInterval = 2 * time.Second
		}
		if cfg.Router.DirectTimeout == 0 {
			cfg.Router.DirectTimeout = 3 * time.Second
		}
		if cfg.Router.RelayTimeout == 0 {
			cfg.Router.RelayTimeout = 5 * time.Second
		}
	}

	if cfg.Logging != nil {
		if cfg.Logging.Level == "" {
			cfg.Logging.Level = "info"
		}
		if cfg.Logging.Format == "" {
			cfg.Logging.Format = "json"
		}
		if cfg.Logging.Output == "" {
			cfg.Logging.Output = "stdout"
		}
	}

	if cfg.Metrics != nil {
		if cfg.Metrics.Addr == "" {
			cfg.Metrics.Addr = "127.0.0.1:9700"
		}
		if cfg.Metrics.Path == "" {
			cfg.Metrics.Path = "/metrics"
		}
	}
}

// Default returns a Config populated entirely by setDefaults, for binaries
// invoked without a config file.
func Default() *Config {
	cfg := &Config{
		Node:      &NodeConfig{},
		Relay:     &RelayConfig{},
		Discovery: &DiscoveryConfig{Enabled: true},
		Router:    &RouterConfig{},
		Logging:   &LoggingConfig{},
		Metrics:   &MetricsConfig{},
	}
	setDefaults(cfg)
	return cfg
}
