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
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LoaderOptions configures the configuration loader
type LoaderOptions struct {
	// ConfigDir is the directory containing config files (default: ./config)
	ConfigDir string
	// Environment overrides automatic environment detection
	Environment string
	// SkipEnvSubstitution disables environment variable substitution
	SkipEnvSubstitution bool
}

// DefaultLoaderOptions returns default loader options
func DefaultLoaderOptions() LoaderOptions {
	return LoaderOptions{
		ConfigDir: "config",
	}
}

// Load loads configuration with automatic environment detection, falling
// back through {env}.yaml, default.yaml, config.yaml, and finally
// Default() if none exist. A .env file in the config directory, if
// present, is loaded into the process environment before overrides are
// read.
func Load(opts ...LoaderOptions) (*Config, error) {
	options := DefaultLoaderOptions()
	if len(opts) > 0 {
		options = opts[0]
	}

	if err := LoadDotEnv(filepath.Join(options.ConfigDir, ".env")); err != nil {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	env := options.Environment
	if env == "" {
		env = GetEnvironment()
	}

	cfg, err := loadConfigFile(filepath.Join(options.ConfigDir, env+".yaml"))
	if err != nil {
		cfg, err = loadConfigFile(filepath.Join(options.ConfigDir, "default.yaml"))
		if err != nil {
			cfg, err = loadConfigFile(filepath.Join(options.ConfigDir, "config.yaml"))
			if err != nil {
				cfg = Default()
			}
		}
	}

	if cfg.Environment == "" {
		cfg.Environment = env
	}
	setDefaults(cfg)

	if !options.SkipEnvSubstitution {
		SubstituteEnvVarsInConfig(cfg)
	}

	applyEnvironmentOverrides(cfg)

	return cfg, nil
}

// loadConfigFile loads a single config file without applying defaults, so
// Load can still tell whether the file set an environment of its own.
func loadConfigFile(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}
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
	return cfg, nil
}

// applyEnvironmentOverrides lets AGENTMAIL_* environment variables win over
// anything read from a config file, the highest-priority source.
func applyEnvironmentOverrides(cfg *Config) {
	if name := os.Getenv("AGENTMAIL_NODE_NAME"); name != "" && cfg.Node != nil {
		cfg.Node.Name = name
	}
	if addr := os.Getenv("AGENTMAIL_NODE_LISTEN_ADDR"); addr != "" && cfg.Node != nil {
		cfg.Node.ListenAddr = addr
	}
	if addr := os.Getenv("AGENTMAIL_RELAY_ADDR"); addr != "" && cfg.Node != nil {
		cfg.Node.RelayAddr = addr
	}

	if addr := os.Getenv("AGENTMAIL_RELAY_LISTEN_ADDR"); addr != "" && cfg.Relay != nil {
		cfg.Relay.ListenAddr = addr
	}
	if backend := os.Getenv("AGENTMAIL_RELAY_REGISTRY_BACKEND"); backend != "" && cfg.Relay != nil {
		cfg.Relay.RegistryBackend = backend
	}
	if dsn := os.Getenv("AGENTMAIL_RELAY_POSTGRES_DSN"); dsn != "" && cfg.Relay != nil {
		cfg.Relay.PostgresDSN = dsn
	}

	if dir := os.Getenv("AGENTMAIL_DATA_DIR"); dir != "" {
		cfg.DataDir = dir
	}

	if logLevel := os.Getenv("AGENTMAIL_LOG_LEVEL"); logLevel != "" && cfg.Logging != nil {
		cfg.Logging.Level = logLevel
	}
	if logFormat := os.Getenv("AGENTMAIL_LOG_FORMAT"); logFormat != "" && cfg.Logging != nil {
		cfg.Logging.Format = logFormat
	}

	if os.Getenv("AGENTMAIL_METRICS_ENABLED") == "true" && cfg.Metrics != nil {
		cfg.Metrics.Enabled = true
	}
	if os.Getenv("AGENTMAIL_METRICS_ENABLED") == "false" && cfg.Metrics != nil {
		cfg.Metrics.Enabled = false
	}
}

// LoadForEnvironment loads configuration for a specific environment
func LoadForEnvironment(environment string) (*Config, error) {
	return Load(LoaderOptions{
		ConfigDir:   "config",
		Environment: environment,
	})
}

// MustLoad loads configuration or panics on error
func MustLoad(opts ...LoaderOptions) *Config {
	cfg, err := Load(opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}
