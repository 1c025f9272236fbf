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

package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/agentmail-dev/agentmail/config"
	"github.com/agentmail-dev/agentmail/internal/logger"
	"github.com/agentmail-dev/agentmail/internal/metrics"
	"github.com/agentmail-dev/agentmail/relay"
	"github.com/agentmail-dev/agentmail/relay/postgres"
)

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(config.LoaderOptions{ConfigDir: configDir, Environment: environment})
	if err != nil {
		return logger.NewStartupError(logger.ErrCodeConfig, "load config", err)
	}
	if cfg.Relay == nil {
		return logger.NewStartupError(logger.ErrCodeConfig, "relay section is required", nil)
	}

	log := logger.NewDefaultLogger()
	if cfg.Logging != nil {
		log.SetLevel(parseLevel(cfg.Logging.Level))
	}
	logger.SetDefaultLogger(log)

	registry, closeRegistry, err := buildRegistry(cfg.Relay)
	if err != nil {
		return logger.NewStartupError(logger.ErrCodeRegistry, "build registry", err)
	}
	if closeRegistry != nil {
		defer closeRegistry()
	}

	r := relay.New(registry, relay.Options{
		MaxEnvelopesPerRecipient: cfg.Relay.QueueCapacity,
		MaxBytesPerRecipient:     cfg.Relay.QueueMaxBytes,
	}, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	srv := &http.Server{Addr: cfg.Relay.ListenAddr, Handler: r.Handler()}
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		log.Info("agentmail-relay listening", logger.Field{Key: "addr", Value: cfg.Relay.ListenAddr}, logger.Field{Key: "registry_backend", Value: cfg.Relay.RegistryBackend})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	if cfg.Metrics != nil && cfg.Metrics.Enabled {
		g.Go(func() error {
			log.Info("metrics server listening", logger.Field{Key: "addr", Value: cfg.Metrics.Addr})
			return metrics.StartServer(ctx, cfg.Metrics.Addr, cfg.Metrics.Path)
		})
	}

	return g.Wait()
}

// buildRegistry picks the registry backend named in cfg.RegistryBackend
// ("memory" or "postgres"). The returned close func is nil for the
// memory backend, which holds no external resources.
func buildRegistry(cfg *config.RelayConfig) (relay.Registry, func(), error) {
	switch cfg.RegistryBackend {
	case "", "memory":
		return relay.NewMemoryRegistry(), nil, nil
	case "postgres":
		if cfg.PostgresDSN == "" {
			return nil, nil, fmt.Errorf("registry_backend postgres requires postgres_dsn")
		}
		reg, err := postgres.NewRegistry(context.Background(), cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres registry: %w", err)
		}
		return reg, reg.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown registry_backend %q", cfg.RegistryBackend)
	}
}

func parseLevel(level string) logger.Level {
	switch level {
	case "debug":
		return logger.DebugLevel
	case "warn":
		return logger.WarnLevel
	case "error":
		return logger.ErrorLevel
	default:
		return logger.InfoLevel
	}
}
