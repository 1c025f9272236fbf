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
	"net"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/agentmail-dev/agentmail/config"
	"github.com/agentmail-dev/agentmail/crypto"
	"github.com/agentmail-dev/agentmail/discovery"
	"github.com/agentmail-dev/agentmail/internal/logger"
	"github.com/agentmail-dev/agentmail/internal/metrics"
	"github.com/agentmail-dev/agentmail/mailbox/sqlite"
	"github.com/agentmail-dev/agentmail/node"
	"github.com/agentmail-dev/agentmail/router"
)

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(config.LoaderOptions{ConfigDir: configDir, Environment: environment})
	if err != nil {
		return logger.NewStartupError(logger.ErrCodeConfig, "load config", err)
	}
	if cfg.Node == nil {
		return logger.NewStartupError(logger.ErrCodeConfig, "node section is required", nil)
	}

	log := logger.NewDefaultLogger()
	if cfg.Logging != nil {
		log.SetLevel(parseLevel(cfg.Logging.Level))
	}
	logger.SetDefaultLogger(log)

	identity, err := crypto.LoadOrCreateIdentity(cfg.DataDir)
	if err != nil {
		return logger.NewStartupError(logger.ErrCodeIdentity, "load identity", err)
	}

	store, err := sqlite.Open(filepath.Join(cfg.DataDir, "mailbox.db"))
	if err != nil {
		return logger.NewStartupError(logger.ErrCodeMailbox, "open mailbox", err)
	}
	defer store.Close()

	routerCfg := config.RouterConfig{}
	if cfg.Router != nil {
		routerCfg = *cfg.Router
	}
	rtr := router.New(identity, store, cfg.Node.RelayAddr, routerCfg, log)

	n := node.New(identity, store, rtr, node.Options{
		Name:      cfg.Node.Name,
		RelayAddr: cfg.Node.RelayAddr,
	}, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	if cfg.Discovery != nil && cfg.Discovery.Enabled {
		disc := discovery.New(store, log)
		port := listenPort(cfg.Node.ListenAddr)
		if err := disc.Start(ctx, identity, cfg.Node.Name, port); err != nil {
			return logger.NewStartupError(logger.ErrCodeDiscovery, "start discovery", err)
		}
		defer disc.Stop()
	}

	if cfg.Metrics != nil && cfg.Metrics.Enabled {
		g.Go(func() error {
			log.Info("metrics server listening", logger.Field{Key: "addr", Value: cfg.Metrics.Addr})
			return metrics.StartServer(ctx, cfg.Metrics.Addr, cfg.Metrics.Path)
		})
	}

	g.Go(func() error {
		log.Info("agentmail-node listening",
			logger.Field{Key: "addr", Value: cfg.Node.ListenAddr},
			logger.Field{Key: "name", Value: cfg.Node.Name},
			logger.Field{Key: "fp", Value: identity.Fingerprint()},
		)
		return n.Run(ctx, cfg.Node.ListenAddr)
	})

	return g.Wait()
}

func listenPort(addr string) int {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 0
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0
	}
	return port
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
