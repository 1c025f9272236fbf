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

// Package node is the per-agent mailbox service: an inbound HTTP handler
// plus the background loops (registration, relay pickup, outbox drain)
// that keep a node's mailbox converging with the rest of the network.
package node

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/agentmail-dev/agentmail/crypto"
	"github.com/agentmail-dev/agentmail/internal/logger"
	"github.com/agentmail-dev/agentmail/mailbox"
	"github.com/agentmail-dev/agentmail/router"
)

// Options configures a Node's background loop intervals. Zero values take
// the spec's defaults (§5 Timeouts).
type Options struct {
	Name             string
	RelayAddr        string
	RegisterInterval time.Duration
	PickupInterval   time.Duration
	RelayTimeout     time.Duration
}

// Node ties identity, mailbox, and router together behind an HTTP surface
// and a set of supervised background loops.
type Node struct {
	identity  *crypto.Identity
	store     mailbox.Store
	router    *router.Router
	name      string
	relayAddr string

	httpClient *http.Client

	registerInterval time.Duration
	pickupInterval   time.Duration

	log logger.Logger
}

// New builds a Node. rtr must already be wired to the same identity and
// store so that POST /v0/send and the outbox drain loop share one delivery
// path.
func New(identity *crypto.Identity, store mailbox.Store, rtr *router.Router, opts Options, log logger.Logger) *Node {
	if log == nil {
		log = logger.GetDefaultLogger()
	}
	registerInterval := opts.RegisterInterval
	if registerInterval <= 0 {
		registerInterval = 60 * time.Second
	}
	pickupInterval := opts.PickupInterval
	if pickupInterval <= 0 {
		pickupInterval = 5 * time.Second
	}
	relayTimeout := opts.RelayTimeout
	if relayTimeout <= 0 {
		relayTimeout = 5 * time.Second
	}

	return &Node{
		identity:         identity,
		store:            store,
		router:           rtr,
		name:             opts.Name,
		relayAddr:        opts.RelayAddr,
		httpClient:       &http.Client{Timeout: relayTimeout},
		registerInterval: registerInterval,
		pickupInterval:   pickupInterval,
		log:              log,
	}
}

// Run serves the node's HTTP surface on listenAddr and supervises the
// registration, pickup, and outbox-drain loops under one errgroup, with
// first-error cancellation. It blocks until ctx is cancelled or a
// supervised task returns a fatal error.
func (n *Node) Run(ctx context.Context, listenAddr string) error {
	g, ctx := errgroup.WithContext(ctx)

	srv := &http.Server{Addr: listenAddr, Handler: n.Handler()}

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(n.router.RunDrainLoop)

	if n.relayAddr != "" {
		g.Go(n.RunRegistrationLoop)
		g.Go(n.RunPickupLoop)
	}

	return g.Wait()
}
