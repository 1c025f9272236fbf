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

package relay

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/agentmail-dev/agentmail/envelope"
	"github.com/agentmail-dev/agentmail/internal/logger"
	"github.com/agentmail-dev/agentmail/internal/metrics"
)

// ErrQueueFull is returned by Deposit when a single envelope exceeds the
// per-recipient byte cap outright and cannot be queued even after
// evicting older entries.
var ErrQueueFull = errors.New("relay: recipient queue full")

// Stats is the relay's operational snapshot, §4.7 stats().
type Stats struct {
	MessagesHeld int `json:"messages_held"`
	TotalBytes   int `json:"total_bytes"`
}

// Relay is the store-and-forward core: a name registry plus a blind,
// in-memory, per-recipient envelope queue.
type Relay struct {
	registry Registry
	queue    *blindQueue
	log      logger.Logger
}

// Options configures a Relay's queue caps.
type Options struct {
	MaxEnvelopesPerRecipient int
	MaxBytesPerRecipient     int
}

// New builds a Relay backed by registry (memory or a persistent
// implementation from relay/postgres) and a fresh blind queue.
func New(registry Registry, opts Options, log logger.Logger) *Relay {
	if log == nil {
		log = logger.GetDefaultLogger()
	}
	return &Relay{
		registry: registry,
		queue:    newBlindQueue(opts.MaxEnvelopesPerRecipient, opts.MaxBytesPerRecipient),
		log:      log,
	}
}

// Register upserts entry in the registry. v0 policy is last-writer-wins:
// a re-registration of an existing name under a different fp is accepted
// but logged, per spec §4.7.
func (r *Relay) Register(ctx context.Context, entry RegistryEntry) error {
	if entry.Name == "" || entry.FP == "" {
		return fmt.Errorf("relay: register: name and fp are required")
	}
	prev, existed, err := r.registry.Lookup(ctx, entry.Name)
	if err != nil {
		return fmt.Errorf("relay: register: lookup: %w", err)
	}
	if existed && prev.FP != entry.FP {
		r.log.Warn("relay: name re-registered under a different fingerprint",
			logger.Field{Key: "name", Value: entry.Name},
			logger.Field{Key: "previous_fp", Value: prev.FP},
			logger.Field{Key: "new_fp", Value: entry.FP},
		)
	}
	if err := r.registry.Register(ctx, entry); err != nil {
		return fmt.Errorf("relay: register: %w", err)
	}
	metrics.RelayRegistrations.WithLabelValues("accepted").Inc()
	return nil
}

// Lookup implements §4.7 lookup(name).
func (r *Relay) Lookup(ctx context.Context, name string) (RegistryEntry, bool, error) {
	entry, ok, err := r.registry.Lookup(ctx, name)
	if err != nil {
		return RegistryEntry{}, false, fmt.Errorf("relay: lookup: %w", err)
	}
	return entry, ok, nil
}

// Deposit reads only recipient_fp from env (it never verifies signatures)
// and appends the raw bytes to that recipient's queue.
func (r *Relay) Deposit(_ context.Context, raw []byte) error {
	env, err := envelope.ParseEnvelope(raw)
	if err != nil {
		return fmt.Errorf("relay: deposit: parse envelope: %w", err)
	}
	if env.RecipientFP == "" {
		return fmt.Errorf("relay: deposit: envelope missing recipient_fp")
	}

	if !r.queue.deposit(env.RecipientFP, raw) {
		metrics.RelayDeposits.WithLabelValues("rejected_too_large").Inc()
		return ErrQueueFull
	}
	metrics.RelayDeposits.WithLabelValues("accepted").Inc()
	metrics.RelayQueueDepth.WithLabelValues(env.RecipientFP).Set(float64(r.queue.depthFor(env.RecipientFP)))
	return nil
}

// Pickup drains and returns all envelopes queued for fp.
func (r *Relay) Pickup(_ context.Context, fp string) [][]byte {
	envs := r.queue.pickup(fp)
	outcome := "delivered"
	if len(envs) == 0 {
		outcome = "empty"
	}
	metrics.RelayPickups.WithLabelValues(outcome).Inc()
	metrics.RelayQueueDepth.WithLabelValues(fp).Set(0)
	return envs
}

// Stats implements §4.7 stats().
func (r *Relay) Stats(_ context.Context) Stats {
	held, bytes := r.queue.stats()
	return Stats{MessagesHeld: held, TotalBytes: bytes}
}

// registryEntryJSON mirrors the wire PeerInfo shape used by /v0/lookup.
type registryEntryJSON struct {
	Name     string `json:"name"`
	FP       string `json:"fp"`
	SignPK   string `json:"sign_pk"`
	EncPK    string `json:"enc_pk"`
	Endpoint string `json:"endpoint,omitempty"`
}

func (e RegistryEntry) marshalWire() ([]byte, error) {
	return json.Marshal(registryEntryJSON{
		Name:   e.Name,
		FP:     e.FP,
		SignPK: base64.RawURLEncoding.EncodeToString(e.SignPK),
		EncPK:  base64.RawURLEncoding.EncodeToString(e.EncPK),
	})
}
