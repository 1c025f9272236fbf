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

// Package router implements the outbound delivery state machine: resolve
// recipient, attempt direct, attempt relay, queue for retry with
// exponential backoff, until delivered or the attempt ceiling is reached.
package router

import (
	"context"
	"crypto/ecdh"
	"fmt"
	"net/http"
	"time"

	"github.com/agentmail-dev/agentmail/config"
	"github.com/agentmail-dev/agentmail/crypto"
	"github.com/agentmail-dev/agentmail/envelope"
	"github.com/agentmail-dev/agentmail/internal/logger"
	"github.com/agentmail-dev/agentmail/internal/metrics"
	"github.com/agentmail-dev/agentmail/internal/ulid"
	"github.com/agentmail-dev/agentmail/mailbox"
)

// Router owns a node's outbound delivery: synchronous first attempts from
// Send, plus a background drain loop that retries queued outbox entries.
type Router struct {
	identity  *crypto.Identity
	store     mailbox.Store
	relayAddr string

	httpClient    *http.Client
	directTimeout time.Duration
	relayTimeout  time.Duration
	retry         config.RetryPolicyConfig
	drainInterval time.Duration
	batchSize     int

	log logger.Logger
}

// New builds a Router for identity, persisting state in store and, if
// relayAddr is non-empty, able to fall back to that relay for resolution
// and delivery.
func New(identity *crypto.Identity, store mailbox.Store, relayAddr string, cfg config.RouterConfig, log logger.Logger) *Router {
	if log == nil {
		log = logger.GetDefaultLogger()
	}
	directTimeout := cfg.DirectTimeout
	if directTimeout <= 0 {
		directTimeout = 5 * time.Second
	}
	relayTimeout := cfg.RelayTimeout
	if relayTimeout <= 0 {
		relayTimeout = 5 * time.Second
	}
	drainInterval := cfg.DrainInterval
	if drainInterval <= 0 {
		drainInterval = time.Second
	}

	return &Router{
		identity:      identity,
		store:         store,
		relayAddr:     relayAddr,
		httpClient:    &http.Client{},
		directTimeout: directTimeout,
		relayTimeout:  relayTimeout,
		retry:         cfg.RetryPolicy,
		drainInterval: drainInterval,
		batchSize:     16,
		log:           log,
	}
}

// Send implements the §4.5 send procedure: resolve, build envelope,
// persist as PENDING+outbox in one transaction, then attempt direct and
// relay delivery synchronously before falling back to the retry queue.
func (r *Router) Send(ctx context.Context, payload envelope.Payload, to string) (string, error) {
	peer, err := r.resolve(ctx, to)
	if err != nil {
		return "", err
	}

	nonce, err := envelope.NewNonce()
	if err != nil {
		return "", fmt.Errorf("router: generate nonce: %w", err)
	}
	payload.Nonce = nonce
	if payload.CreatedAt == 0 {
		payload.CreatedAt = time.Now().UnixMilli()
	}

	recipientEncPub, err := ecdh.X25519().NewPublicKey(peer.EncPK)
	if err != nil {
		return "", fmt.Errorf("router: decode recipient enc_pk: %w", err)
	}

	env, err := envelope.BuildEnvelope(payload,
		envelope.Sender{FP: r.identity.Fingerprint(), SignPriv: r.identity.SignPriv},
		envelope.Recipient{FP: peer.FP, EncPub: recipientEncPub},
		time.Now(),
	)
	if err != nil {
		return "", fmt.Errorf("router: build envelope: %w", err)
	}

	msgID, err := ulid.New(time.Now())
	if err != nil {
		return "", fmt.Errorf("router: generate message id: %w", err)
	}
	entryID, err := ulid.New(time.Now())
	if err != nil {
		return "", fmt.Errorf("router: generate outbox entry id: %w", err)
	}

	msg := mailbox.StoredMessage{
		ID:        msgID,
		FromAddr:  payload.FromAddr,
		ToAddr:    payload.ToAddr,
		Subject:   payload.Subject,
		Body:      payload.Body,
		Kind:      payload.Kind,
		CreatedAt: time.UnixMilli(payload.CreatedAt),
		SenderFP:  r.identity.Fingerprint(),
		Nonce:     nonce,
	}
	entry := mailbox.OutboxEntry{
		ID:        entryID,
		MessageID: msgID,
		Envelope:  env,
		TargetFP:  peer.FP,
		NextTryAt: time.Now(),
		Tier:      mailbox.TierDirect,
	}

	if err := r.store.InsertOutbound(ctx, msg, entry); err != nil {
		return "", fmt.Errorf("router: persist outbound: %w", err)
	}
	metrics.MessagesStored.WithLabelValues("out").Inc()

	r.attemptAndSettle(ctx, entry, peer.Endpoint)

	return msgID, nil
}

// attemptAndSettle runs one delivery attempt for entry and updates the
// mailbox accordingly: delivered, rescheduled, or failed outright.
func (r *Router) attemptAndSettle(ctx context.Context, entry mailbox.OutboxEntry, endpoint string) {
	start := time.Now()
	tier, err := r.deliverOnce(ctx, entry, endpoint)
	if err == nil {
		if markErr := r.store.MarkDelivered(ctx, entry.MessageID, tier); markErr != nil {
			r.log.Warn("router: mark delivered failed", logger.Field{Key: "message_id", Value: entry.MessageID}, logger.Field{Key: "error", Value: markErr.Error()})
		}
		metrics.DeliveryAttempts.WithLabelValues(string(tier), "success").Inc()
		metrics.DeliveryLatency.Observe(time.Since(start).Seconds())
		return
	}

	attempts := entry.Attempts + 1
	if attempts >= maxAttempts(r.retry) {
		r.fail(ctx, entry, err.Error())
		return
	}

	next := time.Now().Add(nextDelay(attempts, r.retry))
	if rescheduleErr := r.store.RescheduleOutbox(ctx, entry.ID, next, attempts, err.Error()); rescheduleErr != nil {
		r.log.Warn("router: reschedule failed", logger.Field{Key: "entry_id", Value: entry.ID}, logger.Field{Key: "error", Value: rescheduleErr.Error()})
	}
	metrics.DeliveryAttempts.WithLabelValues(string(entry.Tier), "retry").Inc()
}

func (r *Router) fail(ctx context.Context, entry mailbox.OutboxEntry, reason string) {
	if err := r.store.MarkFailed(ctx, entry.MessageID, reason); err != nil {
		r.log.Warn("router: mark failed failed", logger.Field{Key: "message_id", Value: entry.MessageID}, logger.Field{Key: "error", Value: err.Error()})
	}
	metrics.DeliveryAttempts.WithLabelValues(string(entry.Tier), "failed").Inc()
	metrics.MessagesFailed.Inc()
}
