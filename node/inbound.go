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

package node

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/agentmail-dev/agentmail/crypto"
	"github.com/agentmail-dev/agentmail/envelope"
	"github.com/agentmail-dev/agentmail/internal/metrics"
	"github.com/agentmail-dev/agentmail/mailbox"
)

// processInbound verifies and decrypts raw as an Envelope and, on success,
// persists it as an IN StoredMessage. It is shared by the /v0/receive
// handler and the relay pickup loop — §4.6 applies the same signature and
// decrypt checks regardless of transport.
//
// The sender's signing key is looked up only in the local mailbox: the
// relay's registry is keyed by name, not by fingerprint, so it has no
// lookup this path could use. An envelope from a fingerprint this node has
// never recorded a peer for is refused per §4.6, not retried against the
// relay.
func (n *Node) processInbound(ctx context.Context, raw []byte) (string, error) {
	env, err := envelope.ParseEnvelope(raw)
	if err != nil {
		return "", malformedEnvelope(fmt.Sprintf("parse envelope: %v", err))
	}
	if env.Version != envelope.EnvelopeVersion {
		return "", malformedEnvelope(fmt.Sprintf("unsupported envelope version %d", env.Version))
	}

	peer, err := n.store.GetPeerByNameOrFP(ctx, env.SenderFP)
	if err != nil {
		if errors.Is(err, mailbox.ErrNotFound) {
			return "", signatureFailure("sender fingerprint not recorded, cannot verify signature")
		}
		return "", fmt.Errorf("node: inbound: peer lookup: %w", err)
	}

	payload, err := envelope.VerifyAndOpen(env, n.identity.EncPriv, ed25519.PublicKey(peer.SignPK))
	if err != nil {
		var cryptoErr *crypto.Error
		if errors.As(err, &cryptoErr) {
			switch cryptoErr.Kind {
			case crypto.KindDecryptFail:
				return "", decryptFailure(cryptoErr.Error())
			default:
				return "", signatureFailure(cryptoErr.Error())
			}
		}
		return "", signatureFailure(err.Error())
	}

	msg := mailbox.StoredMessage{
		FromAddr:     payload.FromAddr,
		ToAddr:       payload.ToAddr,
		Subject:      payload.Subject,
		Body:         payload.Body,
		Kind:         payload.Kind,
		CreatedAt:    time.UnixMilli(payload.CreatedAt),
		EnvelopeBlob: raw,
		SenderFP:     env.SenderFP,
		Nonce:        payload.Nonce,
	}

	id, err := n.store.InsertInbound(ctx, msg)
	if err != nil {
		return "", fmt.Errorf("node: inbound: persist: %w", err)
	}
	metrics.MessagesStored.WithLabelValues("in").Inc()
	return id, nil
}
