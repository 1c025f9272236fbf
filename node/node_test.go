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
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/agentmail-dev/agentmail/config"
	"github.com/agentmail-dev/agentmail/crypto"
	"github.com/agentmail-dev/agentmail/envelope"
	"github.com/agentmail-dev/agentmail/mailbox"
	"github.com/agentmail-dev/agentmail/mailbox/memory"
	"github.com/agentmail-dev/agentmail/router"
)

func mustIdentity(t *testing.T) *crypto.Identity {
	t.Helper()
	id, err := crypto.GenerateIdentity()
	require.NoError(t, err)
	return id
}

func newTestNode(t *testing.T, opts Options) (*Node, mailbox.Store, *crypto.Identity) {
	t.Helper()
	id := mustIdentity(t)
	store := memory.New()
	rtr := router.New(id, store, opts.RelayAddr, config.RouterConfig{
		DirectTimeout: time.Second,
		RelayTimeout:  time.Second,
		RetryPolicy:   config.RetryPolicyConfig{MaxAttempts: 5},
	}, nil)
	if opts.Name == "" {
		opts.Name = "alice"
	}
	n := New(id, store, rtr, opts, nil)
	return n, store, id
}

// buildEnvelopeFrom builds a well-formed envelope from sender to the
// node's identity.
func buildEnvelopeFrom(t *testing.T, sender *crypto.Identity, recipient *crypto.Identity, body string) envelope.Envelope {
	t.Helper()
	payload := envelope.Payload{
		FromAddr:  "sender@sender.local",
		ToAddr:    "alice@alice.local",
		Subject:   "hi",
		Body:      body,
		Kind:      envelope.KindMessage,
		CreatedAt: time.Now().UnixMilli(),
		Nonce:     mustNonce(t),
	}
	env, err := envelope.BuildEnvelope(payload,
		envelope.Sender{FP: sender.Fingerprint(), SignPriv: sender.SignPriv},
		envelope.Recipient{FP: recipient.Fingerprint(), EncPub: recipient.EncPub},
		time.Now(),
	)
	require.NoError(t, err)
	return env
}

func mustNonce(t *testing.T) []byte {
	t.Helper()
	nonce, err := envelope.NewNonce()
	require.NoError(t, err)
	return nonce
}

func recordPeer(t *testing.T, store mailbox.Store, id *crypto.Identity, name string) {
	t.Helper()
	err := store.UpsertPeer(context.Background(), mailbox.PeerInfo{
		FP:     id.Fingerprint(),
		Name:   name,
		SignPK: id.SignPub,
		EncPK:  id.EncPub.Bytes(),
		Source: mailbox.SourceManual,
	})
	require.NoError(t, err)
}

func TestProcessInboundAcceptsValidEnvelope(t *testing.T) {
	n, store, id := newTestNode(t, Options{})
	sender := mustIdentity(t)
	recordPeer(t, store, sender, "bob")

	env := buildEnvelopeFrom(t, sender, id, "ping")
	raw, err := envelope.CanonicalEnvelope(env)
	require.NoError(t, err)

	msgID, err := n.processInbound(context.Background(), raw)
	require.NoError(t, err)
	require.NotEmpty(t, msgID)

	msgs, err := store.Inbox(context.Background(), "", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, "ping", msgs[0].Body)
	require.Equal(t, mailbox.StatusDelivered, msgs[0].Status)
	require.NotNil(t, msgs[0].DeliveredAt)
}

func TestProcessInboundRejectsUnknownSender(t *testing.T) {
	n, _, id := newTestNode(t, Options{})
	sender := mustIdentity(t)

	env := buildEnvelopeFrom(t, sender, id, "ping")
	raw, err := envelope.CanonicalEnvelope(env)
	require.NoError(t, err)

	_, err = n.processInbound(context.Background(), raw)
	require.Error(t, err)

	var inboundErr *inboundError
	require.ErrorAs(t, err, &inboundErr)
	require.Equal(t, 401, inboundErr.status)
}

func TestProcessInboundRejectsWrongSigner(t *testing.T) {
	n, store, id := newTestNode(t, Options{})
	claimed := mustIdentity(t)
	actualSigner := mustIdentity(t)
	recordPeer(t, store, claimed, "bob")

	payload := envelope.Payload{
		FromAddr: "bob@bob.local", ToAddr: "alice@alice.local", Subject: "hi", Body: "ping",
		Kind: envelope.KindMessage, CreatedAt: time.Now().UnixMilli(), Nonce: mustNonce(t),
	}
	env, err := envelope.BuildEnvelope(payload,
		envelope.Sender{FP: claimed.Fingerprint(), SignPriv: actualSigner.SignPriv},
		envelope.Recipient{FP: id.Fingerprint(), EncPub: id.EncPub},
		time.Now(),
	)
	require.NoError(t, err)
	raw, err := envelope.CanonicalEnvelope(env)
	require.NoError(t, err)

	_, err = n.processInbound(context.Background(), raw)
	require.Error(t, err)
	var inboundErr *inboundError
	require.ErrorAs(t, err, &inboundErr)
	require.Equal(t, 401, inboundErr.status)
}

func TestProcessInboundRejectsCorruptCiphertext(t *testing.T) {
	n, store, id := newTestNode(t, Options{})
	sender := mustIdentity(t)
	recordPeer(t, store, sender, "bob")

	payload := envelope.Payload{
		FromAddr: "bob@bob.local", ToAddr: "alice@alice.local", Subject: "hi", Body: "ping",
		Kind: envelope.KindMessage, CreatedAt: time.Now().UnixMilli(), Nonce: mustNonce(t),
	}
	plaintext, err := envelope.CanonicalPayload(payload)
	require.NoError(t, err)
	ciphertext, err := crypto.Seal(id.EncPub, plaintext)
	require.NoError(t, err)
	ciphertext[len(ciphertext)-1] ^= 0xFF

	env := envelope.Envelope{
		Version:     envelope.EnvelopeVersion,
		SenderFP:    sender.Fingerprint(),
		RecipientFP: id.Fingerprint(),
		Ciphertext:  ciphertext,
		SentAt:      time.Now().UnixMilli(),
	}
	signedBytes, err := envelope.SignedBytes(env)
	require.NoError(t, err)
	env.Signature = crypto.Sign(sender.SignPriv, signedBytes)

	raw, err := envelope.CanonicalEnvelope(env)
	require.NoError(t, err)

	_, err = n.processInbound(context.Background(), raw)
	require.Error(t, err)
	var inboundErr *inboundError
	require.ErrorAs(t, err, &inboundErr)
	require.Equal(t, 422, inboundErr.status)

	msgs, err := store.Inbox(context.Background(), "", 10)
	require.NoError(t, err)
	require.Empty(t, msgs)
}

func TestProcessInboundRejectsMalformedBody(t *testing.T) {
	n, _, _ := newTestNode(t, Options{})
	_, err := n.processInbound(context.Background(), []byte("not json"))
	require.Error(t, err)
	var inboundErr *inboundError
	require.ErrorAs(t, err, &inboundErr)
	require.Equal(t, 400, inboundErr.status)
}

func TestProcessInboundDedupUnderDualDelivery(t *testing.T) {
	n, store, id := newTestNode(t, Options{})
	sender := mustIdentity(t)
	recordPeer(t, store, sender, "bob")

	env := buildEnvelopeFrom(t, sender, id, "ping")
	raw, err := envelope.CanonicalEnvelope(env)
	require.NoError(t, err)

	_, err = n.processInbound(context.Background(), raw)
	require.NoError(t, err)
	_, err = n.processInbound(context.Background(), raw)
	require.NoError(t, err)

	msgs, err := store.Inbox(context.Background(), "", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
}

func TestAddressFormatsNameAtNameLocal(t *testing.T) {
	n, _, _ := newTestNode(t, Options{Name: "alice"})
	require.Equal(t, "alice@alice.local", n.Address())
}
