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

package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentmail-dev/agentmail/config"
	"github.com/agentmail-dev/agentmail/crypto"
	"github.com/agentmail-dev/agentmail/envelope"
	"github.com/agentmail-dev/agentmail/mailbox"
	"github.com/agentmail-dev/agentmail/mailbox/memory"
)

func testRouterConfig() config.RouterConfig {
	return config.RouterConfig{
		RetryPolicy: config.RetryPolicyConfig{
			MaxAttempts:  20,
			InitialDelay: 5 * time.Second,
			MaxDelay:     300 * time.Second,
			Multiplier:   2.0,
		},
		DrainInterval: 100 * time.Millisecond,
		DirectTimeout: time.Second,
		RelayTimeout:  time.Second,
	}
}

func mustIdentity(t *testing.T) *crypto.Identity {
	t.Helper()
	id, err := crypto.GenerateIdentity()
	require.NoError(t, err)
	return id
}

func TestSendUnknownRecipientFails(t *testing.T) {
	id := mustIdentity(t)
	store := memory.New()
	r := New(id, store, "", testRouterConfig(), nil)

	_, err := r.Send(context.Background(), envelope.Payload{FromAddr: "me", ToAddr: "nobody", Kind: envelope.KindMessage}, "nobody")
	assert.ErrorIs(t, err, ErrUnknownRecipient)
}

func TestSendDeliversDirectlyOnSuccess(t *testing.T) {
	received := make(chan []byte, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		buf := make([]byte, req.ContentLength)
		req.Body.Read(buf)
		received <- buf
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sender := mustIdentity(t)
	recipient := mustIdentity(t)
	store := memory.New()
	require.NoError(t, store.UpsertPeer(context.Background(), mailbox.PeerInfo{
		FP:       recipient.Fingerprint(),
		Name:     "bob",
		SignPK:   recipient.SignPub,
		EncPK:    recipient.EncPub.Bytes(),
		Endpoint: strings.TrimPrefix(srv.URL, "http://"),
		LastSeen: time.Now(),
		Source:   mailbox.SourceManual,
	}))

	r := New(sender, store, "", testRouterConfig(), nil)
	id, err := r.Send(context.Background(), envelope.Payload{FromAddr: "alice", ToAddr: "bob", Subject: "hi", Body: "hello", Kind: envelope.KindMessage}, "bob")
	require.NoError(t, err)

	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("direct handler was never invoked")
	}

	msgs, err := store.Inbox(context.Background(), "", 10)
	require.NoError(t, err)
	assert.Empty(t, msgs) // this is the sender's own store; it has no IN messages

	due, err := store.ListOutboxDue(context.Background(), time.Now().Add(time.Second), 10)
	require.NoError(t, err)
	assert.Empty(t, due, "delivered entry should be cleared from the outbox")
	_ = id
}

func TestSendFallsBackToRelayWhenDirectFails(t *testing.T) {
	relayHit := make(chan struct{}, 1)
	relay := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path == "/v0/deposit" {
			relayHit <- struct{}{}
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer relay.Close()

	sender := mustIdentity(t)
	recipient := mustIdentity(t)
	store := memory.New()
	require.NoError(t, store.UpsertPeer(context.Background(), mailbox.PeerInfo{
		FP:       recipient.Fingerprint(),
		Name:     "bob",
		SignPK:   recipient.SignPub,
		EncPK:    recipient.EncPub.Bytes(),
		Endpoint: "127.0.0.1:1", // nothing listens here
		LastSeen: time.Now(),
	}))

	r := New(sender, store, relay.URL, testRouterConfig(), nil)
	_, err := r.Send(context.Background(), envelope.Payload{FromAddr: "alice", ToAddr: "bob", Kind: envelope.KindMessage}, "bob")
	require.NoError(t, err)

	select {
	case <-relayHit:
	case <-time.After(2 * time.Second):
		t.Fatal("relay deposit was never invoked")
	}
}

func TestSendQueuesOnTotalFailure(t *testing.T) {
	sender := mustIdentity(t)
	recipient := mustIdentity(t)
	store := memory.New()
	require.NoError(t, store.UpsertPeer(context.Background(), mailbox.PeerInfo{
		FP:       recipient.Fingerprint(),
		Name:     "bob",
		SignPK:   recipient.SignPub,
		EncPK:    recipient.EncPub.Bytes(),
		Endpoint: "127.0.0.1:1",
		LastSeen: time.Now(),
	}))

	r := New(sender, store, "", testRouterConfig(), nil)
	_, err := r.Send(context.Background(), envelope.Payload{FromAddr: "alice", ToAddr: "bob", Kind: envelope.KindMessage}, "bob")
	require.NoError(t, err)

	due, err := store.ListOutboxDue(context.Background(), time.Now().Add(10*time.Second), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, 1, due[0].Attempts)
	assert.NotEmpty(t, due[0].LastError)
}

func TestDrainOnceRetriesQueuedEntries(t *testing.T) {
	received := make(chan struct{}, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		received <- struct{}{}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sender := mustIdentity(t)
	recipient := mustIdentity(t)
	store := memory.New()
	require.NoError(t, store.UpsertPeer(context.Background(), mailbox.PeerInfo{
		FP:       recipient.Fingerprint(),
		Name:     "bob",
		SignPK:   recipient.SignPub,
		EncPK:    recipient.EncPub.Bytes(),
		Endpoint: "127.0.0.1:1",
		LastSeen: time.Now(),
	}))

	r := New(sender, store, "", testRouterConfig(), nil)
	_, err := r.Send(context.Background(), envelope.Payload{FromAddr: "alice", ToAddr: "bob", Kind: envelope.KindMessage}, "bob")
	require.NoError(t, err)

	// fix the peer's endpoint up to the live server and force the entry due now.
	peer, err := store.GetPeerByNameOrFP(context.Background(), recipient.Fingerprint())
	require.NoError(t, err)
	peer.Endpoint = strings.TrimPrefix(srv.URL, "http://")
	require.NoError(t, store.UpsertPeer(context.Background(), peer))

	due, err := store.ListOutboxDue(context.Background(), time.Now().Add(time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	require.NoError(t, store.RescheduleOutbox(context.Background(), due[0].ID, time.Now(), due[0].Attempts, ""))

	require.NoError(t, r.DrainOnce(context.Background()))

	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("drain did not retry the due entry")
	}
}

func TestNextDelayGrowsExponentiallyAndCaps(t *testing.T) {
	policy := config.RetryPolicyConfig{InitialDelay: 5 * time.Second, MaxDelay: 300 * time.Second, Multiplier: 2.0}

	assert.Equal(t, 5*time.Second, nextDelay(0, policy))
	assert.Equal(t, 10*time.Second, nextDelay(1, policy))
	assert.Equal(t, 20*time.Second, nextDelay(2, policy))
	assert.Equal(t, 300*time.Second, nextDelay(20, policy))
}
