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

package envelope

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentmail-dev/agentmail/crypto"
)

func TestBuildEnvelopeAndVerifyAndOpenRoundTrip(t *testing.T) {
	senderID, err := crypto.GenerateIdentity()
	require.NoError(t, err)
	recipientID, err := crypto.GenerateIdentity()
	require.NoError(t, err)

	nonce, err := NewNonce()
	require.NoError(t, err)
	payload := Payload{
		FromAddr:  "alice@laptop.local",
		ToAddr:    "bob@desktop.local",
		Subject:   "hi",
		Body:      "hello there",
		Kind:      KindMessage,
		CreatedAt: time.Now().UnixMilli(),
		Nonce:     nonce,
	}

	sender := Sender{FP: senderID.Fingerprint(), SignPriv: senderID.SignPriv}
	recipient := Recipient{FP: recipientID.Fingerprint(), EncPub: recipientID.EncPub}

	env, err := BuildEnvelope(payload, sender, recipient, time.Now())
	require.NoError(t, err)
	assert.Equal(t, senderID.Fingerprint(), env.SenderFP)
	assert.Equal(t, recipientID.Fingerprint(), env.RecipientFP)

	opened, err := VerifyAndOpen(env, recipientID.EncPriv, senderID.SignPub)
	require.NoError(t, err)
	assert.Equal(t, payload, opened)
}

func TestVerifyAndOpenRejectsWrongSenderKey(t *testing.T) {
	senderID, err := crypto.GenerateIdentity()
	require.NoError(t, err)
	recipientID, err := crypto.GenerateIdentity()
	require.NoError(t, err)
	impostor, err := crypto.GenerateIdentity()
	require.NoError(t, err)

	nonce, err := NewNonce()
	require.NoError(t, err)
	payload := Payload{FromAddr: "a@h.local", ToAddr: "b@h.local", Kind: KindMessage, Nonce: nonce}

	sender := Sender{FP: senderID.Fingerprint(), SignPriv: senderID.SignPriv}
	recipient := Recipient{FP: recipientID.Fingerprint(), EncPub: recipientID.EncPub}

	env, err := BuildEnvelope(payload, sender, recipient, time.Now())
	require.NoError(t, err)

	_, err = VerifyAndOpen(env, recipientID.EncPriv, impostor.SignPub)
	require.Error(t, err)

	var cerr *crypto.Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, crypto.KindBadSignature, cerr.Kind)
}

func TestVerifyAndOpenRejectsWrongRecipientKey(t *testing.T) {
	senderID, err := crypto.GenerateIdentity()
	require.NoError(t, err)
	recipientID, err := crypto.GenerateIdentity()
	require.NoError(t, err)
	eavesdropper, err := crypto.GenerateIdentity()
	require.NoError(t, err)

	nonce, err := NewNonce()
	require.NoError(t, err)
	payload := Payload{FromAddr: "a@h.local", ToAddr: "b@h.local", Kind: KindMessage, Nonce: nonce}

	sender := Sender{FP: senderID.Fingerprint(), SignPriv: senderID.SignPriv}
	recipient := Recipient{FP: recipientID.Fingerprint(), EncPub: recipientID.EncPub}

	env, err := BuildEnvelope(payload, sender, recipient, time.Now())
	require.NoError(t, err)

	_, err = VerifyAndOpen(env, eavesdropper.EncPriv, senderID.SignPub)
	require.Error(t, err)
}

func TestVerifyAndOpenRejectsTamperedCiphertext(t *testing.T) {
	senderID, err := crypto.GenerateIdentity()
	require.NoError(t, err)
	recipientID, err := crypto.GenerateIdentity()
	require.NoError(t, err)

	nonce, err := NewNonce()
	require.NoError(t, err)
	payload := Payload{FromAddr: "a@h.local", ToAddr: "b@h.local", Kind: KindMessage, Nonce: nonce}

	sender := Sender{FP: senderID.Fingerprint(), SignPriv: senderID.SignPriv}
	recipient := Recipient{FP: recipientID.Fingerprint(), EncPub: recipientID.EncPub}

	env, err := BuildEnvelope(payload, sender, recipient, time.Now())
	require.NoError(t, err)

	env.Ciphertext[0] ^= 0xFF

	_, err = VerifyAndOpen(env, recipientID.EncPriv, senderID.SignPub)
	require.Error(t, err)
}
