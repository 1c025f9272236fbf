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
	"crypto/ecdh"
	"crypto/ed25519"
	"fmt"
	"time"

	"github.com/agentmail-dev/agentmail/crypto"
)

// Sender is the minimal view of a local identity BuildEnvelope needs: a
// signing key and the fingerprint it maps to.
type Sender struct {
	FP       string
	SignPriv ed25519.PrivateKey
}

// Recipient is the minimal view of a peer BuildEnvelope needs: the
// encryption key a payload is sealed to.
type Recipient struct {
	FP     string
	EncPub *ecdh.PublicKey
}

// BuildEnvelope encrypts the canonical payload to recipient's enc_pk and
// signs the result with sender's sign_sk. It performs no I/O: callers are
// responsible for persisting the resulting Envelope.
func BuildEnvelope(payload Payload, sender Sender, recipient Recipient, sentAt time.Time) (Envelope, error) {
	plaintext, err := CanonicalPayload(payload)
	if err != nil {
		return Envelope{}, err
	}

	ciphertext, err := crypto.Seal(recipient.EncPub, plaintext)
	if err != nil {
		return Envelope{}, fmt.Errorf("envelope: seal payload: %w", err)
	}

	env := Envelope{
		Version:     EnvelopeVersion,
		SenderFP:    sender.FP,
		RecipientFP: recipient.FP,
		Ciphertext:  ciphertext,
		SentAt:      sentAt.UnixMilli(),
	}

	signedBytes, err := SignedBytes(env)
	if err != nil {
		return Envelope{}, err
	}
	env.Signature = crypto.Sign(sender.SignPriv, signedBytes)

	return env, nil
}

// VerifyAndOpen checks env's signature against knownSenderPK, then decrypts
// its ciphertext with localEncPriv. It performs no I/O.
func VerifyAndOpen(env Envelope, localEncPriv *ecdh.PrivateKey, knownSenderPK ed25519.PublicKey) (Payload, error) {
	signedBytes, err := SignedBytes(env)
	if err != nil {
		return Payload{}, err
	}
	if err := crypto.Verify(knownSenderPK, signedBytes, env.Signature); err != nil {
		return Payload{}, err
	}

	plaintext, err := crypto.Open(localEncPriv, env.Ciphertext)
	if err != nil {
		return Payload{}, err
	}

	return ParsePayload(plaintext)
}
