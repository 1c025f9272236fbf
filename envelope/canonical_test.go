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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePayload() Payload {
	return Payload{
		FromAddr:  "alice@laptop.local",
		ToAddr:    "bob@desktop.local",
		Subject:   "hi",
		Body:      "hello there",
		Kind:      KindMessage,
		CreatedAt: 1700000000000,
		Nonce:     []byte("0123456789abcdef"),
	}
}

func TestCanonicalPayloadIsOrderIndependent(t *testing.T) {
	p := samplePayload()

	data1, err := CanonicalPayload(p)
	require.NoError(t, err)

	// Constructing the same payload via a struct literal with fields in a
	// different order must not change the resulting bytes: canonical
	// encoding is keyed on field identity, not Go struct declaration order.
	reordered := Payload{
		Nonce:     p.Nonce,
		Kind:      p.Kind,
		Body:      p.Body,
		Subject:   p.Subject,
		ToAddr:    p.ToAddr,
		FromAddr:  p.FromAddr,
		CreatedAt: p.CreatedAt,
	}
	data2, err := CanonicalPayload(reordered)
	require.NoError(t, err)

	assert.Equal(t, data1, data2)
}

func TestCanonicalPayloadHasNoInsignificantWhitespace(t *testing.T) {
	data, err := CanonicalPayload(samplePayload())
	require.NoError(t, err)
	assert.NotContains(t, string(data), " ")
	assert.NotContains(t, string(data), "\n")
}

func TestCanonicalPayloadKeysAreSorted(t *testing.T) {
	data, err := CanonicalPayload(samplePayload())
	require.NoError(t, err)

	assert.True(t, indexOf(string(data), `"body"`) < indexOf(string(data), `"created_at"`))
	assert.True(t, indexOf(string(data), `"created_at"`) < indexOf(string(data), `"from_addr"`))
	assert.True(t, indexOf(string(data), `"from_addr"`) < indexOf(string(data), `"kind"`))
	assert.True(t, indexOf(string(data), `"kind"`) < indexOf(string(data), `"nonce"`))
	assert.True(t, indexOf(string(data), `"nonce"`) < indexOf(string(data), `"subject"`))
	assert.True(t, indexOf(string(data), `"subject"`) < indexOf(string(data), `"to_addr"`))
}

func indexOf(haystack, needle string) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	return -1
}

func TestPayloadRoundTrip(t *testing.T) {
	p := samplePayload()
	data, err := CanonicalPayload(p)
	require.NoError(t, err)

	parsed, err := ParsePayload(data)
	require.NoError(t, err)
	assert.Equal(t, p, parsed)
}

func TestSignedBytesOmitsSignature(t *testing.T) {
	env := Envelope{
		Version:     EnvelopeVersion,
		SenderFP:    "sender-fp-1234",
		RecipientFP: "recip-fp-5678",
		Ciphertext:  []byte("ciphertext-bytes"),
		Signature:   []byte("a-signature-that-should-not-appear"),
		SentAt:      1700000000000,
	}

	signed, err := SignedBytes(env)
	require.NoError(t, err)
	assert.NotContains(t, string(signed), "signature")
}

func TestEnvelopeRoundTrip(t *testing.T) {
	env := Envelope{
		Version:     EnvelopeVersion,
		SenderFP:    "sender-fp-1234",
		RecipientFP: "recip-fp-5678",
		Ciphertext:  []byte("ciphertext-bytes"),
		Signature:   []byte("signature-bytes"),
		SentAt:      1700000000000,
	}

	data, err := CanonicalEnvelope(env)
	require.NoError(t, err)

	parsed, err := ParseEnvelope(data)
	require.NoError(t, err)
	assert.Equal(t, env, parsed)
}
