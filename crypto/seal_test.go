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

package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealOpenRoundTrip(t *testing.T) {
	recipient, err := GenerateIdentity()
	require.NoError(t, err)

	plaintext := []byte(`{"subject":"hello","body":"from a sealed box"}`)
	packet, err := Seal(recipient.EncPub, plaintext)
	require.NoError(t, err)
	assert.Greater(t, len(packet), sealedBoxEncLen)

	opened, err := Open(recipient.EncPriv, packet)
	require.NoError(t, err)
	assert.Equal(t, plaintext, opened)
}

func TestSealIsNotDeterministic(t *testing.T) {
	recipient, err := GenerateIdentity()
	require.NoError(t, err)

	plaintext := []byte("same plaintext, different seal")
	a, err := Seal(recipient.EncPub, plaintext)
	require.NoError(t, err)
	b, err := Seal(recipient.EncPub, plaintext)
	require.NoError(t, err)

	assert.NotEqual(t, a, b, "each seal uses a fresh ephemeral key and must not repeat its ciphertext")
}

func TestOpenFailsForWrongRecipient(t *testing.T) {
	recipient, err := GenerateIdentity()
	require.NoError(t, err)
	other, err := GenerateIdentity()
	require.NoError(t, err)

	packet, err := Seal(recipient.EncPub, []byte("for recipient only"))
	require.NoError(t, err)

	_, err = Open(other.EncPriv, packet)
	require.Error(t, err)

	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, KindDecryptFail, cerr.Kind)
}

func TestOpenFailsOnTamperedCiphertext(t *testing.T) {
	recipient, err := GenerateIdentity()
	require.NoError(t, err)

	packet, err := Seal(recipient.EncPub, []byte("tamper with me"))
	require.NoError(t, err)
	packet[len(packet)-1] ^= 0xFF

	_, err = Open(recipient.EncPriv, packet)
	require.Error(t, err)
}

func TestOpenFailsOnTruncatedPacket(t *testing.T) {
	recipient, err := GenerateIdentity()
	require.NoError(t, err)

	_, err = Open(recipient.EncPriv, []byte{1, 2, 3})
	require.Error(t, err)

	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, KindDecryptFail, cerr.Kind)
}
