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
	"crypto/ecdh"
	"crypto/rand"
	"fmt"

	"github.com/cloudflare/circl/hpke"
)

// sealedBoxEncLen is the length, in bytes, of the HPKE X25519 KEM's
// encapsulated ephemeral key prefixed onto every sealed-box ciphertext.
const sealedBoxEncLen = 32

func sealSuite() hpke.Suite {
	return hpke.NewSuite(
		hpke.KEM_X25519_HKDF_SHA256,
		hpke.KDF_HKDF_SHA256,
		hpke.AEAD_ChaCha20Poly1305,
	)
}

// Seal performs anonymous-sender sealed-box encryption of plaintext to a
// recipient's X25519 public key: an HPKE Base-mode sender is set up with a
// fresh ephemeral keypair and the plaintext is AEAD-sealed under it. The
// returned ciphertext is self-describing (enc || ct) and carries no sender
// authentication of its own — the envelope's Ed25519 signature provides
// that separately.
func Seal(recipientPub *ecdh.PublicKey, plaintext []byte) ([]byte, error) {
	suite := sealSuite()
	kem := hpke.KEM_X25519_HKDF_SHA256.Scheme()

	rp, err := kem.UnmarshalBinaryPublicKey(recipientPub.Bytes())
	if err != nil {
		return nil, newError(KindBadKey, "unmarshal recipient enc_pk", err)
	}

	sender, err := suite.NewSender(rp, nil)
	if err != nil {
		return nil, newError(KindBadKey, "set up hpke sender", err)
	}
	enc, sealer, err := sender.Setup(rand.Reader)
	if err != nil {
		return nil, newError(KindBadKey, "hpke sender setup", err)
	}

	ct, err := sealer.Seal(plaintext, nil)
	if err != nil {
		return nil, newError(KindDecryptFail, "hpke seal", err)
	}

	packet := make([]byte, 0, len(enc)+len(ct))
	packet = append(packet, enc...)
	packet = append(packet, ct...)
	return packet, nil
}

// Open reverses Seal using the recipient's X25519 private key, returning
// CryptoError{DECRYPT_FAIL} on any failure — a malformed packet, a
// truncated encapsulated key, or an AEAD authentication failure (including
// a tampered ciphertext byte).
func Open(recipientPriv *ecdh.PrivateKey, packet []byte) ([]byte, error) {
	if len(packet) < sealedBoxEncLen {
		return nil, newError(KindDecryptFail, "sealed box shorter than kem encap key", nil)
	}
	enc := packet[:sealedBoxEncLen]
	ct := packet[sealedBoxEncLen:]

	suite := sealSuite()
	kem := hpke.KEM_X25519_HKDF_SHA256.Scheme()

	skR, err := kem.UnmarshalBinaryPrivateKey(recipientPriv.Bytes())
	if err != nil {
		return nil, newError(KindBadKey, "unmarshal recipient enc_sk", err)
	}

	receiver, err := suite.NewReceiver(skR, nil)
	if err != nil {
		return nil, newError(KindDecryptFail, "set up hpke receiver", err)
	}
	opener, err := receiver.Setup(enc)
	if err != nil {
		return nil, newError(KindDecryptFail, "hpke receiver setup", err)
	}

	pt, err := opener.Open(ct, nil)
	if err != nil {
		return nil, newError(KindDecryptFail, fmt.Sprintf("hpke open (%d byte ciphertext)", len(ct)), err)
	}
	return pt, nil
}
