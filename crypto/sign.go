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

import "crypto/ed25519"

// Sign produces a 64-byte Ed25519 signature over bytes.
func Sign(signPriv ed25519.PrivateKey, bytes []byte) []byte {
	return ed25519.Sign(signPriv, bytes)
}

// Verify checks an Ed25519 signature, returning a CryptoError{BAD_SIG} on
// mismatch.
func Verify(signPub ed25519.PublicKey, bytes, sig []byte) error {
	if len(signPub) != ed25519.PublicKeySize {
		return newError(KindBadKey, "signing public key has wrong length", nil)
	}
	if !ed25519.Verify(signPub, bytes, sig) {
		return newError(KindBadSignature, "signature does not verify", nil)
	}
	return nil
}
