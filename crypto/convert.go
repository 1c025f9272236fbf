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
	"crypto/ed25519"

	"filippo.io/edwards25519"
)

// DeriveX25519PublicFromEd25519 maps an Ed25519 signing public key onto its
// birationally equivalent X25519 Montgomery point. Peers announced with
// only a sign_pk (a manually configured bootstrap peer, for instance) can
// be reached once their enc_pk is recovered this way, without requiring a
// second round trip to learn it.
func DeriveX25519PublicFromEd25519(signPub ed25519.PublicKey) (*ecdh.PublicKey, error) {
	if len(signPub) != ed25519.PublicKeySize {
		return nil, newError(KindBadKey, "ed25519 public key has wrong length", nil)
	}

	p, err := new(edwards25519.Point).SetBytes(signPub)
	if err != nil {
		return nil, newError(KindBadKey, "ed25519 point is not on the curve", err)
	}

	pub, err := ecdh.X25519().NewPublicKey(p.BytesMontgomery())
	if err != nil {
		return nil, newError(KindBadKey, "derived montgomery point", err)
	}
	return pub, nil
}
