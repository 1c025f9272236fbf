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

// Package crypto provides the node's cryptographic identity: Ed25519
// signing, X25519 sealed-box encryption, and fingerprinting.
package crypto

import "fmt"

// Kind classifies a CryptoError per the error taxonomy in the delivery spec.
type Kind string

const (
	KindBadSignature Kind = "BAD_SIG"
	KindBadKey       Kind = "BAD_KEY"
	KindDecryptFail  Kind = "DECRYPT_FAIL"
)

// Error is a local, never-retried cryptographic failure.
type Error struct {
	Kind  Kind
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("crypto: %s: %s: %v", e.Kind, e.Msg, e.Cause)
	}
	return fmt.Sprintf("crypto: %s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Cause }

func newError(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Cause: cause}
}
