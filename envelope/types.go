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

// Package envelope implements the wire record carrying one message between
// nodes: canonical serialization, sealed-box encryption, and the Ed25519
// signature that authenticates the sender.
package envelope

// Kind classifies a MessagePayload's intent.
type Kind string

const (
	KindMessage Kind = "MESSAGE"
	KindTask    Kind = "TASK"
	KindAck     Kind = "ACK"
)

// EnvelopeVersion is the current wire format version. A receiving node
// rejects any envelope whose version it does not understand.
const EnvelopeVersion = 1

// Payload is the inner plaintext sealed inside an Envelope's ciphertext.
type Payload struct {
	FromAddr  string `json:"from_addr"`
	ToAddr    string `json:"to_addr"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
	Kind      Kind   `json:"kind"`
	CreatedAt int64  `json:"created_at"`
	Nonce     []byte `json:"nonce"`
}

// Envelope is the outer wire form exchanged between nodes and handed to
// relays, who see only Ciphertext.
type Envelope struct {
	Version     int    `json:"version"`
	SenderFP    string `json:"sender_fp"`
	RecipientFP string `json:"recipient_fp"`
	Ciphertext  []byte `json:"ciphertext"`
	Signature   []byte `json:"signature"`
	SentAt      int64  `json:"sent_at"`
}
