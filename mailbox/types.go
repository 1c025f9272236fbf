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

// Package mailbox is the node's embedded relational store: messages,
// peers, and the outbox that drives the router's retry loop.
package mailbox

import (
	"errors"
	"time"

	"github.com/agentmail-dev/agentmail/envelope"
)

// Direction classifies a StoredMessage's origin.
type Direction string

const (
	DirectionIn  Direction = "IN"
	DirectionOut Direction = "OUT"
)

// MessageStatus is a StoredMessage's delivery lifecycle state.
type MessageStatus string

const (
	StatusPending   MessageStatus = "PENDING"
	StatusDelivered MessageStatus = "DELIVERED"
	StatusFailed    MessageStatus = "FAILED"
)

// Tier identifies which delivery path an OutboxEntry is attempting.
type Tier string

const (
	TierDirect Tier = "DIRECT"
	TierRelay  Tier = "RELAY"
)

// PeerSource records how a PeerInfo was learned.
type PeerSource string

const (
	SourceLAN    PeerSource = "LAN"
	SourceRelay  PeerSource = "RELAY"
	SourceManual PeerSource = "MANUAL"
)

// PeerInfo is a record of a known peer, keyed by fingerprint.
type PeerInfo struct {
	FP       string
	Name     string
	SignPK   []byte
	EncPK    []byte
	Endpoint string // host:port, empty if unknown
	LastSeen time.Time
	Source   PeerSource
}

// StoredMessage is a row in the mailbox.
type StoredMessage struct {
	ID           string
	Direction    Direction
	FromAddr     string
	ToAddr       string
	Subject      string
	Body         string
	Kind         envelope.Kind
	CreatedAt    time.Time
	DeliveredAt  *time.Time
	Status       MessageStatus
	Attempts     int
	EnvelopeBlob []byte
	SenderFP     string // sender_fp of the originating envelope, used for dedup
	Nonce        []byte // payload.nonce, used for dedup
}

// OutboxEntry is the retry-scheduling record for a non-terminal OUT
// StoredMessage.
type OutboxEntry struct {
	ID         string
	MessageID  string
	Envelope   envelope.Envelope
	TargetFP   string
	NextTryAt  time.Time
	Attempts   int
	LastError  string
	Tier       Tier
}

// ErrPeerConflict is returned by UpsertPeer when a known fingerprint's
// sign_pk would change.
var ErrPeerConflict = errors.New("mailbox: peer conflict: sign_pk changed for known fingerprint")

// ErrNotFound is returned by lookups that find nothing.
var ErrNotFound = errors.New("mailbox: not found")
