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

package mailbox

import (
	"context"
	"time"
)

// Store is the mailbox's persistence contract: messages, peers, and the
// outbox. Every state-changing operation is transactional.
type Store interface {
	// UpsertPeer merges a peer record, preferring a non-null endpoint and
	// bumping last_seen. Returns ErrPeerConflict if sign_pk would change
	// for an already-known fingerprint.
	UpsertPeer(ctx context.Context, peer PeerInfo) error

	// GetPeerByNameOrFP looks a peer up by its name or fingerprint,
	// returning ErrNotFound if neither matches.
	GetPeerByNameOrFP(ctx context.Context, key string) (PeerInfo, error)

	// PurgePeer deletes a peer record by fingerprint, clearing the way for
	// a conflicting record to be re-learned under the same fingerprint.
	PurgePeer(ctx context.Context, fp string) error

	// ClearPeerEndpoint blanks a known peer's endpoint without touching its
	// keys or name, for when a discovery source reports the peer gone
	// while the peer's identity (sign_pk/enc_pk) should still be
	// remembered. A no-op if fp is not known.
	ClearPeerEndpoint(ctx context.Context, fp string) error

	// InsertInbound persists a verified, decrypted inbound message.
	// Idempotent on (sender_fp, nonce): a second insert of the same pair
	// is a no-op that returns the existing message's id.
	InsertInbound(ctx context.Context, msg StoredMessage) (id string, err error)

	// InsertOutbound persists an OUT StoredMessage and its OutboxEntry in
	// a single transaction.
	InsertOutbound(ctx context.Context, msg StoredMessage, entry OutboxEntry) error

	// MarkDelivered transitions a PENDING message to DELIVERED and deletes
	// its outbox entry.
	MarkDelivered(ctx context.Context, id string, tier Tier) error

	// MarkFailed transitions a PENDING message to FAILED and deletes its
	// outbox entry.
	MarkFailed(ctx context.Context, id string, reason string) error

	// RescheduleOutbox bumps an outbox entry's next_try_at, attempts, and
	// last_error.
	RescheduleOutbox(ctx context.Context, entryID string, nextTryAt time.Time, attempts int, lastError string) error

	// ListOutboxDue returns up to limit due entries ordered by
	// (target_fp, next_try_at), so a single scan processes each
	// recipient's queue serially.
	ListOutboxDue(ctx context.Context, now time.Time, limit int) ([]OutboxEntry, error)

	// Inbox returns a page of stored messages ordered by id (which, being
	// a ULID, also orders by creation time), starting after cursor.
	Inbox(ctx context.Context, cursor string, limit int) ([]StoredMessage, error)

	// Close releases the store's underlying resources.
	Close() error
}
