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

package sqlite

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS peers (
		fp        TEXT PRIMARY KEY,
		name      TEXT NOT NULL,
		sign_pk   BLOB NOT NULL,
		enc_pk    BLOB NOT NULL,
		endpoint  TEXT NOT NULL DEFAULT '',
		last_seen INTEGER NOT NULL,
		source    TEXT NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_peers_name ON peers(name);`,

	`CREATE TABLE IF NOT EXISTS messages (
		id            TEXT PRIMARY KEY,
		direction     TEXT NOT NULL,
		from_addr     TEXT NOT NULL,
		to_addr       TEXT NOT NULL,
		subject       TEXT NOT NULL,
		body          TEXT NOT NULL,
		kind          TEXT NOT NULL,
		created_at    INTEGER NOT NULL,
		delivered_at  INTEGER,
		status        TEXT NOT NULL,
		attempts      INTEGER NOT NULL DEFAULT 0,
		envelope_blob BLOB NOT NULL,
		sender_fp     TEXT NOT NULL,
		nonce         BLOB NOT NULL
	);`,
	// the dedup boundary: a second IN message for the same (sender_fp,
	// nonce) pair is a no-op insert per the mailbox contract.
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_messages_in_dedup
		ON messages(sender_fp, nonce) WHERE direction = 'IN';`,
	`CREATE INDEX IF NOT EXISTS idx_messages_inbox ON messages(direction, id);`,

	`CREATE TABLE IF NOT EXISTS outbox (
		id          TEXT PRIMARY KEY,
		message_id  TEXT NOT NULL,
		envelope_blob BLOB NOT NULL,
		target_fp   TEXT NOT NULL,
		next_try_at INTEGER NOT NULL,
		attempts    INTEGER NOT NULL DEFAULT 0,
		last_error  TEXT NOT NULL DEFAULT '',
		tier        TEXT NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_outbox_due ON outbox(target_fp, next_try_at);`,
}
