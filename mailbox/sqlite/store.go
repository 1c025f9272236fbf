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

// Package sqlite is the embedded mailbox.Store backend: one SQLite file
// per node, holding the messages, peers, and outbox tables.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/agentmail-dev/agentmail/envelope"
	"github.com/agentmail-dev/agentmail/internal/metrics"
	"github.com/agentmail-dev/agentmail/internal/ulid"
	"github.com/agentmail-dev/agentmail/mailbox"
)

// Store is a mailbox.Store backed by a single SQLite file.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the SQLite database at path and
// applies the mailbox schema.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=ON", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	// a single writer avoids SQLITE_BUSY under WAL for this workload.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("sqlite: init schema: %w", err)
		}
	}
	return nil
}

// Close implements mailbox.Store.
func (s *Store) Close() error {
	return s.db.Close()
}

func unixMilli(t time.Time) int64 {
	return t.UnixMilli()
}

func fromUnixMilli(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// UpsertPeer implements mailbox.Store.
func (s *Store) UpsertPeer(ctx context.Context, peer mailbox.PeerInfo) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: upsert peer: begin: %w", err)
	}
	defer tx.Rollback()

	var existingSignPK []byte
	var existingEndpoint string
	err = tx.QueryRowContext(ctx,
		`SELECT sign_pk, endpoint FROM peers WHERE fp = ?`, peer.FP,
	).Scan(&existingSignPK, &existingEndpoint)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = tx.ExecContext(ctx, `
			INSERT INTO peers (fp, name, sign_pk, enc_pk, endpoint, last_seen, source)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			peer.FP, peer.Name, peer.SignPK, peer.EncPK, peer.Endpoint,
			unixMilli(peer.LastSeen), string(peer.Source),
		)
		if err != nil {
			return fmt.Errorf("sqlite: upsert peer: insert: %w", err)
		}
	case err != nil:
		return fmt.Errorf("sqlite: upsert peer: lookup: %w", err)
	default:
		if !bytesEqual(existingSignPK, peer.SignPK) {
			metrics.PeerConflicts.Inc()
			return mailbox.ErrPeerConflict
		}
		endpoint := peer.Endpoint
		if endpoint == "" {
			endpoint = existingEndpoint
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE peers SET name = ?, enc_pk = ?, endpoint = ?, last_seen = ?, source = ?
			WHERE fp = ?`,
			peer.Name, peer.EncPK, endpoint, unixMilli(peer.LastSeen), string(peer.Source), peer.FP,
		)
		if err != nil {
			return fmt.Errorf("sqlite: upsert peer: update: %w", err)
		}
	}

	return tx.Commit()
}

// GetPeerByNameOrFP implements mailbox.Store.
func (s *Store) GetPeerByNameOrFP(ctx context.Context, key string) (mailbox.PeerInfo, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT fp, name, sign_pk, enc_pk, endpoint, last_seen, source
		FROM peers WHERE fp = ? OR name = ? LIMIT 1`, key, key,
	)
	var p mailbox.PeerInfo
	var lastSeen int64
	var source string
	if err := row.Scan(&p.FP, &p.Name, &p.SignPK, &p.EncPK, &p.Endpoint, &lastSeen, &source); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return mailbox.PeerInfo{}, mailbox.ErrNotFound
		}
		return mailbox.PeerInfo{}, fmt.Errorf("sqlite: get peer: %w", err)
	}
	p.LastSeen = fromUnixMilli(lastSeen)
	p.Source = mailbox.PeerSource(source)
	return p, nil
}

// PurgePeer implements mailbox.Store.
func (s *Store) PurgePeer(ctx context.Context, fp string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM peers WHERE fp = ?`, fp)
	if err != nil {
		return fmt.Errorf("sqlite: purge peer: %w", err)
	}
	return nil
}

// ClearPeerEndpoint implements mailbox.Store.
func (s *Store) ClearPeerEndpoint(ctx context.Context, fp string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE peers SET endpoint = '' WHERE fp = ?`, fp)
	if err != nil {
		return fmt.Errorf("sqlite: clear peer endpoint: %w", err)
	}
	return nil
}

// InsertInbound implements mailbox.Store.
func (s *Store) InsertInbound(ctx context.Context, msg mailbox.StoredMessage) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("sqlite: insert inbound: begin: %w", err)
	}
	defer tx.Rollback()

	var existingID string
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM messages WHERE direction = 'IN' AND sender_fp = ? AND nonce = ?`,
		msg.SenderFP, msg.Nonce,
	).Scan(&existingID)
	if err == nil {
		metrics.MessagesDeduped.Inc()
		return existingID, tx.Commit()
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("sqlite: insert inbound: dedup lookup: %w", err)
	}

	id := msg.ID
	if id == "" {
		id, err = ulid.New(time.Now())
		if err != nil {
			return "", fmt.Errorf("sqlite: insert inbound: id: %w", err)
		}
	}

	now := unixMilli(time.Now())
	_, err = tx.ExecContext(ctx, `
		INSERT INTO messages (id, direction, from_addr, to_addr, subject, body, kind,
			created_at, delivered_at, status, attempts, envelope_blob, sender_fp, nonce)
		VALUES (?, 'IN', ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?)`,
		id, msg.FromAddr, msg.ToAddr, msg.Subject, msg.Body, string(msg.Kind),
		unixMilli(msg.CreatedAt), now, string(mailbox.StatusDelivered), msg.EnvelopeBlob,
		msg.SenderFP, msg.Nonce,
	)
	if err != nil {
		// a concurrent insert may have raced us onto the unique index.
		if isUniqueConstraintErr(err) {
			var raceID string
			lookupErr := tx.QueryRowContext(ctx,
				`SELECT id FROM messages WHERE direction = 'IN' AND sender_fp = ? AND nonce = ?`,
				msg.SenderFP, msg.Nonce,
			).Scan(&raceID)
			if lookupErr == nil {
				return raceID, tx.Commit()
			}
		}
		return "", fmt.Errorf("sqlite: insert inbound: %w", err)
	}

	return id, tx.Commit()
}

// InsertOutbound implements mailbox.Store.
func (s *Store) InsertOutbound(ctx context.Context, msg mailbox.StoredMessage, entry mailbox.OutboxEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: insert outbound: begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO messages (id, direction, from_addr, to_addr, subject, body, kind,
			created_at, delivered_at, status, attempts, envelope_blob, sender_fp, nonce)
		VALUES (?, 'OUT', ?, ?, ?, ?, ?, ?, NULL, ?, 0, ?, ?, ?)`,
		msg.ID, msg.FromAddr, msg.ToAddr, msg.Subject, msg.Body, string(msg.Kind),
		unixMilli(msg.CreatedAt), string(mailbox.StatusPending), msg.EnvelopeBlob,
		msg.SenderFP, msg.Nonce,
	)
	if err != nil {
		return fmt.Errorf("sqlite: insert outbound: message: %w", err)
	}

	envBytes, err := envelope.CanonicalEnvelope(entry.Envelope)
	if err != nil {
		return fmt.Errorf("sqlite: insert outbound: encode envelope: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO outbox (id, message_id, envelope_blob, target_fp, next_try_at, attempts, last_error, tier)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, msg.ID, envBytes, entry.TargetFP, unixMilli(entry.NextTryAt),
		entry.Attempts, entry.LastError, string(entry.Tier),
	)
	if err != nil {
		return fmt.Errorf("sqlite: insert outbound: outbox: %w", err)
	}

	return tx.Commit()
}

// MarkDelivered implements mailbox.Store.
func (s *Store) MarkDelivered(ctx context.Context, id string, tier mailbox.Tier) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: mark delivered: begin: %w", err)
	}
	defer tx.Rollback()

	now := unixMilli(time.Now())
	res, err := tx.ExecContext(ctx, `
		UPDATE messages SET status = ?, delivered_at = ? WHERE id = ? AND direction = 'OUT'`,
		string(mailbox.StatusDelivered), now, id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: mark delivered: update message: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return mailbox.ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM outbox WHERE message_id = ?`, id); err != nil {
		return fmt.Errorf("sqlite: mark delivered: clear outbox: %w", err)
	}

	return tx.Commit()
}

// MarkFailed implements mailbox.Store.
func (s *Store) MarkFailed(ctx context.Context, id string, reason string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: mark failed: begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE messages SET status = ? WHERE id = ? AND direction = 'OUT'`,
		string(mailbox.StatusFailed), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: mark failed: update message: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return mailbox.ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM outbox WHERE message_id = ?`, id); err != nil {
		return fmt.Errorf("sqlite: mark failed: clear outbox: %w", err)
	}
	_ = reason // surfaced via RescheduleOutbox's last_error prior to the terminal transition

	return tx.Commit()
}

// RescheduleOutbox implements mailbox.Store.
func (s *Store) RescheduleOutbox(ctx context.Context, entryID string, nextTryAt time.Time, attempts int, lastError string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE outbox SET next_try_at = ?, attempts = ?, last_error = ? WHERE id = ?`,
		unixMilli(nextTryAt), attempts, lastError, entryID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: reschedule outbox: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return mailbox.ErrNotFound
	}
	return nil
}

// ListOutboxDue implements mailbox.Store.
func (s *Store) ListOutboxDue(ctx context.Context, now time.Time, limit int) ([]mailbox.OutboxEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, message_id, envelope_blob, target_fp, next_try_at, attempts, last_error, tier
		FROM outbox WHERE next_try_at <= ? ORDER BY target_fp ASC, next_try_at ASC LIMIT ?`,
		unixMilli(now), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list outbox due: %w", err)
	}
	defer rows.Close()

	var out []mailbox.OutboxEntry
	for rows.Next() {
		var e mailbox.OutboxEntry
		var envBytes []byte
		var nextTryAt int64
		var tier string
		if err := rows.Scan(&e.ID, &e.MessageID, &envBytes, &e.TargetFP, &nextTryAt, &e.Attempts, &e.LastError, &tier); err != nil {
			return nil, fmt.Errorf("sqlite: list outbox due: scan: %w", err)
		}
		env, err := envelope.ParseEnvelope(envBytes)
		if err != nil {
			return nil, fmt.Errorf("sqlite: list outbox due: decode envelope: %w", err)
		}
		e.Envelope = env
		e.NextTryAt = fromUnixMilli(nextTryAt)
		e.Tier = mailbox.Tier(tier)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Inbox implements mailbox.Store.
func (s *Store) Inbox(ctx context.Context, cursor string, limit int) ([]mailbox.StoredMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, direction, from_addr, to_addr, subject, body, kind, created_at,
			delivered_at, status, attempts, envelope_blob, sender_fp, nonce
		FROM messages WHERE direction = 'IN' AND id > ? ORDER BY id ASC LIMIT ?`,
		cursor, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: inbox: %w", err)
	}
	defer rows.Close()

	var out []mailbox.StoredMessage
	for rows.Next() {
		var m mailbox.StoredMessage
		var direction, kind, status string
		var createdAt int64
		var deliveredAt sql.NullInt64
		if err := rows.Scan(&m.ID, &direction, &m.FromAddr, &m.ToAddr, &m.Subject, &m.Body,
			&kind, &createdAt, &deliveredAt, &status, &m.Attempts, &m.EnvelopeBlob,
			&m.SenderFP, &m.Nonce); err != nil {
			return nil, fmt.Errorf("sqlite: inbox: scan: %w", err)
		}
		m.Direction = mailbox.Direction(direction)
		m.Kind = envelope.Kind(kind)
		m.CreatedAt = fromUnixMilli(createdAt)
		m.Status = mailbox.MessageStatus(status)
		if deliveredAt.Valid {
			t := fromUnixMilli(deliveredAt.Int64)
			m.DeliveredAt = &t
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func isUniqueConstraintErr(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") || strings.Contains(err.Error(), "constraint failed"))
}
