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

// Package memory is an in-memory mailbox.Store, useful for tests and for
// running a node without persistence.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/agentmail-dev/agentmail/internal/metrics"
	"github.com/agentmail-dev/agentmail/internal/ulid"
	"github.com/agentmail-dev/agentmail/mailbox"
)

type dedupKey struct {
	senderFP string
	nonce    string
}

// Store implements mailbox.Store with mutex-guarded maps.
type Store struct {
	mu sync.RWMutex

	peers    map[string]mailbox.PeerInfo
	messages map[string]mailbox.StoredMessage
	outbox   map[string]mailbox.OutboxEntry
	dedup    map[dedupKey]string
}

// New creates an empty in-memory mailbox store.
func New() *Store {
	return &Store{
		peers:    make(map[string]mailbox.PeerInfo),
		messages: make(map[string]mailbox.StoredMessage),
		outbox:   make(map[string]mailbox.OutboxEntry),
		dedup:    make(map[dedupKey]string),
	}
}

// Close implements mailbox.Store.
func (s *Store) Close() error { return nil }

// UpsertPeer implements mailbox.Store.
func (s *Store) UpsertPeer(_ context.Context, peer mailbox.PeerInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.peers[peer.FP]; ok {
		if !bytesEqual(existing.SignPK, peer.SignPK) {
			metrics.PeerConflicts.Inc()
			return mailbox.ErrPeerConflict
		}
		if peer.Endpoint == "" {
			peer.Endpoint = existing.Endpoint
		}
	}
	s.peers[peer.FP] = peer
	return nil
}

// GetPeerByNameOrFP implements mailbox.Store.
func (s *Store) GetPeerByNameOrFP(_ context.Context, key string) (mailbox.PeerInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.peers[key]; ok {
		return p, nil
	}
	for _, p := range s.peers {
		if p.Name == key {
			return p, nil
		}
	}
	return mailbox.PeerInfo{}, mailbox.ErrNotFound
}

// PurgePeer implements mailbox.Store.
func (s *Store) PurgePeer(_ context.Context, fp string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.peers, fp)
	return nil
}

// ClearPeerEndpoint implements mailbox.Store.
func (s *Store) ClearPeerEndpoint(_ context.Context, fp string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	peer, ok := s.peers[fp]
	if !ok {
		return nil
	}
	peer.Endpoint = ""
	s.peers[fp] = peer
	return nil
}

// InsertInbound implements mailbox.Store.
func (s *Store) InsertInbound(_ context.Context, msg mailbox.StoredMessage) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := dedupKey{senderFP: msg.SenderFP, nonce: string(msg.Nonce)}
	if id, ok := s.dedup[key]; ok {
		metrics.MessagesDeduped.Inc()
		return id, nil
	}

	id := msg.ID
	if id == "" {
		var err error
		id, err = ulid.New(time.Now())
		if err != nil {
			return "", fmt.Errorf("memory: insert inbound: id: %w", err)
		}
	}
	now := time.Now()
	msg.ID = id
	msg.Direction = mailbox.DirectionIn
	msg.Status = mailbox.StatusDelivered
	msg.DeliveredAt = &now

	s.messages[id] = msg
	s.dedup[key] = id
	return id, nil
}

// InsertOutbound implements mailbox.Store.
func (s *Store) InsertOutbound(_ context.Context, msg mailbox.StoredMessage, entry mailbox.OutboxEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg.Direction = mailbox.DirectionOut
	msg.Status = mailbox.StatusPending
	s.messages[msg.ID] = msg
	s.outbox[entry.ID] = entry
	return nil
}

// MarkDelivered implements mailbox.Store.
func (s *Store) MarkDelivered(_ context.Context, id string, _ mailbox.Tier) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[id]
	if !ok || msg.Direction != mailbox.DirectionOut {
		return mailbox.ErrNotFound
	}
	now := time.Now()
	msg.Status = mailbox.StatusDelivered
	msg.DeliveredAt = &now
	s.messages[id] = msg
	s.deleteOutboxByMessageID(id)
	return nil
}

// MarkFailed implements mailbox.Store.
func (s *Store) MarkFailed(_ context.Context, id string, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[id]
	if !ok || msg.Direction != mailbox.DirectionOut {
		return mailbox.ErrNotFound
	}
	msg.Status = mailbox.StatusFailed
	s.messages[id] = msg
	s.deleteOutboxByMessageID(id)
	return nil
}

func (s *Store) deleteOutboxByMessageID(messageID string) {
	for id, e := range s.outbox {
		if e.MessageID == messageID {
			delete(s.outbox, id)
		}
	}
}

// RescheduleOutbox implements mailbox.Store.
func (s *Store) RescheduleOutbox(_ context.Context, entryID string, nextTryAt time.Time, attempts int, lastError string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.outbox[entryID]
	if !ok {
		return mailbox.ErrNotFound
	}
	e.NextTryAt = nextTryAt
	e.Attempts = attempts
	e.LastError = lastError
	s.outbox[entryID] = e
	return nil
}

// ListOutboxDue implements mailbox.Store.
func (s *Store) ListOutboxDue(_ context.Context, now time.Time, limit int) ([]mailbox.OutboxEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var due []mailbox.OutboxEntry
	for _, e := range s.outbox {
		if !e.NextTryAt.After(now) {
			due = append(due, e)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].TargetFP != due[j].TargetFP {
			return due[i].TargetFP < due[j].TargetFP
		}
		return due[i].NextTryAt.Before(due[j].NextTryAt)
	})
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

// Inbox implements mailbox.Store.
func (s *Store) Inbox(_ context.Context, cursor string, limit int) ([]mailbox.StoredMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for id, m := range s.messages {
		if m.Direction == mailbox.DirectionIn && id > cursor {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}

	out := make([]mailbox.StoredMessage, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.messages[id])
	}
	return out, nil
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
