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

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MessagesStored counts messages persisted to the mailbox store.
	MessagesStored = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mailbox",
			Name:      "messages_stored_total",
			Help:      "Total number of messages inserted into the mailbox",
		},
		[]string{"direction"}, // IN, OUT
	)

	// MessagesDeduped counts inbound messages rejected as duplicates.
	MessagesDeduped = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mailbox",
			Name:      "messages_deduped_total",
			Help:      "Total number of inbound messages dropped as duplicates of an already-stored message",
		},
	)

	// PeerConflicts counts rejected PeerInfo writes where sign_pk would change for a known fingerprint.
	PeerConflicts = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mailbox",
			Name:      "peer_conflicts_total",
			Help:      "Total number of peer upserts rejected because sign_pk changed for a known fingerprint",
		},
	)

	// OutboxDepth reports the current number of pending OutboxEntry rows.
	OutboxDepth = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "mailbox",
			Name:      "outbox_depth",
			Help:      "Current number of pending outbox entries",
		},
	)
)
