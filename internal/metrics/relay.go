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
	// RelayDeposits counts blobs deposited for pickup, by outcome.
	RelayDeposits = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "deposits_total",
			Help:      "Total number of deposit requests by outcome",
		},
		[]string{"outcome"}, // accepted, queue_full_dropped_oldest, unknown_recipient
	)

	// RelayPickups counts pickup requests, by outcome.
	RelayPickups = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "pickups_total",
			Help:      "Total number of pickup requests by outcome",
		},
		[]string{"outcome"}, // delivered, empty
	)

	// RelayQueueDepth reports the current queue depth per recipient fingerprint.
	RelayQueueDepth = promauto.With(Registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "queue_depth",
			Help:      "Current number of queued blobs for a recipient",
		},
		[]string{"recipient_fp"},
	)

	// RelayRegistrations counts name registry writes, by outcome.
	RelayRegistrations = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "registrations_total",
			Help:      "Total number of name registration requests by outcome",
		},
		[]string{"outcome"}, // accepted, conflict
	)
)
