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
	// DeliveryAttempts counts router delivery attempts by tier and outcome.
	DeliveryAttempts = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "delivery_attempts_total",
			Help:      "Total number of delivery attempts by tier and outcome",
		},
		[]string{"tier", "outcome"}, // tier: DIRECT/RELAY, outcome: success/failure
	)

	// DeliveryLatency records the time from enqueue to terminal DELIVERED state.
	DeliveryLatency = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "delivery_latency_seconds",
			Help:      "Time from outbox enqueue to delivered state",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 16), // 10ms to ~5.5min
		},
	)

	// MessagesFailed counts OUT messages that exhausted their retry budget.
	MessagesFailed = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "messages_failed_total",
			Help:      "Total number of outbound messages that reached the FAILED terminal state",
		},
	)
)
