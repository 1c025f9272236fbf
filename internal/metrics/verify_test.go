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
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRegistered(t *testing.T) {
	if CryptoOperations == nil {
		t.Error("CryptoOperations metric is nil")
	}
	if DiscoveredPeers == nil {
		t.Error("DiscoveredPeers metric is nil")
	}
	if DiscoveryEvents == nil {
		t.Error("DiscoveryEvents metric is nil")
	}
	if MessagesStored == nil {
		t.Error("MessagesStored metric is nil")
	}
	if MessagesDeduped == nil {
		t.Error("MessagesDeduped metric is nil")
	}
	if PeerConflicts == nil {
		t.Error("PeerConflicts metric is nil")
	}
	if OutboxDepth == nil {
		t.Error("OutboxDepth metric is nil")
	}
	if RelayDeposits == nil {
		t.Error("RelayDeposits metric is nil")
	}
	if RelayPickups == nil {
		t.Error("RelayPickups metric is nil")
	}
	if RelayRegistrations == nil {
		t.Error("RelayRegistrations metric is nil")
	}
	if DeliveryAttempts == nil {
		t.Error("DeliveryAttempts metric is nil")
	}
	if MessagesFailed == nil {
		t.Error("MessagesFailed metric is nil")
	}
}

func TestMessagesDedupedIncrements(t *testing.T) {
	before := testutil.ToFloat64(MessagesDeduped)
	MessagesDeduped.Inc()
	after := testutil.ToFloat64(MessagesDeduped)
	if after != before+1 {
		t.Errorf("MessagesDeduped: got %v, want %v", after, before+1)
	}
}

func TestPeerConflictsIncrements(t *testing.T) {
	before := testutil.ToFloat64(PeerConflicts)
	PeerConflicts.Inc()
	after := testutil.ToFloat64(PeerConflicts)
	if after != before+1 {
		t.Errorf("PeerConflicts: got %v, want %v", after, before+1)
	}
}

func TestDiscoveredPeersSet(t *testing.T) {
	DiscoveredPeers.Set(3)
	if got := testutil.ToFloat64(DiscoveredPeers); got != 3 {
		t.Errorf("DiscoveredPeers: got %v, want 3", got)
	}
}

func TestDiscoveryEventsLabelsMatchCallSites(t *testing.T) {
	DiscoveryEvents.WithLabelValues("upsert").Inc()
	DiscoveryEvents.WithLabelValues("conflict").Inc()
	DiscoveryEvents.WithLabelValues("remove").Inc()
	DiscoveryEvents.WithLabelValues("error").Inc()

	if count := testutil.CollectAndCount(DiscoveryEvents); count == 0 {
		t.Error("DiscoveryEvents has no metrics collected")
	}
}
