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

package node

import (
	"github.com/agentmail-dev/agentmail/mailbox"
)

// storedMessageJSON is the GET /v0/inbox wire shape for a StoredMessage.
type storedMessageJSON struct {
	ID          string `json:"id"`
	Direction   string `json:"direction"`
	FromAddr    string `json:"from_addr"`
	ToAddr      string `json:"to_addr"`
	Subject     string `json:"subject"`
	Body        string `json:"body"`
	Kind        string `json:"kind"`
	CreatedAt   int64  `json:"created_at"`
	DeliveredAt *int64 `json:"delivered_at,omitempty"`
	Status      string `json:"status"`
	Attempts    int    `json:"attempts"`
}

func marshalStoredMessage(m mailbox.StoredMessage) storedMessageJSON {
	out := storedMessageJSON{
		ID:        m.ID,
		Direction: string(m.Direction),
		FromAddr:  m.FromAddr,
		ToAddr:    m.ToAddr,
		Subject:   m.Subject,
		Body:      m.Body,
		Kind:      string(m.Kind),
		CreatedAt: m.CreatedAt.UnixMilli(),
		Status:    string(m.Status),
		Attempts:  m.Attempts,
	}
	if m.DeliveredAt != nil {
		ms := m.DeliveredAt.UnixMilli()
		out.DeliveredAt = &ms
	}
	return out
}
