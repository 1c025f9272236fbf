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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/agentmail-dev/agentmail/envelope"
	"github.com/agentmail-dev/agentmail/internal/logger"
)

const defaultInboxPageSize = 50

// Handler builds the node's HTTP surface using Go 1.22's method+pattern
// mux routing.
func (n *Node) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v0/receive", n.handleReceive)
	mux.HandleFunc("GET /v0/inbox", n.handleInbox)
	mux.HandleFunc("POST /v0/send", n.handleSend)
	return mux
}

func (n *Node) handleReceive(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "read_failed"})
		return
	}

	if _, err := n.processInbound(r.Context(), raw); err != nil {
		var inboundErr *inboundError
		if errors.As(err, &inboundErr) {
			n.log.Warn("node: inbound rejected", logger.Field{Key: "status", Value: inboundErr.status}, logger.Field{Key: "reason", Value: inboundErr.reason})
			writeJSON(w, inboundErr.status, map[string]string{"error": inboundErr.reason})
			return
		}
		n.log.Error("node: inbound failed", logger.Field{Key: "error", Value: err.Error()})
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal_error"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (n *Node) handleInbox(w http.ResponseWriter, r *http.Request) {
	cursor := r.URL.Query().Get("cursor")
	limit := defaultInboxPageSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_limit"})
			return
		}
		limit = parsed
	}

	messages, err := n.store.Inbox(r.Context(), cursor, limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "inbox_failed"})
		return
	}

	out := make([]storedMessageJSON, 0, len(messages))
	for _, m := range messages {
		out = append(out, marshalStoredMessage(m))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"messages": out})
}

type sendRequest struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	Kind    string `json:"kind"`
}

func (n *Node) handleSend(w http.ResponseWriter, r *http.Request) {
	var body sendRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed_body"})
		return
	}
	if body.To == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing_to"})
		return
	}

	kind := envelope.KindMessage
	if body.Kind != "" {
		kind = envelope.Kind(body.Kind)
	}

	payload := envelope.Payload{
		FromAddr: n.Address(),
		ToAddr:   body.To,
		Subject:  body.Subject,
		Body:     body.Body,
		Kind:     kind,
	}

	id, err := n.router.Send(r.Context(), payload, body.To)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Warn("node: failed to encode response", logger.Field{Key: "error", Value: err.Error()})
	}
}

// Address returns this node's human-facing address, name@name.local, per
// §3's Address format (the mDNS hostname is the node's own name on a
// single-host LAN setup).
func (n *Node) Address() string {
	return fmt.Sprintf("%s@%s.local", n.name, n.name)
}
