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
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/agentmail-dev/agentmail/envelope"
	"github.com/agentmail-dev/agentmail/internal/logger"
)

// RunRegistrationLoop POSTs this node's routing identity to the relay
// every registerInterval, per §4.6. It returns nil on context
// cancellation so it composes cleanly inside an errgroup alongside loops
// that do return fatal errors.
func (n *Node) RunRegistrationLoop(ctx context.Context) error {
	ticker := time.NewTicker(n.registerInterval)
	defer ticker.Stop()

	n.registerOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n.registerOnce(ctx)
		}
	}
}

type registerRequest struct {
	Name    string `json:"name"`
	FP      string `json:"fp"`
	SignPK  string `json:"sign_pk"`
	EncPK   string `json:"enc_pk"`
	Version string `json:"version"`
}

func (n *Node) registerOnce(ctx context.Context) {
	body := registerRequest{
		Name:    n.name,
		FP:      n.identity.Fingerprint(),
		SignPK:  base64.RawURLEncoding.EncodeToString(n.identity.SignPub),
		EncPK:   base64.RawURLEncoding.EncodeToString(n.identity.EncPub.Bytes()),
		Version: fmt.Sprintf("%d", envelope.EnvelopeVersion),
	}
	data, err := json.Marshal(body)
	if err != nil {
		n.log.Warn("node: encode registration body failed", logger.Field{Key: "error", Value: err.Error()})
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.relayAddr+"/v0/register", bytes.NewReader(data))
	if err != nil {
		n.log.Warn("node: build registration request failed", logger.Field{Key: "error", Value: err.Error()})
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		n.log.Warn("node: registration request failed", logger.Field{Key: "error", Value: err.Error()})
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		n.log.Warn("node: registration rejected", logger.Field{Key: "status", Value: resp.StatusCode})
	}
}

// RunPickupLoop GETs queued envelopes from the relay every pickupInterval
// and verifies/decrypts/persists each, per §4.6.
func (n *Node) RunPickupLoop(ctx context.Context) error {
	ticker := time.NewTicker(n.pickupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n.pickupOnce(ctx)
		}
	}
}

type pickupResponse struct {
	Envelopes []string `json:"envelopes"`
}

func (n *Node) pickupOnce(ctx context.Context) {
	url := fmt.Sprintf("%s/v0/pickup/%s", n.relayAddr, n.identity.Fingerprint())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		n.log.Warn("node: build pickup request failed", logger.Field{Key: "error", Value: err.Error()})
		return
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		n.log.Warn("node: pickup request failed", logger.Field{Key: "error", Value: err.Error()})
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		n.log.Warn("node: pickup rejected", logger.Field{Key: "status", Value: resp.StatusCode})
		return
	}

	var body pickupResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		n.log.Warn("node: decode pickup response failed", logger.Field{Key: "error", Value: err.Error()})
		return
	}

	for _, raw := range body.Envelopes {
		if _, err := n.processInbound(ctx, []byte(raw)); err != nil {
			n.log.Warn("node: pickup envelope rejected", logger.Field{Key: "error", Value: err.Error()})
		}
	}
}
