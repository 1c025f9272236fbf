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

package router

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/agentmail-dev/agentmail/mailbox"
)

// lookupResponse mirrors the relay's GET /v0/lookup/{name} PeerInfo body.
type lookupResponse struct {
	Name     string `json:"name"`
	FP       string `json:"fp"`
	SignPK   string `json:"sign_pk"`
	EncPK    string `json:"enc_pk"`
	Endpoint string `json:"endpoint,omitempty"`
}

// resolve looks up to first in the local mailbox by name or fingerprint,
// falling back to the configured relay's registry on a miss. A successful
// relay hit is upserted into the local mailbox, guarded against identity
// conflicts.
func (r *Router) resolve(ctx context.Context, to string) (mailbox.PeerInfo, error) {
	peer, err := r.store.GetPeerByNameOrFP(ctx, to)
	if err == nil {
		return peer, nil
	}
	if !errors.Is(err, mailbox.ErrNotFound) {
		return mailbox.PeerInfo{}, fmt.Errorf("router: resolve: local lookup: %w", err)
	}

	if r.relayAddr == "" {
		return mailbox.PeerInfo{}, ErrUnknownRecipient
	}

	remote, err := r.relayLookup(ctx, to)
	if err != nil {
		if errors.Is(err, errRelayNotFound) {
			return mailbox.PeerInfo{}, ErrUnknownRecipient
		}
		return mailbox.PeerInfo{}, fmt.Errorf("router: resolve: relay lookup: %w", err)
	}

	if err := r.store.UpsertPeer(ctx, remote); err != nil {
		if errors.Is(err, mailbox.ErrPeerConflict) {
			return mailbox.PeerInfo{}, ErrIdentityConflict
		}
		return mailbox.PeerInfo{}, fmt.Errorf("router: resolve: upsert: %w", err)
	}
	return remote, nil
}

var errRelayNotFound = errors.New("router: relay: name not registered")

func (r *Router) relayLookup(ctx context.Context, name string) (mailbox.PeerInfo, error) {
	url := fmt.Sprintf("%s/v0/lookup/%s", r.relayAddr, name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return mailbox.PeerInfo{}, err
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return mailbox.PeerInfo{}, &TransportError{Kind: classifyDialErr(err), Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return mailbox.PeerInfo{}, errRelayNotFound
	}
	if resp.StatusCode/100 == 5 {
		return mailbox.PeerInfo{}, &TransportError{Kind: TransportHTTP5xx, Status: resp.StatusCode}
	}
	if resp.StatusCode != http.StatusOK {
		return mailbox.PeerInfo{}, &RelayError{Kind: RelayHTTP4xx, Status: resp.StatusCode}
	}

	var body lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return mailbox.PeerInfo{}, fmt.Errorf("router: decode lookup response: %w", err)
	}

	signPK, err := base64.RawURLEncoding.DecodeString(body.SignPK)
	if err != nil {
		return mailbox.PeerInfo{}, fmt.Errorf("router: decode lookup sign_pk: %w", err)
	}
	encPK, err := base64.RawURLEncoding.DecodeString(body.EncPK)
	if err != nil {
		return mailbox.PeerInfo{}, fmt.Errorf("router: decode lookup enc_pk: %w", err)
	}

	return mailbox.PeerInfo{
		FP:       body.FP,
		Name:     body.Name,
		SignPK:   signPK,
		EncPK:    encPK,
		Endpoint: body.Endpoint,
		LastSeen: time.Now(),
		Source:   mailbox.SourceRelay,
	}, nil
}
