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
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/agentmail-dev/agentmail/envelope"
	"github.com/agentmail-dev/agentmail/mailbox"
)

// attemptDirect POSTs env to the peer's known endpoint's /v0/receive. A
// non-2xx or transport failure returns a *TransportError.
func (r *Router) attemptDirect(ctx context.Context, endpoint string, env envelope.Envelope) error {
	if endpoint == "" {
		return &TransportError{Kind: TransportRefused, Cause: errors.New("no known endpoint")}
	}

	body, err := envelope.CanonicalEnvelope(env)
	if err != nil {
		return fmt.Errorf("router: encode envelope: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.directTimeout)
	defer cancel()

	url := fmt.Sprintf("http://%s/v0/receive", endpoint)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("router: build direct request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return &TransportError{Kind: classifyDialErr(err), Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		if resp.StatusCode/100 == 5 {
			return &TransportError{Kind: TransportHTTP5xx, Status: resp.StatusCode}
		}
		return &TransportError{Kind: TransportRefused, Status: resp.StatusCode, Cause: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}
	return nil
}

// attemptRelay POSTs env to the configured relay's /v0/deposit.
func (r *Router) attemptRelay(ctx context.Context, env envelope.Envelope) error {
	if r.relayAddr == "" {
		return &TransportError{Kind: TransportRefused, Cause: errors.New("no relay configured")}
	}

	body, err := envelope.CanonicalEnvelope(env)
	if err != nil {
		return fmt.Errorf("router: encode envelope: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.relayTimeout)
	defer cancel()

	url := r.relayAddr + "/v0/deposit"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("router: build relay request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return &TransportError{Kind: classifyDialErr(err), Cause: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode/100 == 2:
		return nil
	case resp.StatusCode == http.StatusRequestEntityTooLarge:
		return &RelayError{Kind: RelayHTTP4xx, Status: resp.StatusCode}
	case resp.StatusCode/100 == 5:
		return &TransportError{Kind: TransportHTTP5xx, Status: resp.StatusCode}
	default:
		return &RelayError{Kind: RelayHTTP4xx, Status: resp.StatusCode}
	}
}

// deliverOnce runs steps 3-4 of the send procedure for a single outbox
// entry: try direct if the target has a known endpoint, else fall through
// to relay. Returns the tier that succeeded, or an error describing why
// both attempts failed.
func (r *Router) deliverOnce(ctx context.Context, entry mailbox.OutboxEntry, endpoint string) (mailbox.Tier, error) {
	directErr := r.attemptDirect(ctx, endpoint, entry.Envelope)
	if directErr == nil {
		return mailbox.TierDirect, nil
	}

	relayErr := r.attemptRelay(ctx, entry.Envelope)
	if relayErr == nil {
		return mailbox.TierRelay, nil
	}

	return "", fmt.Errorf("direct: %v; relay: %v", directErr, relayErr)
}

func classifyDialErr(err error) TransportKind {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return TransportTimeout
	}
	return TransportRefused
}
