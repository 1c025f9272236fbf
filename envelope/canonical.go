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

package envelope

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// canonicalPayloadMap and canonicalEnvelopeMap mirror Payload and Envelope
// as maps, with binary fields as URL-safe, unpadded base64 strings.
// encoding/json sorts the keys of any map it marshals alphabetically, and
// emits no insignificant whitespace when given a plain (non-indented)
// value, which is exactly the byte-deterministic encoding the wire protocol
// requires; marshaling through a map keeps that guarantee explicit rather
// than incidental to field declaration order.

func canonicalPayloadMap(p Payload) map[string]interface{} {
	return map[string]interface{}{
		"from_addr":  p.FromAddr,
		"to_addr":    p.ToAddr,
		"subject":    p.Subject,
		"body":       p.Body,
		"kind":       string(p.Kind),
		"created_at": p.CreatedAt,
		"nonce":      base64.RawURLEncoding.EncodeToString(p.Nonce),
	}
}

// CanonicalPayload returns the byte-deterministic JSON encoding of a
// Payload: ASCII-sorted keys, no insignificant whitespace, binary fields as
// URL-safe unpadded base64.
func CanonicalPayload(p Payload) ([]byte, error) {
	data, err := json.Marshal(canonicalPayloadMap(p))
	if err != nil {
		return nil, fmt.Errorf("envelope: canonicalize payload: %w", err)
	}
	return data, nil
}

// ParsePayload decodes the canonical JSON form of a Payload.
func ParsePayload(data []byte) (Payload, error) {
	var raw struct {
		FromAddr  string `json:"from_addr"`
		ToAddr    string `json:"to_addr"`
		Subject   string `json:"subject"`
		Body      string `json:"body"`
		Kind      string `json:"kind"`
		CreatedAt int64  `json:"created_at"`
		Nonce     string `json:"nonce"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Payload{}, fmt.Errorf("envelope: parse payload: %w", err)
	}
	nonce, err := base64.RawURLEncoding.DecodeString(raw.Nonce)
	if err != nil {
		return Payload{}, fmt.Errorf("envelope: parse payload nonce: %w", err)
	}
	return Payload{
		FromAddr:  raw.FromAddr,
		ToAddr:    raw.ToAddr,
		Subject:   raw.Subject,
		Body:      raw.Body,
		Kind:      Kind(raw.Kind),
		CreatedAt: raw.CreatedAt,
		Nonce:     nonce,
	}, nil
}

// canonicalEnvelopeMap builds the signing/wire map for e. When
// omitSignature is true the signature field is left out entirely, matching
// the "canonical form of the envelope with the signature field omitted"
// rule used to compute the bytes that get signed.
func canonicalEnvelopeMap(e Envelope, omitSignature bool) map[string]interface{} {
	m := map[string]interface{}{
		"version":      e.Version,
		"sender_fp":    e.SenderFP,
		"recipient_fp": e.RecipientFP,
		"ciphertext":   base64.RawURLEncoding.EncodeToString(e.Ciphertext),
		"sent_at":      e.SentAt,
	}
	if !omitSignature {
		m["signature"] = base64.RawURLEncoding.EncodeToString(e.Signature)
	}
	return m
}

// SignedBytes returns the canonical bytes an Envelope's signature is
// computed over: the envelope with its signature field omitted.
func SignedBytes(e Envelope) ([]byte, error) {
	data, err := json.Marshal(canonicalEnvelopeMap(e, true))
	if err != nil {
		return nil, fmt.Errorf("envelope: canonicalize signed bytes: %w", err)
	}
	return data, nil
}

// CanonicalEnvelope returns the full byte-deterministic wire encoding of an
// Envelope, signature included.
func CanonicalEnvelope(e Envelope) ([]byte, error) {
	data, err := json.Marshal(canonicalEnvelopeMap(e, false))
	if err != nil {
		return nil, fmt.Errorf("envelope: canonicalize envelope: %w", err)
	}
	return data, nil
}

// ParseEnvelope decodes the wire JSON form of an Envelope.
func ParseEnvelope(data []byte) (Envelope, error) {
	var raw struct {
		Version     int    `json:"version"`
		SenderFP    string `json:"sender_fp"`
		RecipientFP string `json:"recipient_fp"`
		Ciphertext  string `json:"ciphertext"`
		Signature   string `json:"signature"`
		SentAt      int64  `json:"sent_at"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Envelope{}, fmt.Errorf("envelope: parse envelope: %w", err)
	}
	ciphertext, err := base64.RawURLEncoding.DecodeString(raw.Ciphertext)
	if err != nil {
		return Envelope{}, fmt.Errorf("envelope: parse ciphertext: %w", err)
	}
	signature, err := base64.RawURLEncoding.DecodeString(raw.Signature)
	if err != nil {
		return Envelope{}, fmt.Errorf("envelope: parse signature: %w", err)
	}
	return Envelope{
		Version:     raw.Version,
		SenderFP:    raw.SenderFP,
		RecipientFP: raw.RecipientFP,
		Ciphertext:  ciphertext,
		Signature:   signature,
		SentAt:      raw.SentAt,
	}, nil
}
