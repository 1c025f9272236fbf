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

package relay

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/agentmail-dev/agentmail/internal/logger"
)

// Handler builds the relay's HTTP surface: register, lookup, deposit,
// pickup, stats.
func (r *Relay) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v0/register", r.handleRegister)
	mux.HandleFunc("/v0/lookup/", r.handleLookup)
	mux.HandleFunc("/v0/deposit", r.handleDeposit)
	mux.HandleFunc("/v0/pickup/", r.handlePickup)
	mux.HandleFunc("/v0/stats", r.handleStats)
	return mux
}

type registerRequest struct {
	Name    string `json:"name"`
	FP      string `json:"fp"`
	SignPK  string `json:"sign_pk"`
	EncPK   string `json:"enc_pk"`
	Version string `json:"version"`
}

func (r *Relay) handleRegister(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method_not_allowed"})
		return
	}

	var body registerRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed_body"})
		return
	}

	signPK, err1 := base64.RawURLEncoding.DecodeString(body.SignPK)
	encPK, err2 := base64.RawURLEncoding.DecodeString(body.EncPK)
	if err1 != nil || err2 != nil || body.Name == "" || body.FP == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed_body"})
		return
	}

	err := r.Register(req.Context(), RegistryEntry{
		Name:    body.Name,
		FP:      body.FP,
		SignPK:  signPK,
		EncPK:   encPK,
		Version: body.Version,
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "register_failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (r *Relay) handleLookup(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method_not_allowed"})
		return
	}

	name := strings.TrimPrefix(req.URL.Path, "/v0/lookup/")
	if name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing_name"})
		return
	}

	entry, ok, err := r.Lookup(req.Context(), name)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "lookup_failed"})
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found"})
		return
	}

	data, err := entry.marshalWire()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "encode_failed"})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (r *Relay) handleDeposit(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method_not_allowed"})
		return
	}

	raw, err := io.ReadAll(req.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "read_failed"})
		return
	}

	if err := r.Deposit(req.Context(), raw); err != nil {
		if errors.Is(err, ErrQueueFull) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "queue_full"})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed_envelope"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (r *Relay) handlePickup(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method_not_allowed"})
		return
	}

	fp := strings.TrimPrefix(req.URL.Path, "/v0/pickup/")
	if fp == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing_fp"})
		return
	}

	envs := r.Pickup(req.Context(), fp)
	encoded := make([]string, 0, len(envs))
	for _, e := range envs {
		encoded = append(encoded, string(e))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"envelopes": encoded})
}

func (r *Relay) handleStats(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method_not_allowed"})
		return
	}
	writeJSON(w, http.StatusOK, r.Stats(req.Context()))
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Warn("relay: failed to encode response", logger.Field{Key: "error", Value: err.Error()})
	}
}
