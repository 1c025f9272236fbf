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

import "net/http"

// inboundError carries the HTTP status §6 assigns to a /v0/receive failure
// mode, so the pickup loop (which has no HTTP response to write) and the
// inbound handler can share one verification path.
type inboundError struct {
	status int
	reason string
}

func (e *inboundError) Error() string { return e.reason }

func malformedEnvelope(reason string) *inboundError {
	return &inboundError{status: http.StatusBadRequest, reason: reason}
}

func signatureFailure(reason string) *inboundError {
	return &inboundError{status: http.StatusUnauthorized, reason: reason}
}

func decryptFailure(reason string) *inboundError {
	return &inboundError{status: http.StatusUnprocessableEntity, reason: reason}
}
