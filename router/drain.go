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
	"errors"
	"time"

	"github.com/agentmail-dev/agentmail/internal/logger"
	"github.com/agentmail-dev/agentmail/internal/metrics"
	"github.com/agentmail-dev/agentmail/mailbox"
)

// RunDrainLoop wakes every drainInterval, pulls due outbox entries ordered
// by (target_fp, next_try_at), and retries each serially so a single
// recipient's queue never reorders. It blocks until ctx is cancelled,
// suitable as an errgroup.Group goroutine.
func (r *Router) RunDrainLoop(ctx context.Context) error {
	ticker := time.NewTicker(r.drainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := r.DrainOnce(ctx); err != nil {
				r.log.Warn("router: drain pass failed", logger.Field{Key: "error", Value: err.Error()})
			}
		}
	}
}

// DrainOnce processes one batch of due outbox entries.
func (r *Router) DrainOnce(ctx context.Context) error {
	due, err := r.store.ListOutboxDue(ctx, time.Now(), r.batchSize)
	if err != nil {
		return err
	}
	metrics.OutboxDepth.Set(float64(len(due)))

	for _, entry := range due {
		endpoint := r.lookupEndpoint(ctx, entry.TargetFP)
		r.attemptAndSettle(ctx, entry, endpoint)
	}
	return nil
}

func (r *Router) lookupEndpoint(ctx context.Context, fp string) string {
	peer, err := r.store.GetPeerByNameOrFP(ctx, fp)
	if err != nil {
		if !errors.Is(err, mailbox.ErrNotFound) {
			r.log.Warn("router: endpoint lookup failed", logger.Field{Key: "fp", Value: fp}, logger.Field{Key: "error", Value: err.Error()})
		}
		return ""
	}
	return peer.Endpoint
}
