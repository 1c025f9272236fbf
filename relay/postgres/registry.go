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

// Package postgres is an optional relay.Registry backend that persists
// the name registry across relay restarts. The blind envelope queue
// itself stays memory-only regardless of this backend, exactly as the
// in-memory default behaves: this package only ever touches registrations.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agentmail-dev/agentmail/relay"
)

// Registry implements relay.Registry on top of a pgxpool.Pool.
type Registry struct {
	pool *pgxpool.Pool
}

// NewRegistry connects to dsn and ensures the registrations table exists.
func NewRegistry(ctx context.Context, dsn string) (*Registry, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	r := &Registry{pool: pool}
	if err := r.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return r, nil
}

func (r *Registry) initSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS relay_registrations (
			name       TEXT PRIMARY KEY,
			fp         TEXT NOT NULL,
			sign_pk    BYTEA NOT NULL,
			enc_pk     BYTEA NOT NULL,
			version    TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);`)
	if err != nil {
		return fmt.Errorf("postgres: init schema: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (r *Registry) Close() {
	r.pool.Close()
}

// Register implements relay.Registry.
func (r *Registry) Register(ctx context.Context, entry relay.RegistryEntry) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: register: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO relay_registrations (name, fp, sign_pk, enc_pk, version, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (name) DO UPDATE SET
			fp = EXCLUDED.fp,
			sign_pk = EXCLUDED.sign_pk,
			enc_pk = EXCLUDED.enc_pk,
			version = EXCLUDED.version,
			updated_at = EXCLUDED.updated_at`,
		entry.Name, entry.FP, entry.SignPK, entry.EncPK, entry.Version, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("postgres: register: upsert: %w", err)
	}

	return tx.Commit(ctx)
}

// Lookup implements relay.Registry.
func (r *Registry) Lookup(ctx context.Context, name string) (relay.RegistryEntry, bool, error) {
	var entry relay.RegistryEntry
	var updatedAt time.Time
	err := r.pool.QueryRow(ctx, `
		SELECT name, fp, sign_pk, enc_pk, version, updated_at
		FROM relay_registrations WHERE name = $1`, name,
	).Scan(&entry.Name, &entry.FP, &entry.SignPK, &entry.EncPK, &entry.Version, &updatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return relay.RegistryEntry{}, false, nil
		}
		return relay.RegistryEntry{}, false, fmt.Errorf("postgres: lookup: %w", err)
	}
	entry.UpdatedAt = updatedAt
	return entry, true, nil
}
