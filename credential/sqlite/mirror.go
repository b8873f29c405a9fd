// go-lynx
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-lynx.
//
// go-lynx is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-lynx is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-lynx; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

// Package sqlite persists the credential store to a local SQLite database so
// the lock keeps its trust set across restarts without network access.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ZaparooProject/go-lynx"
	"github.com/ZaparooProject/go-lynx/credential"

	// Registers the "sqlite" driver.
	_ "modernc.org/sqlite"
)

// Mirror is a credential.Persister backed by SQLite.
type Mirror struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies migrations.
func Open(ctx context.Context, path string) (*Mirror, error) {
	if path == "" {
		return nil, errors.New("sqlite mirror: empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}

	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)",
		path,
	)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}

	m, err := New(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return m, nil
}

// New wraps an open database, pins it to a single connection and migrates it.
func New(ctx context.Context, db *sql.DB) (*Mirror, error) {
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}

	if err := Migrate(ctx, db); err != nil {
		return nil, err
	}
	return &Mirror{db: db}, nil
}

// Load reads the persisted set. An empty database yields an empty state.
func (m *Mirror) Load(ctx context.Context) (credential.State, error) {
	var state credential.State

	err := m.db.QueryRowContext(ctx, "SELECT version FROM store_meta WHERE id = 1;").Scan(&state.Version)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return credential.State{}, fmt.Errorf("Load version: %w", err)
	}

	rows, err := m.db.QueryContext(ctx, `
SELECT tag_id, permission, valid_from_ms, valid_until_ms, secret
FROM credentials
ORDER BY tag_id;`)
	if err != nil {
		return credential.State{}, fmt.Errorf("Load query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			tagID, perm     string
			fromMs, untilMs sql.NullInt64
			secret          []byte
		)
		if err := rows.Scan(&tagID, &perm, &fromMs, &untilMs, &secret); err != nil {
			return credential.State{}, fmt.Errorf("Load scan: %w", err)
		}

		id, err := lynx.ParseTagID(tagID)
		if err != nil {
			return credential.State{}, fmt.Errorf("Load row %s: %w", tagID, err)
		}
		p, err := lynx.ParsePermission(perm)
		if err != nil {
			return credential.State{}, fmt.Errorf("Load row %s: %w", tagID, err)
		}

		state.Credentials = append(state.Credentials, lynx.Credential{
			TagID:      id,
			Permission: p,
			ValidFrom:  fromMillis(fromMs),
			ValidUntil: fromMillis(untilMs),
			Secret:     nilIfEmpty(secret),
		})
	}
	if err := rows.Err(); err != nil {
		return credential.State{}, fmt.Errorf("Load rows: %w", err)
	}
	return state, nil
}

// Save replaces the persisted set in one transaction.
func (m *Mirror) Save(ctx context.Context, state credential.State) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("Save begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM credentials;"); err != nil {
		return fmt.Errorf("Save clear: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO credentials(tag_id, permission, valid_from_ms, valid_until_ms, secret)
VALUES (?, ?, ?, ?, ?);`)
	if err != nil {
		return fmt.Errorf("Save prepare: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, c := range state.Credentials {
		if _, err := stmt.ExecContext(ctx,
			c.TagID.String(), c.Permission.String(), toMillis(c.ValidFrom), toMillis(c.ValidUntil),
			toBlob(c.Secret),
		); err != nil {
			return fmt.Errorf("Save insert %s: %w", c.TagID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO store_meta(id, version, saved_at_ms) VALUES (1, ?, ?)
ON CONFLICT(id) DO UPDATE SET version = excluded.version, saved_at_ms = excluded.saved_at_ms;`,
		state.Version, time.Now().UTC().UnixMilli(),
	); err != nil {
		return fmt.Errorf("Save version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("Save commit: %w", err)
	}
	return nil
}

// Close closes the database.
func (m *Mirror) Close() error {
	return m.db.Close()
}

func toMillis(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().UnixMilli()
}

func toBlob(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

func nilIfEmpty(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return b
}

func fromMillis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.UnixMilli(v.Int64).UTC()
	return &t
}

var _ credential.Persister = (*Mirror)(nil)
