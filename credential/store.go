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

// Package credential is the lock's local trust store.
//
// The store maps tag UIDs to permissions and optional validity windows.
// Lookups take a read lock only long enough to fetch one entry; updates are
// validated as a whole, built off to the side and swapped in under the write
// lock, so a concurrent lookup sees either the old set or the new one.
package credential

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ZaparooProject/go-lynx"
	"go.uber.org/zap"
)

// Lookup reasons.
const (
	ReasonAllowed      = "allowed"
	ReasonWithinWindow = "within_window"
	ReasonUnknown      = "unknown"
	ReasonDenied       = "denied"
	ReasonNotYetValid  = "not_yet_valid"
	ReasonExpired      = "expired"
	ReasonNoWindow     = "no_window"
)

// Decision is the outcome of a lookup. A denial is a normal decision, not an
// error.
type Decision struct {
	Reason string
	// Secret is set on a grant that still needs the token to answer a
	// challenge with this key.
	Secret  []byte
	Granted bool
}

// UpdateMode selects how an Update is merged.
type UpdateMode int

const (
	// UpdateFull replaces the entire set.
	UpdateFull UpdateMode = iota
	// UpdateIncremental upserts Credentials and deletes Remove.
	UpdateIncremental
)

func (m UpdateMode) String() string {
	switch m {
	case UpdateFull:
		return "full"
	case UpdateIncremental:
		return "incremental"
	default:
		return fmt.Sprintf("UpdateMode(%d)", int(m))
	}
}

// Update is a batch of credential changes.
type Update struct {
	// Version identifies the remote set this update brings the store to.
	// A full update always replaces the version, so a local full update
	// (empty Version) forces the next remote download to be unconditional.
	Version     string
	Credentials []lynx.Credential
	Remove      []lynx.TagID
	Mode        UpdateMode
}

// Validate checks every entry. Duplicate tags within one update are
// rejected because their order would decide the outcome.
func (u Update) Validate() error {
	if u.Mode != UpdateFull && u.Mode != UpdateIncremental {
		return fmt.Errorf("%w: unknown update mode %d", lynx.ErrInvalidCredential, int(u.Mode))
	}

	seen := make(map[string]struct{}, len(u.Credentials))
	for i := range u.Credentials {
		cred := &u.Credentials[i]
		if err := cred.Validate(); err != nil {
			return fmt.Errorf("credential %d: %w", i, err)
		}
		key := cred.TagID.String()
		if _, dup := seen[key]; dup {
			return fmt.Errorf("%w: tag %s listed twice", lynx.ErrInvalidCredential, key)
		}
		seen[key] = struct{}{}
	}

	for _, id := range u.Remove {
		if err := id.Validate(); err != nil {
			return fmt.Errorf("remove %s: %w", id, err)
		}
	}
	return nil
}

// State is what a Persister stores.
type State struct {
	Version     string
	Credentials []lynx.Credential
}

// Persister mirrors the store to durable storage.
type Persister interface {
	Load(ctx context.Context) (State, error)
	Save(ctx context.Context, state State) error
}

// Option configures a Store.
type Option func(*Store)

// WithPersister attaches durable storage.
func WithPersister(p Persister) Option {
	return func(s *Store) {
		s.persister = p
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Store is the in-memory credential set.
type Store struct {
	persister Persister
	logger    *zap.Logger
	creds     map[string]lynx.Credential
	version   string
	mu        sync.RWMutex
	saveMu    sync.Mutex
	degraded  atomic.Bool
}

// NewStore returns an empty store. Nothing is loaded from the persister;
// use Open for that.
func NewStore(opts ...Option) *Store {
	s := &Store{
		creds:  make(map[string]lynx.Credential),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open creates a store and loads the persisted set. A load failure, or a
// persisted set that no longer validates, leaves the store empty and
// degraded; the lock keeps running memory-only.
func Open(ctx context.Context, opts ...Option) *Store {
	s := NewStore(opts...)
	if s.persister == nil {
		return s
	}

	state, err := s.persister.Load(ctx)
	if err == nil {
		err = Update{Mode: UpdateFull, Version: state.Version, Credentials: state.Credentials}.Validate()
	}
	if err != nil {
		s.logger.Error("failed to load persisted credentials, continuing memory-only", zap.Error(err))
		s.degraded.Store(true)
		return s
	}

	next := make(map[string]lynx.Credential, len(state.Credentials))
	for _, cred := range state.Credentials {
		next[cred.TagID.String()] = cred.Clone()
	}
	s.creds = next
	s.version = state.Version
	s.logger.Info("credentials loaded",
		zap.Int("count", len(next)), zap.String("version", state.Version))
	return s
}

// Lookup decides whether tagID may enter at now.
func (s *Store) Lookup(tagID lynx.TagID, now time.Time) Decision {
	s.mu.RLock()
	cred, ok := s.creds[tagID.String()]
	s.mu.RUnlock()

	if !ok {
		return Decision{Reason: ReasonUnknown}
	}
	return decide(cred, now)
}

func decide(cred lynx.Credential, now time.Time) Decision {
	if cred.Permission == lynx.PermissionDeny {
		return Decision{Reason: ReasonDenied}
	}
	if cred.ValidFrom != nil && now.Before(*cred.ValidFrom) {
		return Decision{Reason: ReasonNotYetValid}
	}
	if cred.ValidUntil != nil && !now.Before(*cred.ValidUntil) {
		return Decision{Reason: ReasonExpired}
	}

	if cred.Permission == lynx.PermissionTimeLimited {
		if cred.ValidFrom == nil && cred.ValidUntil == nil {
			return Decision{Reason: ReasonNoWindow}
		}
		return Decision{Granted: true, Reason: ReasonWithinWindow, Secret: bytes.Clone(cred.Secret)}
	}
	return Decision{Granted: true, Reason: ReasonAllowed, Secret: bytes.Clone(cred.Secret)}
}

// ApplyUpdate validates u and swaps the resulting set in atomically. An
// invalid update changes nothing. Persistence failures are logged and put
// the store in memory-only mode; they never fail the update.
func (s *Store) ApplyUpdate(ctx context.Context, u Update) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := u.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	next := s.merge(u)
	version := s.version
	if u.Mode == UpdateFull || u.Version != "" {
		version = u.Version
	}
	s.creds = next
	s.version = version

	// Take the save lock before releasing the write lock so saves land in
	// the same order as the swaps.
	s.saveMu.Lock()
	s.mu.Unlock()
	defer s.saveMu.Unlock()

	s.logger.Info("credentials updated",
		zap.Stringer("mode", u.Mode),
		zap.Int("count", len(next)),
		zap.String("version", version))

	s.persist(ctx, State{Version: version, Credentials: sortedValues(next)})
	return nil
}

// merge builds the next map; s.mu must be held.
func (s *Store) merge(u Update) map[string]lynx.Credential {
	var next map[string]lynx.Credential
	if u.Mode == UpdateFull {
		next = make(map[string]lynx.Credential, len(u.Credentials))
	} else {
		next = make(map[string]lynx.Credential, len(s.creds)+len(u.Credentials))
		for k, v := range s.creds {
			next[k] = v
		}
		for _, id := range u.Remove {
			delete(next, id.String())
		}
	}

	for _, cred := range u.Credentials {
		next[cred.TagID.String()] = cred.Clone()
	}
	return next
}

func (s *Store) persist(ctx context.Context, state State) {
	if s.persister == nil || s.degraded.Load() {
		return
	}
	if err := s.persister.Save(ctx, state); err != nil {
		if errors.Is(err, context.Canceled) {
			s.logger.Warn("credential save cancelled", zap.Error(err))
			return
		}
		s.logger.Error("failed to persist credentials, continuing memory-only", zap.Error(err))
		s.degraded.Store(true)
	}
}

// Snapshot returns a copy of every credential, ordered by tag ID.
func (s *Store) Snapshot() []lynx.Credential {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedValues(s.creds)
}

// Len returns the number of credentials.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.creds)
}

// Version returns the version of the last remote set applied.
func (s *Store) Version() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Degraded reports whether the store has given up on persistence.
func (s *Store) Degraded() bool {
	return s.degraded.Load()
}

func sortedValues(m map[string]lynx.Credential) []lynx.Credential {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]lynx.Credential, 0, len(keys))
	for _, k := range keys {
		out = append(out, m[k].Clone())
	}
	return out
}
