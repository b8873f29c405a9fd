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

// Package syncer reconciles the lock with its remote service.
//
// Access events are queued locally and uploaded in batches; the credential
// set is downloaded conditionally on the version the store already holds.
// The manager runs on its own goroutine and only touches the real-time path
// through the queue, the store and the indicator, so a slow or absent link
// never delays an access decision.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ZaparooProject/go-lynx"
	"github.com/ZaparooProject/go-lynx/credential"
	"github.com/ZaparooProject/go-lynx/indicator"
	"github.com/ZaparooProject/go-lynx/internal/retry"
	"go.uber.org/zap"
)

// Store is the credential store as seen by the sync manager.
type Store interface {
	ApplyUpdate(ctx context.Context, u credential.Update) error
	Version() string
}

// Indicator shows the Syncing overlay during a cycle.
type Indicator interface {
	Show(p indicator.Pattern)
	ClearSyncing()
}

// Link reports network availability.
type Link interface {
	Up() bool
}

// LinkFunc adapts a function to Link.
type LinkFunc func() bool

// Up calls f.
func (f LinkFunc) Up() bool { return f() }

// AlwaysUp is the default Link.
var AlwaysUp Link = LinkFunc(func() bool { return true })

// Config holds the sync policy.
type Config struct {
	Interval       time.Duration
	BatchSize      int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultConfig returns the default sync policy.
func DefaultConfig() Config {
	return Config{
		Interval:       30 * time.Second,
		BatchSize:      32,
		InitialBackoff: time.Second,
		MaxBackoff:     5 * time.Minute,
	}
}

// Status is a snapshot of the last cycles.
type Status struct {
	LastSuccess  time.Time
	LastError    error
	Failures     int
	Uploaded     int64
	Downloads    int64
	QueueLength  int
	QueueDropped uint64
}

// Option configures a Manager.
type Option func(*Manager)

// WithConfig replaces the sync policy.
func WithConfig(cfg Config) Option {
	return func(m *Manager) {
		m.cfg = cfg
	}
}

// WithLink sets the connectivity hook.
func WithLink(link Link) Option {
	return func(m *Manager) {
		if link != nil {
			m.link = link
		}
	}
}

// WithIndicator shows Syncing while a cycle runs.
func WithIndicator(ind Indicator) Option {
	return func(m *Manager) {
		m.indicator = ind
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// Manager runs sync cycles.
type Manager struct {
	client    Client
	queue     *Queue
	store     Store
	link      Link
	indicator Indicator
	logger    *zap.Logger
	backoff   *retry.Backoff
	trigger   chan struct{}
	status    Status
	cfg       Config
	mu        sync.Mutex
}

// NewManager creates a manager uploading from queue and applying downloads
// to store.
func NewManager(client Client, queue *Queue, store Store, opts ...Option) *Manager {
	m := &Manager{
		client:  client,
		queue:   queue,
		store:   store,
		link:    AlwaysUp,
		logger:  zap.NewNop(),
		cfg:     DefaultConfig(),
		trigger: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.cfg.Interval <= 0 {
		m.cfg.Interval = DefaultConfig().Interval
	}
	if m.cfg.BatchSize < 1 {
		m.cfg.BatchSize = DefaultConfig().BatchSize
	}
	if m.cfg.InitialBackoff <= 0 {
		m.cfg.InitialBackoff = DefaultConfig().InitialBackoff
	}
	if m.cfg.MaxBackoff < m.cfg.InitialBackoff {
		m.cfg.MaxBackoff = max(DefaultConfig().MaxBackoff, m.cfg.InitialBackoff)
	}
	m.backoff = retry.NewBackoff(&retry.Config{
		InitialBackoff: m.cfg.InitialBackoff,
		MaxBackoff:     m.cfg.MaxBackoff,
		Multiplier:     2,
		Jitter:         0.2,
	})
	return m
}

// SyncNow requests an immediate cycle. It never blocks.
func (m *Manager) SyncNow() {
	select {
	case m.trigger <- struct{}{}:
	default:
	}
}

// Status returns a snapshot of the sync state.
func (m *Manager) Status() Status {
	m.mu.Lock()
	s := m.status
	m.mu.Unlock()

	s.QueueLength = m.queue.Len()
	s.QueueDropped = m.queue.Dropped()
	return s
}

// Run performs a cycle every Interval, or after the backoff delay following
// a failure, until ctx is done.
func (m *Manager) Run(ctx context.Context) error {
	wait := time.Duration(0)
	for {
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-m.trigger:
			timer.Stop()
		case <-timer.C:
		}

		if !m.link.Up() {
			m.logger.Debug("link down, skipping sync")
			wait = m.cfg.Interval
			continue
		}

		if err := m.Sync(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			wait = m.backoff.Next()
			m.logger.Warn("sync failed",
				zap.Error(err), zap.Duration("retry_in", wait))
			continue
		}
		m.backoff.Reset()
		wait = m.cfg.Interval
	}
}

// Sync performs one cycle: upload one batch of events, then download the
// credential set. Errors reaching the remote wrap lynx.ErrSyncUnavailable.
func (m *Manager) Sync(ctx context.Context) error {
	if m.indicator != nil {
		m.indicator.Show(indicator.Syncing)
		defer m.indicator.ClearSyncing()
	}

	err := m.upload(ctx)
	if err == nil {
		err = m.download(ctx)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.status.LastError = err
	if err != nil {
		m.status.Failures++
		return err
	}
	m.status.Failures = 0
	m.status.LastSuccess = time.Now()
	return nil
}

func (m *Manager) upload(ctx context.Context) error {
	batch := m.queue.Peek(m.cfg.BatchSize)
	if len(batch) == 0 {
		return nil
	}

	ids, err := m.client.UploadEvents(ctx, batch)
	if err != nil {
		return unavailable("upload events", err)
	}
	removed := m.queue.Ack(ids)

	m.mu.Lock()
	m.status.Uploaded += int64(removed)
	m.mu.Unlock()

	m.logger.Debug("uploaded events",
		zap.Int("sent", len(batch)), zap.Int("acked", removed))
	return nil
}

func (m *Manager) download(ctx context.Context) error {
	version := m.store.Version()
	u, changed, err := m.client.FetchCredentials(ctx, version)
	if err != nil {
		return unavailable("fetch credentials", err)
	}
	if !changed {
		return nil
	}

	if err := m.store.ApplyUpdate(ctx, u); err != nil {
		return fmt.Errorf("apply credentials version %q: %w", u.Version, err)
	}

	m.mu.Lock()
	m.status.Downloads++
	m.mu.Unlock()

	m.logger.Info("credentials updated",
		zap.String("from", version), zap.String("to", u.Version),
		zap.Stringer("mode", u.Mode), zap.Int("credentials", len(u.Credentials)))
	return nil
}

// unavailable wraps err in lynx.ErrSyncUnavailable unless it already is.
func unavailable(op string, err error) error {
	if errors.Is(err, lynx.ErrSyncUnavailable) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, lynx.ErrSyncUnavailable, err)
}
