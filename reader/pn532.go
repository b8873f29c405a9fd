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

package reader

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ZaparooProject/go-lynx"
	"github.com/ZaparooProject/go-lynx/internal/clock"
	"github.com/ZaparooProject/go-lynx/pn532"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Device is the subset of *pn532.Device the reader drives.
type Device interface {
	InListPassiveTarget(ctx context.Context) (*pn532.Target, error)
	InRelease(ctx context.Context, tg byte) error
}

// Option configures a PN532 reader.
type Option func(*PN532)

// WithConfig replaces the reader policy.
func WithConfig(cfg Config) Option {
	return func(r *PN532) {
		r.cfg = cfg
	}
}

// WithClock sets the clock used to timestamp detections.
func WithClock(c clock.Clock) Option {
	return func(r *PN532) {
		if c != nil {
			r.clock = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *PN532) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// PN532 is a Driver backed by a PN532 device.
type PN532 struct {
	lastSeen time.Time
	device   Device
	clock    clock.Clock
	logger   *zap.Logger
	faultLog *rate.Sometimes
	lastTag  lynx.TagID
	cfg      Config
	stats    Stats
	failures int
	mu       sync.Mutex
}

// NewPN532 creates a reader on top of an initialised device.
func NewPN532(device Device, opts ...Option) *PN532 {
	r := &PN532{
		device:   device,
		cfg:      DefaultConfig(),
		clock:    clock.New(),
		logger:   zap.NewNop(),
		faultLog: &rate.Sometimes{First: 1, Interval: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.cfg.MaxFailures < 1 {
		r.cfg.MaxFailures = 1
	}
	return r
}

// Poll performs one InListPassiveTarget transaction.
func (r *PN532) Poll(ctx context.Context) (*lynx.ReaderEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stats.Polls++

	txCtx, cancel := r.transactionContext(ctx)
	target, err := r.device.InListPassiveTarget(txCtx)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, r.recordFailure(err)
	}

	if target == nil {
		r.failures = 0
		return nil, nil
	}

	tag := lynx.TagID(target.UID)
	if verr := tag.Validate(); verr != nil {
		r.releaseTarget(ctx, target.Number)
		return nil, r.recordFailure(verr)
	}
	r.failures = 0

	now := r.clock.Now()
	suppressed := r.lastTag.Equal(tag) && now.Sub(r.lastSeen) < r.cfg.Debounce
	r.lastTag = tag.Clone()
	r.lastSeen = now

	r.releaseTarget(ctx, target.Number)

	if suppressed {
		r.stats.Suppressed++
		return nil, nil
	}

	r.stats.Detections++
	r.logger.Debug("tag detected", zap.Stringer("tag_id", tag))
	return &lynx.ReaderEvent{TagID: tag.Clone(), DetectedAt: now}, nil
}

// Stats returns a snapshot of the diagnostic counters.
func (r *PN532) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

func (r *PN532) recordFailure(err error) error {
	r.failures++
	r.stats.Failures++

	if r.failures < r.cfg.MaxFailures {
		r.logger.Debug("reader transaction failed",
			zap.Int("consecutive", r.failures), zap.Error(err))
		return nil
	}

	fault := &FaultError{Failures: r.failures, Err: err}
	r.failures = 0
	r.stats.Faults++
	r.faultLog.Do(func() {
		r.logger.Warn("reader fault", zap.Error(fault))
	})
	return fault
}

// releaseTarget deactivates the target so the next poll re-selects it.
// Failures are ignored; the next InListPassiveTarget recovers.
func (r *PN532) releaseTarget(ctx context.Context, tg byte) {
	txCtx, cancel := r.transactionContext(ctx)
	defer cancel()
	if err := r.device.InRelease(txCtx, tg); err != nil && !errors.Is(err, context.Canceled) {
		r.logger.Debug("failed to release target", zap.Error(err))
	}
}

func (r *PN532) transactionContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.cfg.TransactionTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.cfg.TransactionTimeout)
}

var _ Driver = (*PN532)(nil)
