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

// Package retry provides bounded retry loops and exponential backoff shared by
// the reader bus and the sync manager.
package retry

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

// ErrExhausted is returned when every attempt failed with a retryable error.
var ErrExhausted = errors.New("retries exhausted")

// Config configures retry behavior
type Config struct {
	// MaxAttempts is the total number of attempts, including the first one.
	MaxAttempts int
	// InitialBackoff is the delay before the second attempt.
	InitialBackoff time.Duration
	// MaxBackoff caps the delay between attempts.
	MaxBackoff time.Duration
	// Multiplier grows the delay after every failed attempt.
	Multiplier float64
	// Jitter spreads each delay by up to this fraction in either direction.
	Jitter float64
}

// DefaultConfig returns the configuration used for bus transactions.
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts:    3,
		InitialBackoff: 10 * time.Millisecond,
		MaxBackoff:     100 * time.Millisecond,
		Multiplier:     2,
		Jitter:         0.1,
	}
}

// Do runs fn until it succeeds, returns an error shouldRetry rejects, the
// attempts run out, or ctx is done. A nil shouldRetry retries every error.
func Do(ctx context.Context, cfg *Config, shouldRetry func(error) bool, fn func() error) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	backoff := NewBackoff(cfg)
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return errors.Join(lastErr, err)
			}
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if shouldRetry != nil && !shouldRetry(lastErr) {
			return lastErr
		}
		if attempt == attempts-1 {
			break
		}

		timer := time.NewTimer(backoff.Next())
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Join(lastErr, ctx.Err())
		case <-timer.C:
		}
	}

	return errors.Join(ErrExhausted, lastErr)
}

// Backoff produces exponentially growing delays. It is not safe for
// concurrent use.
type Backoff struct {
	cfg     Config
	current time.Duration
}

// NewBackoff creates a backoff sequence starting at cfg.InitialBackoff.
func NewBackoff(cfg *Config) *Backoff {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	b := &Backoff{cfg: *cfg}
	// A zero initial delay would never grow.
	if b.cfg.InitialBackoff <= 0 {
		b.cfg.InitialBackoff = DefaultConfig().InitialBackoff
	}
	return b
}

// Next returns the delay to wait before the next attempt and advances the
// sequence.
func (b *Backoff) Next() time.Duration {
	if b.current == 0 {
		b.current = b.cfg.InitialBackoff
	} else {
		mult := b.cfg.Multiplier
		if mult < 1 {
			mult = 1
		}
		b.current = time.Duration(float64(b.current) * mult)
	}
	if b.cfg.MaxBackoff > 0 && b.current > b.cfg.MaxBackoff {
		b.current = b.cfg.MaxBackoff
	}
	return b.jittered(b.current)
}

// Reset restarts the sequence at the initial delay.
func (b *Backoff) Reset() {
	b.current = 0
}

func (b *Backoff) jittered(d time.Duration) time.Duration {
	if b.cfg.Jitter <= 0 || d <= 0 {
		return d
	}
	spread := float64(d) * b.cfg.Jitter
	// #nosec G404 -- jitter does not need a cryptographic source
	offset := (rand.Float64()*2 - 1) * spread
	out := time.Duration(float64(d) + offset)
	if out < 0 {
		return 0
	}
	return out
}
