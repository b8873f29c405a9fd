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

// Package actuator drives the physical lock mechanism.
//
// Every operation is timed: the drive signal is asserted, the driver waits up
// to the given timeout for the mechanism to confirm its position (or for a
// fixed settle delay when there is no feedback), and the drive signal is
// de-asserted again on every exit path. A confirmation only counts when it
// arrives strictly before the timeout.
package actuator

import (
	"context"
	"fmt"
	"time"

	"github.com/ZaparooProject/go-lynx"
	"github.com/ZaparooProject/go-lynx/internal/clock"
	"go.uber.org/zap"
)

var (
	// ErrTimedOut means the mechanism did not confirm its position in time.
	ErrTimedOut = fmt.Errorf("%w: no confirmation before timeout", lynx.ErrActuatorFault)

	// ErrHardwareFault means the drive or sense hardware reported an error.
	ErrHardwareFault = fmt.Errorf("%w: hardware fault", lynx.ErrActuatorFault)
)

// Driver is the lock mechanism capability used by the access controller.
type Driver interface {
	Unlock(ctx context.Context, timeout time.Duration) error
	Lock(ctx context.Context, timeout time.Duration) error
}

// Position is the last confirmed position of a mechanism.
type Position int

const (
	PositionUnknown Position = iota
	PositionLocked
	PositionUnlocked
)

func (p Position) String() string {
	switch p {
	case PositionLocked:
		return "locked"
	case PositionUnlocked:
		return "unlocked"
	default:
		return "unknown"
	}
}

// Option configures any of the drivers in this package.
type Option func(*options)

type options struct {
	clock  clock.Clock
	logger *zap.Logger
}

func defaultOptions(opts []Option) options {
	o := options{clock: clock.New(), logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithClock sets the clock used to measure elapsed time and settle delays.
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// sleep waits d on c unless ctx is done first.
func sleep(ctx context.Context, c clock.Clock, d time.Duration) error {
	if err := ctx.Err(); err != nil || d <= 0 {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.After(d):
		return nil
	}
}

// confirmed applies the strict deadline rule.
func confirmed(elapsed, timeout time.Duration) error {
	if elapsed < timeout {
		return nil
	}
	return fmt.Errorf("%w (took %s, limit %s)", ErrTimedOut, elapsed, timeout)
}
