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

package access

import (
	"github.com/ZaparooProject/go-lynx"
	"github.com/ZaparooProject/go-lynx/internal/clock"
	"go.uber.org/zap"
)

// Option configures a Controller.
type Option func(*Controller)

// WithConfig replaces the timing policy. Non-positive fields keep their
// defaults.
func WithConfig(cfg Config) Option {
	return func(c *Controller) {
		if cfg.PollInterval > 0 {
			c.cfg.PollInterval = cfg.PollInterval
		}
		if cfg.Hold > 0 {
			c.cfg.Hold = cfg.Hold
		}
		if cfg.ActuatorTimeout > 0 {
			c.cfg.ActuatorTimeout = cfg.ActuatorTimeout
		}
	}
}

// WithClock sets the clock used for the hold timer and event timestamps.
func WithClock(clk clock.Clock) Option {
	return func(c *Controller) {
		if clk != nil {
			c.clock = clk
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithVerifier enables challenge-response for credentials that carry a
// secret. Without one such credentials are denied.
func WithVerifier(v Verifier) Option {
	return func(c *Controller) {
		c.verifier = v
	}
}

// OnStateChange registers fn to be called after every transition, from the
// controller goroutine.
func OnStateChange(fn func(from, to lynx.LockState)) Option {
	return func(c *Controller) {
		c.onChange = fn
	}
}
