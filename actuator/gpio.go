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

package actuator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ZaparooProject/go-lynx/internal/clock"
	"go.uber.org/zap"
	"periph.io/x/conn/v3/gpio"
)

// senseStep bounds each WaitForEdge so ctx cancellation is noticed promptly.
const senseStep = 10 * time.Millisecond

// GPIOConfig wires a motorised bolt or bistable solenoid.
type GPIOConfig struct {
	// Unlock and Lock are the drive outputs, active high.
	Unlock gpio.PinOut
	Lock   gpio.PinOut
	// Sense is the optional door/bolt switch: high = open, low = closed.
	Sense gpio.PinIn
	// SensePull is applied to Sense; gpio.PullNoChange keeps the board default.
	SensePull gpio.Pull
	// SettleDelay is used instead of Sense feedback when Sense is nil.
	SettleDelay time.Duration
}

// GPIO drives the lock through two output pins and optionally confirms the
// position through a sense input.
type GPIO struct {
	unlock gpio.PinOut
	lock   gpio.PinOut
	sense  gpio.PinIn
	clock  clock.Clock
	logger *zap.Logger
	settle time.Duration
	mu     sync.Mutex
}

// NewGPIO validates the pins, drives both outputs low and arms the sense
// input for edge detection.
func NewGPIO(cfg GPIOConfig, opts ...Option) (*GPIO, error) {
	if cfg.Unlock == nil || cfg.Lock == nil {
		return nil, errors.New("actuator: unlock and lock pins are required")
	}
	if cfg.Sense == nil && cfg.SettleDelay <= 0 {
		return nil, errors.New("actuator: a sense pin or a settle delay is required")
	}

	o := defaultOptions(opts)
	g := &GPIO{
		unlock: cfg.Unlock,
		lock:   cfg.Lock,
		sense:  cfg.Sense,
		clock:  o.clock,
		logger: o.logger,
		settle: cfg.SettleDelay,
	}

	for _, p := range []gpio.PinOut{g.unlock, g.lock} {
		if err := p.Out(gpio.Low); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrHardwareFault, p, err)
		}
	}
	if g.sense != nil {
		if err := g.sense.In(cfg.SensePull, gpio.BothEdges); err != nil {
			return nil, fmt.Errorf("%w: sense %s: %w", ErrHardwareFault, g.sense, err)
		}
	}
	return g, nil
}

// Unlock drives the bolt open.
func (g *GPIO) Unlock(ctx context.Context, timeout time.Duration) error {
	return g.actuate(ctx, g.unlock, gpio.High, timeout)
}

// Lock drives the bolt closed.
func (g *GPIO) Lock(ctx context.Context, timeout time.Duration) error {
	return g.actuate(ctx, g.lock, gpio.Low, timeout)
}

func (g *GPIO) actuate(ctx context.Context, drive gpio.PinOut, want gpio.Level, timeout time.Duration) (err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if timeout <= 0 {
		return confirmed(0, timeout)
	}

	start := g.clock.Now()
	if err := drive.Out(gpio.High); err != nil {
		_ = drive.Out(gpio.Low)
		return fmt.Errorf("%w: drive %s: %w", ErrHardwareFault, drive, err)
	}
	defer func() {
		if lowErr := drive.Out(gpio.Low); lowErr != nil {
			g.logger.Error("failed to release drive pin", zap.Stringer("pin", drive), zap.Error(lowErr))
			if err == nil {
				err = fmt.Errorf("%w: release %s: %w", ErrHardwareFault, drive, lowErr)
			}
		}
	}()

	if g.sense == nil {
		if err := sleep(ctx, g.clock, g.settle); err != nil {
			return err
		}
		return confirmed(g.clock.Now().Sub(start), timeout)
	}
	return g.waitSense(ctx, start, want, timeout)
}

func (g *GPIO) waitSense(ctx context.Context, start time.Time, want gpio.Level, timeout time.Duration) error {
	for {
		elapsed := g.clock.Now().Sub(start)
		if g.sense.Read() == want {
			return confirmed(elapsed, timeout)
		}
		if elapsed >= timeout {
			return confirmed(elapsed, timeout)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		g.sense.WaitForEdge(min(timeout-elapsed, senseStep))
	}
}

var _ Driver = (*GPIO)(nil)
