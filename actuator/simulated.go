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
	"sync"
	"time"

	"github.com/ZaparooProject/go-lynx/internal/clock"
	"go.uber.org/zap"
)

// Simulated is a mechanism without hardware. It confirms its position after
// a configurable delay measured on its clock, and faults can be injected.
type Simulated struct {
	fault       error
	clock       clock.Clock
	logger      *zap.Logger
	delay       time.Duration
	position    Position
	activations int
	energized   bool
	mu          sync.Mutex
}

// NewSimulated returns a locked mechanism that confirms after delay.
func NewSimulated(delay time.Duration, opts ...Option) *Simulated {
	o := defaultOptions(opts)
	return &Simulated{
		delay:    delay,
		clock:    o.clock,
		logger:   o.logger,
		position: PositionLocked,
	}
}

// SetDelay changes the confirmation delay.
func (s *Simulated) SetDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

// InjectFault makes subsequent operations fail. ErrTimedOut simulates a
// jammed bolt that never confirms; any other error is returned immediately,
// wrapped in ErrHardwareFault. nil clears the fault.
func (s *Simulated) InjectFault(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fault = err
}

// Unlock simulates opening.
func (s *Simulated) Unlock(ctx context.Context, timeout time.Duration) error {
	return s.actuate(ctx, PositionUnlocked, timeout)
}

// Lock simulates closing.
func (s *Simulated) Lock(ctx context.Context, timeout time.Duration) error {
	return s.actuate(ctx, PositionLocked, timeout)
}

// Position returns the last confirmed position.
func (s *Simulated) Position() Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position
}

// Energized reports whether an operation is currently driving the mechanism.
func (s *Simulated) Energized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.energized
}

// Activations counts operations that energised the mechanism.
func (s *Simulated) Activations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activations
}

func (s *Simulated) actuate(ctx context.Context, target Position, timeout time.Duration) error {
	s.mu.Lock()
	fault, delay := s.fault, s.delay
	if timeout <= 0 {
		s.mu.Unlock()
		return confirmed(0, timeout)
	}
	s.energized = true
	s.activations++
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.energized = false
		s.mu.Unlock()
	}()

	start := s.clock.Now()
	switch {
	case errors.Is(fault, ErrTimedOut):
		delay = timeout
	case fault != nil:
		s.setPosition(PositionUnknown)
		if errors.Is(fault, ErrHardwareFault) {
			return fault
		}
		return errors.Join(ErrHardwareFault, fault)
	}

	// Never wait past the deadline; a slower mechanism is a timeout.
	if err := sleep(ctx, s.clock, min(delay, timeout)); err != nil {
		s.setPosition(PositionUnknown)
		return err
	}

	if err := confirmed(s.clock.Now().Sub(start), timeout); err != nil {
		s.setPosition(PositionUnknown)
		s.logger.Debug("simulated actuator timed out", zap.Stringer("target", target))
		return err
	}
	s.setPosition(target)
	return nil
}

func (s *Simulated) setPosition(p Position) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.position = p
}

var _ Driver = (*Simulated)(nil)
