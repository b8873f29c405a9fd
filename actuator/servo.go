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
	"fmt"
	"sync"
	"time"

	"github.com/ZaparooProject/go-lynx/internal/clock"
	"go.uber.org/zap"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// Hobby servo timing: a 50 Hz frame with a 0.5 ms to 2.5 ms pulse
// (2.5 % to 12.5 % duty) spanning 0 to 180 degrees.
const (
	ServoFrequency = 50 * physic.Hertz
	MaxAngle       = 180

	minDutyPermille = 25
	maxDutyPermille = 125
)

// ServoConfig describes a servo-driven latch.
type ServoConfig struct {
	LockedAngle   int
	UnlockedAngle int
	// SettleDelay is how long the horn needs to reach its end position.
	SettleDelay time.Duration
	// StepDelay, when set, sweeps one degree per step instead of jumping.
	StepDelay time.Duration
}

// DefaultServoConfig returns a 0/120 degree latch.
func DefaultServoConfig() ServoConfig {
	return ServoConfig{
		LockedAngle:   0,
		UnlockedAngle: 120,
		SettleDelay:   400 * time.Millisecond,
	}
}

// DutyForAngle maps 0..180 degrees onto the servo duty range.
func DutyForAngle(angle int) gpio.Duty {
	angle = max(0, min(MaxAngle, angle))
	lo := int64(gpio.DutyMax) * minDutyPermille / 1000
	hi := int64(gpio.DutyMax) * maxDutyPermille / 1000
	return gpio.Duty(lo + (hi-lo)*int64(angle)/MaxAngle)
}

// Servo has no position feedback: an operation succeeds once the settle delay
// has elapsed within the timeout. PWM is halted after every operation so the
// servo is not left holding against the latch.
type Servo struct {
	pin    gpio.PinOut
	clock  clock.Clock
	logger *zap.Logger
	cfg    ServoConfig
	angle  int
	known  bool
	mu     sync.Mutex
}

// NewServo validates the angles. The servo is not moved until the first
// Lock or Unlock.
func NewServo(pin gpio.PinOut, cfg ServoConfig, opts ...Option) (*Servo, error) {
	if pin == nil {
		return nil, fmt.Errorf("actuator: servo pin is required")
	}
	for _, a := range []int{cfg.LockedAngle, cfg.UnlockedAngle} {
		if a < 0 || a > MaxAngle {
			return nil, fmt.Errorf("actuator: servo angle %d outside 0..%d", a, MaxAngle)
		}
	}
	o := defaultOptions(opts)
	return &Servo{pin: pin, cfg: cfg, clock: o.clock, logger: o.logger}, nil
}

// Unlock swings to the unlocked angle.
func (s *Servo) Unlock(ctx context.Context, timeout time.Duration) error {
	return s.move(ctx, s.cfg.UnlockedAngle, timeout)
}

// Lock swings to the locked angle.
func (s *Servo) Lock(ctx context.Context, timeout time.Duration) error {
	return s.move(ctx, s.cfg.LockedAngle, timeout)
}

func (s *Servo) move(ctx context.Context, target int, timeout time.Duration) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if timeout <= 0 {
		return confirmed(0, timeout)
	}

	start := s.clock.Now()
	defer func() {
		if haltErr := s.pin.Halt(); haltErr != nil {
			s.logger.Error("failed to halt servo PWM", zap.Error(haltErr))
			if err == nil {
				err = fmt.Errorf("%w: halt: %w", ErrHardwareFault, haltErr)
			}
		}
	}()

	for _, angle := range s.path(target) {
		if err := s.pin.PWM(DutyForAngle(angle), ServoFrequency); err != nil {
			s.known = false
			return fmt.Errorf("%w: pwm: %w", ErrHardwareFault, err)
		}
		if s.cfg.StepDelay > 0 {
			if err := sleep(ctx, s.clock, s.cfg.StepDelay); err != nil {
				s.known = false
				return err
			}
			if elapsed := s.clock.Now().Sub(start); elapsed >= timeout {
				s.known = false
				return confirmed(elapsed, timeout)
			}
		}
	}

	if err := sleep(ctx, s.clock, s.cfg.SettleDelay); err != nil {
		s.known = false
		return err
	}
	if err := confirmed(s.clock.Now().Sub(start), timeout); err != nil {
		s.known = false
		return err
	}

	s.angle, s.known = target, true
	return nil
}

// path lists the angles to visit. Without a step delay, or from an unknown
// position, the servo jumps straight to target.
func (s *Servo) path(target int) []int {
	if s.cfg.StepDelay <= 0 || !s.known || s.angle == target {
		return []int{target}
	}
	step := 1
	if target < s.angle {
		step = -1
	}
	out := make([]int, 0, abs(target-s.angle))
	for a := s.angle + step; a != target+step; a += step {
		out = append(out, a)
	}
	return out
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

var _ Driver = (*Servo)(nil)
