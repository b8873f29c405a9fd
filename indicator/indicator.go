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

// Package indicator drives the lock's status LED.
//
// An Indicator keeps a base pattern (Idle, Granting or Fault) and layers two
// transient patterns over it: Denied flashes for a fixed duration and then
// reverts, and Syncing is shown only while the base is Idle. Errors writing
// to the LED are logged at debug level and otherwise ignored; a dead LED
// never affects access decisions.
package indicator

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Pattern is a named LED state.
type Pattern int

const (
	Idle Pattern = iota
	Granting
	Denied
	Fault
	Syncing
	// Off is shown after Close.
	Off
)

func (p Pattern) String() string {
	switch p {
	case Idle:
		return "idle"
	case Granting:
		return "granting"
	case Denied:
		return "denied"
	case Fault:
		return "fault"
	case Syncing:
		return "syncing"
	case Off:
		return "off"
	default:
		return fmt.Sprintf("pattern(%d)", int(p))
	}
}

// Color is an RGB triple.
type Color struct {
	R, G, B uint8
}

// Colors for each pattern.
var (
	ColorIdle     = Color{R: 0, G: 0, B: 16}
	ColorGranting = Color{R: 0, G: 255, B: 0}
	ColorDenied   = Color{R: 255, G: 0, B: 0}
	ColorFault    = Color{R: 255, G: 120, B: 0}
	ColorSyncing  = Color{R: 0, G: 16, B: 16}
	ColorOff      = Color{}
)

// ColorFor returns the color shown for p.
func ColorFor(p Pattern) Color {
	switch p {
	case Idle:
		return ColorIdle
	case Granting:
		return ColorGranting
	case Denied:
		return ColorDenied
	case Fault:
		return ColorFault
	case Syncing:
		return ColorSyncing
	default:
		return ColorOff
	}
}

// Strip is an addressable LED strip.
type Strip interface {
	Write(pixels []Color) error
}

// Nop is a Strip without hardware.
type Nop struct{}

// Write does nothing.
func (Nop) Write([]Color) error { return nil }

// DefaultFlash is how long Denied stays lit.
const DefaultFlash = 600 * time.Millisecond

// Option configures an Indicator.
type Option func(*Indicator)

// WithFlash sets the Denied flash duration.
func WithFlash(d time.Duration) Option {
	return func(i *Indicator) {
		if d > 0 {
			i.flash = d
		}
	}
}

// WithPixels sets how many LEDs the strip has. All of them show the same color.
func WithPixels(n int) Option {
	return func(i *Indicator) {
		if n > 0 {
			i.pixels = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(i *Indicator) {
		if logger != nil {
			i.logger = logger
		}
	}
}

// Indicator is safe for concurrent use.
type Indicator struct {
	strip    Strip
	logger   *zap.Logger
	timer    *time.Timer
	flash    time.Duration
	pixels   int
	gen      uint64
	base     Pattern
	shown    Pattern
	flashing bool
	syncing  bool
	closed   bool
	mu       sync.Mutex
}

// New creates an indicator and shows Idle.
func New(strip Strip, opts ...Option) *Indicator {
	if strip == nil {
		strip = Nop{}
	}
	i := &Indicator{
		strip:  strip,
		logger: zap.NewNop(),
		flash:  DefaultFlash,
		pixels: 1,
		base:   Idle,
		shown:  Off,
	}
	for _, opt := range opts {
		opt(i)
	}

	i.mu.Lock()
	i.renderLocked()
	i.mu.Unlock()
	return i
}

// Show selects a pattern. Denied is a flash over the current base pattern.
// Syncing is equivalent to SetSyncing(true).
func (i *Indicator) Show(p Pattern) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return
	}

	switch p {
	case Denied:
		i.startFlashLocked()
	case Syncing:
		i.syncing = true
	case Idle, Granting, Fault:
		i.base = p
		// Fault is continuous and must not be hidden by a pending flash.
		if p == Fault {
			i.stopFlashLocked()
		}
	default:
		i.logger.Debug("ignoring unknown indicator pattern", zap.Stringer("pattern", p))
		return
	}
	i.renderLocked()
}

// ClearSyncing removes the Syncing overlay.
func (i *Indicator) ClearSyncing() {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return
	}
	i.syncing = false
	i.renderLocked()
}

// Current returns the pattern currently on the LED.
func (i *Indicator) Current() Pattern {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.shown
}

// Close cancels a pending flash and turns the LED off.
func (i *Indicator) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return nil
	}
	i.stopFlashLocked()
	i.closed = true
	i.shown = Off
	return i.strip.Write(i.fill(ColorOff))
}

func (i *Indicator) startFlashLocked() {
	i.stopFlashLocked()
	i.flashing = true
	gen := i.gen
	i.timer = time.AfterFunc(i.flash, func() {
		i.mu.Lock()
		defer i.mu.Unlock()
		if i.closed || gen != i.gen {
			return
		}
		i.flashing = false
		i.timer = nil
		i.renderLocked()
	})
}

func (i *Indicator) stopFlashLocked() {
	i.gen++
	i.flashing = false
	if i.timer != nil {
		i.timer.Stop()
		i.timer = nil
	}
}

func (i *Indicator) effectiveLocked() Pattern {
	switch {
	case i.base == Fault:
		return Fault
	case i.flashing:
		return Denied
	case i.syncing && i.base == Idle:
		return Syncing
	default:
		return i.base
	}
}

func (i *Indicator) renderLocked() {
	p := i.effectiveLocked()
	if p == i.shown {
		return
	}
	if err := i.strip.Write(i.fill(ColorFor(p))); err != nil {
		i.logger.Debug("failed to update status LED",
			zap.Stringer("pattern", p), zap.Error(err))
		return
	}
	i.shown = p
}

func (i *Indicator) fill(c Color) []Color {
	out := make([]Color, i.pixels)
	for n := range out {
		out[n] = c
	}
	return out
}
