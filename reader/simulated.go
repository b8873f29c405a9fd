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
	"sync"

	"github.com/ZaparooProject/go-lynx"
	"github.com/ZaparooProject/go-lynx/pn532"
)

// SimulatedDevice stands in for a PN532 when no hardware is attached. Tags
// are tapped programmatically and seen by exactly one InListPassiveTarget.
// Wrap it with NewPN532 to get the normal debounce and fault handling.
type SimulatedDevice struct {
	failErr  error
	taps     []lynx.TagID
	failNext int
	mu       sync.Mutex
}

// NewSimulatedDevice returns a device with an empty field.
func NewSimulatedDevice() *SimulatedDevice {
	return &SimulatedDevice{}
}

// Tap presents tag for the next transaction.
func (d *SimulatedDevice) Tap(tag lynx.TagID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.taps = append(d.taps, tag.Clone())
}

// FailNext makes the next n transactions return err.
func (d *SimulatedDevice) FailNext(n int, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failNext = n
	d.failErr = err
}

// InListPassiveTarget returns the oldest tapped tag, if any.
func (d *SimulatedDevice) InListPassiveTarget(ctx context.Context) (*pn532.Target, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.failNext > 0 {
		d.failNext--
		return nil, d.failErr
	}
	if len(d.taps) == 0 {
		return nil, nil
	}

	tag := d.taps[0]
	d.taps = d.taps[1:]
	return &pn532.Target{Number: 1, UID: tag}, nil
}

// InRelease is a no-op.
func (*SimulatedDevice) InRelease(context.Context, byte) error {
	return nil
}

var _ Device = (*SimulatedDevice)(nil)
