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

// Package i2c provides I2C transport implementation for PN532
package i2c

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ZaparooProject/go-lynx/internal/frame"
	"github.com/ZaparooProject/go-lynx/pn532"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

const (
	// Address is the PN532 7-bit I2C address (0x48 write / 0x49 read).
	Address = 0x24

	// Every read transaction starts with this status byte when the PN532
	// has data.
	pn532Ready = 0x01

	maxClockFreq = 400 * physic.KiloHertz
	pollInterval = time.Millisecond
)

// Bus is the part of *i2c.Dev the transport needs.
type Bus interface {
	Tx(w, r []byte) error
}

// Transport implements the pn532.Transport interface for I2C communication
type Transport struct {
	dev     Bus
	closer  io.Closer
	busName string
	timeout time.Duration
	mu      sync.Mutex
	closed  bool
}

// New opens busName (for example "/dev/i2c-1" or "1") and addresses the PN532.
func New(busName string) (*Transport, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}

	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, pn532.NewTransportError("open", busName,
			fmt.Errorf("%w: %w", pn532.ErrDeviceNotFound, err), pn532.ErrorTypePermanent)
	}

	// Ignore error, continue with default speed
	_ = bus.SetSpeed(maxClockFreq)

	return NewWithBus(&i2c.Dev{Addr: Address, Bus: bus}, bus, busName), nil
}

// NewWithBus wraps an already addressed device. closer may be nil.
func NewWithBus(dev Bus, closer io.Closer, busName string) *Transport {
	return &Transport{
		dev:     dev,
		closer:  closer,
		busName: busName,
		timeout: pn532.DefaultTimeout,
	}
}

// SendCommand sends a command to the PN532 and waits for response
func (t *Transport) SendCommand(ctx context.Context, cmd byte, args []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed || t.dev == nil {
		return nil, pn532.NewTransportError("SendCommand", t.busName, pn532.ErrTransportClosed, pn532.ErrorTypePermanent)
	}

	frm, err := frame.Build(cmd, args)
	if err != nil {
		return nil, pn532.NewFrameError("sendFrame", t.busName, err)
	}
	if err := t.dev.Tx(frm, nil); err != nil {
		return nil, pn532.NewTransportError("sendFrame", t.busName,
			fmt.Errorf("%w: %w", pn532.ErrTransportWrite, err), pn532.ErrorTypeTransient)
	}

	if err := t.waitAck(ctx); err != nil {
		return nil, err
	}

	return t.receiveFrame(ctx)
}

// SetTimeout sets the ACK and response timeout
func (t *Transport) SetTimeout(timeout time.Duration) error {
	if timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive", pn532.ErrInvalidParameter)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.timeout = timeout
	return nil
}

// Close releases the bus
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	if t.closer != nil {
		if err := t.closer.Close(); err != nil {
			return fmt.Errorf("failed to close I2C bus %s: %w", t.busName, err)
		}
	}
	return nil
}

// IsConnected returns true if the transport is connected
func (t *Transport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dev != nil && !t.closed
}

// Type returns the transport type
func (*Transport) Type() pn532.TransportType {
	return pn532.TransportI2C
}

// waitAck waits for an ACK frame from the PN532
func (t *Transport) waitAck(ctx context.Context) error {
	buf, err := t.readWhenReady(ctx, "waitAck", 1+len(frame.AckFrame))
	if err != nil {
		return err
	}
	if frame.IsAck(buf[1:]) {
		return nil
	}
	if frame.IsNack(buf[1:]) {
		return pn532.NewTransportError("waitAck", t.busName, pn532.ErrNACKReceived, pn532.ErrorTypeTransient)
	}
	return pn532.NewNoACKError("waitAck", t.busName)
}

// receiveFrame reads and decodes the response frame
func (t *Transport) receiveFrame(ctx context.Context) ([]byte, error) {
	buf, err := t.readWhenReady(ctx, "receiveFrame", 1+frame.MaxFrameLength)
	if err != nil {
		return nil, err
	}

	data, err := frame.Parse(buf[1:])
	if err != nil {
		return nil, pn532.NewFrameError("receiveFrame", t.busName, err)
	}
	return data, nil
}

// readWhenReady polls the status byte until the PN532 has data, then reads n
// bytes including the leading status byte.
func (t *Transport) readWhenReady(ctx context.Context, op string, n int) ([]byte, error) {
	deadline := time.Now().Add(t.timeout)
	status := make([]byte, 1)

	for {
		if err := t.dev.Tx(nil, status); err != nil {
			return nil, pn532.NewTransportError(op, t.busName,
				fmt.Errorf("%w: %w", pn532.ErrTransportRead, err), pn532.ErrorTypeTransient)
		}

		if status[0] == pn532Ready {
			buf := make([]byte, n)
			if err := t.dev.Tx(nil, buf); err != nil {
				return nil, pn532.NewTransportError(op, t.busName,
					fmt.Errorf("%w: %w", pn532.ErrTransportRead, err), pn532.ErrorTypeTransient)
			}
			if buf[0] == pn532Ready {
				return buf, nil
			}
		}

		if !time.Now().Before(deadline) {
			return nil, pn532.NewTimeoutError(op, t.busName)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// Ensure Transport implements pn532.Transport
var _ pn532.Transport = (*Transport)(nil)
