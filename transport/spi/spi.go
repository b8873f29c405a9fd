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

// Package spi provides the SPI transport for PN532.
//
// The PN532 shifts bits LSB first while most SPI controllers only support
// MSB first, so every byte is bit-reversed in software. Each transaction is
// prefixed by one of three operation bytes: data write, status read or data
// read.
package spi

import (
	"context"
	"fmt"
	"io"
	"math/bits"
	"sync"
	"time"

	"github.com/ZaparooProject/go-lynx/internal/frame"
	"github.com/ZaparooProject/go-lynx/pn532"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// SPI operation prefixes.
const (
	opDataWrite  = 0x01
	opStatusRead = 0x02
	opDataRead   = 0x03
)

const (
	statusReady  = 0x01
	pollInterval = time.Millisecond

	// DefaultSpeed is well below the 5 MHz the PN532 accepts, which keeps
	// long ribbon cables reliable.
	DefaultSpeed = 1 * physic.MegaHertz
)

// Conn is the part of spi.Conn the transport needs.
type Conn interface {
	Tx(w, r []byte) error
}

// Transport implements pn532.Transport over SPI mode 0.
type Transport struct {
	conn     Conn
	closer   io.Closer
	portName string
	timeout  time.Duration
	mu       sync.Mutex
	closed   bool
}

// New opens portName (for example "/dev/spidev0.0" or "SPI0.0").
func New(portName string, speed physic.Frequency) (*Transport, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}

	port, err := spireg.Open(portName)
	if err != nil {
		return nil, pn532.NewTransportError("open", portName,
			fmt.Errorf("%w: %w", pn532.ErrDeviceNotFound, err), pn532.ErrorTypePermanent)
	}

	if speed <= 0 {
		speed = DefaultSpeed
	}
	conn, err := port.Connect(speed, spi.Mode0, 8)
	if err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to configure SPI port %s: %w", portName, err)
	}

	return NewWithConn(conn, port, portName), nil
}

// NewWithConn wraps an already configured connection. closer may be nil.
func NewWithConn(conn Conn, closer io.Closer, portName string) *Transport {
	return &Transport{
		conn:     conn,
		closer:   closer,
		portName: portName,
		timeout:  pn532.DefaultTimeout,
	}
}

// SendCommand writes the command frame and waits for ACK and response.
func (t *Transport) SendCommand(ctx context.Context, cmd byte, args []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed || t.conn == nil {
		return nil, pn532.NewTransportError("SendCommand", t.portName, pn532.ErrTransportClosed, pn532.ErrorTypePermanent)
	}

	frm, err := frame.Build(cmd, args)
	if err != nil {
		return nil, pn532.NewFrameError("writeFrame", t.portName, err)
	}
	if err := t.write(frm); err != nil {
		return nil, err
	}

	if err := t.waitReady(ctx, "waitAck"); err != nil {
		return nil, err
	}
	ack, err := t.read("readAck", len(frame.AckFrame))
	if err != nil {
		return nil, err
	}
	if !frame.IsAck(ack) {
		if frame.IsNack(ack) {
			return nil, pn532.NewTransportError("readAck", t.portName, pn532.ErrNACKReceived, pn532.ErrorTypeTransient)
		}
		return nil, pn532.NewNoACKError("readAck", t.portName)
	}

	if err := t.waitReady(ctx, "waitResponse"); err != nil {
		return nil, err
	}
	buf, err := t.read("readResponse", frame.MaxFrameLength)
	if err != nil {
		return nil, err
	}

	data, err := frame.Parse(buf)
	if err != nil {
		return nil, pn532.NewFrameError("readResponse", t.portName, err)
	}
	return data, nil
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

// Close releases the port
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	if t.closer != nil {
		if err := t.closer.Close(); err != nil {
			return fmt.Errorf("failed to close SPI port %s: %w", t.portName, err)
		}
	}
	return nil
}

// IsConnected returns true if the transport is open
func (t *Transport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn != nil && !t.closed
}

// Type returns the transport type
func (*Transport) Type() pn532.TransportType {
	return pn532.TransportSPI
}

func (t *Transport) write(frm []byte) error {
	w := make([]byte, 0, len(frm)+1)
	w = append(w, opDataWrite)
	w = append(w, frm...)
	reverse(w)

	if err := t.conn.Tx(w, nil); err != nil {
		return pn532.NewTransportError("writeFrame", t.portName,
			fmt.Errorf("%w: %w", pn532.ErrTransportWrite, err), pn532.ErrorTypeTransient)
	}
	return nil
}

// read clocks out n bytes after a data read prefix.
func (t *Transport) read(op string, n int) ([]byte, error) {
	w := make([]byte, n+1)
	w[0] = bits.Reverse8(opDataRead)
	r := make([]byte, n+1)

	if err := t.conn.Tx(w, r); err != nil {
		return nil, pn532.NewTransportError(op, t.portName,
			fmt.Errorf("%w: %w", pn532.ErrTransportRead, err), pn532.ErrorTypeTransient)
	}

	out := r[1:]
	reverse(out)
	return out, nil
}

func (t *Transport) waitReady(ctx context.Context, op string) error {
	deadline := time.Now().Add(t.timeout)
	w := []byte{bits.Reverse8(opStatusRead), 0x00}
	r := make([]byte, 2)

	for {
		if err := t.conn.Tx(w, r); err != nil {
			return pn532.NewTransportError(op, t.portName,
				fmt.Errorf("%w: %w", pn532.ErrTransportRead, err), pn532.ErrorTypeTransient)
		}
		if bits.Reverse8(r[1])&statusReady != 0 {
			return nil
		}

		if !time.Now().Before(deadline) {
			return pn532.NewTimeoutError(op, t.portName)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

func reverse(buf []byte) {
	for i, b := range buf {
		buf[i] = bits.Reverse8(b)
	}
}

// Ensure Transport implements pn532.Transport
var _ pn532.Transport = (*Transport)(nil)
