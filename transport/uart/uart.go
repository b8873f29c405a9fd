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

// Package uart provides the high speed UART (HSU) transport for PN532.
package uart

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ZaparooProject/go-lynx/internal/frame"
	"github.com/ZaparooProject/go-lynx/pn532"
	"go.bug.st/serial"
)

const (
	// BaudRate is the PN532 HSU default.
	BaudRate = 115200

	readStep = 10 * time.Millisecond
)

// wakeupPreamble takes the PN532 out of power-down before the first command:
// two 0x55 bytes followed by enough idle time, sent as zeros.
var wakeupPreamble = []byte{
	0x55, 0x55, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
}

// Port is the subset of serial.Port the transport needs.
type Port interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
}

// Transport implements pn532.Transport over a serial port.
type Transport struct {
	port     Port
	portName string
	timeout  time.Duration
	mu       sync.Mutex
	awake    bool
	closed   bool
}

// New opens portName at 115200 8N1.
func New(portName string) (*Transport, error) {
	mode := &serial.Mode{
		BaudRate: BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		var portErr *serial.PortError
		if errors.As(err, &portErr) && portErr.Code() == serial.PortNotFound {
			return nil, pn532.NewTransportError("open", portName,
				fmt.Errorf("%w: %w", pn532.ErrDeviceNotFound, err), pn532.ErrorTypePermanent)
		}
		return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}

	return NewWithPort(port, portName), nil
}

// NewWithPort wraps an already open port.
func NewWithPort(port Port, portName string) *Transport {
	return &Transport{
		port:     port,
		portName: portName,
		timeout:  pn532.DefaultTimeout,
	}
}

// SendCommand sends a command to the PN532 and waits for response
func (t *Transport) SendCommand(ctx context.Context, cmd byte, args []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed || t.port == nil {
		return nil, pn532.NewTransportError("SendCommand", t.portName, pn532.ErrTransportClosed, pn532.ErrorTypePermanent)
	}

	frm, err := frame.Build(cmd, args)
	if err != nil {
		return nil, pn532.NewFrameError("writeFrame", t.portName, err)
	}

	if err := t.port.ResetInputBuffer(); err != nil {
		return nil, pn532.NewTransportError("resetInput", t.portName,
			fmt.Errorf("%w: %w", pn532.ErrTransportRead, err), pn532.ErrorTypeTransient)
	}

	if !t.awake {
		frm = append(append([]byte(nil), wakeupPreamble...), frm...)
	}
	if _, err := t.port.Write(frm); err != nil {
		return nil, pn532.NewTransportError("writeFrame", t.portName,
			fmt.Errorf("%w: %w", pn532.ErrTransportWrite, err), pn532.ErrorTypeTransient)
	}

	rest, err := t.waitAck(ctx)
	if err != nil {
		// The chip may have dropped back into power-down.
		t.awake = false
		return nil, err
	}
	t.awake = true

	return t.receiveFrame(ctx, rest)
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

// Close closes the serial port
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed || t.port == nil {
		return nil
	}
	t.closed = true
	if err := t.port.Close(); err != nil {
		return fmt.Errorf("failed to close serial port %s: %w", t.portName, err)
	}
	return nil
}

// IsConnected returns true if the port is open
func (t *Transport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.port != nil && !t.closed
}

// Type returns the transport type
func (*Transport) Type() pn532.TransportType {
	return pn532.TransportUART
}

// waitAck accumulates input until an ACK arrives and returns the bytes that
// followed it, which may already hold part of the response.
func (t *Transport) waitAck(ctx context.Context) ([]byte, error) {
	var buf []byte
	deadline := time.Now().Add(t.timeout)

	for {
		if rest, ok := frame.SplitAck(buf); ok {
			return rest, nil
		}
		if frame.IsNack(buf) {
			return nil, pn532.NewTransportError("waitAck", t.portName, pn532.ErrNACKReceived, pn532.ErrorTypeTransient)
		}

		var err error
		buf, err = t.readMore(ctx, buf, deadline, "waitAck")
		if err != nil {
			if errors.Is(err, pn532.ErrTransportTimeout) {
				return nil, pn532.NewNoACKError("waitAck", t.portName)
			}
			return nil, err
		}
	}
}

func (t *Transport) receiveFrame(ctx context.Context, buf []byte) ([]byte, error) {
	deadline := time.Now().Add(t.timeout)

	for {
		data, err := frame.Parse(buf)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, frame.ErrTruncated) && !errors.Is(err, frame.ErrNoStartCode) {
			return nil, pn532.NewFrameError("receiveFrame", t.portName, err)
		}

		buf, err = t.readMore(ctx, buf, deadline, "receiveFrame")
		if err != nil {
			return nil, err
		}
	}
}

// readMore appends whatever the port delivers within one read step.
func (t *Transport) readMore(ctx context.Context, buf []byte, deadline time.Time, op string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	remaining := time.Until(deadline)
	if remaining <= 0 {
		return nil, pn532.NewTimeoutError(op, t.portName)
	}
	if err := t.port.SetReadTimeout(min(remaining, readStep)); err != nil {
		return nil, fmt.Errorf("failed to set read timeout: %w", err)
	}

	chunk := make([]byte, frame.MaxFrameLength)
	n, err := t.port.Read(chunk)
	if err != nil {
		return nil, pn532.NewTransportError(op, t.portName,
			fmt.Errorf("%w: %w", pn532.ErrTransportRead, err), pn532.ErrorTypeTransient)
	}
	return append(buf, chunk[:n]...), nil
}

// Ensure Transport implements pn532.Transport
var _ pn532.Transport = (*Transport)(nil)
