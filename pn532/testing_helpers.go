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

package pn532

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockTransport is an in-memory Transport for tests. Responses and errors are
// programmed per command code; a response function, when set, takes
// precedence over both.
type MockTransport struct {
	responses    map[byte][]byte
	errors       map[byte]error
	calls        map[byte]int
	lastArgs     map[byte][]byte
	responseFunc func(cmd byte, args []byte) ([]byte, error)
	delay        time.Duration
	timeout      time.Duration
	mu           sync.Mutex
	closed       bool
}

// NewMockTransport creates an empty mock transport
func NewMockTransport() *MockTransport {
	return &MockTransport{
		responses: make(map[byte][]byte),
		errors:    make(map[byte]error),
		calls:     make(map[byte]int),
		lastArgs:  make(map[byte][]byte),
		timeout:   DefaultTimeout,
	}
}

// SendCommand returns the programmed answer for cmd
func (m *MockTransport) SendCommand(ctx context.Context, cmd byte, args []byte) ([]byte, error) {
	m.mu.Lock()
	m.calls[cmd]++
	m.lastArgs[cmd] = append([]byte(nil), args...)
	closed := m.closed
	delay := m.delay
	fn := m.responseFunc
	err := m.errors[cmd]
	resp, ok := m.responses[cmd]
	m.mu.Unlock()

	if closed {
		return nil, NewTransportError("SendCommand", "mock", ErrTransportClosed, ErrorTypePermanent)
	}

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	if fn != nil {
		return fn(cmd, args)
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, NewTransportError("SendCommand", "mock",
			fmt.Errorf("%w: no response programmed for 0x%02X", ErrInvalidResponse, cmd), ErrorTypePermanent)
	}
	return append([]byte(nil), resp...), nil
}

// SetResponse programs the answer for cmd and clears any error for it
func (m *MockTransport) SetResponse(cmd byte, response []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[cmd] = append([]byte(nil), response...)
	delete(m.errors, cmd)
}

// SetError makes every call for cmd fail with err
func (m *MockTransport) SetError(cmd byte, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[cmd] = err
}

// ClearError removes a programmed error
func (m *MockTransport) ClearError(cmd byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.errors, cmd)
}

// SetResponseFunc routes every call through fn
func (m *MockTransport) SetResponseFunc(fn func(cmd byte, args []byte) ([]byte, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responseFunc = fn
}

// SetDelay makes every call take at least d (or until ctx is done)
func (m *MockTransport) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// GetCallCount returns how many times cmd was sent
func (m *MockTransport) GetCallCount(cmd byte) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[cmd]
}

// LastArgs returns the arguments of the most recent call for cmd
func (m *MockTransport) LastArgs(cmd byte) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.lastArgs[cmd]...)
}

// SetTimeout records the timeout
func (m *MockTransport) SetTimeout(timeout time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timeout = timeout
	return nil
}

// Timeout returns the last timeout set
func (m *MockTransport) Timeout() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.timeout
}

// Close marks the transport closed
func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// IsConnected reports whether Close has not been called
func (m *MockTransport) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.closed
}

// Type returns TransportMock
func (*MockTransport) Type() TransportType {
	return TransportMock
}
