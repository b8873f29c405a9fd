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
	"time"
)

// Transport moves PN532 command frames over a physical bus.
//
// SendCommand writes one information frame, waits for the ACK and then for
// the response, and returns the response payload starting at the response
// code (cmd+1). Implementations must bound both waits by the configured
// timeout and by ctx.
type Transport interface {
	SendCommand(ctx context.Context, cmd byte, args []byte) ([]byte, error)
	SetTimeout(timeout time.Duration) error
	Close() error
	IsConnected() bool
	Type() TransportType
}

// TransportType identifies the bus a transport talks over.
type TransportType string

const (
	TransportSPI  TransportType = "spi"
	TransportI2C  TransportType = "i2c"
	TransportUART TransportType = "uart"
	TransportMock TransportType = "mock"
)

// DefaultTimeout bounds a single command round trip.
const DefaultTimeout = 100 * time.Millisecond

// DefaultExchangeTimeout bounds an InDataExchange round trip.
const DefaultExchangeTimeout = time.Second
