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

package indicator

import (
	"fmt"
	"io"
	"sync"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// WS2812 timing expressed as SPI bits: at 2.4 MHz every data bit becomes
// three SPI bits, 110 for a one and 100 for a zero.
const (
	WS2812Speed = 2400 * physic.KiloHertz

	// resetBytes of low keeps the line idle for at least 80us.
	resetBytes = 24
)

// Conn is the part of spi.Conn the strip needs.
type Conn interface {
	Tx(w, r []byte) error
}

// WS2812 drives a chain of WS2812 LEDs from an SPI MOSI line.
type WS2812 struct {
	conn       Conn
	closer     io.Closer
	buf        []byte
	brightness uint8
	mu         sync.Mutex
}

// OpenWS2812 opens portName at WS2812Speed.
func OpenWS2812(portName string, brightness uint8) (*WS2812, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}
	port, err := spireg.Open(portName)
	if err != nil {
		return nil, fmt.Errorf("failed to open SPI port %s: %w", portName, err)
	}
	conn, err := port.Connect(WS2812Speed, spi.Mode0, 8)
	if err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to configure SPI port %s: %w", portName, err)
	}
	return NewWS2812(conn, port, brightness), nil
}

// NewWS2812 wraps a configured connection. A brightness of 0 means full.
func NewWS2812(conn Conn, closer io.Closer, brightness uint8) *WS2812 {
	if brightness == 0 {
		brightness = 255
	}
	return &WS2812{conn: conn, closer: closer, brightness: brightness}
}

// Write sends pixels in GRB order followed by the reset gap.
func (w *WS2812) Write(pixels []Color) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf = EncodeWS2812(w.buf[:0], pixels, w.brightness)
	if err := w.conn.Tx(w.buf, nil); err != nil {
		return fmt.Errorf("ws2812 write: %w", err)
	}
	return nil
}

// Close releases the SPI port.
func (w *WS2812) Close() error {
	if w.closer == nil {
		return nil
	}
	return w.closer.Close()
}

// EncodeWS2812 appends the SPI bit stream for pixels to dst.
func EncodeWS2812(dst []byte, pixels []Color, brightness uint8) []byte {
	for _, px := range pixels {
		for _, v := range [3]uint8{px.G, px.R, px.B} {
			dst = appendSymbol(dst, scale(v, brightness))
		}
	}
	for range resetBytes {
		dst = append(dst, 0)
	}
	return dst
}

func appendSymbol(dst []byte, b byte) []byte {
	var v uint32
	for i := 7; i >= 0; i-- {
		v <<= 3
		if b>>uint(i)&1 == 1 {
			v |= 0b110
		} else {
			v |= 0b100
		}
	}
	return append(dst, byte(v>>16), byte(v>>8), byte(v))
}

func scale(v, brightness uint8) uint8 {
	return uint8(uint16(v) * uint16(brightness) / 255)
}

var _ Strip = (*WS2812)(nil)
