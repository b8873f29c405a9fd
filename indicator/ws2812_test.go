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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	err  error
	sent [][]byte
}

func (c *fakeConn) Tx(w, _ []byte) error {
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, append([]byte(nil), w...))
	return nil
}

func TestEncodeWS2812_Symbols(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		value uint8
		want  []byte
	}{
		{name: "zero", value: 0x00, want: []byte{0x92, 0x49, 0x24}},
		{name: "full", value: 0xFF, want: []byte{0xDB, 0x6D, 0xB6}},
		{name: "msb only", value: 0x80, want: []byte{0xD2, 0x49, 0x24}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, appendSymbol(nil, tt.value))
		})
	}
}

func TestEncodeWS2812_GRBOrderAndReset(t *testing.T) {
	t.Parallel()

	out := EncodeWS2812(nil, []Color{{R: 0xFF, G: 0x00, B: 0x00}}, 255)
	require.Len(t, out, 9+resetBytes)

	assert.Equal(t, []byte{0x92, 0x49, 0x24}, out[0:3], "green first")
	assert.Equal(t, []byte{0xDB, 0x6D, 0xB6}, out[3:6], "red second")
	assert.Equal(t, []byte{0x92, 0x49, 0x24}, out[6:9], "blue last")
	for _, b := range out[9:] {
		assert.Zero(t, b)
	}
}

func TestEncodeWS2812_Brightness(t *testing.T) {
	t.Parallel()

	assert.Equal(t, uint8(0), scale(0xFF, 0))
	assert.Equal(t, uint8(0xFF), scale(0xFF, 255))
	assert.Equal(t, uint8(0x7F), scale(0xFF, 127))
}

func TestWS2812_Write(t *testing.T) {
	t.Parallel()

	conn := &fakeConn{}
	strip := NewWS2812(conn, nil, 0)

	require.NoError(t, strip.Write([]Color{ColorGranting, ColorGranting}))
	require.Len(t, conn.sent, 1)
	assert.Len(t, conn.sent[0], 2*9+resetBytes)

	conn.err = errors.New("bus error")
	assert.ErrorIs(t, strip.Write([]Color{ColorOff}), conn.err)
	assert.NoError(t, strip.Close())
}
