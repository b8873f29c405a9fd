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

package spi

import (
	"context"
	"errors"
	"math/bits"
	"sync"
	"testing"
	"time"

	"github.com/ZaparooProject/go-lynx/internal/frame"
	"github.com/ZaparooProject/go-lynx/pn532"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePN532 decodes the LSB-first wire traffic the way the chip would and
// serves scripted status and data answers.
type fakePN532 struct {
	txErr    error
	written  [][]byte
	statuses []byte
	data     [][]byte
	mu       sync.Mutex
}

func (f *fakePN532) Tx(w, r []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.txErr != nil {
		return f.txErr
	}

	switch bits.Reverse8(w[0]) {
	case opDataWrite:
		plain := make([]byte, len(w)-1)
		for i, b := range w[1:] {
			plain[i] = bits.Reverse8(b)
		}
		f.written = append(f.written, plain)
	case opStatusRead:
		status := byte(0)
		if len(f.statuses) > 0 {
			status = f.statuses[0]
			f.statuses = f.statuses[1:]
		}
		r[1] = bits.Reverse8(status)
	case opDataRead:
		var next []byte
		if len(f.data) > 0 {
			next = f.data[0]
			f.data = f.data[1:]
		}
		for i := 1; i < len(r); i++ {
			if i-1 < len(next) {
				r[i] = bits.Reverse8(next[i-1])
			} else {
				r[i] = 0
			}
		}
	}
	return nil
}

func TestTransport_SendCommand(t *testing.T) {
	t.Parallel()

	chip := &fakePN532{
		statuses: []byte{0x00, statusReady, statusReady},
		data: [][]byte{
			frame.AckFrame,
			frame.Wrap([]byte{0x4B, 0x00}),
		},
	}
	tr := NewWithConn(chip, nil, "spi-test")

	got, err := tr.SendCommand(context.Background(), 0x4A, []byte{0x01, 0x00})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x4B, 0x00}, got)

	require.Len(t, chip.written, 1)
	assert.Equal(t, []byte{0x00, 0x00, 0xFF, 0x04, 0xFC, 0xD4, 0x4A, 0x01, 0x00, 0xE1, 0x00}, chip.written[0])
}

func TestTransport_BitReversal(t *testing.T) {
	t.Parallel()

	buf := []byte{0x01, 0x02, 0x03, 0x80}
	reverse(buf)
	assert.Equal(t, []byte{0x80, 0x40, 0xC0, 0x01}, buf)
}

func TestTransport_NotReadyTimesOut(t *testing.T) {
	t.Parallel()

	tr := NewWithConn(&fakePN532{}, nil, "spi-test")
	require.NoError(t, tr.SetTimeout(5*time.Millisecond))

	_, err := tr.SendCommand(context.Background(), 0x02, nil)
	assert.ErrorIs(t, err, pn532.ErrTransportTimeout)
	assert.Equal(t, pn532.ErrorTypeTimeout, pn532.GetErrorType(err))
}

func TestTransport_Nack(t *testing.T) {
	t.Parallel()

	chip := &fakePN532{
		statuses: []byte{statusReady},
		data:     [][]byte{frame.NackFrame},
	}
	tr := NewWithConn(chip, nil, "spi-test")

	_, err := tr.SendCommand(context.Background(), 0x02, nil)
	assert.ErrorIs(t, err, pn532.ErrNACKReceived)
	assert.True(t, pn532.IsRetryable(err))
}

func TestTransport_BusError(t *testing.T) {
	t.Parallel()

	tr := NewWithConn(&fakePN532{txErr: errors.New("spi: EIO")}, nil, "spi-test")
	_, err := tr.SendCommand(context.Background(), 0x02, nil)
	assert.ErrorIs(t, err, pn532.ErrTransportWrite)
}

func TestTransport_Close(t *testing.T) {
	t.Parallel()

	tr := NewWithConn(&fakePN532{}, nil, "spi-test")
	assert.Equal(t, pn532.TransportSPI, tr.Type())
	require.NoError(t, tr.Close())
	require.NoError(t, tr.Close())
	assert.False(t, tr.IsConnected())
	assert.Error(t, tr.SetTimeout(0))
}
