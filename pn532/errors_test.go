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
	"errors"
	"fmt"
	"testing"

	"github.com/ZaparooProject/go-lynx/internal/frame"
	"github.com/stretchr/testify/assert"
)

func TestIsRetryable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		name string
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "timeout sentinel", err: ErrTransportTimeout, want: true},
		{name: "wrapped no ack", err: fmt.Errorf("read: %w", ErrNoACK), want: true},
		{name: "timeout transport error", err: NewTimeoutError("waitReady", "/dev/spidev0.0"), want: true},
		{name: "permanent transport error", err: NewTransportError("open", "x", ErrDeviceNotFound, ErrorTypePermanent), want: false},
		{name: "plain error", err: errors.New("boom"), want: false},
		{name: "closed", err: ErrTransportClosed, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestNewFrameError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in        error
		wantIs    error
		name      string
		wantType  ErrorType
		retryable bool
	}{
		{name: "length checksum", in: frame.ErrLengthChecksum, wantIs: ErrChecksumMismatch, wantType: ErrorTypeTransient, retryable: true},
		{name: "data checksum", in: frame.ErrDataChecksum, wantIs: ErrChecksumMismatch, wantType: ErrorTypeTransient, retryable: true},
		{name: "truncated", in: frame.ErrTruncated, wantIs: ErrFrameCorrupted, wantType: ErrorTypeTransient, retryable: true},
		{name: "application", in: frame.ErrApplication, wantIs: ErrApplicationError, wantType: ErrorTypePermanent},
		{name: "too large", in: frame.ErrDataTooLarge, wantIs: ErrDataTooLarge, wantType: ErrorTypePermanent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := NewFrameError("receive", "i2c-1", tt.in)
			assert.ErrorIs(t, err, tt.wantIs)
			assert.ErrorIs(t, err, tt.in)
			assert.Equal(t, tt.wantType, GetErrorType(err))
			assert.Equal(t, tt.retryable, IsRetryable(err))
		})
	}
}

func TestTransportError_Message(t *testing.T) {
	t.Parallel()

	err := NewTimeoutError("waitAck", "/dev/ttyUSB0")
	assert.Equal(t, "waitAck on /dev/ttyUSB0: transport timeout", err.Error())
	assert.Equal(t, "timeout", err.Type.String())

	err = NewTransportError("write", "", ErrTransportWrite, ErrorTypeTransient)
	assert.Equal(t, "write: transport write failed", err.Error())
}
