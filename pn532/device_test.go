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
	"errors"
	"testing"
	"time"

	"github.com/ZaparooProject/go-lynx/internal/retry"
	testutil "github.com/ZaparooProject/go-lynx/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newInitMock() *MockTransport {
	mock := NewMockTransport()
	mock.SetResponse(testutil.CmdGetFirmwareVersion, testutil.BuildFirmwareVersionResponse())
	mock.SetResponse(testutil.CmdSAMConfiguration, testutil.BuildSAMConfigurationResponse())
	mock.SetResponse(testutil.CmdRFConfiguration, testutil.BuildRFConfigurationResponse())
	return mock
}

func fastRetry() *retry.Config {
	return &retry.Config{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, Multiplier: 1}
}

func TestNew(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	device, err := New(mock)
	require.NoError(t, err)
	assert.Equal(t, mock, device.Transport())

	_, err = New(mock, WithTimeout(0))
	require.Error(t, err)

	_, err = New(mock, WithPassiveActivationRetries(PassiveActivationForever))
	require.Error(t, err)
}

func TestDevice_Init(t *testing.T) {
	t.Parallel()

	tests := []struct {
		setupMock      func(*MockTransport)
		name           string
		errorSubstring string
		expectError    bool
	}{
		{
			name:      "Successful_Initialization",
			setupMock: func(*MockTransport) {},
		},
		{
			name: "Firmware_Version_Error",
			setupMock: func(mock *MockTransport) {
				mock.SetError(testutil.CmdGetFirmwareVersion, errors.New("firmware version failed"))
			},
			expectError:    true,
			errorSubstring: "firmware version failed",
		},
		{
			name: "SAM_Configuration_Error",
			setupMock: func(mock *MockTransport) {
				mock.SetError(testutil.CmdSAMConfiguration, errors.New("SAM config failed"))
			},
			expectError:    true,
			errorSubstring: "SAM config failed",
		},
		{
			name: "RF_Configuration_Error",
			setupMock: func(mock *MockTransport) {
				mock.SetError(testutil.CmdRFConfiguration, errors.New("rf config failed"))
			},
			expectError:    true,
			errorSubstring: "passive activation",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			mock := newInitMock()
			tt.setupMock(mock)

			device, err := New(mock, WithRetryConfig(fastRetry()), WithTimeout(50*time.Millisecond),
				WithPassiveActivationRetries(0x02))
			require.NoError(t, err)

			err = device.Init(context.Background())
			if tt.expectError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorSubstring)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, 50*time.Millisecond, mock.Timeout())
			assert.Equal(t, []byte{0x01, 0x14, 0x01}, mock.LastArgs(testutil.CmdSAMConfiguration))
			assert.Equal(t, []byte{0x05, 0xFF, 0x01, 0x02}, mock.LastArgs(testutil.CmdRFConfiguration))

			fw := device.FirmwareVersion()
			require.NotNil(t, fw)
			assert.Equal(t, "1.6", fw.Version)
			assert.Equal(t, byte(0x32), fw.IC)
			assert.True(t, fw.SupportISO14443A)
			assert.True(t, fw.SupportISO14443B)
			assert.True(t, fw.SupportISO18092)
		})
	}
}

func TestDevice_InListPassiveTarget(t *testing.T) {
	t.Parallel()

	t.Run("No_Target", func(t *testing.T) {
		t.Parallel()
		mock := NewMockTransport()
		mock.SetResponse(testutil.CmdInListPassiveTarget, testutil.BuildNoTagResponse())
		device, err := New(mock)
		require.NoError(t, err)

		target, err := device.InListPassiveTarget(context.Background())
		require.NoError(t, err)
		assert.Nil(t, target)
		assert.Equal(t, []byte{0x01, 0x00}, mock.LastArgs(testutil.CmdInListPassiveTarget))
	})

	t.Run("Four_Byte_UID", func(t *testing.T) {
		t.Parallel()
		mock := NewMockTransport()
		uid := []byte{0xA1, 0xB2, 0xC3, 0xD4}
		mock.SetResponse(testutil.CmdInListPassiveTarget, testutil.BuildTagDetectionResponse(uid))
		device, err := New(mock)
		require.NoError(t, err)

		target, err := device.InListPassiveTarget(context.Background())
		require.NoError(t, err)
		require.NotNil(t, target)
		assert.Equal(t, uid, target.UID)
		assert.Equal(t, "A1B2C3D4", target.UIDString())
		assert.Equal(t, byte(0x01), target.Number)
		assert.Equal(t, [2]byte{0x00, 0x04}, target.SensRes)
		assert.Equal(t, byte(0x08), target.SelRes)
	})

	t.Run("Truncated_UID", func(t *testing.T) {
		t.Parallel()
		mock := NewMockTransport()
		mock.SetResponse(testutil.CmdInListPassiveTarget, []byte{0x4B, 0x01, 0x01, 0x00, 0x04, 0x08, 0x07, 0xA1})
		device, err := New(mock)
		require.NoError(t, err)

		_, err = device.InListPassiveTarget(context.Background())
		assert.ErrorIs(t, err, ErrInvalidResponse)
	})

	t.Run("Wrong_Response_Code", func(t *testing.T) {
		t.Parallel()
		mock := NewMockTransport()
		mock.SetResponse(testutil.CmdInListPassiveTarget, []byte{0x41, 0x00})
		device, err := New(mock)
		require.NoError(t, err)

		_, err = device.InListPassiveTarget(context.Background())
		assert.ErrorIs(t, err, ErrUnexpectedResponse)
	})
}

func TestDevice_InRelease(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	mock.SetResponse(testutil.CmdInRelease, testutil.BuildInReleaseResponse())
	device, err := New(mock)
	require.NoError(t, err)

	require.NoError(t, device.InRelease(context.Background(), 1))
	assert.Equal(t, []byte{0x01}, mock.LastArgs(testutil.CmdInRelease))

	mock.SetResponse(testutil.CmdInRelease, testutil.BuildErrorResponse(testutil.CmdInRelease, 0x27))
	assert.ErrorIs(t, device.InRelease(context.Background(), 1), ErrApplicationError)
}

func TestDevice_InDataExchange(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	mock.SetResponse(testutil.CmdInDataExchange, testutil.BuildDataExchangeResponse([]byte{0x90, 0x00}))
	device, err := New(mock)
	require.NoError(t, err)

	apdu := []byte{0x00, 0xA4, 0x04, 0x00}
	res, err := device.InDataExchange(context.Background(), 1, apdu)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x90, 0x00}, res)
	assert.Equal(t, []byte{0x01, 0x00, 0xA4, 0x04, 0x00}, mock.LastArgs(testutil.CmdInDataExchange))

	t.Run("status error", func(t *testing.T) {
		t.Parallel()
		m := NewMockTransport()
		m.SetResponse(testutil.CmdInDataExchange, testutil.BuildErrorResponse(testutil.CmdInDataExchange, 0x01))
		d, err := New(m)
		require.NoError(t, err)
		_, err = d.InDataExchange(context.Background(), 1, apdu)
		assert.ErrorIs(t, err, ErrApplicationError)
	})

	t.Run("payload too large", func(t *testing.T) {
		t.Parallel()
		m := NewMockTransport()
		d, err := New(m)
		require.NoError(t, err)
		_, err = d.InDataExchange(context.Background(), 1, make([]byte, MaxDataExchange+1))
		require.ErrorIs(t, err, ErrDataTooLarge)
		assert.Zero(t, m.GetCallCount(testutil.CmdInDataExchange))
	})
}

func TestDevice_InDataExchangeUsesExchangeTimeout(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	var during time.Duration
	mock.SetResponseFunc(func(_ byte, _ []byte) ([]byte, error) {
		during = mock.Timeout()
		return testutil.BuildDataExchangeResponse([]byte{0x90, 0x00}), nil
	})
	device, err := New(mock, WithTimeout(50*time.Millisecond), WithExchangeTimeout(2*time.Second))
	require.NoError(t, err)

	_, err = device.InDataExchange(context.Background(), 1, []byte{0x00})
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, during)
	assert.Equal(t, 50*time.Millisecond, mock.Timeout())
}

func TestWithExchangeTimeout_RejectsNonPositive(t *testing.T) {
	t.Parallel()

	_, err := New(NewMockTransport(), WithExchangeTimeout(0))
	assert.Error(t, err)
}

func TestDevice_RetriesTransientErrors(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	attempts := 0
	mock.SetResponseFunc(func(cmd byte, _ []byte) ([]byte, error) {
		attempts++
		if attempts < 3 {
			return nil, NewNoACKError("SendCommand", "mock")
		}
		return []byte{cmd + 1}, nil
	})

	device, err := New(mock, WithRetryConfig(fastRetry()))
	require.NoError(t, err)

	require.NoError(t, device.SAMConfiguration(context.Background()))
	assert.Equal(t, 3, attempts)
}

func TestDevice_DoesNotRetryPermanentErrors(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	mock.SetError(testutil.CmdGetFirmwareVersion,
		NewTransportError("SendCommand", "mock", ErrApplicationError, ErrorTypePermanent))

	device, err := New(mock, WithRetryConfig(fastRetry()))
	require.NoError(t, err)

	_, err = device.GetFirmwareVersion(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, mock.GetCallCount(testutil.CmdGetFirmwareVersion))
}

func TestDevice_ContextCancellation(t *testing.T) {
	t.Parallel()

	mock := newInitMock()
	mock.SetDelay(time.Second)

	device, err := New(mock, WithMaxRetries(1))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = device.GetFirmwareVersion(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestDevice_Close(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	device, err := New(mock)
	require.NoError(t, err)

	require.NoError(t, device.Close())
	assert.False(t, mock.IsConnected())

	_, err = device.GetFirmwareVersion(context.Background())
	assert.ErrorIs(t, err, ErrTransportClosed)
}
