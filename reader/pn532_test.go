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

package reader

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ZaparooProject/go-lynx"
	testutil "github.com/ZaparooProject/go-lynx/internal/testing"
	"github.com/ZaparooProject/go-lynx/pn532"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBus = errors.New("bus glitch")

type rig struct {
	field   *testutil.VirtualField
	clock   *testutil.FakeClock
	reader  *PN532
	failing atomic.Bool
}

func newRig(t *testing.T, cfg Config) *rig {
	t.Helper()

	r := &rig{
		field: testutil.NewVirtualField(),
		clock: testutil.NewFakeClock(time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)),
	}

	mock := pn532.NewMockTransport()
	mock.SetResponseFunc(func(cmd byte, args []byte) ([]byte, error) {
		if r.failing.Load() {
			return nil, errBus
		}
		return r.field.Respond(cmd, args)
	})

	device, err := pn532.New(mock)
	require.NoError(t, err)

	r.reader = NewPN532(device, WithConfig(cfg), WithClock(r.clock))
	return r
}

func TestPN532_DetectsAndReleases(t *testing.T) {
	t.Parallel()

	r := newRig(t, DefaultConfig())

	ev, err := r.reader.Poll(context.Background())
	require.NoError(t, err)
	assert.Nil(t, ev, "empty field yields no event")

	r.field.Present(testutil.NewVirtualMIFARE1K([]byte{0xA1, 0xB2, 0xC3, 0xD4}))
	ev, err = r.reader.Poll(context.Background())
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, "A1B2C3D4", ev.TagID.String())
	assert.Equal(t, r.clock.Now(), ev.DetectedAt)
	assert.False(t, r.field.Selected(), "target must be released after a detection")

	stats := r.reader.Stats()
	assert.Equal(t, int64(2), stats.Polls)
	assert.Equal(t, int64(1), stats.Detections)
}

func TestPN532_Debounce(t *testing.T) {
	t.Parallel()

	for _, debounce := range []time.Duration{500 * time.Millisecond, time.Second, 3 * time.Second} {
		t.Run(debounce.String(), func(t *testing.T) {
			t.Parallel()

			cfg := DefaultConfig()
			cfg.Debounce = debounce
			r := newRig(t, cfg)
			r.field.Present(testutil.NewVirtualMIFARE1K([]byte{0xA1, 0xB2, 0xC3, 0xD4}))
			ctx := context.Background()

			ev, err := r.reader.Poll(ctx)
			require.NoError(t, err)
			require.NotNil(t, ev)

			// Held in the field: every re-detection refreshes the window, so
			// the tag stays suppressed for as long as it is seen.
			for i := 0; i < 5; i++ {
				r.clock.Advance(debounce * 3 / 4)
				ev, err = r.reader.Poll(ctx)
				require.NoError(t, err)
				assert.Nil(t, ev, "re-detection %d inside the window must be suppressed", i)
			}

			// A different tag is never suppressed.
			r.field.Present(testutil.NewVirtualNTAG213([]byte{0x04, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66}))
			r.clock.Advance(time.Millisecond)
			ev, err = r.reader.Poll(ctx)
			require.NoError(t, err)
			require.NotNil(t, ev)
			assert.Equal(t, "04112233445566", ev.TagID.String())

			// The same tag again once the window has elapsed.
			r.clock.Advance(debounce)
			ev, err = r.reader.Poll(ctx)
			require.NoError(t, err)
			assert.NotNil(t, ev)

			assert.Equal(t, int64(5), r.reader.Stats().Suppressed)
		})
	}
}

func TestPN532_FaultAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.MaxFailures = 5
	r := newRig(t, cfg)
	r.failing.Store(true)
	ctx := context.Background()

	for i := 1; i < cfg.MaxFailures; i++ {
		ev, err := r.reader.Poll(ctx)
		require.NoError(t, err, "failure %d is below the threshold", i)
		assert.Nil(t, ev)
	}

	ev, err := r.reader.Poll(ctx)
	assert.Nil(t, ev)
	require.Error(t, err)
	assert.ErrorIs(t, err, lynx.ErrReaderFault)
	assert.ErrorIs(t, err, errBus)

	var fault *FaultError
	require.ErrorAs(t, err, &fault)
	assert.Equal(t, cfg.MaxFailures, fault.Failures)

	// The counter restarts after the fault is surfaced.
	_, err = r.reader.Poll(ctx)
	assert.NoError(t, err)

	stats := r.reader.Stats()
	assert.Equal(t, int64(1), stats.Faults)
	assert.Equal(t, int64(6), stats.Failures)
}

func TestPN532_SuccessResetsFailureCount(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.MaxFailures = 3
	r := newRig(t, cfg)
	ctx := context.Background()

	for round := 0; round < 3; round++ {
		r.failing.Store(true)
		for i := 0; i < cfg.MaxFailures-1; i++ {
			_, err := r.reader.Poll(ctx)
			require.NoError(t, err)
		}
		r.failing.Store(false)
		_, err := r.reader.Poll(ctx)
		require.NoError(t, err)
	}

	assert.Equal(t, int64(0), r.reader.Stats().Faults)
}

func TestPN532_InvalidUIDCountsAsFailure(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.MaxFailures = 1
	r := newRig(t, cfg)
	r.field.Present(testutil.NewVirtualMIFARE1K([]byte{0x01, 0x02}))

	_, err := r.reader.Poll(context.Background())
	assert.ErrorIs(t, err, lynx.ErrReaderFault)
	assert.ErrorIs(t, err, lynx.ErrInvalidCredential)
}

func TestPN532_CancelledContextIsNotAFailure(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.MaxFailures = 1
	r := newRig(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.reader.Poll(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int64(0), r.reader.Stats().Faults)
}

func TestSimulatedDevice(t *testing.T) {
	t.Parallel()

	dev := NewSimulatedDevice()
	r := NewPN532(dev, WithClock(testutil.NewFakeClock(time.Unix(0, 0))))
	ctx := context.Background()

	dev.Tap(lynx.TagID{0xA1, 0xB2, 0xC3, 0xD4})
	ev, err := r.Poll(ctx)
	require.NoError(t, err)
	require.NotNil(t, ev)

	ev, err = r.Poll(ctx)
	require.NoError(t, err)
	assert.Nil(t, ev, "a tap is seen once")

	dev.FailNext(5, errBus)
	for i := 0; i < 4; i++ {
		_, err = r.Poll(ctx)
		require.NoError(t, err)
	}
	_, err = r.Poll(ctx)
	assert.ErrorIs(t, err, lynx.ErrReaderFault)
}

func TestPN532_NilClockKeepsDefault(t *testing.T) {
	t.Parallel()

	dev := NewSimulatedDevice()
	r := NewPN532(dev, WithClock(nil))

	dev.Tap(lynx.TagID{0xA1, 0xB2, 0xC3, 0xD4})
	var ev *lynx.ReaderEvent
	var err error
	require.NotPanics(t, func() { ev, err = r.Poll(context.Background()) })
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.False(t, ev.DetectedAt.IsZero())
}
