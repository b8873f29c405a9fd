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

package access

import (
	"context"
	"testing"
	"time"

	"github.com/ZaparooProject/go-lynx"
	"github.com/ZaparooProject/go-lynx/actuator"
	"github.com/ZaparooProject/go-lynx/credential"
	testutil "github.com/ZaparooProject/go-lynx/internal/testing"
	"github.com/ZaparooProject/go-lynx/reader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Drives the controller through the real PN532 reader logic on a simulated
// device: one physical tap held over several polls yields one event.
func TestController_DebouncedTapYieldsOneEvent(t *testing.T) {
	t.Parallel()

	for _, debounce := range []time.Duration{300 * time.Millisecond, time.Second, 3 * time.Second} {
		t.Run(debounce.String(), func(t *testing.T) {
			t.Parallel()

			clk := testutil.NewFakeClock(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
			dev := reader.NewSimulatedDevice()
			rdr := reader.NewPN532(dev,
				reader.WithClock(clk),
				reader.WithConfig(reader.Config{TransactionTimeout: time.Second, Debounce: debounce, MaxFailures: 5}),
			)

			// Every surfaced tap of an unknown tag is one Denied event.
			store := credential.NewStore()
			sink := &recordingSink{}
			ctrl := NewController(rdr, store, actuator.NewSimulated(0, actuator.WithClock(clk)), nil, sink,
				WithClock(clk))

			// Tag stays in the field for several polls, each inside the window
			// of the previous detection.
			for range 5 {
				dev.Tap(tagUnknown)
				require.NoError(t, ctrl.Step(context.Background()))
				clk.Advance(debounce / 2)
			}
			assert.Len(t, sink.all(), 1)

			// Gone for longer than the window: a fresh tap is a new event.
			clk.Advance(debounce)
			dev.Tap(tagUnknown)
			require.NoError(t, ctrl.Step(context.Background()))
			events := sink.all()
			require.Len(t, events, 2)
			assert.Equal(t, lynx.OutcomeDenied, events[1].Outcome)
		})
	}
}
