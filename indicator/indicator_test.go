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
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingStrip struct {
	err    error
	writes [][]Color
	mu     sync.Mutex
}

func (s *recordingStrip) Write(pixels []Color) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.writes = append(s.writes, append([]Color(nil), pixels...))
	return nil
}

func (s *recordingStrip) last() Color {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.writes) == 0 {
		return ColorOff
	}
	w := s.writes[len(s.writes)-1]
	return w[0]
}

func (s *recordingStrip) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.writes)
}

func TestIndicator_StartsIdle(t *testing.T) {
	t.Parallel()

	strip := &recordingStrip{}
	ind := New(strip, WithPixels(3))

	assert.Equal(t, Idle, ind.Current())
	require.Equal(t, 1, strip.count())
	assert.Len(t, strip.writes[0], 3)
	assert.Equal(t, ColorIdle, strip.last())
}

func TestIndicator_DeniedFlashReverts(t *testing.T) {
	t.Parallel()

	strip := &recordingStrip{}
	ind := New(strip, WithFlash(20*time.Millisecond))

	ind.Show(Granting)
	ind.Show(Denied)
	assert.Equal(t, Denied, ind.Current())
	assert.Equal(t, ColorDenied, strip.last())

	assert.Eventually(t, func() bool {
		return ind.Current() == Granting
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, ColorGranting, strip.last())
}

func TestIndicator_BaseChangeDuringFlash(t *testing.T) {
	t.Parallel()

	ind := New(&recordingStrip{}, WithFlash(20*time.Millisecond))

	ind.Show(Denied)
	ind.Show(Granting)
	assert.Equal(t, Denied, ind.Current(), "flash stays on top of the new base")

	assert.Eventually(t, func() bool {
		return ind.Current() == Granting
	}, time.Second, 5*time.Millisecond)
}

func TestIndicator_FaultIsContinuous(t *testing.T) {
	t.Parallel()

	ind := New(&recordingStrip{}, WithFlash(10*time.Millisecond))

	ind.Show(Denied)
	ind.Show(Fault)
	assert.Equal(t, Fault, ind.Current())

	ind.Show(Denied)
	ind.Show(Syncing)
	assert.Equal(t, Fault, ind.Current())

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, Fault, ind.Current())

	ind.Show(Idle)
	assert.Equal(t, Syncing, ind.Current())
}

func TestIndicator_SyncingOnlyOverIdle(t *testing.T) {
	t.Parallel()

	ind := New(&recordingStrip{})

	ind.Show(Syncing)
	assert.Equal(t, Syncing, ind.Current())

	ind.Show(Granting)
	assert.Equal(t, Granting, ind.Current())

	ind.Show(Idle)
	assert.Equal(t, Syncing, ind.Current())

	ind.ClearSyncing()
	assert.Equal(t, Idle, ind.Current())
}

func TestIndicator_WriteErrorsAreSwallowed(t *testing.T) {
	t.Parallel()

	strip := &recordingStrip{}
	ind := New(strip)

	strip.mu.Lock()
	strip.err = errors.New("spi: EIO")
	strip.mu.Unlock()

	assert.NotPanics(t, func() { ind.Show(Fault) })
	assert.Equal(t, Idle, ind.Current(), "LED still shows the last pattern written")

	strip.mu.Lock()
	strip.err = nil
	strip.mu.Unlock()

	ind.Show(Fault)
	assert.Equal(t, Fault, ind.Current())
}

func TestIndicator_Close(t *testing.T) {
	t.Parallel()

	strip := &recordingStrip{}
	ind := New(strip, WithFlash(10*time.Millisecond))
	ind.Show(Denied)

	require.NoError(t, ind.Close())
	assert.Equal(t, Off, ind.Current())
	assert.Equal(t, ColorOff, strip.last())

	writes := strip.count()
	ind.Show(Granting)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, writes, strip.count(), "closed indicator never writes again")
}

func TestIndicator_ConcurrentShow(t *testing.T) {
	t.Parallel()

	ind := New(&recordingStrip{}, WithFlash(time.Millisecond))

	var wg sync.WaitGroup
	for n := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				ind.Show(Pattern(n % 5))
				ind.ClearSyncing()
			}
		}()
	}
	wg.Wait()
	require.NoError(t, ind.Close())
}
