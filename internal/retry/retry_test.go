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

package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTransient = errors.New("transient")

func fastConfig(attempts int) *Config {
	return &Config{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		Multiplier:     2,
	}
}

func TestDo_SucceedsAfterRetries(t *testing.T) {
	t.Parallel()

	calls := 0
	err := Do(context.Background(), fastConfig(3), nil, func() error {
		calls++
		if calls < 3 {
			return errTransient
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_Exhausted(t *testing.T) {
	t.Parallel()

	calls := 0
	err := Do(context.Background(), fastConfig(2), nil, func() error {
		calls++
		return errTransient
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 2, calls)
}

func TestDo_NonRetryableStopsImmediately(t *testing.T) {
	t.Parallel()

	permanent := errors.New("permanent")
	calls := 0
	err := Do(context.Background(), fastConfig(5), func(err error) bool {
		return errors.Is(err, errTransient)
	}, func() error {
		calls++
		return permanent
	})

	assert.ErrorIs(t, err, permanent)
	assert.NotErrorIs(t, err, ErrExhausted)
	assert.Equal(t, 1, calls)
}

func TestDo_ContextCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Do(ctx, fastConfig(3), nil, func() error {
		calls++
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}

func TestBackoff_GrowsAndCaps(t *testing.T) {
	t.Parallel()

	b := NewBackoff(&Config{
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     350 * time.Millisecond,
		Multiplier:     2,
	})

	assert.Equal(t, 100*time.Millisecond, b.Next())
	assert.Equal(t, 200*time.Millisecond, b.Next())
	assert.Equal(t, 350*time.Millisecond, b.Next())
	assert.Equal(t, 350*time.Millisecond, b.Next())

	b.Reset()
	assert.Equal(t, 100*time.Millisecond, b.Next())
}

func TestBackoff_JitterStaysInRange(t *testing.T) {
	t.Parallel()

	b := NewBackoff(&Config{
		InitialBackoff: time.Second,
		MaxBackoff:     time.Second,
		Multiplier:     2,
		Jitter:         0.2,
	})

	for i := 0; i < 50; i++ {
		d := b.Next()
		assert.GreaterOrEqual(t, d, 800*time.Millisecond)
		assert.LessOrEqual(t, d, 1200*time.Millisecond)
	}
}

func TestBackoff_ZeroInitialUsesDefault(t *testing.T) {
	t.Parallel()

	b := NewBackoff(&Config{Multiplier: 2})
	first := b.Next()
	assert.Equal(t, DefaultConfig().InitialBackoff, first)
	assert.Equal(t, 2*first, b.Next())
}
