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

package testing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFakeClock_AfterAdvances(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	clk := NewFakeClock(start)

	fired := <-clk.After(250 * time.Millisecond)
	assert.Equal(t, start.Add(250*time.Millisecond), fired)
	assert.Equal(t, fired, clk.Now())

	clk.Advance(-time.Second)
	assert.Equal(t, fired, clk.Now(), "negative advances are ignored")
}

func TestVirtualField_Respond(t *testing.T) {
	t.Parallel()

	field := NewVirtualField()
	resp, err := field.Respond(CmdInListPassiveTarget, []byte{0x01, 0x00})
	assert.NoError(t, err)
	assert.Equal(t, BuildNoTagResponse(), resp)

	tag := NewVirtualMIFARE1K([]byte{0xA1, 0xB2, 0xC3, 0xD4})
	field.Present(tag)
	resp, err = field.Respond(CmdInListPassiveTarget, []byte{0x01, 0x00})
	assert.NoError(t, err)
	assert.Equal(t, BuildTagDetectionResponse(tag.UID), resp)
	assert.True(t, field.Selected())

	_, err = field.Respond(CmdInRelease, []byte{0x01})
	assert.NoError(t, err)
	assert.False(t, field.Selected())

	tag.Remove()
	resp, _ = field.Respond(CmdInListPassiveTarget, nil)
	assert.Equal(t, BuildNoTagResponse(), resp)

	_, err = field.Respond(0x40, nil)
	assert.ErrorIs(t, err, ErrUnsupportedCommand)
}
