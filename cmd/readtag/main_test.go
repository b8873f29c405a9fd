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

package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/ZaparooProject/go-lynx"
	"github.com/ZaparooProject/go-lynx/credential"
	"github.com/ZaparooProject/go-lynx/reader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnrol_OutputParsesAsCredentialsFile(t *testing.T) {
	t.Parallel()

	dev := reader.NewSimulatedDevice()
	dev.Tap(lynx.TagID{0xA1, 0xB2, 0xC3, 0xD4})
	dev.Tap(lynx.TagID{0x04, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66})

	var out bytes.Buffer
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	n, err := enrol(ctx, reader.NewPN532(dev), &out, lynx.PermissionAllow, time.Millisecond, false)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	u, err := credential.ParseFile(strings.NewReader(out.String()))
	require.NoError(t, err)
	require.Len(t, u.Credentials, 2)
	assert.Equal(t, "A1B2C3D4", u.Credentials[0].TagID.String())
	assert.Equal(t, lynx.PermissionAllow, u.Credentials[1].Permission)
}

func TestEnrol_Once(t *testing.T) {
	t.Parallel()

	dev := reader.NewSimulatedDevice()
	dev.Tap(lynx.TagID{1, 2, 3, 4})
	dev.Tap(lynx.TagID{5, 6, 7, 8})

	var out bytes.Buffer
	n, err := enrol(context.Background(), reader.NewPN532(dev), &out, lynx.PermissionDeny, time.Millisecond, true)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Contains(t, out.String(), `permission = "deny"`)
}

func TestNewTransport_EmptyPath(t *testing.T) {
	t.Parallel()

	_, err := newTransport("")
	assert.Error(t, err)
}
