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

package credential

import (
	"strings"
	"testing"
	"time"

	"github.com/ZaparooProject/go-lynx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleFile = `
[[credential]]
tag_id = "A1B2C3D4"
permission = "allow"

[[credential]]
tag_id = "04:11:22:33:44:55:66"
permission = "time_limited"
valid_from = 2025-06-01T08:00:00Z
valid_until = 2025-06-30T18:00:00Z

[[credential]]
tag_id = "0xFFFFFFFF"
permission = "deny"

[[credential]]
tag_id = "04A1B2C3D4E5F6"
permission = "allow"
secret = "00112233445566778899aabbccddeeff00112233"
`

func TestParseFile(t *testing.T) {
	t.Parallel()

	u, err := ParseFile(strings.NewReader(sampleFile))
	require.NoError(t, err)
	assert.Equal(t, UpdateFull, u.Mode)
	require.Len(t, u.Credentials, 4)

	assert.Equal(t, "A1B2C3D4", u.Credentials[0].TagID.String())
	assert.Equal(t, lynx.PermissionAllow, u.Credentials[0].Permission)
	assert.Nil(t, u.Credentials[0].ValidFrom)

	second := u.Credentials[1]
	assert.Equal(t, lynx.PermissionTimeLimited, second.Permission)
	require.NotNil(t, second.ValidFrom)
	require.NotNil(t, second.ValidUntil)
	assert.True(t, second.ValidFrom.Equal(time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)))
	assert.True(t, second.ValidUntil.Equal(time.Date(2025, 6, 30, 18, 0, 0, 0, time.UTC)))

	assert.Equal(t, lynx.PermissionDeny, u.Credentials[2].Permission)
	assert.Nil(t, u.Credentials[2].Secret)

	secret := u.Credentials[3].Secret
	require.Len(t, secret, lynx.MaxSecretLength)
	assert.Equal(t, byte(0x00), secret[0])
	assert.Equal(t, byte(0x33), secret[19])
}

func TestParseFile_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
	}{
		{name: "bad toml", input: "[[credential]\n"},
		{name: "bad tag", input: "[[credential]]\ntag_id = \"XYZ\"\npermission = \"allow\"\n"},
		{name: "bad permission", input: "[[credential]]\ntag_id = \"A1B2C3D4\"\npermission = \"maybe\"\n"},
		{name: "unknown key", input: "[[credential]]\ntag_id = \"A1B2C3D4\"\npermission = \"allow\"\ncolour = \"red\"\n"},
		{name: "empty window", input: "[[credential]]\ntag_id = \"A1B2C3D4\"\npermission = \"allow\"\nvalid_from = 2025-06-02T00:00:00Z\nvalid_until = 2025-06-01T00:00:00Z\n"},
		{name: "bad secret", input: "[[credential]]\ntag_id = \"A1B2C3D4\"\npermission = \"allow\"\nsecret = \"xyz\"\n"},
		{name: "secret too long", input: "[[credential]]\ntag_id = \"A1B2C3D4\"\npermission = \"allow\"\nsecret = \"" + strings.Repeat("AB", 21) + "\"\n"},
		{name: "duplicate", input: "[[credential]]\ntag_id = \"A1B2C3D4\"\npermission = \"allow\"\n[[credential]]\ntag_id = \"a1b2c3d4\"\npermission = \"deny\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseFile(strings.NewReader(tt.input))
			assert.ErrorIs(t, err, lynx.ErrInvalidCredential)
		})
	}
}

func TestLoadFile_Missing(t *testing.T) {
	t.Parallel()

	_, err := LoadFile(t.TempDir() + "/nope.toml")
	assert.Error(t, err)
}
