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
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ZaparooProject/go-lynx"
)

// fileFormat is the local credentials file:
//
//	[[credential]]
//	tag_id = "A1B2C3D4"
//	permission = "allow"
//
//	[[credential]]
//	tag_id = "04:11:22:33:44:55:66"
//	permission = "time_limited"
//	valid_from = 2025-06-01T08:00:00Z
//	valid_until = 2025-06-30T18:00:00Z
//
//	[[credential]]
//	tag_id = "04A1B2C3D4E5F6"
//	permission = "allow"
//	secret = "00112233445566778899AABBCCDDEEFF00112233"
type fileFormat struct {
	Credentials []fileCredential `toml:"credential"`
}

type fileCredential struct {
	ValidFrom  *time.Time `toml:"valid_from"`
	ValidUntil *time.Time `toml:"valid_until"`
	TagID      string     `toml:"tag_id"`
	Permission string     `toml:"permission"`
	Secret     string     `toml:"secret"`
}

// ParseFile decodes a credentials file into a full update.
func ParseFile(r io.Reader) (Update, error) {
	var f fileFormat
	md, err := toml.NewDecoder(r).Decode(&f)
	if err != nil {
		return Update{}, fmt.Errorf("%w: %w", lynx.ErrInvalidCredential, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Update{}, fmt.Errorf("%w: unknown keys %v", lynx.ErrInvalidCredential, undecoded)
	}

	u := Update{Mode: UpdateFull, Credentials: make([]lynx.Credential, 0, len(f.Credentials))}
	for i, fc := range f.Credentials {
		id, err := lynx.ParseTagID(fc.TagID)
		if err != nil {
			return Update{}, fmt.Errorf("credential %d: %w", i, err)
		}
		perm, err := lynx.ParsePermission(fc.Permission)
		if err != nil {
			return Update{}, fmt.Errorf("credential %d: %w", i, err)
		}
		var secret []byte
		if fc.Secret != "" {
			if secret, err = hex.DecodeString(fc.Secret); err != nil {
				return Update{}, fmt.Errorf("credential %d: %w: secret: %w", i, lynx.ErrInvalidCredential, err)
			}
		}
		u.Credentials = append(u.Credentials, lynx.Credential{
			TagID:      id,
			Permission: perm,
			ValidFrom:  fc.ValidFrom,
			ValidUntil: fc.ValidUntil,
			Secret:     secret,
		})
	}

	if err := u.Validate(); err != nil {
		return Update{}, err
	}
	return u, nil
}

// LoadFile reads and parses the credentials file at path.
func LoadFile(path string) (Update, error) {
	f, err := os.Open(path) // #nosec G304 -- path comes from the operator's config
	if err != nil {
		return Update{}, fmt.Errorf("failed to open credentials file: %w", err)
	}
	defer func() { _ = f.Close() }()

	u, err := ParseFile(f)
	if err != nil {
		return Update{}, fmt.Errorf("%s: %w", path, err)
	}
	return u, nil
}
