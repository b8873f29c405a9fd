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
	"encoding/hex"
	"fmt"
	"strings"
)

// Target is an ISO14443A target reported by InListPassiveTarget.
type Target struct {
	UID     []byte
	SensRes [2]byte
	Number  byte
	SelRes  byte
}

// UIDString returns the UID as upper-case hex.
func (t *Target) UIDString() string {
	return strings.ToUpper(hex.EncodeToString(t.UID))
}

// parseTarget decodes [0x4B NbTg Tg SENS_RES(2) SEL_RES NFCIDLen NFCID...].
// Any trailing ATS bytes are ignored.
func parseTarget(res []byte) (*Target, error) {
	if len(res) < 2 {
		return nil, fmt.Errorf("%w: InListPassiveTarget response too short", ErrInvalidResponse)
	}
	if res[1] == 0 {
		return nil, nil
	}
	if len(res) < 7 {
		return nil, fmt.Errorf("%w: target data truncated (% X)", ErrInvalidResponse, res)
	}

	uidLen := int(res[6])
	if uidLen == 0 || len(res) < 7+uidLen {
		return nil, fmt.Errorf("%w: UID length %d exceeds response", ErrInvalidResponse, uidLen)
	}

	target := &Target{
		Number:  res[2],
		SensRes: [2]byte{res[3], res[4]},
		SelRes:  res[5],
		UID:     make([]byte, uidLen),
	}
	copy(target.UID, res[7:7+uidLen])
	return target, nil
}
