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
	"encoding/hex"
	"errors"
	"strings"
	"sync"
)

// ErrUnsupportedCommand is returned by VirtualField for commands it does not
// emulate.
var ErrUnsupportedCommand = errors.New("virtual field: unsupported command")

// VirtualTag is an ISO14443A credential that can be moved in and out of a
// VirtualField.
type VirtualTag struct {
	UID     []byte
	SensRes [2]byte
	SelRes  byte
	present bool
}

// NewVirtualMIFARE1K creates a MIFARE Classic 1K style tag.
func NewVirtualMIFARE1K(uid []byte) *VirtualTag {
	return &VirtualTag{UID: append([]byte(nil), uid...), SensRes: [2]byte{0x00, 0x04}, SelRes: 0x08, present: true}
}

// NewVirtualNTAG213 creates an NTAG213 style tag with a 7 byte UID.
func NewVirtualNTAG213(uid []byte) *VirtualTag {
	return &VirtualTag{UID: append([]byte(nil), uid...), SensRes: [2]byte{0x00, 0x44}, SelRes: 0x00, present: true}
}

// GetUIDString returns the UID as upper-case hex.
func (v *VirtualTag) GetUIDString() string {
	return strings.ToUpper(hex.EncodeToString(v.UID))
}

// Remove takes the tag out of the field.
func (v *VirtualTag) Remove() {
	v.present = false
}

// Insert puts the tag back into the field.
func (v *VirtualTag) Insert() {
	v.present = true
}

// VirtualField emulates the RF side of a PN532: it answers the commands the
// lock issues based on which tag is currently presented. Use Respond as the
// response function of a mock transport.
type VirtualField struct {
	tag      *VirtualTag
	selected bool
	mu       sync.Mutex
}

// NewVirtualField returns an empty field.
func NewVirtualField() *VirtualField {
	return &VirtualField{}
}

// Present places tag in the field, replacing any previous tag. A nil tag
// empties the field.
func (f *VirtualField) Present(tag *VirtualTag) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tag = tag
	f.selected = false
}

// Selected reports whether a target is currently activated (listed and not
// yet released).
func (f *VirtualField) Selected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.selected
}

// Respond answers a PN532 command the way a real reader would.
func (f *VirtualField) Respond(cmd byte, _ []byte) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch cmd {
	case CmdGetFirmwareVersion:
		return BuildFirmwareVersionResponse(), nil
	case CmdSAMConfiguration:
		return BuildSAMConfigurationResponse(), nil
	case CmdRFConfiguration:
		return BuildRFConfigurationResponse(), nil
	case CmdInListPassiveTarget:
		if f.tag == nil || !f.tag.present {
			return BuildNoTagResponse(), nil
		}
		f.selected = true
		return BuildTargetResponse(0x01, f.tag.SensRes, f.tag.SelRes, f.tag.UID), nil
	case CmdInRelease:
		f.selected = false
		return BuildInReleaseResponse(), nil
	default:
		return nil, ErrUnsupportedCommand
	}
}
