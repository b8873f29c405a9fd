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

// Package frame encodes and decodes PN532 normal information frames.
//
// Every host command travels as
//
//	00 00 FF LEN LCS D4 CMD DATA... DCS 00
//
// where LEN counts TFI+CMD+DATA, LCS makes LEN+LCS == 0 and DCS makes
// TFI+CMD+DATA+DCS == 0 (mod 256). The controller answers with an ACK frame
// followed by a response frame carrying TFI D5 and CMD+1.
package frame

// Frame direction constants - these indicate the direction of data flow
const (
	HostToPn532 = 0xD4 // Commands from host to PN532
	Pn532ToHost = 0xD5 // Responses from PN532 to host
)

// Frame markers and control bytes
const (
	Preamble   = 0x00
	StartCode1 = 0x00
	StartCode2 = 0xFF
	Postamble  = 0x00

	// ErrorFrameCode is the TFI-less payload of an application error frame.
	ErrorFrameCode = 0x7F
)

// Frame size limits
const (
	// MaxDataLength is the largest TFI+CMD+DATA a normal frame can carry.
	// Extended frames are not used by the lock.
	MaxDataLength = 254
	// Overhead is preamble, start code, LEN, LCS, DCS and postamble.
	Overhead = 7
	// MaxFrameLength is the largest normal frame on the wire.
	MaxFrameLength = MaxDataLength + Overhead
)

// ACK and NACK frames - these are used for flow control
var (
	AckFrame  = []byte{0x00, 0x00, 0xFF, 0x00, 0xFF, 0x00}
	NackFrame = []byte{0x00, 0x00, 0xFF, 0xFF, 0x00, 0x00}
)
