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

// PN532 command codes used by the lock.
const (
	cmdGetFirmwareVersion  = 0x02
	cmdSamConfiguration    = 0x14
	cmdRFConfiguration     = 0x32
	cmdInDataExchange      = 0x40
	cmdInListPassiveTarget = 0x4A
	cmdInRelease           = 0x52
)

// SAMConfiguration arguments: normal mode, 20 * 50ms virtual card timeout, IRQ on.
const (
	samModeNormal    = 0x01
	samTimeout       = 0x14
	samUseIRQ        = 0x01
	rfItemMaxRetries = 0x05
)

// Baud rate / modulation for InListPassiveTarget.
const (
	BaudISO14443A = 0x00
)

// PassiveActivationForever makes InListPassiveTarget wait until a target
// enters the field. The lock never uses it because every transaction must
// be bounded.
const PassiveActivationForever = 0xFF

// MaxDataExchange is the largest InDataExchange payload that fits a normal
// information frame next to TFI, the command code and the target number.
const MaxDataExchange = 251
