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

// PN532 command codes, mirrored here so tests outside the pn532 package can
// program mock transports.
const (
	CmdGetFirmwareVersion  byte = 0x02
	CmdSAMConfiguration    byte = 0x14
	CmdRFConfiguration     byte = 0x32
	CmdInDataExchange      byte = 0x40
	CmdInListPassiveTarget byte = 0x4A
	CmdInRelease           byte = 0x52
)

// Response payloads below start at the response code (command + 1), which is
// what pn532.Transport implementations return after stripping the frame.

// BuildFirmwareVersionResponse returns a PN532 v1.6 answer supporting
// ISO14443A/B and ISO18092.
func BuildFirmwareVersionResponse() []byte {
	return []byte{CmdGetFirmwareVersion + 1, 0x32, 0x01, 0x06, 0x07}
}

// BuildSAMConfigurationResponse creates a SAMConfiguration response
func BuildSAMConfigurationResponse() []byte {
	return []byte{CmdSAMConfiguration + 1}
}

// BuildRFConfigurationResponse creates an RFConfiguration response
func BuildRFConfigurationResponse() []byte {
	return []byte{CmdRFConfiguration + 1}
}

// BuildTagDetectionResponse creates an InListPassiveTarget response with one
// ISO14443A target carrying uid.
func BuildTagDetectionResponse(uid []byte) []byte {
	return BuildTargetResponse(0x01, [2]byte{0x00, 0x04}, 0x08, uid)
}

// BuildTargetResponse creates an InListPassiveTarget response with explicit
// target number, SENS_RES and SEL_RES.
func BuildTargetResponse(tg byte, sensRes [2]byte, selRes byte, uid []byte) []byte {
	response := []byte{CmdInListPassiveTarget + 1, 0x01, tg, sensRes[0], sensRes[1], selRes, byte(len(uid))}
	return append(response, uid...)
}

// BuildNoTagResponse creates an empty InListPassiveTarget response
func BuildNoTagResponse() []byte {
	return []byte{CmdInListPassiveTarget + 1, 0x00}
}

// BuildInReleaseResponse creates a successful InRelease response
func BuildInReleaseResponse() []byte {
	return []byte{CmdInRelease + 1, 0x00}
}

// BuildDataExchangeResponse wraps a target answer in a successful
// InDataExchange response.
func BuildDataExchangeResponse(data []byte) []byte {
	return append([]byte{CmdInDataExchange + 1, 0x00}, data...)
}

// BuildErrorResponse creates a response carrying a non-zero status byte.
func BuildErrorResponse(cmd, errorCode byte) []byte {
	return []byte{cmd + 1, errorCode}
}
