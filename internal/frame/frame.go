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

package frame

import (
	"bytes"
	"errors"
	"fmt"
)

// Frame decoding errors. Transports map these onto their own retryable error
// types.
var (
	ErrDataTooLarge   = errors.New("frame data too large")
	ErrNoStartCode    = errors.New("frame start code not found")
	ErrTruncated      = errors.New("frame truncated")
	ErrLengthChecksum = errors.New("frame length checksum mismatch")
	ErrDataChecksum   = errors.New("frame data checksum mismatch")
	ErrWrongDirection = errors.New("frame has unexpected TFI")
	ErrApplication    = errors.New("PN532 application error frame")
)

// CalculateChecksum returns the byte sum of data (mod 256).
func CalculateChecksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return sum
}

// CalculateLengthChecksum returns LCS for the given LEN.
func CalculateLengthChecksum(length byte) byte {
	return ^length + 1
}

// CalculateDataChecksum returns DCS for TFI followed by data.
func CalculateDataChecksum(tfi byte, data []byte) byte {
	return ^(tfi + CalculateChecksum(data)) + 1
}

// Build encodes a host-to-PN532 command frame.
func Build(cmd byte, args []byte) ([]byte, error) {
	dataLen := 2 + len(args) // TFI + CMD + args
	if dataLen > MaxDataLength {
		return nil, fmt.Errorf("%w: %d bytes", ErrDataTooLarge, dataLen)
	}

	out := make([]byte, 0, dataLen+Overhead)
	out = append(out, Preamble, StartCode1, StartCode2,
		byte(dataLen), CalculateLengthChecksum(byte(dataLen)),
		HostToPn532, cmd)
	out = append(out, args...)

	payload := append([]byte{cmd}, args...)
	out = append(out, CalculateDataChecksum(HostToPn532, payload), Postamble)
	return out, nil
}

// SplitAck locates an ACK frame in buf and returns whatever follows it. The
// leading preamble byte is optional; I2C reads prefix a ready byte and UART
// reads may carry the response right behind the ACK.
func SplitAck(buf []byte) (rest []byte, ok bool) {
	idx := bytes.Index(buf, AckFrame[1:])
	if idx < 0 {
		return nil, false
	}
	return buf[idx+len(AckFrame)-1:], true
}

// IsAck reports whether buf contains an ACK frame.
func IsAck(buf []byte) bool {
	_, ok := SplitAck(buf)
	return ok
}

// IsNack reports whether buf contains a NACK frame.
func IsNack(buf []byte) bool {
	return bytes.Contains(buf, NackFrame[1:])
}

// findStart returns the index of the 00 of the 00 FF start code, or -1.
func findStart(buf []byte) int {
	for i := 0; i+1 < len(buf); i++ {
		if buf[i] == StartCode1 && buf[i+1] == StartCode2 {
			return i
		}
	}
	return -1
}

// Parse decodes the first response frame in buf and returns CMD+1 followed by
// the response data, without TFI.
func Parse(buf []byte) ([]byte, error) {
	off := findStart(buf)
	if off < 0 {
		return nil, ErrNoStartCode
	}
	// skip 00 FF
	off += 2
	if off+2 > len(buf) {
		return nil, ErrTruncated
	}

	length, lcs := buf[off], buf[off+1]
	if length+lcs != 0 {
		return nil, fmt.Errorf("%w: LEN=%02X LCS=%02X", ErrLengthChecksum, length, lcs)
	}
	off += 2

	if length == 0x01 && off < len(buf) && buf[off] == ErrorFrameCode {
		return nil, ErrApplication
	}
	if int(length)+1 > len(buf)-off {
		return nil, fmt.Errorf("%w: need %d bytes, have %d", ErrTruncated, int(length)+1, len(buf)-off)
	}
	if length < 2 {
		return nil, fmt.Errorf("%w: LEN=%d", ErrTruncated, length)
	}

	body := buf[off : off+int(length)]
	dcs := buf[off+int(length)]
	if CalculateChecksum(body)+dcs != 0 {
		return nil, fmt.Errorf("%w: DCS=%02X", ErrDataChecksum, dcs)
	}
	if body[0] != Pn532ToHost {
		return nil, fmt.Errorf("%w: %02X", ErrWrongDirection, body[0])
	}

	out := make([]byte, len(body)-1)
	copy(out, body[1:])
	return out, nil
}

// Wrap encodes a PN532-to-host response frame. Tests and simulated readers
// use it to produce wire-exact responses.
func Wrap(payload []byte) []byte {
	dataLen := 1 + len(payload)
	out := make([]byte, 0, dataLen+Overhead)
	out = append(out, Preamble, StartCode1, StartCode2,
		byte(dataLen), CalculateLengthChecksum(byte(dataLen)), Pn532ToHost)
	out = append(out, payload...)
	out = append(out, CalculateDataChecksum(Pn532ToHost, payload), Postamble)
	return out
}
