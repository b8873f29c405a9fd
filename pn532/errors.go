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
	"errors"
	"fmt"

	"github.com/ZaparooProject/go-lynx/internal/frame"
)

// Transport and protocol errors.
var (
	ErrTransportTimeout   = errors.New("transport timeout")
	ErrTransportRead      = errors.New("transport read failed")
	ErrTransportWrite     = errors.New("transport write failed")
	ErrTransportClosed    = errors.New("transport closed")
	ErrNoACK              = errors.New("no ACK received")
	ErrNACKReceived       = errors.New("NACK received")
	ErrFrameCorrupted     = errors.New("frame corrupted")
	ErrChecksumMismatch   = errors.New("checksum mismatch")
	ErrDeviceNotFound     = errors.New("device not found")
	ErrInvalidResponse    = errors.New("invalid response")
	ErrInvalidParameter   = errors.New("invalid parameter")
	ErrUnexpectedResponse = errors.New("unexpected response code")
	ErrApplicationError   = errors.New("PN532 application error")
	ErrDataTooLarge       = errors.New("data too large for a normal frame")
	ErrNotInitialized     = errors.New("device not initialized")
)

// ErrorType classifies a transport error for retry decisions.
type ErrorType int

const (
	// ErrorTypeTransient errors usually clear on the next attempt.
	ErrorTypeTransient ErrorType = iota
	// ErrorTypeTimeout means the device did not answer in time.
	ErrorTypeTimeout
	// ErrorTypePermanent errors will not go away by retrying.
	ErrorTypePermanent
)

func (t ErrorType) String() string {
	switch t {
	case ErrorTypeTransient:
		return "transient"
	case ErrorTypeTimeout:
		return "timeout"
	case ErrorTypePermanent:
		return "permanent"
	default:
		return fmt.Sprintf("ErrorType(%d)", int(t))
	}
}

// TransportError carries the operation and port alongside the cause.
type TransportError struct {
	Err       error
	Op        string
	Port      string
	Type      ErrorType
	Retryable bool
}

func (e *TransportError) Error() string {
	if e.Port != "" {
		return fmt.Sprintf("%s on %s: %v", e.Op, e.Port, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransportError wraps err. Transient and timeout errors are retryable.
func NewTransportError(op, port string, err error, errType ErrorType) *TransportError {
	return &TransportError{
		Op:        op,
		Port:      port,
		Err:       err,
		Type:      errType,
		Retryable: errType != ErrorTypePermanent,
	}
}

// NewTimeoutError reports that the device did not become ready in time.
func NewTimeoutError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrTransportTimeout, ErrorTypeTimeout)
}

// NewNoACKError reports a missing acknowledgement.
func NewNoACKError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrNoACK, ErrorTypeTransient)
}

// NewFrameError maps an internal/frame decoding error onto the transport
// taxonomy. Checksum and framing problems are bus noise and retryable;
// PN532 application errors and oversized frames are not.
func NewFrameError(op, port string, err error) *TransportError {
	switch {
	case errors.Is(err, frame.ErrLengthChecksum), errors.Is(err, frame.ErrDataChecksum):
		return NewTransportError(op, port, fmt.Errorf("%w: %w", ErrChecksumMismatch, err), ErrorTypeTransient)
	case errors.Is(err, frame.ErrApplication):
		return NewTransportError(op, port, fmt.Errorf("%w: %w", ErrApplicationError, err), ErrorTypePermanent)
	case errors.Is(err, frame.ErrDataTooLarge):
		return NewTransportError(op, port, fmt.Errorf("%w: %w", ErrDataTooLarge, err), ErrorTypePermanent)
	default:
		return NewTransportError(op, port, fmt.Errorf("%w: %w", ErrFrameCorrupted, err), ErrorTypeTransient)
	}
}

// IsRetryable reports whether err is worth another attempt.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te.Retryable
	}

	return errors.Is(err, ErrTransportTimeout) ||
		errors.Is(err, ErrNoACK) ||
		errors.Is(err, ErrFrameCorrupted) ||
		errors.Is(err, ErrChecksumMismatch) ||
		errors.Is(err, ErrTransportRead)
}

// GetErrorType returns the classification of err, or ErrorTypePermanent for
// errors outside the transport taxonomy.
func GetErrorType(err error) ErrorType {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Type
	}
	if errors.Is(err, ErrTransportTimeout) {
		return ErrorTypeTimeout
	}
	return ErrorTypePermanent
}
