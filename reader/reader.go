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

// Package reader turns bus transactions with a contactless reader into
// debounced tag detections.
//
// A Driver is polled on a fixed cadence by the access controller. Each Poll
// performs at most one bounded transaction. Transaction failures are counted;
// once MaxFailures consecutive polls have failed, Poll returns a *FaultError
// so a wedged reader is reported instead of looking like an empty field.
package reader

import (
	"context"
	"fmt"
	"time"

	"github.com/ZaparooProject/go-lynx"
)

// Driver is the reader capability consumed by the access controller.
//
// Poll returns (nil, nil) when no new tag was detected, including polls
// suppressed by the debounce window and individual failed transactions below
// the fault threshold.
type Driver interface {
	Poll(ctx context.Context) (*lynx.ReaderEvent, error)
}

// FaultError is returned after MaxFailures consecutive failed transactions.
// It matches lynx.ErrReaderFault with errors.Is.
type FaultError struct {
	Err      error
	Failures int
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("reader fault after %d consecutive failures: %v", e.Failures, e.Err)
}

func (e *FaultError) Unwrap() []error {
	return []error{lynx.ErrReaderFault, e.Err}
}

// Config holds the reader policy.
type Config struct {
	// TransactionTimeout bounds one bus transaction.
	TransactionTimeout time.Duration
	// Debounce suppresses re-detections of the same tag. Every detection of
	// that tag, suppressed or not, restarts the window.
	Debounce time.Duration
	// MaxFailures is the number of consecutive failures that surface a fault.
	MaxFailures int
}

// DefaultConfig returns the default reader policy.
func DefaultConfig() Config {
	return Config{
		TransactionTimeout: 50 * time.Millisecond,
		Debounce:           time.Second,
		MaxFailures:        5,
	}
}

// Stats are diagnostic counters.
type Stats struct {
	Polls      int64 // Total Poll calls
	Detections int64 // Surfaced events
	Suppressed int64 // Detections swallowed by the debounce window
	Failures   int64 // Failed transactions
	Faults     int64 // Surfaced FaultErrors
}
