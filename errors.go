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

package lynx

import "errors"

// Error taxonomy shared by the lock components. Component packages wrap these
// so callers can branch with errors.Is regardless of the backend.
var (
	// ErrReaderFault is a reader bus or communication failure that persisted
	// past the consecutive failure threshold.
	ErrReaderFault = errors.New("reader fault")

	// ErrActuatorFault means the mechanism failed to confirm its position.
	ErrActuatorFault = errors.New("actuator fault")

	// ErrSyncUnavailable means the remote service could not be reached.
	ErrSyncUnavailable = errors.New("sync unavailable")

	// ErrInvalidCredential is returned for malformed credentials or updates.
	ErrInvalidCredential = errors.New("invalid credential")
)
