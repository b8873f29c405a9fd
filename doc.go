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

/*
Package lynx is the access-control and lock-actuation core of a standalone
NFC door lock.

A lock is assembled from a handful of small packages:

  - reader: polls a PN532 contactless reader and surfaces debounced tag
    detections or a diagnostic fault after repeated bus failures
  - credential: the local trust store mapping tag UIDs to permissions and
    validity windows, with an optional SQLite mirror
  - actuator: timed lock/unlock primitives for GPIO solenoids, hobby servos
    and a simulated mechanism
  - indicator: the addressable status LED
  - access: the state machine tying the above together
  - yubikey: HMAC-SHA1 challenge-response for credentials that carry a
    secret
  - syncer: the event queue and background reconciliation with a remote
    service

This package holds the types shared between them.

Basic Usage:

	store := credential.NewStore()
	_ = store.ApplyUpdate(ctx, credential.Update{
	    Mode: credential.UpdateFull,
	    Credentials: []lynx.Credential{
	        {TagID: lynx.TagID{0xA1, 0xB2, 0xC3, 0xD4}, Permission: lynx.PermissionAllow},
	    },
	})

	queue := syncer.NewQueue(256)
	ctrl := access.NewController(rdr, store, act, ind, queue,
	    access.WithConfig(access.Config{Hold: 5 * time.Second}),
	)
	go ctrl.Run(ctx)

Fail-safe:

Every hardware fault defaults to the locked, non-actuating state. A mechanism
that fails to confirm its position drives the lock into Fault, which is
terminal until Controller.Reset is called by maintenance.

Error Handling:

	if errors.Is(err, lynx.ErrActuatorFault) {
	    // mechanism jammed or unpowered
	}
*/
package lynx
