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

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Tag UID length limits for ISO14443A single, double and triple size UIDs.
const (
	MinTagIDLength = 4
	MaxTagIDLength = 10
)

// MaxSecretLength is the size of an HMAC-SHA1 challenge-response key.
// Shorter keys behave as if zero padded.
const MaxSecretLength = 20

// TagID is the UID broadcast by a contactless credential.
type TagID []byte

// ParseTagID parses a hex UID. Colons, spaces and an optional 0x prefix are
// accepted ("A1B2C3D4", "a1:b2:c3:d4", "0xA1B2C3D4").
func ParseTagID(s string) (TagID, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	s = strings.NewReplacer(":", "", " ", "", "-", "").Replace(s)

	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: tag id %q: %w", ErrInvalidCredential, s, err)
	}
	id := TagID(b)
	if err := id.Validate(); err != nil {
		return nil, err
	}
	return id, nil
}

// String returns the UID as upper-case hex without separators.
func (t TagID) String() string {
	return strings.ToUpper(hex.EncodeToString(t))
}

// Equal reports whether two UIDs are identical.
func (t TagID) Equal(other TagID) bool {
	return bytes.Equal(t, other)
}

// Clone returns a copy that does not alias t.
func (t TagID) Clone() TagID {
	if t == nil {
		return nil
	}
	out := make(TagID, len(t))
	copy(out, t)
	return out
}

// Validate checks the UID length.
func (t TagID) Validate() error {
	if len(t) < MinTagIDLength || len(t) > MaxTagIDLength {
		return fmt.Errorf("%w: tag id length %d outside %d..%d",
			ErrInvalidCredential, len(t), MinTagIDLength, MaxTagIDLength)
	}
	return nil
}

// Permission is the access right attached to a credential.
type Permission int

const (
	PermissionDeny Permission = iota
	PermissionAllow
	PermissionTimeLimited
)

// ParsePermission parses the textual form used in credential files.
func ParsePermission(s string) (Permission, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "allow":
		return PermissionAllow, nil
	case "deny":
		return PermissionDeny, nil
	case "time_limited", "timelimited", "time-limited":
		return PermissionTimeLimited, nil
	default:
		return PermissionDeny, fmt.Errorf("%w: unknown permission %q", ErrInvalidCredential, s)
	}
}

func (p Permission) String() string {
	switch p {
	case PermissionDeny:
		return "deny"
	case PermissionAllow:
		return "allow"
	case PermissionTimeLimited:
		return "time_limited"
	default:
		return fmt.Sprintf("permission(%d)", int(p))
	}
}

// Valid reports whether p is one of the defined permissions.
func (p Permission) Valid() bool {
	return p >= PermissionDeny && p <= PermissionTimeLimited
}

// Credential maps a tag to a permission and an optional validity window.
// The window is half-open: ValidFrom is inclusive, ValidUntil exclusive.
// A credential with a Secret also requires the token to answer an
// HMAC-SHA1 challenge with that key.
type Credential struct {
	ValidFrom  *time.Time
	ValidUntil *time.Time
	TagID      TagID
	Secret     []byte
	Permission Permission
}

// Validate checks the tag ID, permission and window ordering.
func (c Credential) Validate() error {
	if err := c.TagID.Validate(); err != nil {
		return err
	}
	if !c.Permission.Valid() {
		return fmt.Errorf("%w: tag %s has unknown permission %d", ErrInvalidCredential, c.TagID, int(c.Permission))
	}
	if c.ValidFrom != nil && c.ValidUntil != nil && !c.ValidFrom.Before(*c.ValidUntil) {
		return fmt.Errorf("%w: tag %s window is empty", ErrInvalidCredential, c.TagID)
	}
	if len(c.Secret) > MaxSecretLength {
		return fmt.Errorf("%w: tag %s secret is %d bytes, max %d",
			ErrInvalidCredential, c.TagID, len(c.Secret), MaxSecretLength)
	}
	return nil
}

// Clone returns a deep copy.
func (c Credential) Clone() Credential {
	out := c
	out.TagID = c.TagID.Clone()
	out.Secret = bytes.Clone(c.Secret)
	if c.ValidFrom != nil {
		from := *c.ValidFrom
		out.ValidFrom = &from
	}
	if c.ValidUntil != nil {
		until := *c.ValidUntil
		out.ValidUntil = &until
	}
	return out
}

// Outcome is the result recorded in an AccessEvent.
type Outcome int

const (
	OutcomeGranted Outcome = iota
	OutcomeDenied
	OutcomeReaderError
	OutcomeTimeout
	OutcomeActuatorFault
)

func (o Outcome) String() string {
	switch o {
	case OutcomeGranted:
		return "granted"
	case OutcomeDenied:
		return "denied"
	case OutcomeReaderError:
		return "reader_error"
	case OutcomeTimeout:
		return "timeout"
	case OutcomeActuatorFault:
		return "actuator_fault"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// AccessEvent is append-only telemetry produced by the access controller.
type AccessEvent struct {
	Timestamp time.Time
	Reason    string
	TagID     TagID
	Outcome   Outcome
	ID        uuid.UUID
}

// NewAccessEvent stamps a new event with a random ID so that uploads of the
// same event can be deduplicated by the remote side.
func NewAccessEvent(tagID TagID, outcome Outcome, reason string, at time.Time) AccessEvent {
	return AccessEvent{
		ID:        uuid.New(),
		TagID:     tagID.Clone(),
		Timestamp: at,
		Outcome:   outcome,
		Reason:    reason,
	}
}

// LockState is the state of the lock mechanism as seen by the controller.
type LockState int

const (
	Locked LockState = iota
	Unlocking
	Unlocked
	Relocking
	Fault
)

func (s LockState) String() string {
	switch s {
	case Locked:
		return "locked"
	case Unlocking:
		return "unlocking"
	case Unlocked:
		return "unlocked"
	case Relocking:
		return "relocking"
	case Fault:
		return "fault"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ReaderEvent is a single surfaced tag detection.
type ReaderEvent struct {
	DetectedAt time.Time
	TagID      TagID
}
