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

package syncer

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/ZaparooProject/go-lynx"
	"github.com/ZaparooProject/go-lynx/credential"
	"github.com/google/uuid"
	"google.golang.org/protobuf/encoding/protowire"
)

// Wire messages, hand-encoded with protowire:
//
//	message AccessEvent   { bytes id = 1; bytes tag_id = 2; int64 timestamp_ms = 3; int32 outcome = 4; string reason = 5; }
//	message EventBatch    { repeated AccessEvent events = 1; }
//	message EventAck      { repeated bytes ids = 1; }
//	message Credential    { bytes tag_id = 1; int32 permission = 2; optional int64 valid_from_ms = 3; optional int64 valid_until_ms = 4; bytes secret = 5; }
//	message CredentialSet { string version = 1; int32 mode = 2; repeated Credential credentials = 3; repeated bytes remove = 4; }
const (
	eventID        protowire.Number = 1
	eventTagID     protowire.Number = 2
	eventTimestamp protowire.Number = 3
	eventOutcome   protowire.Number = 4
	eventReason    protowire.Number = 5

	batchEvents protowire.Number = 1
	ackIDs      protowire.Number = 1

	credTagID      protowire.Number = 1
	credPermission protowire.Number = 2
	credValidFrom  protowire.Number = 3
	credValidUntil protowire.Number = 4
	credSecret     protowire.Number = 5

	setVersion     protowire.Number = 1
	setMode        protowire.Number = 2
	setCredentials protowire.Number = 3
	setRemove      protowire.Number = 4
)

// ErrMalformed is returned for payloads that do not decode.
var ErrMalformed = errors.New("malformed sync payload")

// MarshalEvents encodes an EventBatch.
func MarshalEvents(events []lynx.AccessEvent) []byte {
	var b []byte
	for _, ev := range events {
		b = protowire.AppendTag(b, batchEvents, protowire.BytesType)
		b = protowire.AppendBytes(b, marshalEvent(ev))
	}
	return b
}

func marshalEvent(ev lynx.AccessEvent) []byte {
	var b []byte
	b = protowire.AppendTag(b, eventID, protowire.BytesType)
	b = protowire.AppendBytes(b, ev.ID[:])
	if len(ev.TagID) > 0 {
		b = protowire.AppendTag(b, eventTagID, protowire.BytesType)
		b = protowire.AppendBytes(b, ev.TagID)
	}
	b = protowire.AppendTag(b, eventTimestamp, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(ev.Timestamp.UnixMilli()))
	b = protowire.AppendTag(b, eventOutcome, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(ev.Outcome))
	b = protowire.AppendTag(b, eventReason, protowire.BytesType)
	b = protowire.AppendString(b, ev.Reason)
	return b
}

// UnmarshalEvents decodes an EventBatch.
func UnmarshalEvents(b []byte) ([]lynx.AccessEvent, error) {
	var events []lynx.AccessEvent
	err := walk(b, func(num protowire.Number, typ protowire.Type, v []byte, x uint64) error {
		if num != batchEvents || typ != protowire.BytesType {
			return nil
		}
		ev, err := unmarshalEvent(v)
		if err != nil {
			return err
		}
		events = append(events, ev)
		return nil
	})
	return events, err
}

func unmarshalEvent(b []byte) (lynx.AccessEvent, error) {
	var ev lynx.AccessEvent
	err := walk(b, func(num protowire.Number, typ protowire.Type, v []byte, x uint64) error {
		switch {
		case num == eventID && typ == protowire.BytesType:
			id, err := uuid.FromBytes(v)
			if err != nil {
				return fmt.Errorf("%w: event id: %w", ErrMalformed, err)
			}
			ev.ID = id
		case num == eventTagID && typ == protowire.BytesType:
			ev.TagID = lynx.TagID(v).Clone()
		case num == eventTimestamp && typ == protowire.VarintType:
			ev.Timestamp = time.UnixMilli(int64(x))
		case num == eventOutcome && typ == protowire.VarintType:
			ev.Outcome = lynx.Outcome(x)
		case num == eventReason && typ == protowire.BytesType:
			ev.Reason = string(v)
		}
		return nil
	})
	return ev, err
}

// MarshalAck encodes an EventAck.
func MarshalAck(ids []uuid.UUID) []byte {
	var b []byte
	for _, id := range ids {
		b = protowire.AppendTag(b, ackIDs, protowire.BytesType)
		b = protowire.AppendBytes(b, id[:])
	}
	return b
}

// UnmarshalAck decodes an EventAck.
func UnmarshalAck(b []byte) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := walk(b, func(num protowire.Number, typ protowire.Type, v []byte, x uint64) error {
		if num != ackIDs || typ != protowire.BytesType {
			return nil
		}
		id, err := uuid.FromBytes(v)
		if err != nil {
			return fmt.Errorf("%w: ack id: %w", ErrMalformed, err)
		}
		ids = append(ids, id)
		return nil
	})
	return ids, err
}

// MarshalCredentialSet encodes u as a CredentialSet.
func MarshalCredentialSet(u credential.Update) []byte {
	var b []byte
	if u.Version != "" {
		b = protowire.AppendTag(b, setVersion, protowire.BytesType)
		b = protowire.AppendString(b, u.Version)
	}
	if u.Mode != credential.UpdateFull {
		b = protowire.AppendTag(b, setMode, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(u.Mode))
	}
	for _, c := range u.Credentials {
		b = protowire.AppendTag(b, setCredentials, protowire.BytesType)
		b = protowire.AppendBytes(b, marshalCredential(c))
	}
	for _, tag := range u.Remove {
		b = protowire.AppendTag(b, setRemove, protowire.BytesType)
		b = protowire.AppendBytes(b, tag)
	}
	return b
}

func marshalCredential(c lynx.Credential) []byte {
	var b []byte
	b = protowire.AppendTag(b, credTagID, protowire.BytesType)
	b = protowire.AppendBytes(b, c.TagID)
	b = protowire.AppendTag(b, credPermission, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(c.Permission))
	if c.ValidFrom != nil {
		b = protowire.AppendTag(b, credValidFrom, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(c.ValidFrom.UnixMilli()))
	}
	if c.ValidUntil != nil {
		b = protowire.AppendTag(b, credValidUntil, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(c.ValidUntil.UnixMilli()))
	}
	if len(c.Secret) > 0 {
		b = protowire.AppendTag(b, credSecret, protowire.BytesType)
		b = protowire.AppendBytes(b, c.Secret)
	}
	return b
}

// UnmarshalCredentialSet decodes a CredentialSet into an Update. The result
// is not validated; the store does that when it is applied.
func UnmarshalCredentialSet(b []byte) (credential.Update, error) {
	var u credential.Update
	err := walk(b, func(num protowire.Number, typ protowire.Type, v []byte, x uint64) error {
		switch {
		case num == setVersion && typ == protowire.BytesType:
			u.Version = string(v)
		case num == setMode && typ == protowire.VarintType:
			switch credential.UpdateMode(x) {
			case credential.UpdateFull, credential.UpdateIncremental:
				u.Mode = credential.UpdateMode(x)
			default:
				return fmt.Errorf("%w: update mode %d", ErrMalformed, x)
			}
		case num == setCredentials && typ == protowire.BytesType:
			c, err := unmarshalCredential(v)
			if err != nil {
				return err
			}
			u.Credentials = append(u.Credentials, c)
		case num == setRemove && typ == protowire.BytesType:
			u.Remove = append(u.Remove, lynx.TagID(v).Clone())
		}
		return nil
	})
	return u, err
}

func unmarshalCredential(b []byte) (lynx.Credential, error) {
	var c lynx.Credential
	err := walk(b, func(num protowire.Number, typ protowire.Type, v []byte, x uint64) error {
		switch {
		case num == credTagID && typ == protowire.BytesType:
			c.TagID = lynx.TagID(v).Clone()
		case num == credPermission && typ == protowire.VarintType:
			c.Permission = lynx.Permission(x)
		case num == credValidFrom && typ == protowire.VarintType:
			t := time.UnixMilli(int64(x)).UTC()
			c.ValidFrom = &t
		case num == credValidUntil && typ == protowire.VarintType:
			t := time.UnixMilli(int64(x)).UTC()
			c.ValidUntil = &t
		case num == credSecret && typ == protowire.BytesType && len(v) > 0:
			c.Secret = bytes.Clone(v)
		}
		return nil
	})
	return c, err
}

// walk calls fn for every field in b. Bytes fields arrive in v, varints in x.
// Fields of other wire types are skipped.
func walk(b []byte, fn func(num protowire.Number, typ protowire.Type, v []byte, x uint64) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %w", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]

		var (
			v []byte
			x uint64
		)
		switch typ {
		case protowire.BytesType:
			v, n = protowire.ConsumeBytes(b)
		case protowire.VarintType:
			x, n = protowire.ConsumeVarint(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return fmt.Errorf("%w: field %d: %w", ErrMalformed, num, protowire.ParseError(n))
		}
		b = b[n:]

		if typ != protowire.BytesType && typ != protowire.VarintType {
			continue
		}
		if err := fn(num, typ, v, x); err != nil {
			return err
		}
	}
	return nil
}
