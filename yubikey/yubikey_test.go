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


package yubikey

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"io"
	"testing"

	"github.com/ZaparooProject/go-lynx"
	"github.com/ZaparooProject/go-lynx/pn532"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	tokenUID    = lynx.TagID{0x04, 0x5A, 0x11, 0x22, 0x33, 0x44, 0x55}
	tokenSecret = []byte("0123456789abcdefghij")
)

// fakeToken answers like a YubiKey with one HMAC slot programmed.
type fakeToken struct {
	exchangeErr error
	uid         []byte
	secret      []byte
	apdus       [][]byte
	selected    bool
	released    int
	absent      bool
	slot        Slot
}

func newFakeToken() *fakeToken {
	return &fakeToken{uid: tokenUID, secret: tokenSecret, slot: Slot2}
}

func (f *fakeToken) InListPassiveTarget(context.Context) (*pn532.Target, error) {
	if f.absent {
		return nil, nil
	}
	return &pn532.Target{Number: 1, UID: append([]byte(nil), f.uid...)}, nil
}

func (f *fakeToken) InDataExchange(_ context.Context, tg byte, data []byte) ([]byte, error) {
	f.apdus = append(f.apdus, append([]byte(nil), data...))
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	if tg != 1 || len(data) < 5 {
		return []byte{0x6A, 0x80}, nil
	}
	switch data[1] {
	case insSelect:
		if !bytes.Equal(data[5:], AID) {
			return []byte{0x6A, 0x82}, nil
		}
		f.selected = true
		return []byte{0x05, 0x02, 0x03, 0x90, 0x00}, nil
	case insAPIRequest:
		if !f.selected || Slot(data[2]) != f.slot {
			return []byte{0x69, 0x85}, nil
		}
		return append(Response(f.secret, data[5:]), 0x90, 0x00), nil
	}
	return []byte{0x6D, 0x00}, nil
}

func (f *fakeToken) InRelease(context.Context, byte) error {
	f.released++
	return nil
}

func TestResponse_KnownVector(t *testing.T) {
	t.Parallel()

	// RFC 2202 test case 2.
	got := Response([]byte("Jefe"), []byte("what do ya want for nothing?"))
	assert.Equal(t, "effcdf6ae5eb2fa2d27416d5f184df9c259a7c79", hex.EncodeToString(got))
}

func TestVerifier_Accepts(t *testing.T) {
	t.Parallel()

	token := newFakeToken()
	challenge := bytes.Repeat([]byte{0x42}, ChallengeSize)
	v := NewVerifier(token, WithRandom(bytes.NewReader(challenge)))

	require.NoError(t, v.Verify(context.Background(), tokenUID, tokenSecret))

	require.Len(t, token.apdus, 2)
	assert.Equal(t, append([]byte{0x00, 0xA4, 0x04, 0x00, 0x07}, AID...), token.apdus[0])
	assert.Equal(t, append([]byte{0x00, 0x01, 0x38, 0x00, ChallengeSize}, challenge...), token.apdus[1])
	assert.Equal(t, 1, token.released)
}

func TestVerifier_Rejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		setup   func(*fakeToken)
		wantErr error
		name    string
		tag     lynx.TagID
		secret  []byte
	}{
		{name: "wrong key", tag: tokenUID, secret: []byte("not-the-key"), wantErr: ErrMismatch},
		{name: "different token", tag: lynx.TagID{0xA1, 0xB2, 0xC3, 0xD4}, secret: tokenSecret, wantErr: ErrWrongToken},
		{
			name: "token removed", tag: tokenUID, secret: tokenSecret, wantErr: ErrNoToken,
			setup: func(f *fakeToken) { f.absent = true },
		},
		{
			name: "slot not programmed", tag: tokenUID, secret: tokenSecret, wantErr: ErrStatus,
			setup: func(f *fakeToken) { f.slot = Slot1 },
		},
		{
			name: "bus error", tag: tokenUID, secret: tokenSecret, wantErr: pn532.ErrTransportTimeout,
			setup: func(f *fakeToken) { f.exchangeErr = pn532.ErrTransportTimeout },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			token := newFakeToken()
			if tt.setup != nil {
				tt.setup(token)
			}
			err := NewVerifier(token).Verify(context.Background(), tt.tag, tt.secret)
			assert.ErrorIs(t, err, tt.wantErr)
			if !token.absent {
				assert.Equal(t, 1, token.released, "target is released on every path")
			}
		})
	}
}

func TestVerifier_ShortKeyMatchesPaddedKey(t *testing.T) {
	t.Parallel()

	token := newFakeToken()
	token.secret = append([]byte{0xAA, 0xBB}, make([]byte, lynx.MaxSecretLength-2)...)

	require.NoError(t, NewVerifier(token).Verify(context.Background(), tokenUID, []byte{0xAA, 0xBB}))
}

func TestVerifier_RandomFailure(t *testing.T) {
	t.Parallel()

	v := NewVerifier(newFakeToken(), WithRandom(bytes.NewReader(nil)))
	err := v.Verify(context.Background(), tokenUID, tokenSecret)
	require.Error(t, err)
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF))
}

func TestSlotFromNumber(t *testing.T) {
	t.Parallel()

	s, err := SlotFromNumber(1)
	require.NoError(t, err)
	assert.Equal(t, Slot1, s)
	s, err = SlotFromNumber(2)
	require.NoError(t, err)
	assert.Equal(t, Slot2, s)
	_, err = SlotFromNumber(3)
	assert.Error(t, err)
}
