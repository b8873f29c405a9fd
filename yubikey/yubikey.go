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


// Package yubikey verifies that a token presented to the reader holds an
// HMAC-SHA1 key, using the challenge-response applet of a YubiKey over
// ISO 7816 APDUs carried by PN532 InDataExchange.
//
// The slot must be programmed for HMAC-SHA1 with variable length input
// (ykpersonalize -ochal-resp -ochal-hmac -ohmac-lt64).
package yubikey

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1" // #nosec G505 -- the applet only speaks HMAC-SHA1
	"errors"
	"fmt"
	"io"

	"github.com/ZaparooProject/go-lynx"
	"github.com/ZaparooProject/go-lynx/pn532"
	"go.uber.org/zap"
)

// AID selects the YubiKey OTP applet.
var AID = []byte{0xA0, 0x00, 0x00, 0x05, 0x27, 0x20, 0x01}

// Slot is the P1 value of the challenge-response APDU.
type Slot byte

const (
	Slot1 Slot = 0x30
	Slot2 Slot = 0x38
)

// SlotFromNumber maps the configuration slot number (1 or 2) to a Slot.
func SlotFromNumber(n int) (Slot, error) {
	switch n {
	case 1:
		return Slot1, nil
	case 2:
		return Slot2, nil
	default:
		return 0, fmt.Errorf("yubikey slot %d: must be 1 or 2", n)
	}
}

const (
	// ChallengeSize is the length of the random challenge sent to the token.
	ChallengeSize = 32
	// ResponseSize is the length of an HMAC-SHA1 digest.
	ResponseSize = sha1.Size

	insAPIRequest = 0x01
	insSelect     = 0xA4
)

var (
	// ErrNoToken means no target answered in the field.
	ErrNoToken = errors.New("no token in field")
	// ErrWrongToken means the target in the field is not the tag that was
	// looked up.
	ErrWrongToken = errors.New("token does not match detected tag")
	// ErrStatus is an APDU status word other than 90 00.
	ErrStatus = errors.New("token returned error status")
	// ErrMismatch means the token answered with the wrong HMAC.
	ErrMismatch = errors.New("challenge response mismatch")
)

// Device is the reader capability needed to reach a token.
type Device interface {
	InListPassiveTarget(ctx context.Context) (*pn532.Target, error)
	InDataExchange(ctx context.Context, tg byte, data []byte) ([]byte, error)
	InRelease(ctx context.Context, tg byte) error
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithSlot selects the configuration slot holding the key. Default Slot2.
func WithSlot(slot Slot) Option {
	return func(v *Verifier) {
		v.slot = slot
	}
}

// WithRandom sets the challenge source. Default crypto/rand.
func WithRandom(r io.Reader) Option {
	return func(v *Verifier) {
		if r != nil {
			v.rand = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(v *Verifier) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// Verifier runs challenge-response against the token in the field.
type Verifier struct {
	dev    Device
	rand   io.Reader
	logger *zap.Logger
	slot   Slot
}

// NewVerifier creates a verifier talking through dev.
func NewVerifier(dev Device, opts ...Option) *Verifier {
	v := &Verifier{dev: dev, rand: rand.Reader, logger: zap.NewNop(), slot: Slot2}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify re-selects the token, checks it is tag, and proves it holds secret.
func (v *Verifier) Verify(ctx context.Context, tag lynx.TagID, secret []byte) error {
	target, err := v.dev.InListPassiveTarget(ctx)
	if err != nil {
		return fmt.Errorf("select target: %w", err)
	}
	if target == nil {
		return ErrNoToken
	}
	defer func() {
		if err := v.dev.InRelease(ctx, target.Number); err != nil {
			v.logger.Debug("failed to release token", zap.Error(err))
		}
	}()

	if !bytes.Equal(target.UID, tag) {
		return fmt.Errorf("%w: got %s", ErrWrongToken, target.UIDString())
	}
	if err := Select(ctx, v.dev, target.Number); err != nil {
		return err
	}

	challenge := make([]byte, ChallengeSize)
	if _, err := io.ReadFull(v.rand, challenge); err != nil {
		return fmt.Errorf("failed to generate challenge: %w", err)
	}
	got, err := Challenge(ctx, v.dev, target.Number, v.slot, challenge)
	if err != nil {
		return err
	}
	if !hmac.Equal(got, Response(secret, challenge)) {
		return ErrMismatch
	}
	v.logger.Debug("challenge response verified", zap.Stringer("tag_id", tag))
	return nil
}

// Select selects the OTP applet on target tg.
func Select(ctx context.Context, dev Device, tg byte) error {
	apdu := append([]byte{0x00, insSelect, 0x04, 0x00, byte(len(AID))}, AID...)
	if _, err := transmit(ctx, dev, tg, apdu); err != nil {
		return fmt.Errorf("select applet: %w", err)
	}
	return nil
}

// Challenge sends challenge to slot and returns the token's HMAC.
func Challenge(ctx context.Context, dev Device, tg byte, slot Slot, challenge []byte) ([]byte, error) {
	if len(challenge) == 0 || len(challenge) > 64 {
		return nil, fmt.Errorf("challenge length %d: must be 1..64", len(challenge))
	}
	apdu := append([]byte{0x00, insAPIRequest, byte(slot), 0x00, byte(len(challenge))}, challenge...)
	res, err := transmit(ctx, dev, tg, apdu)
	if err != nil {
		return nil, fmt.Errorf("challenge: %w", err)
	}
	if len(res) < ResponseSize {
		return nil, fmt.Errorf("%w: %d byte response", ErrMismatch, len(res))
	}
	return res[:ResponseSize], nil
}

// Response computes the HMAC-SHA1 a token holding secret returns for
// challenge.
func Response(secret, challenge []byte) []byte {
	mac := hmac.New(sha1.New, secret)
	_, _ = mac.Write(challenge)
	return mac.Sum(nil)
}

// transmit exchanges one APDU and strips the 90 00 status word.
func transmit(ctx context.Context, dev Device, tg byte, apdu []byte) ([]byte, error) {
	res, err := dev.InDataExchange(ctx, tg, apdu)
	if err != nil {
		return nil, err
	}
	if len(res) < 2 {
		return nil, fmt.Errorf("%w: response too short", ErrStatus)
	}
	sw := res[len(res)-2:]
	if sw[0] != 0x90 || sw[1] != 0x00 {
		return nil, fmt.Errorf("%w: %02X %02X", ErrStatus, sw[0], sw[1])
	}
	return res[:len(res)-2], nil
}
