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
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ZaparooProject/go-lynx/internal/retry"
	"go.uber.org/zap"
)

// DeviceConfig holds the tunables applied during Init and on every command.
type DeviceConfig struct {
	RetryConfig *retry.Config
	// Timeout bounds a single bus transaction.
	Timeout time.Duration
	// ExchangeTimeout bounds InDataExchange, where the target itself may
	// take a while to compute its answer.
	ExchangeTimeout time.Duration
	// PassiveActivationRetries is the RFConfiguration MxRtyPassiveActivation
	// value. 0xFF would make InListPassiveTarget block until a tag arrives.
	PassiveActivationRetries byte
}

// DefaultDeviceConfig returns a configuration suited to short, bounded polls.
func DefaultDeviceConfig() *DeviceConfig {
	return &DeviceConfig{
		RetryConfig:              retry.DefaultConfig(),
		Timeout:                  DefaultTimeout,
		ExchangeTimeout:          DefaultExchangeTimeout,
		PassiveActivationRetries: 0x01,
	}
}

// FirmwareVersion is the GetFirmwareVersion answer.
type FirmwareVersion struct {
	Version          string
	IC               byte
	SupportISO14443A bool
	SupportISO14443B bool
	SupportISO18092  bool
}

// Device is a PN532 reached through a Transport.
type Device struct {
	transport Transport
	config    *DeviceConfig
	logger    *zap.Logger
	firmware  *FirmwareVersion
	mu        sync.Mutex
}

// New creates a device. The transport is not touched until Init.
func New(transport Transport, opts ...Option) (*Device, error) {
	device := &Device{
		transport: transport,
		config:    DefaultDeviceConfig(),
		logger:    zap.NewNop(),
	}

	for _, opt := range opts {
		if err := opt(device); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	return device, nil
}

// Transport returns the underlying transport.
func (d *Device) Transport() Transport {
	return d.transport
}

// Init reads the firmware version, puts the SAM in normal mode and bounds
// passive activation so that a poll never waits for a tag indefinitely.
func (d *Device) Init(ctx context.Context) error {
	if d.transport != nil && d.config.Timeout > 0 {
		if err := d.transport.SetTimeout(d.config.Timeout); err != nil {
			return fmt.Errorf("failed to set transport timeout: %w", err)
		}
	}

	fw, err := d.GetFirmwareVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to get firmware version: %w", err)
	}

	if err := d.SAMConfiguration(ctx); err != nil {
		return fmt.Errorf("SAM configuration failed: %w", err)
	}

	if err := d.SetPassiveActivationRetries(ctx, d.config.PassiveActivationRetries); err != nil {
		return fmt.Errorf("failed to configure passive activation retries: %w", err)
	}

	d.logger.Info("PN532 initialized",
		zap.String("firmware", fw.Version),
		zap.String("transport", string(d.transport.Type())),
		zap.Uint8("passive_activation_retries", d.config.PassiveActivationRetries))
	return nil
}

// FirmwareVersion returns the version read by the last Init, or nil.
func (d *Device) FirmwareVersion() *FirmwareVersion {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.firmware
}

// GetFirmwareVersion queries the chip for its IC and firmware revision.
func (d *Device) GetFirmwareVersion(ctx context.Context) (*FirmwareVersion, error) {
	res, err := d.sendCommand(ctx, cmdGetFirmwareVersion, nil)
	if err != nil {
		return nil, err
	}

	if len(res) != 5 {
		return nil, fmt.Errorf("%w: firmware version response length %d", ErrInvalidResponse, len(res))
	}

	fw := &FirmwareVersion{
		IC:               res[1],
		Version:          fmt.Sprintf("%d.%d", res[2], res[3]),
		SupportISO14443A: res[4]&0x01 != 0,
		SupportISO14443B: res[4]&0x02 != 0,
		SupportISO18092:  res[4]&0x04 != 0,
	}

	d.mu.Lock()
	d.firmware = fw
	d.mu.Unlock()
	return fw, nil
}

// SAMConfiguration sets the Security Access Module to normal mode.
func (d *Device) SAMConfiguration(ctx context.Context) error {
	_, err := d.sendCommand(ctx, cmdSamConfiguration, []byte{samModeNormal, samTimeout, samUseIRQ})
	return err
}

// SetPassiveActivationRetries configures how many times the chip retries
// activating a passive target before InListPassiveTarget gives up.
func (d *Device) SetPassiveActivationRetries(ctx context.Context, retries byte) error {
	// MxRtyATR, MxRtyPSL, MxRtyPassiveActivation
	_, err := d.sendCommand(ctx, cmdRFConfiguration, []byte{rfItemMaxRetries, 0xFF, 0x01, retries})
	return err
}

// InListPassiveTarget looks for a single ISO14443A target at 106 kbps.
// It returns (nil, nil) when the field is empty.
func (d *Device) InListPassiveTarget(ctx context.Context) (*Target, error) {
	res, err := d.sendCommand(ctx, cmdInListPassiveTarget, []byte{0x01, BaudISO14443A})
	if err != nil {
		return nil, err
	}
	return parseTarget(res)
}

// InRelease deactivates target tg. Passing 0 releases every target.
func (d *Device) InRelease(ctx context.Context, tg byte) error {
	res, err := d.sendCommand(ctx, cmdInRelease, []byte{tg})
	if err != nil {
		return err
	}
	if len(res) >= 2 && res[1]&0x3F != 0 {
		return fmt.Errorf("%w: InRelease status 0x%02X", ErrApplicationError, res[1])
	}
	return nil
}

// InDataExchange sends data to the activated target tg and returns the
// target's answer. The lock uses it to talk ISO 7816 APDUs to tokens that
// prove possession of a key.
func (d *Device) InDataExchange(ctx context.Context, tg byte, data []byte) ([]byte, error) {
	if len(data) > MaxDataExchange {
		return nil, fmt.Errorf("%w: %d bytes, max %d", ErrDataTooLarge, len(data), MaxDataExchange)
	}
	args := make([]byte, 0, len(data)+1)
	args = append(args, tg)
	args = append(args, data...)

	if d.transport != nil && d.config.ExchangeTimeout > d.config.Timeout {
		if err := d.transport.SetTimeout(d.config.ExchangeTimeout); err != nil {
			return nil, fmt.Errorf("failed to set transport timeout: %w", err)
		}
		defer func() {
			if err := d.transport.SetTimeout(d.config.Timeout); err != nil {
				d.logger.Warn("failed to restore transport timeout", zap.Error(err))
			}
		}()
	}

	res, err := d.sendCommand(ctx, cmdInDataExchange, args)
	if err != nil {
		return nil, err
	}
	if len(res) < 2 {
		return nil, fmt.Errorf("%w: InDataExchange response too short", ErrInvalidResponse)
	}
	if res[1]&0x3F != 0 {
		return nil, fmt.Errorf("%w: InDataExchange status 0x%02X", ErrApplicationError, res[1])
	}
	return append([]byte(nil), res[2:]...), nil
}

// Close closes the transport.
func (d *Device) Close() error {
	if d.transport == nil {
		return nil
	}
	if err := d.transport.Close(); err != nil {
		return fmt.Errorf("failed to close transport: %w", err)
	}
	return nil
}

// sendCommand runs one command with retries and checks the response code.
func (d *Device) sendCommand(ctx context.Context, cmd byte, args []byte) ([]byte, error) {
	if d.transport == nil {
		return nil, ErrNotInitialized
	}

	var res []byte
	err := retry.Do(ctx, d.config.RetryConfig, IsRetryable, func() error {
		var err error
		res, err = d.transport.SendCommand(ctx, cmd, args)
		if err != nil {
			d.logger.Debug("PN532 command failed",
				zap.Uint8("cmd", cmd), zap.Error(err))
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("command 0x%02X: %w", cmd, err)
	}

	if len(res) == 0 || res[0] != cmd+1 {
		return nil, fmt.Errorf("%w: command 0x%02X answered with % X", ErrUnexpectedResponse, cmd, res)
	}
	return res, nil
}
