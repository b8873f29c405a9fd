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
	"time"

	"github.com/ZaparooProject/go-lynx/internal/retry"
	"go.uber.org/zap"
)

// Option is a functional option for configuring a Device
type Option func(*Device) error

// WithRetryConfig sets the retry configuration for the device
func WithRetryConfig(config *retry.Config) Option {
	return func(d *Device) error {
		if config == nil {
			return errors.New("retry config must not be nil")
		}
		cfg := *config
		d.config.RetryConfig = &cfg
		return nil
	}
}

// WithExchangeTimeout sets the timeout used for InDataExchange.
func WithExchangeTimeout(timeout time.Duration) Option {
	return func(d *Device) error {
		if timeout <= 0 {
			return errors.New("exchange timeout must be positive")
		}
		d.config.ExchangeTimeout = timeout
		return nil
	}
}

// WithTimeout sets the per-transaction timeout applied to the transport
func WithTimeout(timeout time.Duration) Option {
	return func(d *Device) error {
		if timeout <= 0 {
			return errors.New("timeout must be positive")
		}
		d.config.Timeout = timeout
		return nil
	}
}

// WithMaxRetries sets the total number of attempts per command
func WithMaxRetries(maxAttempts int) Option {
	return func(d *Device) error {
		d.config.RetryConfig.MaxAttempts = maxAttempts
		return nil
	}
}

// WithPassiveActivationRetries sets MxRtyPassiveActivation
func WithPassiveActivationRetries(retries byte) Option {
	return func(d *Device) error {
		if retries == PassiveActivationForever {
			return errors.New("unbounded passive activation is not allowed")
		}
		d.config.PassiveActivationRetries = retries
		return nil
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(d *Device) error {
		if logger != nil {
			d.logger = logger
		}
		return nil
	}
}
