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

package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ZaparooProject/go-lynx/access"
	"github.com/ZaparooProject/go-lynx/actuator"
	"github.com/ZaparooProject/go-lynx/config"
	"github.com/ZaparooProject/go-lynx/indicator"
	"github.com/ZaparooProject/go-lynx/pn532"
	"github.com/ZaparooProject/go-lynx/reader"
	"github.com/ZaparooProject/go-lynx/transport/i2c"
	"github.com/ZaparooProject/go-lynx/transport/spi"
	"github.com/ZaparooProject/go-lynx/transport/uart"
	"github.com/ZaparooProject/go-lynx/yubikey"
	"go.uber.org/zap"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

type hardware struct {
	reader    reader.Driver
	verifier  access.Verifier
	actuator  actuator.Driver
	strip     indicator.Strip
	simulated *reader.SimulatedDevice
	closers   []io.Closer
}

func (h *hardware) Close() {
	for i := len(h.closers) - 1; i >= 0; i-- {
		_ = h.closers[i].Close()
	}
}

func openHardware(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*hardware, error) {
	h := &hardware{strip: indicator.Nop{}}
	ok := false
	defer func() {
		if !ok {
			h.Close()
		}
	}()

	if !cfg.Device.Simulate {
		if _, err := host.Init(); err != nil {
			return nil, fmt.Errorf("failed to initialize periph host: %w", err)
		}
	}

	if err := h.openReader(ctx, cfg, logger); err != nil {
		return nil, err
	}
	if err := h.openActuator(cfg, logger); err != nil {
		return nil, err
	}
	if cfg.Indicator.Enabled && !cfg.Device.Simulate {
		strip, err := indicator.OpenWS2812(cfg.Indicator.SPIPort, uint8(cfg.Indicator.Brightness))
		if err != nil {
			// The LED is cosmetic; run without it.
			logger.Warn("status LED unavailable", zap.Error(err))
		} else {
			h.strip = strip
			h.closers = append(h.closers, strip)
		}
	}

	ok = true
	return h, nil
}

func (h *hardware) openReader(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	rcfg := reader.Config{
		TransactionTimeout: cfg.Reader.TransactionTimeout.Duration,
		Debounce:           cfg.Reader.Debounce.Duration,
		MaxFailures:        cfg.Reader.MaxFailures,
	}
	ropts := []reader.Option{reader.WithConfig(rcfg), reader.WithLogger(logger.Named("reader"))}

	if cfg.Device.Simulate {
		h.simulated = reader.NewSimulatedDevice()
		h.reader = reader.NewPN532(h.simulated, ropts...)
		return nil
	}

	transport, err := openTransport(cfg.Reader)
	if err != nil {
		return err
	}
	device, err := pn532.New(transport,
		pn532.WithTimeout(cfg.Reader.TransactionTimeout.Duration),
		pn532.WithPassiveActivationRetries(byte(cfg.Reader.PassiveRetries)),
		pn532.WithLogger(logger.Named("pn532")),
	)
	if err != nil {
		_ = transport.Close()
		return err
	}
	h.closers = append(h.closers, device)

	initCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := device.Init(initCtx); err != nil {
		return fmt.Errorf("failed to initialize PN532 on %s: %w", cfg.Reader.Port, err)
	}

	h.reader = reader.NewPN532(device, ropts...)

	slot, err := yubikey.SlotFromNumber(cfg.Access.ChallengeSlot)
	if err != nil {
		return err
	}
	h.verifier = yubikey.NewVerifier(device,
		yubikey.WithSlot(slot),
		yubikey.WithLogger(logger.Named("yubikey")),
	)
	return nil
}

func openTransport(cfg config.ReaderConfig) (pn532.Transport, error) {
	switch cfg.Transport {
	case config.TransportSPI:
		t, err := spi.New(cfg.Port, physic.Frequency(cfg.SPISpeedHz)*physic.Hertz)
		if err != nil {
			return nil, fmt.Errorf("failed to create SPI transport: %w", err)
		}
		return t, nil
	case config.TransportI2C:
		t, err := i2c.New(cfg.Port)
		if err != nil {
			return nil, fmt.Errorf("failed to create I2C transport: %w", err)
		}
		return t, nil
	case config.TransportUART:
		t, err := uart.New(cfg.Port)
		if err != nil {
			return nil, fmt.Errorf("failed to create UART transport: %w", err)
		}
		return t, nil
	default:
		return nil, fmt.Errorf("unsupported transport type: %s", cfg.Transport)
	}
}

func (h *hardware) openActuator(cfg *config.Config, logger *zap.Logger) error {
	opts := []actuator.Option{actuator.WithLogger(logger.Named("actuator"))}
	a := cfg.Actuator

	switch a.Kind {
	case config.ActuatorSimulated:
		h.actuator = actuator.NewSimulated(a.SimulatedDelay.Duration, opts...)
		return nil

	case config.ActuatorServo:
		pin, err := pinByName(a.ServoPin)
		if err != nil {
			return err
		}
		servo, err := actuator.NewServo(pin, actuator.ServoConfig{
			LockedAngle:   a.LockedAngle,
			UnlockedAngle: a.UnlockedAngle,
			SettleDelay:   a.SettleDelay.Duration,
			StepDelay:     a.StepDelay.Duration,
		}, opts...)
		if err != nil {
			return err
		}
		h.actuator = servo
		return nil

	case config.ActuatorGPIO:
		unlock, err := pinByName(a.UnlockPin)
		if err != nil {
			return err
		}
		lock, err := pinByName(a.LockPin)
		if err != nil {
			return err
		}
		gcfg := actuator.GPIOConfig{
			Unlock:      unlock,
			Lock:        lock,
			SettleDelay: a.SettleDelay.Duration,
			SensePull:   parsePull(a.SensePull),
		}
		if a.SensePin != "" {
			sense, err := pinByName(a.SensePin)
			if err != nil {
				return err
			}
			gcfg.Sense = sense
		}
		g, err := actuator.NewGPIO(gcfg, opts...)
		if err != nil {
			return err
		}
		h.actuator = g
		return nil

	default:
		return fmt.Errorf("unsupported actuator kind: %s", a.Kind)
	}
}

func pinByName(name string) (gpio.PinIO, error) {
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("gpio pin %q not found", name)
	}
	return p, nil
}

func parsePull(s string) gpio.Pull {
	switch strings.ToLower(s) {
	case "up":
		return gpio.PullUp
	case "down":
		return gpio.PullDown
	case "none":
		return gpio.Float
	default:
		return gpio.PullNoChange
	}
}
