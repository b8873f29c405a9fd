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

// Command readtag enrols tags: it polls a PN532 and prints every new tag as
// a credentials file entry that can be appended to the lock's local
// credentials file.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/ZaparooProject/go-lynx"
	"github.com/ZaparooProject/go-lynx/internal/logging"
	"github.com/ZaparooProject/go-lynx/pn532"
	"github.com/ZaparooProject/go-lynx/reader"
	"github.com/ZaparooProject/go-lynx/transport/i2c"
	"github.com/ZaparooProject/go-lynx/transport/spi"
	"github.com/ZaparooProject/go-lynx/transport/uart"
	"go.uber.org/zap"
)

type config struct {
	devicePath   *string
	permission   *string
	timeout      *time.Duration
	pollInterval *time.Duration
	debug        *bool
	once         *bool
}

func parseFlags() *config {
	cfg := &config{
		devicePath: flag.String("device", "/dev/spidev0.0",
			"Reader device path (e.g., /dev/spidev0.0, /dev/i2c-1 or /dev/ttyUSB0)"),
		permission:   flag.String("permission", "allow", "Permission written for each tag (allow, deny, time_limited)"),
		timeout:      flag.Duration("timeout", 30*time.Second, "Stop after this long"),
		pollInterval: flag.Duration("poll-interval", 100*time.Millisecond, "Polling interval for tag detection"),
		debug:        flag.Bool("debug", false, "Enable debug output"),
		once:         flag.Bool("once", false, "Exit after the first tag"),
	}
	flag.Parse()
	return cfg
}

// newTransport picks the bus from the device path.
func newTransport(path string) (pn532.Transport, error) {
	if path == "" {
		return nil, errors.New("empty device path")
	}

	pathLower := strings.ToLower(path)

	if strings.Contains(pathLower, "i2c") {
		transport, err := i2c.New(path)
		if err != nil {
			return nil, fmt.Errorf("failed to create I2C transport: %w", err)
		}
		return transport, nil
	}

	if strings.Contains(pathLower, "spi") {
		transport, err := spi.New(path, spi.DefaultSpeed)
		if err != nil {
			return nil, fmt.Errorf("failed to create SPI transport: %w", err)
		}
		return transport, nil
	}

	// Default to UART for serial ports
	transport, err := uart.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create UART transport: %w", err)
	}
	return transport, nil
}

// writeEntry prints one [[credential]] table.
func writeEntry(w io.Writer, tag lynx.TagID, perm lynx.Permission) {
	_, _ = fmt.Fprintf(w, "\n[[credential]]\ntag_id = %q\npermission = %q\n", tag.String(), perm.String())
}

// enrol polls until ctx is done, printing each debounced detection.
func enrol(ctx context.Context, r reader.Driver, w io.Writer, perm lynx.Permission, interval time.Duration, once bool) (int, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	seen := 0
	for {
		select {
		case <-ctx.Done():
			return seen, nil
		case <-ticker.C:
		}

		ev, err := r.Poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return seen, nil
			}
			return seen, err
		}
		if ev == nil {
			continue
		}
		writeEntry(w, ev.TagID, perm)
		seen++
		if once {
			return seen, nil
		}
	}
}

func run(cfg *config, logger *zap.Logger) error {
	perm, err := lynx.ParsePermission(*cfg.permission)
	if err != nil {
		return err
	}

	transport, err := newTransport(*cfg.devicePath)
	if err != nil {
		return err
	}
	device, err := pn532.New(transport, pn532.WithLogger(logger))
	if err != nil {
		_ = transport.Close()
		return err
	}
	defer func() { _ = device.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), *cfg.timeout)
	defer cancel()

	if err := device.Init(ctx); err != nil {
		return fmt.Errorf("failed to initialize PN532: %w", err)
	}
	if fw := device.FirmwareVersion(); fw != nil {
		_, _ = fmt.Fprintf(os.Stderr, "PN532 Firmware: %s\n", fw.Version)
	}
	_, _ = fmt.Fprintf(os.Stderr, "Waiting for NFC tags (timeout: %s, poll interval: %s)...\n",
		*cfg.timeout, *cfg.pollInterval)

	r := reader.NewPN532(device, reader.WithLogger(logger))
	n, err := enrol(ctx, r, os.Stdout, perm, *cfg.pollInterval, *cfg.once)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(os.Stderr, "%d tag(s) read\n", n)
	return nil
}

func main() {
	cfg := parseFlags()

	level := "warn"
	if *cfg.debug {
		level = "debug"
	}
	logger, err := logging.New(logging.Options{Level: level, Development: true, OutputPaths: []string{"stderr"}})
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "readtag: %v\n", err)
		os.Exit(2)
	}

	if err := run(cfg, logger); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "readtag: %v\n", err)
		os.Exit(1)
	}
}
