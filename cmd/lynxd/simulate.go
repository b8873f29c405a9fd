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
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/ZaparooProject/go-lynx"
	"github.com/ZaparooProject/go-lynx/access"
	"github.com/ZaparooProject/go-lynx/reader"
	"go.uber.org/zap"
)

// readTaps feeds the simulated reader from r, one command per line: a hex
// tag UID taps that tag, "relock" requests an early relock and "reset"
// clears a fault.
func readTaps(ctx context.Context, r io.Reader, dev *reader.SimulatedDevice, ctrl *access.Controller, logger *zap.Logger) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- strings.TrimSpace(scanner.Text()):
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				// stdin closed; keep the lock running.
				<-ctx.Done()
				return nil
			}
			handleTapCommand(line, dev, ctrl, logger)
		}
	}
}

func handleTapCommand(line string, dev *reader.SimulatedDevice, ctrl *access.Controller, logger *zap.Logger) {
	switch strings.ToLower(line) {
	case "":
		return
	case "relock":
		ctrl.RequestRelock()
	case "reset":
		ctrl.Reset()
	case "state":
		logger.Info("lock state", zap.Stringer("state", ctrl.State()))
	default:
		tag, err := lynx.ParseTagID(line)
		if err != nil {
			logger.Warn("ignoring input", zap.String("line", line), zap.Error(err))
			return
		}
		dev.Tap(tag)
	}
}
